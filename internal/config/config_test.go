package config_test

import (
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/ucmao/parse-ucmao-backend/internal/config"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":5001")
			convey.So(cfg.Backend, convey.ShouldEqual, "postgres")
			convey.So(cfg.DefaultStorageLimit, convey.ShouldEqual, 100)
			convey.So(cfg.MaxQueryLimit, convey.ShouldEqual, 100)
			convey.So(cfg.ActionWeights["parse"], convey.ShouldEqual, 10)
			convey.So(cfg.ActionWeights["shareFriend"], convey.ShouldEqual, 8)
			convey.So(cfg.ActionWeights["validPlay"], convey.ShouldEqual, 1)
		})

		convey.Convey("Then the DSN should render the database settings", func() {
			convey.So(cfg.DSN(), convey.ShouldEqual,
				"postgres://postgres:@localhost:5432/parse_ucmao?sslmode=disable")
		})
	})
}
