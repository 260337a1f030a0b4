package config_test

import (
	"context"
	"os"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/ucmao/parse-ucmao-backend/internal/config"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":5001")
				convey.So(cfg.Backend, convey.ShouldEqual, "postgres")
				convey.So(cfg.DBName, convey.ShouldEqual, "parse_ucmao")
				convey.So(cfg.DefaultStorageLimit, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("UCMAO_ADDR", ":8080")
			_ = os.Setenv("UCMAO_DB_HOST", "db.internal")
			_ = os.Setenv("UCMAO_DB_PORT", "5433")
			_ = os.Setenv("UCMAO_DEFAULT_STORAGE_LIMIT", "200")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.DBHost, convey.ShouldEqual, "db.internal")
				convey.So(cfg.DBPort, convey.ShouldEqual, 5433)
				convey.So(cfg.DefaultStorageLimit, convey.ShouldEqual, 200)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
addr: ":9090"
backend: "memory"
db_name: "parse_ucmao_test"
max_query_limit: 50
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()

			_ = os.Setenv("UCMAO_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Backend, convey.ShouldEqual, "memory")
				convey.So(cfg.DBName, convey.ShouldEqual, "parse_ucmao_test")
				convey.So(cfg.MaxQueryLimit, convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When loading config with an invalid backend", func() {
			clearConfigEnvVars()
			_ = os.Setenv("UCMAO_BACKEND", "oracle")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading should fail", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func clearConfigEnvVars() {
	for _, key := range []string{
		"UCMAO_CONFIG",
		"UCMAO_ADDR",
		"UCMAO_BACKEND",
		"UCMAO_DB_HOST",
		"UCMAO_DB_PORT",
		"UCMAO_DB_USER",
		"UCMAO_DB_PASSWORD",
		"UCMAO_DB_NAME",
		"UCMAO_DEFAULT_STORAGE_LIMIT",
		"UCMAO_MAX_QUERY_LIMIT",
	} {
		_ = os.Unsetenv(key)
	}
}

func createTempConfigFile(content string) string {
	f, err := os.CreateTemp("", "ucmao-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := f.WriteString(content); err != nil {
		panic(err)
	}
	_ = f.Close()
	return f.Name()
}
