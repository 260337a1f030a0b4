package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			metricsEnabledOpt := WithMetricsEnabled(true)
			refreshIntervalOpt := WithRefreshInterval(5 * time.Second)

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(metricsEnabledOpt, ShouldNotBeNil)
				So(refreshIntervalOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestRefreshInterval(t *testing.T) {
	Convey("Given the refresh interval configuration", t, func() {
		Convey("When a manager is built with a custom interval", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithRefreshInterval(5*time.Second),
				WithPrometheusRegistry(registry),
			)

			Convey("Then the manager should carry it", func() {
				So(manager.refreshInterval, ShouldEqual, 5*time.Second)
			})
		})

		Convey("When reading the package-level interval", func() {
			Convey("Then it should report the global manager's setting", func() {
				So(RefreshInterval(), ShouldEqual, defaultRefreshInterval)
			})
		})
	})
}

func TestGlobalHelpers(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording business metrics", func() {
			RecordScoreUpdate(10)
			RecordScoreUpdateMiss()
			RecordLedgerTouch(true)
			RecordLedgerTouch(false)
			RecordLedgerRemoval()
			RecordRankingQuery()
			RecordRecordsQuery()
			RecordStoreError("catalog")
			RecordStoreQueryLatency("catalog", 1.5)
			UpdateTotalVideos(3)
			UpdateTotalUsers(2)
			RecordHTTPRequest("ranking", "GET", "200")
			RecordHTTPRequestDuration("ranking", "GET", "200", 2.0)

			Convey("Then the registry should gather without error", func() {
				mfs, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				So(len(mfs), ShouldBeGreaterThan, 0)
			})
		})
	})
}
