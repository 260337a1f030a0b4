package service

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/ucmao/parse-ucmao-backend/internal/adapters/repository"
	"github.com/ucmao/parse-ucmao-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

// testClock is a settable clock for deterministic window and eviction tests.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func newTestService(t *testing.T, clock *testClock) (*Service, *repository.MemStore) {
	t.Helper()
	mem := repository.NewMemStore(repository.WithNowFunc(clock.Now))
	svc := New(
		WithStores(mem, mem, mem),
		WithQueryLog(mem),
		WithActionWeights(map[string]int{"parse": 10, "validPlay": 1, "copyTitle": 1}),
		WithPlatformNames(map[string]string{"douyin": "抖音"}),
		WithMaxQueryLimit(50),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc, mem
}

func seedVideo(t *testing.T, svc *Service, id, platform, title string, visible bool) {
	t.Helper()
	err := svc.SaveVideo(context.Background(), repository.CatalogEntry{
		VideoID:   id,
		Platform:  platform,
		Title:     title,
		VideoURL:  "https://cdn.example.com/" + id + ".mp4",
		CoverURL:  "https://cdn.example.com/" + id + ".jpg",
		IsVisible: visible,
	})
	if err != nil {
		t.Fatalf("seed video %s: %v", id, err)
	}
}

func TestServiceLedger(t *testing.T) {
	convey.Convey("Given a started service with a bounded ledger", t, func() {
		clock := &testClock{now: time.Date(2026, 8, 15, 12, 0, 0, 0, time.Local)}
		svc, mem := newTestService(t, clock)
		ctx := context.Background()

		userID, err := svc.ResolveUser(ctx, "open-1")
		convey.So(err, convey.ShouldBeNil)
		mem.SetCapacity(userID, 2)

		convey.Convey("When views are recorded beyond capacity", func() {
			convey.So(svc.RecordView(ctx, userID, "v1"), convey.ShouldBeNil)
			clock.now = clock.now.Add(time.Minute)
			convey.So(svc.RecordView(ctx, userID, "v2"), convey.ShouldBeNil)
			clock.now = clock.now.Add(time.Minute)
			convey.So(svc.RecordView(ctx, userID, "v3"), convey.ShouldBeNil)

			convey.Convey("Then only the newest entries survive", func() {
				snap, err := mem.Snapshot(ctx, userID)
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap, convey.ShouldHaveLength, 2)
				convey.So(snap, convey.ShouldNotContainKey, "v1")
				convey.So(snap, convey.ShouldContainKey, "v2")
				convey.So(snap, convey.ShouldContainKey, "v3")
			})
		})

		convey.Convey("When a recorded view is touched again", func() {
			convey.So(svc.RecordView(ctx, userID, "v1"), convey.ShouldBeNil)
			clock.now = clock.now.Add(time.Minute)
			convey.So(svc.RecordView(ctx, userID, "v2"), convey.ShouldBeNil)
			clock.now = clock.now.Add(time.Minute)
			convey.So(svc.RecordView(ctx, userID, "v1"), convey.ShouldBeNil)
			clock.now = clock.now.Add(time.Minute)
			convey.So(svc.RecordView(ctx, userID, "v3"), convey.ShouldBeNil)

			convey.Convey("Then the refreshed entry is not the one evicted", func() {
				snap, err := mem.Snapshot(ctx, userID)
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap, convey.ShouldContainKey, "v1")
				convey.So(snap, convey.ShouldNotContainKey, "v2")
			})
		})

		convey.Convey("When the service carries a configured storage limit", func() {
			bounded := New(
				WithDefaultStorageLimit(2),
				WithMaxQueryLimit(50),
			)
			convey.So(bounded.Start(ctx), convey.ShouldBeNil)
			defer bounded.Stop()

			freshID, err := bounded.ResolveUser(ctx, "open-bounded")
			convey.So(err, convey.ShouldBeNil)
			for _, id := range []string{"v1", "v2", "v3", "v4"} {
				convey.So(bounded.RecordView(ctx, freshID, id), convey.ShouldBeNil)
			}

			convey.Convey("Then a fresh user's ledger is bounded by it", func() {
				bundle, err := bounded.GetHistory(ctx, freshID, "", 10)
				convey.So(err, convey.ShouldBeNil)
				convey.So(bundle.Length, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When an absent entry is unrecorded", func() {
			err := svc.Unrecord(ctx, userID, "ghost")

			convey.Convey("Then the removal reports not found", func() {
				convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the history is cleared", func() {
			convey.So(svc.RecordView(ctx, userID, "v1"), convey.ShouldBeNil)
			convey.So(svc.ClearHistory(ctx, userID), convey.ShouldBeNil)

			convey.Convey("Then the ledger is empty", func() {
				snap, err := mem.Snapshot(ctx, userID)
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When a mixed batch is unrecorded", func() {
			mem.SetCapacity(userID, 10)
			convey.So(svc.RecordView(ctx, userID, "a"), convey.ShouldBeNil)
			convey.So(svc.RecordView(ctx, userID, "b"), convey.ShouldBeNil)

			results, err := svc.UnrecordBatch(ctx, userID, []string{"a", "ghost", "b"})

			convey.Convey("Then every id reports its own outcome", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(results, convey.ShouldHaveLength, 3)
				convey.So(results[0].Removed, convey.ShouldBeTrue)
				convey.So(results[1].Removed, convey.ShouldBeFalse)
				convey.So(results[2].Removed, convey.ShouldBeTrue)
			})

			convey.Convey("Then an absent id never blocks later removals", func() {
				convey.So(err, convey.ShouldBeNil)
				snap, _ := mem.Snapshot(ctx, userID)
				convey.So(snap, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When a batch of views is recorded", func() {
			mem.SetCapacity(userID, 10)
			err := svc.RecordViews(ctx, userID, []string{"a", "b", "c"})

			convey.Convey("Then every id lands in the ledger", func() {
				convey.So(err, convey.ShouldBeNil)
				snap, _ := mem.Snapshot(ctx, userID)
				convey.So(snap, convey.ShouldHaveLength, 3)
			})
		})
	})
}

func TestServiceScoring(t *testing.T) {
	convey.Convey("Given a service with seeded videos", t, func() {
		clock := &testClock{now: time.Date(2026, 8, 15, 12, 0, 0, 0, time.Local)}
		svc, _ := newTestService(t, clock)
		ctx := context.Background()

		seedVideo(t, svc, "v1", "douyin", "first", true)
		seedVideo(t, svc, "v2", "douyin", "second", true)

		convey.Convey("When a known action is applied to existing and missing ids", func() {
			total, results, err := svc.AddScore(ctx, []string{"v1", "v2", "missing"}, "parse")

			convey.Convey("Then hits accumulate and the miss is reported per item", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(total, convey.ShouldEqual, 20)
				convey.So(results, convey.ShouldHaveLength, 3)
				convey.So(results[0].Success, convey.ShouldBeTrue)
				convey.So(*results[0].TotalScore, convey.ShouldEqual, 10)
				convey.So(results[2].Success, convey.ShouldBeFalse)
				convey.So(results[2].TotalScore, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the same action is applied twice", func() {
			_, _, err := svc.AddScore(ctx, []string{"v1"}, "validPlay")
			convey.So(err, convey.ShouldBeNil)
			_, _, err = svc.AddScore(ctx, []string{"v1"}, "validPlay")
			convey.So(err, convey.ShouldBeNil)

			convey.Convey("Then the total is the sum of both deltas", func() {
				total, err := svc.VideoTotalScore(ctx, "v1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(total, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When the action is unknown", func() {
			_, _, err := svc.AddScore(ctx, []string{"v1"}, "bogus")

			convey.Convey("Then the call is rejected as invalid", func() {
				convey.So(errors.Is(err, ErrInvalidArgument), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the id list is empty", func() {
			_, _, err := svc.AddScore(ctx, nil, "parse")

			convey.So(errors.Is(err, ErrInvalidArgument), convey.ShouldBeTrue)
		})
	})
}

func TestServiceRankings(t *testing.T) {
	convey.Convey("Given a catalog created across several windows", t, func() {
		clock := &testClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.Local)}
		svc, _ := newTestService(t, clock)
		ctx := context.Background()

		// old video, created far outside the sliding windows
		clock.now = time.Now().AddDate(-2, 0, 0)
		seedVideo(t, svc, "old", "douyin", "ancient clip", true)
		// recent videos
		clock.now = time.Now().AddDate(0, 0, -3)
		seedVideo(t, svc, "recent-low", "douyin", "cat video", true)
		seedVideo(t, svc, "recent-high", "douyin", "dog video", true)
		seedVideo(t, svc, "hidden", "douyin", "secret", false)
		clock.now = time.Now()

		_, _, err := svc.AddScore(ctx, []string{"recent-high", "old"}, "parse")
		convey.So(err, convey.ShouldBeNil)
		_, _, err = svc.AddScore(ctx, []string{"recent-high"}, "parse")
		convey.So(err, convey.ShouldBeNil)
		_, _, err = svc.AddScore(ctx, []string{"recent-low"}, "validPlay")
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When rankings are requested", func() {
			bundle, err := svc.GetRankings(ctx, "", 10)

			convey.Convey("Then windows partition by creation time and sort by score", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(bundle.All, convey.ShouldHaveLength, 3)
				convey.So(bundle.Days7, convey.ShouldHaveLength, 2)
				convey.So(bundle.Days7[0].VideoID, convey.ShouldEqual, "recent-high")
				convey.So(bundle.Days7[0].QueryCount, convey.ShouldEqual, 20)
				convey.So(bundle.Days7[1].VideoID, convey.ShouldEqual, "recent-low")
				convey.So(bundle.Days365, convey.ShouldHaveLength, 2)
			})

			convey.Convey("Then platform tags are mapped to display names", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(bundle.All[0].Platform, convey.ShouldEqual, "抖音")
				convey.So(bundle.All[0].ShowItem, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When rankings are filtered by keyword", func() {
			bundle, err := svc.GetRankings(ctx, "dog", 10)

			convey.Convey("Then only matching titles appear", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(bundle.Search, convey.ShouldEqual, "dog")
				convey.So(bundle.All, convey.ShouldHaveLength, 1)
				convey.So(bundle.All[0].VideoID, convey.ShouldEqual, "recent-high")
			})
		})

		convey.Convey("When the limit is smaller than the candidate set", func() {
			bundle, err := svc.GetRankings(ctx, "", 1)

			convey.So(err, convey.ShouldBeNil)
			convey.So(bundle.All, convey.ShouldHaveLength, 1)
			convey.So(bundle.All[0].VideoID, convey.ShouldEqual, "recent-high")
		})
	})
}

func TestServiceHistory(t *testing.T) {
	convey.Convey("Given a user with views across several windows", t, func() {
		clock := &testClock{now: time.Now()}
		svc, _ := newTestService(t, clock)
		ctx := context.Background()

		seedVideo(t, svc, "v-today", "douyin", "fresh", true)
		seedVideo(t, svc, "v-yesterday", "douyin", "stale", true)
		seedVideo(t, svc, "v-hidden", "douyin", "gone", false)

		userID, err := svc.ResolveUser(ctx, "open-2")
		convey.So(err, convey.ShouldBeNil)

		clock.now = time.Now().AddDate(0, 0, -1)
		convey.So(svc.RecordView(ctx, userID, "v-yesterday"), convey.ShouldBeNil)
		clock.now = time.Now()
		convey.So(svc.RecordView(ctx, userID, "v-today"), convey.ShouldBeNil)
		clock.now = clock.now.Add(time.Second)
		convey.So(svc.RecordView(ctx, userID, "v-hidden"), convey.ShouldBeNil)
		convey.So(svc.RecordView(ctx, userID, "v-orphan"), convey.ShouldBeNil)

		convey.Convey("When the history bundle is requested", func() {
			bundle, err := svc.GetHistory(ctx, userID, "", 10)

			convey.Convey("Then Length reports the raw ledger size", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(bundle.Length, convey.ShouldEqual, 4)
			})

			convey.Convey("Then hidden and unknown videos are dropped from the lists", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(bundle.All, convey.ShouldHaveLength, 2)
				for _, r := range bundle.All {
					convey.So(r.VideoID, convey.ShouldNotEqual, "v-hidden")
					convey.So(r.VideoID, convey.ShouldNotEqual, "v-orphan")
				}
			})

			convey.Convey("Then calendar windows split today and yesterday", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(bundle.Today, convey.ShouldHaveLength, 1)
				convey.So(bundle.Today[0].VideoID, convey.ShouldEqual, "v-today")
				convey.So(bundle.Yesterday, convey.ShouldHaveLength, 1)
				convey.So(bundle.Yesterday[0].VideoID, convey.ShouldEqual, "v-yesterday")
			})

			convey.Convey("Then rows sort most recently watched first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(bundle.Days7[0].VideoID, convey.ShouldEqual, "v-today")
				convey.So(bundle.Days7[1].VideoID, convey.ShouldEqual, "v-yesterday")
			})
		})

		convey.Convey("When the history is filtered by title keyword", func() {
			bundle, err := svc.GetHistory(ctx, userID, "fresh", 10)

			convey.So(err, convey.ShouldBeNil)
			convey.So(bundle.All, convey.ShouldHaveLength, 1)
			convey.So(bundle.All[0].VideoID, convey.ShouldEqual, "v-today")
			convey.So(bundle.Length, convey.ShouldEqual, 4)
		})

		convey.Convey("When the user has no ledger", func() {
			otherID, err := svc.ResolveUser(ctx, "open-3")
			convey.So(err, convey.ShouldBeNil)
			bundle, err := svc.GetHistory(ctx, otherID, "", 10)

			convey.So(err, convey.ShouldBeNil)
			convey.So(bundle.Length, convey.ShouldEqual, 0)
			convey.So(bundle.All, convey.ShouldBeEmpty)
		})
	})
}

func TestServiceStats(t *testing.T) {
	convey.Convey("Given a service with videos and users", t, func() {
		clock := &testClock{now: time.Now()}
		svc, _ := newTestService(t, clock)
		ctx := context.Background()

		seedVideo(t, svc, "v1", "douyin", "one", true)
		_, err := svc.ResolveUser(ctx, "open-1")
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("When stats are requested", func() {
			stats := svc.GetStats(ctx)

			convey.So(stats["totalVideos"], convey.ShouldEqual, 1)
			convey.So(stats["totalUsers"], convey.ShouldEqual, 1)
		})
	})
}
