package repository

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ucmao/parse-ucmao-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func newCatalogMock(t *testing.T) (*PostgresCatalog, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("open sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresCatalog(db, logger.Get()), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCatalogAddScore(t *testing.T) {
	ctx := context.Background()

	t.Run("existing video accumulates", func(t *testing.T) {
		c, mock := newCatalogMock(t)
		mock.ExpectExec(regexp.QuoteMeta(addScoreQuery)).
			WithArgs(10, "v1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := c.AddScore(ctx, "v1", 10)
		if err != nil {
			t.Fatalf("add score: %v", err)
		}
		if !ok {
			t.Fatal("expected update to match")
		}
		expectationsMet(t, mock)
	})

	t.Run("missing video reports false without error", func(t *testing.T) {
		c, mock := newCatalogMock(t)
		mock.ExpectExec(regexp.QuoteMeta(addScoreQuery)).
			WithArgs(10, "ghost").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := c.AddScore(ctx, "ghost", 10)
		if err != nil {
			t.Fatalf("add score: %v", err)
		}
		if ok {
			t.Fatal("expected update to miss")
		}
		expectationsMet(t, mock)
	})

	t.Run("non-positive delta is rejected before the db", func(t *testing.T) {
		c, mock := newCatalogMock(t)
		if _, err := c.AddScore(ctx, "v1", 0); !errors.Is(err, ErrInvalidDelta) {
			t.Fatalf("expected ErrInvalidDelta, got %v", err)
		}
		expectationsMet(t, mock)
	})
}

func TestCatalogBatchAddScore(t *testing.T) {
	ctx := context.Background()
	c, mock := newCatalogMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"UPDATE parse_library SET score = score + $1 WHERE video_id IN ($2, $3)")).
		WithArgs(5, "v1", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT video_id, score FROM parse_library WHERE video_id IN ($1, $2)")).
		WithArgs("v1", "ghost").
		WillReturnRows(sqlmock.NewRows([]string{"video_id", "score"}).AddRow("v1", int64(15)))
	mock.ExpectCommit()

	outcomes, err := c.BatchAddScore(ctx, []string{"v1", "ghost"}, 5)
	if err != nil {
		t.Fatalf("batch add score: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	if !outcomes[0].Success || outcomes[0].Total == nil || *outcomes[0].Total != 15 {
		t.Fatalf("unexpected hit outcome: %+v", outcomes[0])
	}
	if outcomes[1].Success || outcomes[1].Total != nil {
		t.Fatalf("unexpected miss outcome: %+v", outcomes[1])
	}
	expectationsMet(t, mock)
}

func TestCatalogGet(t *testing.T) {
	ctx := context.Background()

	t.Run("hidden video reads as absent", func(t *testing.T) {
		c, mock := newCatalogMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(
			"SELECT video_id, platform, title, video_url, cover_url, is_visible FROM parse_library WHERE video_id = $1")).
			WithArgs("v1").
			WillReturnRows(sqlmock.NewRows(
				[]string{"video_id", "platform", "title", "video_url", "cover_url", "is_visible"}).
				AddRow("v1", "douyin", "t", "u", "c", false))

		entry, err := c.Get(ctx, "v1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if entry != nil {
			t.Fatalf("expected nil entry for hidden video, got %+v", entry)
		}
		expectationsMet(t, mock)
	})

	t.Run("missing video reads as absent", func(t *testing.T) {
		c, mock := newCatalogMock(t)
		mock.ExpectQuery("SELECT .* FROM parse_library").
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"video_id"}))

		entry, err := c.Get(ctx, "ghost")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if entry != nil {
			t.Fatal("expected nil entry for missing video")
		}
		expectationsMet(t, mock)
	})

	t.Run("field projection is validated against the allowlist", func(t *testing.T) {
		c, mock := newCatalogMock(t)
		if _, err := c.Get(ctx, "v1", "is_visible; DROP TABLE users"); !errors.Is(err, ErrInvalidField) {
			t.Fatalf("expected ErrInvalidField, got %v", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("score projection reads a single column", func(t *testing.T) {
		c, mock := newCatalogMock(t)
		mock.ExpectQuery(regexp.QuoteMeta(
			"SELECT score, is_visible FROM parse_library WHERE video_id = $1")).
			WithArgs("v1").
			WillReturnRows(sqlmock.NewRows([]string{"score", "is_visible"}).AddRow(int64(42), true))

		entry, err := c.Get(ctx, "v1", "score")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if entry == nil || entry.Score != 42 {
			t.Fatalf("unexpected entry: %+v", entry)
		}
		expectationsMet(t, mock)
	})
}

func TestCatalogUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("entry without video_url is a no-op", func(t *testing.T) {
		c, mock := newCatalogMock(t)
		if err := c.Upsert(ctx, CatalogEntry{VideoID: "v1"}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		expectationsMet(t, mock)
	})

	t.Run("full entry upserts", func(t *testing.T) {
		c, mock := newCatalogMock(t)
		mock.ExpectExec("INSERT INTO parse_library").
			WithArgs("v1", "douyin", "t", "u", "c", true).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := c.Upsert(ctx, CatalogEntry{
			VideoID: "v1", Platform: "douyin", Title: "t", VideoURL: "u", CoverURL: "c", IsVisible: true,
		})
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		expectationsMet(t, mock)
	})
}

func TestCatalogBatchUpsert(t *testing.T) {
	ctx := context.Background()
	c, mock := newCatalogMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(
		"SELECT video_id FROM parse_library WHERE video_id IN ($1, $2, $3)")).
		WithArgs("old", "new", "stale").
		WillReturnRows(sqlmock.NewRows([]string{"video_id"}).AddRow("old").AddRow("stale"))
	mock.ExpectExec("UPDATE parse_library SET").
		WithArgs("old", "douyin", "t", "u", "c", true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO parse_library").
		WithArgs("new", "douyin", "t", "u", "c", true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	outcomes, err := c.BatchUpsert(ctx, []CatalogEntry{
		{VideoID: "old", Platform: "douyin", Title: "t", VideoURL: "u", CoverURL: "c", IsVisible: true},
		{VideoID: "new", Platform: "douyin", Title: "t", VideoURL: "u", CoverURL: "c", IsVisible: true},
		{VideoID: "stale", Platform: "douyin", Title: "t", IsVisible: true},
	})
	if err != nil {
		t.Fatalf("batch upsert: %v", err)
	}
	want := []UpsertAction{UpsertUpdated, UpsertInserted, UpsertSkipped}
	for i, action := range want {
		if outcomes[i].Action != action {
			t.Errorf("outcome %d: expected %s, got %s", i, action, outcomes[i].Action)
		}
	}
	expectationsMet(t, mock)
}

func TestCatalogTotalScore(t *testing.T) {
	ctx := context.Background()
	c, mock := newCatalogMock(t)

	mock.ExpectQuery(regexp.QuoteMeta(totalScoreQuery)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"score"}))

	total, err := c.TotalScore(ctx, "ghost")
	if err != nil {
		t.Fatalf("total score: %v", err)
	}
	if total != 0 {
		t.Fatalf("expected 0 for absent video, got %d", total)
	}
	expectationsMet(t, mock)
}

func TestCatalogListVisible(t *testing.T) {
	ctx := context.Background()
	c, mock := newCatalogMock(t)

	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .* FROM parse_library").
		WithArgs("cat").
		WillReturnRows(sqlmock.NewRows(
			[]string{"video_id", "platform", "title", "video_url", "cover_url", "score", "create_at"}).
			AddRow("v1", "douyin", "cat clip", "u", "c", int64(20), created).
			AddRow("v2", "douyin", "cat song", "u", "c", int64(10), created))

	entries, err := c.ListVisible(ctx, "cat")
	if err != nil {
		t.Fatalf("list visible: %v", err)
	}
	if len(entries) != 2 || entries[0].VideoID != "v1" || !entries[0].IsVisible {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	expectationsMet(t, mock)
}

func TestCatalogGetVisibleByIDs(t *testing.T) {
	ctx := context.Background()
	c, mock := newCatalogMock(t)

	created := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT .* FROM parse_library").
		WithArgs("v1", "v2", "").
		WillReturnRows(sqlmock.NewRows(
			[]string{"video_id", "platform", "title", "video_url", "cover_url", "score", "create_at"}).
			AddRow("v1", "douyin", "t", "u", "c", int64(5), created))

	entries, err := c.GetVisibleByIDs(ctx, []string{"v1", "v2"}, "")
	if err != nil {
		t.Fatalf("get visible by ids: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if _, ok := entries["v1"]; !ok {
		t.Fatal("expected v1 in result")
	}
	expectationsMet(t, mock)
}
