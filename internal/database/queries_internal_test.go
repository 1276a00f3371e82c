package database

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"feedsync/internal/models"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	db, err := New(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"), slog.Default())
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func addTestFeed(t *testing.T, db *Database, feedURL string) int64 {
	t.Helper()

	id, err := db.AddFeed(context.Background(), &models.Feed{
		URL:     feedURL,
		Title:   "Test Feed",
		Enabled: true,
		AddedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to add feed: %v", err)
	}

	return id
}

func TestUpdateFeedMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	id := addTestFeed(t, db, "https://example.com/feed")

	buildDate := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	meta := models.FeedMeta{
		Title:         "Refreshed",
		SiteURL:       "https://example.com",
		Description:   "desc",
		ImageURL:      "https://example.com/logo.png",
		Language:      "en-us",
		LastBuildDate: &buildDate,
	}

	if err := db.UpdateFeedMeta(ctx, id, meta, time.Now().UTC()); err != nil {
		t.Fatalf("failed to update feed metadata: %v", err)
	}

	feed, err := db.GetFeed(ctx, id)
	if err != nil {
		t.Fatalf("failed to get feed: %v", err)
	}
	if feed == nil {
		t.Fatalf("expected feed %d to exist", id)
	}

	if feed.Title != "Refreshed" {
		t.Fatalf("unexpected title: %q", feed.Title)
	}
	if feed.Language != "en-us" {
		t.Fatalf("unexpected language: %q", feed.Language)
	}
	if feed.LastBuildDate == nil || !feed.LastBuildDate.Equal(buildDate) {
		t.Fatalf("unexpected last build date: %v", feed.LastBuildDate)
	}
	if feed.LastFetchedAt == nil {
		t.Fatalf("expected lastFetchedAt to be set")
	}
}

func TestUpdateFeedMetaWithoutBuildDate(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	id := addTestFeed(t, db, "https://example.com/feed")

	meta := models.FeedMeta{Title: "No Build Date", Language: "de"}
	if err := db.UpdateFeedMeta(ctx, id, meta, time.Now().UTC()); err != nil {
		t.Fatalf("failed to update feed metadata: %v", err)
	}

	feed, err := db.GetFeed(ctx, id)
	if err != nil {
		t.Fatalf("failed to get feed: %v", err)
	}

	if feed.LastBuildDate != nil {
		t.Fatalf("expected null last build date, got %v", feed.LastBuildDate)
	}
}

func TestInsertItemIfAbsentStoresEmptyCategoryList(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	id := addTestFeed(t, db, "https://example.com/feed")

	inserted, err := db.InsertItemIfAbsent(ctx, &models.Item{
		FeedID:    id,
		GUID:      "no-categories",
		Title:     "Item",
		FetchedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("failed to insert item: %v", err)
	}
	if !inserted {
		t.Fatalf("expected item to be inserted")
	}

	var stored string
	err = db.db.QueryRowContext(ctx,
		"select categories from items where feed_id = ? and guid = ?",
		id, "no-categories",
	).Scan(&stored)
	if err != nil {
		t.Fatalf("failed to read categories column: %v", err)
	}

	if stored != "[]" {
		t.Fatalf("expected empty JSON array, got %q", stored)
	}
}

func TestInsertItemIfAbsentReportsDuplicate(t *testing.T) {
	ctx := context.Background()
	db := newTestDatabase(t)
	id := addTestFeed(t, db, "https://example.com/feed")

	item := models.Item{
		FeedID:     id,
		GUID:       "dup",
		Title:      "Item",
		Categories: []string{"news"},
		FetchedAt:  time.Now().UTC(),
	}

	inserted, err := db.InsertItemIfAbsent(ctx, &item)
	if err != nil {
		t.Fatalf("failed to insert item: %v", err)
	}
	if !inserted {
		t.Fatalf("expected first insert to report inserted")
	}

	inserted, err = db.InsertItemIfAbsent(ctx, &item)
	if err != nil {
		t.Fatalf("failed to re-insert item: %v", err)
	}
	if inserted {
		t.Fatalf("expected duplicate insert to report not inserted")
	}
}
