package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"feedsync/internal/feed"
	"feedsync/internal/models"
)

var (
	// ErrSyncInProgress rejects a cycle start while one is running. Requests
	// are rejected, never queued.
	ErrSyncInProgress = errors.New("sync already in progress")

	ErrNoStore      = errors.New("no store configured")
	ErrFeedNotFound = errors.New("feed not found")
)

// Store is the persistence contract the orchestrator consumes. Single-item
// upserts are atomic and idempotent, so no multi-document transaction is
// required.
type Store interface {
	EnsureIndexes(ctx context.Context) error
	ListEnabledFeeds(ctx context.Context) ([]models.Feed, error)
	GetFeed(ctx context.Context, feedID int64) (*models.Feed, error)
	UpdateFeedMeta(ctx context.Context, feedID int64, meta models.FeedMeta, fetchedAt time.Time) error
	SetFeedError(ctx context.Context, feedID int64, message string, fetchedAt time.Time) error
	InsertItemIfAbsent(ctx context.Context, item *models.Item) (bool, error)
	CountFeedItems(ctx context.Context, feedID int64) (int64, error)
	SetFeedItemCount(ctx context.Context, feedID int64, count int64) error
	DeleteItemsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	RecountItemCounts(ctx context.Context) error
}

// Fetcher retrieves one raw feed payload.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

type Options struct {
	ItemsPerFeed         int
	MaxConcurrentFetches int
	RetentionDays        int
}

const (
	defaultItemsPerFeed         = 50
	defaultMaxConcurrentFetches = 3
	defaultRetentionDays        = 30
)

// Syncer owns the sync state machine. At most one cycle is in flight at any
// time; the state is readable by any number of callers as a snapshot.
type Syncer struct {
	store   Store
	fetcher Fetcher
	opts    Options
	log     *slog.Logger

	mu    sync.Mutex
	state models.SyncState
}

func New(store Store, fetcher Fetcher, opts Options, log *slog.Logger) *Syncer {
	if opts.ItemsPerFeed <= 0 {
		opts.ItemsPerFeed = defaultItemsPerFeed
	}
	if opts.MaxConcurrentFetches <= 0 {
		opts.MaxConcurrentFetches = defaultMaxConcurrentFetches
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = defaultRetentionDays
	}

	return &Syncer{
		store:   store,
		fetcher: fetcher,
		opts:    opts,
		log:     log,
	}
}

// State returns an immutable snapshot of the sync state.
func (s *Syncer) State() models.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.state
	if s.state.LastSync != nil {
		t := *s.state.LastSync
		snapshot.LastSync = &t
	}

	return snapshot
}

// RunCycle drives one full sync cycle: ensure indexes, sync every enabled
// feed under the concurrency ceiling, prune, update state. A failing feed
// never aborts the cycle; a cycle-level failure never leaves the state
// machine stuck in syncing.
func (s *Syncer) RunCycle(ctx context.Context) (models.CycleResult, error) {
	if s.store == nil {
		return models.CycleResult{}, ErrNoStore
	}

	if !s.beginCycle() {
		return models.CycleResult{}, ErrSyncInProgress
	}

	result, err := s.runCycle(ctx)
	s.endCycle(err)

	return result, err
}

func (s *Syncer) beginCycle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Syncing {
		return false
	}

	s.state.Syncing = true
	s.state.FeedsProcessed = 0
	s.state.ItemsAdded = 0
	s.state.LastError = ""

	return true
}

func (s *Syncer) endCycle(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state.LastError = err.Error()
	} else {
		now := time.Now().UTC()
		s.state.LastSync = &now
	}

	s.state.Syncing = false
}

func (s *Syncer) runCycle(ctx context.Context) (models.CycleResult, error) {
	if err := s.store.EnsureIndexes(ctx); err != nil {
		return models.CycleResult{}, fmt.Errorf("ensure indexes: %w", err)
	}

	feeds, err := s.store.ListEnabledFeeds(ctx)
	if err != nil {
		return models.CycleResult{}, fmt.Errorf("list enabled feeds: %w", err)
	}

	// No enabled feeds is a valid no-op cycle, not an error.
	if len(feeds) == 0 {
		s.log.InfoContext(ctx, "No enabled feeds to sync")

		return models.CycleResult{}, nil
	}

	results := runBounded(ctx, feeds, s.opts.MaxConcurrentFetches, s.syncOne)

	var result models.CycleResult
	for _, r := range results {
		// A failed feed still counts as processed.
		result.FeedsProcessed++
		result.ItemsAdded += r.ItemsAdded
	}

	s.mu.Lock()
	s.state.FeedsProcessed = result.FeedsProcessed
	s.state.ItemsAdded = result.ItemsAdded
	s.mu.Unlock()

	pruned, err := s.prune(ctx)
	if err != nil {
		return result, fmt.Errorf("prune: %w", err)
	}
	result.ItemsPruned = pruned

	s.log.InfoContext(ctx, "Sync cycle finished",
		"feedsProcessed", result.FeedsProcessed,
		"itemsAdded", result.ItemsAdded,
		"itemsPruned", result.ItemsPruned)

	return result, nil
}

// SyncFeed resyncs a single feed by id, bypassing the cycle guard and the
// prune step.
func (s *Syncer) SyncFeed(ctx context.Context, feedID int64) (models.FeedResult, error) {
	if s.store == nil {
		return models.FeedResult{}, ErrNoStore
	}

	target, err := s.store.GetFeed(ctx, feedID)
	if err != nil {
		return models.FeedResult{}, fmt.Errorf("get feed: %w", err)
	}
	if target == nil {
		return models.FeedResult{}, ErrFeedNotFound
	}

	return s.syncOne(ctx, *target), nil
}

// syncOne fetches, normalizes and upserts one feed. Every failure is
// recovered here: the feed is marked with lastError and the cycle moves on.
func (s *Syncer) syncOne(ctx context.Context, f models.Feed) models.FeedResult {
	now := time.Now().UTC()

	raw, contentType, err := s.fetcher.Fetch(ctx, f.URL)
	if err != nil {
		return s.failFeed(ctx, f, now, err)
	}

	meta, items, err := feed.Normalize(raw, contentType, f.URL)
	if err != nil {
		return s.failFeed(ctx, f, now, err)
	}

	if err = s.store.UpdateFeedMeta(ctx, f.ID, *meta, now); err != nil {
		return s.failFeed(ctx, f, now, fmt.Errorf("update feed metadata: %w", err))
	}

	// Source order is preserved; the engine does not re-sort.
	if len(items) > s.opts.ItemsPerFeed {
		items = items[:s.opts.ItemsPerFeed]
	}

	feedTitle := meta.Title
	if feedTitle == "" {
		feedTitle = f.Title
	}

	added := 0
	for i := range items {
		item := items[i]
		item.FeedID = f.ID
		item.FeedTitle = feedTitle
		item.FetchedAt = now

		inserted, insertErr := s.store.InsertItemIfAbsent(ctx, &item)
		if insertErr != nil {
			// One bad item is skipped without aborting the feed.
			s.log.ErrorContext(ctx, "Failed to store item",
				"error", insertErr,
				"feedID", f.ID,
				"guid", item.GUID)

			continue
		}

		if inserted {
			added++
		}
	}

	count, err := s.store.CountFeedItems(ctx, f.ID)
	if err != nil {
		s.log.ErrorContext(ctx, "Failed to count feed items",
			"error", err,
			"feedID", f.ID)
	} else if err = s.store.SetFeedItemCount(ctx, f.ID, count); err != nil {
		s.log.ErrorContext(ctx, "Failed to update feed item count",
			"error", err,
			"feedID", f.ID)
	}

	s.log.InfoContext(ctx, "Feed synced",
		"feedID", f.ID,
		"feedURL", f.URL,
		"itemsAdded", added)

	return models.FeedResult{FeedID: f.ID, ItemsAdded: added}
}

func (s *Syncer) failFeed(
	ctx context.Context,
	f models.Feed,
	fetchedAt time.Time,
	cause error,
) models.FeedResult {
	if err := s.store.SetFeedError(ctx, f.ID, cause.Error(), fetchedAt); err != nil {
		s.log.ErrorContext(ctx, "Failed to record feed error",
			"error", err,
			"feedID", f.ID)
	}

	s.log.WarnContext(ctx, "Feed sync failed",
		"error", cause,
		"feedID", f.ID,
		"feedURL", f.URL)

	return models.FeedResult{FeedID: f.ID, Err: cause}
}

func (s *Syncer) prune(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.opts.RetentionDays)

	deleted, err := s.store.DeleteItemsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old items: %w", err)
	}

	// Nothing deleted means no counts changed.
	if deleted == 0 {
		return 0, nil
	}

	if err = s.store.RecountItemCounts(ctx); err != nil {
		return int(deleted), fmt.Errorf("recount item counts: %w", err)
	}

	return int(deleted), nil
}
