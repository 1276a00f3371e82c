package models

import "time"

// Feed is one subscribed source plus its cached metadata and health status.
type Feed struct {
	ID          int64
	URL         string
	Title       string
	SiteURL     string
	Description string
	ImageURL    string
	Language    string

	Enabled       bool
	AddedAt       time.Time
	LastBuildDate *time.Time
	LastFetchedAt *time.Time
	LastError     string
	ItemCount     int64
}

// Enclosure is an attached media resource (podcast audio and the like).
type Enclosure struct {
	URL    string
	Type   string
	Length int64
}

// Origin identifies the third-party source an aggregator republishes.
type Origin struct {
	StreamID string
	Title    string
	HTMLURL  string
	FeedURL  string
}

// Item is one normalized entry belonging to a Feed. Items are immutable once
// cached: only feed-level metadata and counts change on re-sync.
type Item struct {
	ID     int64
	FeedID int64
	GUID   string

	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	PubDate     *time.Time
	ImageURL    string
	Categories  []string
	Enclosure   *Enclosure

	// FeedTitle is copied from the parent feed at insert time and is not
	// kept live-synced afterwards.
	FeedTitle string

	Origin      *Origin
	SourceTitle string
	SourceURL   string

	FetchedAt time.Time
}

// FeedMeta is the feed-level metadata extracted by the normalizer from the
// most recent successful fetch.
type FeedMeta struct {
	Title         string
	SiteURL       string
	Description   string
	ImageURL      string
	Language      string
	LastBuildDate *time.Time
}

// SyncState is the process-wide sync status. Readers always get a copy.
type SyncState struct {
	Syncing        bool
	LastSync       *time.Time
	LastError      string
	FeedsProcessed int
	ItemsAdded     int
}

// CycleResult summarizes one completed sync cycle.
type CycleResult struct {
	FeedsProcessed int
	ItemsAdded     int
	ItemsPruned    int
}

// FeedResult is the outcome of syncing a single feed. Err carries the
// recovered per-feed failure, if any; it never aborts the cycle.
type FeedResult struct {
	FeedID     int64
	ItemsAdded int
	Err        error
}
