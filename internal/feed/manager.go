package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mvdan.cc/xurls/v2"

	"feedsync/internal/models"
)

// ErrDuplicateFeed is returned when the URL is already subscribed. The check
// happens before any network call.
var ErrDuplicateFeed = errors.New("feed URL is already subscribed")

// Store is the slice of the persistence layer the manager needs.
type Store interface {
	GetFeedByURL(ctx context.Context, url string) (*models.Feed, error)
	AddFeed(ctx context.Context, feed *models.Feed) (int64, error)
	RemoveFeed(ctx context.Context, feedID int64) error
	SetFeedEnabled(ctx context.Context, feedID int64, enabled bool) error
	ListFeeds(ctx context.Context) ([]models.Feed, error)
	ClearItems(ctx context.Context) error
}

// Manager handles the operator-facing subscription lifecycle.
type Manager struct {
	store  Store
	client *Client
	log    *slog.Logger
}

func NewManager(store Store, client *Client, log *slog.Logger) *Manager {
	return &Manager{
		store:  store,
		client: client,
		log:    log,
	}
}

// Subscribe extracts the first URL from free-form text, rejects
// duplicates, then fetches the source once to validate it and seed its
// metadata. The new feed starts enabled.
func (m *Manager) Subscribe(ctx context.Context, text string) (*models.Feed, error) {
	feedURL, err := extractFeedURL(text)
	if err != nil {
		return nil, err
	}

	existing, err := m.store.GetFeedByURL(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("look up feed by URL: %w", err)
	}
	if existing != nil {
		return nil, ErrDuplicateFeed
	}

	raw, contentType, err := m.client.Fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("validate feed: %w", err)
	}

	meta, _, err := Normalize(raw, contentType, feedURL)
	if err != nil {
		return nil, fmt.Errorf("validate feed: %w", err)
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		m.log.WarnContext(ctx, "Empty feed title",
			"feedURL", feedURL,
			"fallbackTitle", feedURL)

		title = feedURL
	}

	now := time.Now().UTC()
	newFeed := &models.Feed{
		URL:         feedURL,
		Title:       title,
		SiteURL:     meta.SiteURL,
		Description: meta.Description,
		ImageURL:    meta.ImageURL,
		Enabled:     true,
		AddedAt:     now,
	}

	id, err := m.store.AddFeed(ctx, newFeed)
	if err != nil {
		return nil, fmt.Errorf("add feed: %w", err)
	}
	newFeed.ID = id

	m.log.InfoContext(ctx, "Feed subscribed",
		"feedID", id,
		"feedURL", feedURL,
		"title", title)

	return newFeed, nil
}

// Unsubscribe removes the feed and every item cached for it.
func (m *Manager) Unsubscribe(ctx context.Context, feedID int64) error {
	if err := m.store.RemoveFeed(ctx, feedID); err != nil {
		return fmt.Errorf("remove feed: %w", err)
	}

	m.log.InfoContext(ctx, "Feed unsubscribed",
		"feedID", feedID)

	return nil
}

func (m *Manager) SetEnabled(ctx context.Context, feedID int64, enabled bool) error {
	if err := m.store.SetFeedEnabled(ctx, feedID, enabled); err != nil {
		return fmt.Errorf("toggle feed: %w", err)
	}

	return nil
}

func (m *Manager) List(ctx context.Context) ([]models.Feed, error) {
	feeds, err := m.store.ListFeeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}

	return feeds, nil
}

// ClearItems drops the whole item cache. The caller is expected to trigger a
// sync cycle afterwards to repopulate it.
func (m *Manager) ClearItems(ctx context.Context) error {
	if err := m.store.ClearItems(ctx); err != nil {
		return fmt.Errorf("clear items: %w", err)
	}

	m.log.InfoContext(ctx, "Item cache cleared")

	return nil
}

func extractFeedURL(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("feed URL is empty")
	}

	urlRe, err := xurls.StrictMatchingScheme("https?://")
	if err != nil {
		return "", fmt.Errorf("create regexp: %w", err)
	}

	match := strings.TrimSpace(urlRe.FindString(text))
	if match == "" {
		return "", errors.New("no feed URL found")
	}

	return match, nil
}
