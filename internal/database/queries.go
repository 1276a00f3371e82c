package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"feedsync/internal/models"
)

const feedColumns = `id, url, title, site_url, description, image_url,
	language, last_build_date, enabled, added_at, last_fetched_at,
	last_error, item_count`

func (d *Database) AddFeed(ctx context.Context, feed *models.Feed) (int64, error) {
	feedURL := strings.TrimSpace(feed.URL)
	if feedURL == "" {
		return 0, errors.New("feed URL is empty")
	}

	query := `insert into feeds
	(url, title, site_url, description, image_url, enabled, added_at)
	values (?, ?, ?, ?, ?, ?, ?)`

	res, err := d.db.ExecContext(ctx, query,
		feedURL,
		feed.Title,
		feed.SiteURL,
		feed.Description,
		feed.ImageURL,
		feed.Enabled,
		feed.AddedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to fetch inserted id: %w", err)
	}

	return id, nil
}

func (d *Database) GetFeed(ctx context.Context, feedID int64) (*models.Feed, error) {
	query := "select " + feedColumns + " from feeds where id = ?"

	return d.getFeed(ctx, query, feedID)
}

func (d *Database) GetFeedByURL(ctx context.Context, feedURL string) (*models.Feed, error) {
	query := "select " + feedColumns + " from feeds where url = ?"

	return d.getFeed(ctx, query, strings.TrimSpace(feedURL))
}

func (d *Database) getFeed(ctx context.Context, query string, arg any) (*models.Feed, error) {
	row := d.db.QueryRowContext(ctx, query, arg)

	feed, err := scanFeed(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	return feed, nil
}

func (d *Database) ListFeeds(ctx context.Context) ([]models.Feed, error) {
	query := "select " + feedColumns + " from feeds order by id"

	return d.listFeeds(ctx, query, "ListFeeds")
}

func (d *Database) ListEnabledFeeds(ctx context.Context) ([]models.Feed, error) {
	query := "select " + feedColumns + " from feeds where enabled = 1 order by id"

	return d.listFeeds(ctx, query, "ListEnabledFeeds")
}

func (d *Database) listFeeds(ctx context.Context, query string, operation string) ([]models.Feed, error) {
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() {
		if err = rows.Close(); err != nil {
			d.log.ErrorContext(ctx, "Failed to close rows",
				"error", err,
				"operation", operation)
		}
	}()

	var feeds []models.Feed
	for rows.Next() {
		feed, scanErr := scanFeed(rows.Scan)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan row: %w", scanErr)
		}

		feeds = append(feeds, *feed)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}

	return feeds, nil
}

func (d *Database) SetFeedEnabled(ctx context.Context, feedID int64, enabled bool) error {
	query := "update feeds set enabled = ? where id = ?"

	_, err := d.db.ExecContext(ctx, query, enabled, feedID)

	return err
}

// UpdateFeedMeta refreshes the descriptive fields after a successful fetch
// and clears the feed's last error.
func (d *Database) UpdateFeedMeta(
	ctx context.Context,
	feedID int64,
	meta models.FeedMeta,
	fetchedAt time.Time,
) error {
	var lastBuildDate sql.NullTime
	if meta.LastBuildDate != nil {
		lastBuildDate = sql.NullTime{Time: *meta.LastBuildDate, Valid: true}
	}

	query := `update feeds
	set title = ?, site_url = ?, description = ?, image_url = ?,
	language = ?, last_build_date = ?, last_fetched_at = ?, last_error = ''
	where id = ?`

	_, err := d.db.ExecContext(ctx, query,
		meta.Title,
		meta.SiteURL,
		meta.Description,
		meta.ImageURL,
		meta.Language,
		lastBuildDate,
		fetchedAt,
		feedID,
	)

	return err
}

// SetFeedError records a failed fetch attempt without touching metadata.
func (d *Database) SetFeedError(
	ctx context.Context,
	feedID int64,
	message string,
	fetchedAt time.Time,
) error {
	query := "update feeds set last_fetched_at = ?, last_error = ? where id = ?"

	_, err := d.db.ExecContext(ctx, query, fetchedAt, message, feedID)

	return err
}

func (d *Database) SetFeedItemCount(ctx context.Context, feedID int64, count int64) error {
	query := "update feeds set item_count = ? where id = ?"

	_, err := d.db.ExecContext(ctx, query, count, feedID)

	return err
}

func (d *Database) RemoveFeed(ctx context.Context, feedID int64) error {
	query := "delete from feeds where id = ?"

	_, err := d.db.ExecContext(ctx, query, feedID)

	return err
}

// InsertItemIfAbsent writes the item only when its (feed_id, guid) key does
// not exist yet and reports whether a row was actually inserted. A concurrent
// duplicate simply comes back as inserted = false.
func (d *Database) InsertItemIfAbsent(ctx context.Context, item *models.Item) (bool, error) {
	// A nil slice must land as '[]', matching the column default, not 'null'.
	categoryList := item.Categories
	if categoryList == nil {
		categoryList = []string{}
	}

	categories, err := json.Marshal(categoryList)
	if err != nil {
		return false, fmt.Errorf("failed to encode categories: %w", err)
	}

	var enclosureURL, enclosureType string
	var enclosureLength int64
	if item.Enclosure != nil {
		enclosureURL = item.Enclosure.URL
		enclosureType = item.Enclosure.Type
		enclosureLength = item.Enclosure.Length
	}

	var originStreamID, originTitle, originHTMLURL, originFeedURL string
	if item.Origin != nil {
		originStreamID = item.Origin.StreamID
		originTitle = item.Origin.Title
		originHTMLURL = item.Origin.HTMLURL
		originFeedURL = item.Origin.FeedURL
	}

	var pubDate sql.NullTime
	if item.PubDate != nil {
		pubDate = sql.NullTime{Time: *item.PubDate, Valid: true}
	}

	query := `insert into items
	(feed_id, guid, title, link, description, content, author, pub_date,
	image_url, categories, enclosure_url, enclosure_type, enclosure_length,
	feed_title, origin_stream_id, origin_title, origin_html_url,
	origin_feed_url, source_title, source_url, fetched_at)
	values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	on conflict (feed_id, guid) do nothing`

	res, err := d.db.ExecContext(ctx, query,
		item.FeedID,
		item.GUID,
		item.Title,
		item.Link,
		item.Description,
		item.Content,
		item.Author,
		pubDate,
		item.ImageURL,
		string(categories),
		enclosureURL,
		enclosureType,
		enclosureLength,
		item.FeedTitle,
		originStreamID,
		originTitle,
		originHTMLURL,
		originFeedURL,
		item.SourceTitle,
		item.SourceURL,
		item.FetchedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to execute query: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to fetch affected rows: %w", err)
	}

	return affected > 0, nil
}

func (d *Database) CountFeedItems(ctx context.Context, feedID int64) (int64, error) {
	query := "select count(*) from items where feed_id = ?"

	var count int64
	if err := d.db.QueryRowContext(ctx, query, feedID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to scan row: %w", err)
	}

	return count, nil
}

// DeleteItemsBefore prunes items published before the cutoff. Items with a
// null pub_date are exempt: their age is unknowable.
func (d *Database) DeleteItemsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := "delete from items where pub_date is not null and pub_date < ?"

	res, err := d.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to execute query: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to fetch affected rows: %w", err)
	}

	return deleted, nil
}

// RecountItemCounts recomputes the denormalized item_count of every feed.
func (d *Database) RecountItemCounts(ctx context.Context) error {
	query := `update feeds
	set item_count = (select count(*) from items where items.feed_id = feeds.id)`

	_, err := d.db.ExecContext(ctx, query)

	return err
}

func (d *Database) ClearItems(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, "delete from items"); err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	if _, err := d.db.ExecContext(ctx, "update feeds set item_count = 0"); err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}

	return nil
}

func scanFeed(scan func(dest ...any) error) (*models.Feed, error) {
	var feed models.Feed
	var lastBuildDate, lastFetchedAt sql.NullTime

	err := scan(
		&feed.ID,
		&feed.URL,
		&feed.Title,
		&feed.SiteURL,
		&feed.Description,
		&feed.ImageURL,
		&feed.Language,
		&lastBuildDate,
		&feed.Enabled,
		&feed.AddedAt,
		&lastFetchedAt,
		&feed.LastError,
		&feed.ItemCount,
	)
	if err != nil {
		return nil, err
	}

	if lastBuildDate.Valid {
		t := lastBuildDate.Time
		feed.LastBuildDate = &t
	}
	if lastFetchedAt.Valid {
		t := lastFetchedAt.Time
		feed.LastFetchedAt = &t
	}

	return &feed, nil
}
