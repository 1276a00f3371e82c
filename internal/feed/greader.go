package feed

import (
	"encoding/json"
	"strings"
	"time"

	"feedsync/internal/models"
)

// Google-Reader-style aggregator JSON, as served by FreshRSS and friends.

type greaderDoc struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Alternate   []greaderLink `json:"alternate"`
	Items       []greaderItem `json:"items"`
}

type greaderLink struct {
	Href string `json:"href"`
	Type string `json:"type"`
}

type greaderItem struct {
	ID            string             `json:"id"`
	GUID          string             `json:"guid"`
	Title         string             `json:"title"`
	Author        string             `json:"author"`
	Published     json.RawMessage    `json:"published"`
	TimestampUsec json.RawMessage    `json:"timestampUsec"`
	CrawlTimeMsec json.RawMessage    `json:"crawlTimeMsec"`
	Canonical     []greaderLink      `json:"canonical"`
	Alternate     []greaderLink      `json:"alternate"`
	Link          string             `json:"link"`
	Content       json.RawMessage    `json:"content"`
	Summary       json.RawMessage    `json:"summary"`
	Categories    []string           `json:"categories"`
	Enclosure     []greaderEnclosure `json:"enclosure"`
	Origin        *greaderOrigin     `json:"origin"`
}

type greaderEnclosure struct {
	Href   string          `json:"href"`
	Type   string          `json:"type"`
	Length json.RawMessage `json:"length"`
}

type greaderOrigin struct {
	StreamID string `json:"streamId"`
	Title    string `json:"title"`
	HTMLURL  string `json:"htmlUrl"`
	FeedURL  string `json:"feedUrl"`
}

func normalizeGReader(raw []byte, sourceURL string) (*models.FeedMeta, []models.Item, error) {
	var doc greaderDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, &FormatError{URL: sourceURL, Reason: "malformed aggregator JSON document", Err: err}
	}

	meta := &models.FeedMeta{
		Title:       strings.TrimSpace(doc.Title),
		Description: strings.TrimSpace(doc.Description),
	}
	if len(doc.Alternate) > 0 {
		meta.SiteURL = strings.TrimSpace(doc.Alternate[0].Href)
	}

	items := make([]models.Item, 0, len(doc.Items))
	for _, entry := range doc.Items {
		items = append(items, normalizeGReaderItem(entry, sourceURL))
	}

	return meta, items, nil
}

func normalizeGReaderItem(entry greaderItem, sourceURL string) models.Item {
	pubDate := greaderPubDate(entry)

	link := greaderLinkOf(entry)

	guid := strings.TrimSpace(entry.ID)
	if guid == "" {
		guid = strings.TrimSpace(entry.GUID)
	}
	if guid == "" {
		guid = link
	}
	if guid == "" {
		guid = syntheticGUID(sourceURL, pubDate)
	}

	content := nestedContent(entry.Content)
	if content == "" {
		content = nestedContent(entry.Summary)
	}

	item := models.Item{
		GUID:        guid,
		Title:       strings.TrimSpace(entry.Title),
		Link:        link,
		Description: nestedContent(entry.Summary),
		Content:     content,
		// The item's own author only. The upstream source title is never a
		// substitute: that mislabels every republished article.
		Author:     strings.TrimSpace(entry.Author),
		PubDate:    pubDate,
		Categories: userVisibleTags(entry.Categories),
	}

	item.ImageURL = firstOf(
		func() string { return greaderImageEnclosure(entry.Enclosure) },
		func() string { return firstImgSrc(content) },
	)

	if entry.Origin != nil {
		item.Origin = &models.Origin{
			StreamID: entry.Origin.StreamID,
			Title:    entry.Origin.Title,
			HTMLURL:  entry.Origin.HTMLURL,
			FeedURL:  entry.Origin.FeedURL,
		}
		item.SourceTitle = strings.TrimSpace(entry.Origin.Title)
		item.SourceURL = strings.TrimSpace(entry.Origin.HTMLURL)
	}

	return item
}

// greaderPubDate resolves the publish instant from, in order: a
// seconds-since-epoch published field, a microseconds timestampUsec field,
// then a milliseconds crawlTimeMsec field. Anything else is a null date.
func greaderPubDate(entry greaderItem) *time.Time {
	if sec := parseEpochField(entry.Published); sec > 0 {
		t := time.Unix(sec, 0).UTC()
		return &t
	}

	if usec := parseEpochField(entry.TimestampUsec); usec > 0 {
		t := time.UnixMilli(usec / 1000).UTC()
		return &t
	}

	if msec := parseEpochField(entry.CrawlTimeMsec); msec > 0 {
		t := time.UnixMilli(msec).UTC()
		return &t
	}

	return nil
}

func greaderLinkOf(entry greaderItem) string {
	for _, l := range entry.Canonical {
		if href := strings.TrimSpace(l.Href); href != "" {
			return href
		}
	}

	for _, l := range entry.Alternate {
		if href := strings.TrimSpace(l.Href); href != "" {
			return href
		}
	}

	return strings.TrimSpace(entry.Link)
}

// nestedContent unwraps the {"content": "...", "direction": "..."} object
// shape, falling back to a bare JSON string.
func nestedContent(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var nested struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil && nested.Content != "" {
		return nested.Content
	}

	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare
	}

	return ""
}

// userVisibleTags drops the aggregator's internal-state categories
// ("state/com.google/..." markers and "user/..." label paths) so only
// genuine user-visible tags survive.
func userVisibleTags(categories []string) []string {
	var out []string
	for _, c := range categories {
		trimmed := strings.TrimSpace(c)
		if trimmed == "" {
			continue
		}
		if strings.Contains(trimmed, "state/com.google") || strings.HasPrefix(trimmed, "user/") {
			continue
		}

		out = append(out, trimmed)
	}

	return out
}

func greaderImageEnclosure(enclosures []greaderEnclosure) string {
	for _, enc := range enclosures {
		u := strings.TrimSpace(enc.Href)
		if u == "" {
			continue
		}

		if strings.HasPrefix(enc.Type, "image/") || hasImageExtension(u) {
			return u
		}
	}

	return ""
}
