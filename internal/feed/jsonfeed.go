package feed

import (
	"encoding/json"
	"strings"

	"feedsync/internal/models"
)

// JSON Feed spec documents (https://jsonfeed.org/version/1 and 1.1).

type jsonFeedDoc struct {
	Version     string         `json:"version"`
	Title       string         `json:"title"`
	HomePageURL string         `json:"home_page_url"`
	FeedURL     string         `json:"feed_url"`
	Description string         `json:"description"`
	Icon        string         `json:"icon"`
	Favicon     string         `json:"favicon"`
	Language    string         `json:"language"`
	Items       []jsonFeedItem `json:"items"`
}

type jsonFeedItem struct {
	ID            string               `json:"id"`
	URL           string               `json:"url"`
	ExternalURL   string               `json:"external_url"`
	Title         string               `json:"title"`
	ContentHTML   string               `json:"content_html"`
	ContentText   string               `json:"content_text"`
	Summary       string               `json:"summary"`
	Image         string               `json:"image"`
	BannerImage   string               `json:"banner_image"`
	DatePublished string               `json:"date_published"`
	DateModified  string               `json:"date_modified"`
	Authors       []jsonFeedAuthor     `json:"authors"`
	Author        *jsonFeedAuthor      `json:"author"`
	Tags          []string             `json:"tags"`
	Attachments   []jsonFeedAttachment `json:"attachments"`
}

type jsonFeedAuthor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type jsonFeedAttachment struct {
	URL         string `json:"url"`
	MimeType    string `json:"mime_type"`
	SizeInBytes int64  `json:"size_in_bytes"`
}

func normalizeJSONFeed(raw []byte, sourceURL string) (*models.FeedMeta, []models.Item, error) {
	var doc jsonFeedDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, &FormatError{URL: sourceURL, Reason: "malformed JSON Feed document", Err: err}
	}

	meta := &models.FeedMeta{
		Title:       strings.TrimSpace(doc.Title),
		SiteURL:     strings.TrimSpace(doc.HomePageURL),
		Description: strings.TrimSpace(doc.Description),
		ImageURL:    strings.TrimSpace(doc.Icon),
		Language:    strings.TrimSpace(doc.Language),
	}
	if meta.ImageURL == "" {
		meta.ImageURL = strings.TrimSpace(doc.Favicon)
	}

	items := make([]models.Item, 0, len(doc.Items))
	for _, entry := range doc.Items {
		items = append(items, normalizeJSONFeedItem(entry, sourceURL))
	}

	return meta, items, nil
}

func normalizeJSONFeedItem(entry jsonFeedItem, sourceURL string) models.Item {
	// Unparsable dates yield a null pubDate, never an error.
	pubDate := parseFlexibleTime(entry.DatePublished)
	if pubDate == nil {
		pubDate = parseFlexibleTime(entry.DateModified)
	}

	guid := strings.TrimSpace(entry.ID)
	if guid == "" {
		guid = strings.TrimSpace(entry.URL)
	}
	if guid == "" {
		guid = syntheticGUID(sourceURL, pubDate)
	}

	content := entry.ContentHTML
	if content == "" {
		content = entry.ContentText
	}
	if content == "" {
		content = entry.Summary
	}

	link := strings.TrimSpace(entry.URL)
	if link == "" {
		link = strings.TrimSpace(entry.ExternalURL)
	}

	item := models.Item{
		GUID:        guid,
		Title:       strings.TrimSpace(entry.Title),
		Link:        link,
		Description: entry.Summary,
		Content:     content,
		Author:      jsonFeedItemAuthor(entry),
		PubDate:     pubDate,
		Categories:  dropEmpty(entry.Tags),
		Enclosure:   jsonFeedEnclosure(entry.Attachments),
	}

	item.ImageURL = firstOf(
		func() string { return strings.TrimSpace(entry.Image) },
		func() string { return strings.TrimSpace(entry.BannerImage) },
		func() string {
			if item.Enclosure != nil &&
				(strings.HasPrefix(item.Enclosure.Type, "image/") || hasImageExtension(item.Enclosure.URL)) {
				return item.Enclosure.URL
			}
			return ""
		},
		func() string { return firstImgSrc(content) },
	)

	return item
}

// jsonFeedItemAuthor prefers the first named entry of the authors list over
// the singular author field.
func jsonFeedItemAuthor(entry jsonFeedItem) string {
	for _, author := range entry.Authors {
		if name := strings.TrimSpace(author.Name); name != "" {
			return name
		}
	}

	if entry.Author != nil {
		return strings.TrimSpace(entry.Author.Name)
	}

	return ""
}

func jsonFeedEnclosure(attachments []jsonFeedAttachment) *models.Enclosure {
	for _, att := range attachments {
		u := strings.TrimSpace(att.URL)
		if u == "" {
			continue
		}

		return &models.Enclosure{
			URL:    u,
			Type:   strings.TrimSpace(att.MimeType),
			Length: att.SizeInBytes,
		}
	}

	return nil
}
