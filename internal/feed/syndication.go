package feed

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"feedsync/internal/models"
)

var libParser = gofeed.NewParser()

// normalizeSyndication maps an RSS 2.0 or Atom document onto the normalized
// schema. gofeed handles the wire formats; the fallback chains below are ours.
func normalizeSyndication(raw []byte, sourceURL string) (*models.FeedMeta, []models.Item, error) {
	parsed, err := libParser.Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, nil, &FormatError{URL: sourceURL, Reason: "not a recognized feed document", Err: err}
	}

	meta := &models.FeedMeta{
		Title:         strings.TrimSpace(parsed.Title),
		SiteURL:       strings.TrimSpace(parsed.Link),
		Description:   strings.TrimSpace(parsed.Description),
		Language:      strings.TrimSpace(parsed.Language),
		LastBuildDate: parsed.UpdatedParsed,
	}
	if parsed.Image != nil {
		meta.ImageURL = strings.TrimSpace(parsed.Image.URL)
	}

	items := make([]models.Item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		items = append(items, normalizeSyndicationItem(entry, sourceURL))
	}

	return meta, items, nil
}

func normalizeSyndicationItem(entry *gofeed.Item, sourceURL string) models.Item {
	pubDate := entry.PublishedParsed
	if pubDate == nil {
		pubDate = entry.UpdatedParsed
	}

	guid := strings.TrimSpace(entry.GUID)
	if guid == "" {
		guid = strings.TrimSpace(entry.Link)
	}
	if guid == "" {
		guid = syntheticGUID(sourceURL, pubDate)
	}

	content := entry.Content
	if content == "" {
		content = entry.Description
	}

	item := models.Item{
		GUID:        guid,
		Title:       strings.TrimSpace(entry.Title),
		Link:        strings.TrimSpace(entry.Link),
		Description: entry.Description,
		Content:     content,
		Author:      syndicationAuthor(entry),
		PubDate:     pubDate,
		Categories:  dropEmpty(entry.Categories),
		Enclosure:   syndicationEnclosure(entry),
	}

	item.ImageURL = firstOf(
		func() string {
			if entry.Image != nil {
				return strings.TrimSpace(entry.Image.URL)
			}
			return ""
		},
		func() string { return imageFromMediaExtensions(entry) },
		func() string { return imageFromEnclosures(entry.Enclosures) },
		func() string { return firstImgSrc(content) },
	)

	return item
}

// syndicationAuthor prefers the dc:creator element over the plain author one.
func syndicationAuthor(entry *gofeed.Item) string {
	if entry.DublinCoreExt != nil {
		for _, creator := range entry.DublinCoreExt.Creator {
			if trimmed := strings.TrimSpace(creator); trimmed != "" {
				return trimmed
			}
		}
	}

	for _, author := range entry.Authors {
		if author == nil {
			continue
		}
		if trimmed := strings.TrimSpace(author.Name); trimmed != "" {
			return trimmed
		}
	}

	return ""
}

func syndicationEnclosure(entry *gofeed.Item) *models.Enclosure {
	for _, enc := range entry.Enclosures {
		if enc == nil || strings.TrimSpace(enc.URL) == "" {
			continue
		}

		length, _ := strconv.ParseInt(strings.TrimSpace(enc.Length), 10, 64)

		return &models.Enclosure{
			URL:    strings.TrimSpace(enc.URL),
			Type:   strings.TrimSpace(enc.Type),
			Length: length,
		}
	}

	return nil
}

func imageFromMediaExtensions(entry *gofeed.Item) string {
	media, ok := entry.Extensions["media"]
	if !ok {
		return ""
	}

	for _, name := range []string{"content", "thumbnail"} {
		for _, ext := range media[name] {
			if u := strings.TrimSpace(ext.Attrs["url"]); u != "" {
				return u
			}
		}
	}

	return ""
}

func imageFromEnclosures(enclosures []*gofeed.Enclosure) string {
	for _, enc := range enclosures {
		if enc == nil {
			continue
		}

		u := strings.TrimSpace(enc.URL)
		if u == "" {
			continue
		}

		if strings.HasPrefix(enc.Type, "image/") || hasImageExtension(u) {
			return u
		}
	}

	return ""
}

func dropEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}

func firstOf(candidates ...func() string) string {
	for _, candidate := range candidates {
		if v := candidate(); v != "" {
			return v
		}
	}

	return ""
}
