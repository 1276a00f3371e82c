package feed

import (
	"errors"
	"testing"
	"time"
)

const testFeedURL = "https://example.com/feed"

const rssPayload = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"
	xmlns:dc="http://purl.org/dc/elements/1.1/"
	xmlns:media="http://search.yahoo.com/mrss/"
	xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
	<title>Example News</title>
	<link>https://example.com</link>
	<description>Example channel</description>
	<language>en-us</language>
	<item>
		<title>First</title>
		<link>https://example.com/first</link>
		<guid isPermaLink="false">first-guid</guid>
		<description>First summary</description>
		<content:encoded><![CDATA[<p>Full body <img src="https://example.com/inline.png"> here</p>]]></content:encoded>
		<dc:creator>Jane Doe</dc:creator>
		<category>go</category>
		<category></category>
		<category>feeds</category>
		<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
		<enclosure url="https://example.com/audio.mp3" type="audio/mpeg" length="12345"/>
	</item>
	<item>
		<title>No guid</title>
		<link>https://example.com/second</link>
		<media:thumbnail url="https://example.com/thumb.jpg"/>
	</item>
	<item>
		<title>No identifier at all</title>
		<pubDate>Tue, 03 Jan 2006 10:00:00 GMT</pubDate>
	</item>
</channel>
</rss>`

func TestNormalizeSyndicationFieldMapping(t *testing.T) {
	meta, items, err := Normalize([]byte(rssPayload), "application/rss+xml", testFeedURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if meta.Title != "Example News" {
		t.Fatalf("unexpected feed title: %q", meta.Title)
	}
	if meta.SiteURL != "https://example.com" {
		t.Fatalf("unexpected site URL: %q", meta.SiteURL)
	}
	if meta.Language != "en-us" {
		t.Fatalf("unexpected language: %q", meta.Language)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	first := items[0]
	if first.GUID != "first-guid" {
		t.Fatalf("unexpected guid: %q", first.GUID)
	}
	if first.Author != "Jane Doe" {
		t.Fatalf("expected dc:creator as author, got %q", first.Author)
	}
	if first.Description != "First summary" {
		t.Fatalf("unexpected description: %q", first.Description)
	}
	if first.Content == "" || first.Content == first.Description {
		t.Fatalf("expected encoded content to win, got %q", first.Content)
	}
	if got := len(first.Categories); got != 2 {
		t.Fatalf("expected empty categories dropped, got %v", first.Categories)
	}
	if first.Enclosure == nil || first.Enclosure.URL != "https://example.com/audio.mp3" {
		t.Fatalf("unexpected enclosure: %+v", first.Enclosure)
	}
	if first.Enclosure.Length != 12345 {
		t.Fatalf("unexpected enclosure length: %d", first.Enclosure.Length)
	}
	if first.PubDate == nil {
		t.Fatalf("expected parsed pubDate")
	}
	if first.ImageURL != "https://example.com/inline.png" {
		t.Fatalf("expected inline img fallback, got %q", first.ImageURL)
	}

	second := items[1]
	if second.GUID != "https://example.com/second" {
		t.Fatalf("expected link as guid fallback, got %q", second.GUID)
	}
	if second.ImageURL != "https://example.com/thumb.jpg" {
		t.Fatalf("expected media:thumbnail image, got %q", second.ImageURL)
	}
}

func TestNormalizeSyndicationSyntheticGUIDIsDeterministic(t *testing.T) {
	_, firstPass, err := Normalize([]byte(rssPayload), "application/rss+xml", testFeedURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, secondPass, err := Normalize([]byte(rssPayload), "application/rss+xml", testFeedURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	guid := firstPass[2].GUID
	if guid == "" {
		t.Fatalf("expected synthesized guid")
	}
	if guid[:len(testFeedURL)+1] != testFeedURL+"#" {
		t.Fatalf("expected guid synthesized from feed URL, got %q", guid)
	}
	if guid != secondPass[2].GUID {
		t.Fatalf("synthesized guid not deterministic: %q vs %q", guid, secondPass[2].GUID)
	}
}

func TestNormalizeAtomMapsIDAndSummary(t *testing.T) {
	payload := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Atom Example</title>
	<link href="https://example.com/"/>
	<updated>2024-01-01T00:00:00Z</updated>
	<entry>
		<title>Entry</title>
		<id>urn:uuid:entry-1</id>
		<link href="https://example.com/entry"/>
		<summary>Entry summary</summary>
		<updated>2024-01-01T00:00:00Z</updated>
	</entry>
</feed>`

	_, items, err := Normalize([]byte(payload), "application/atom+xml", testFeedURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].GUID != "urn:uuid:entry-1" {
		t.Fatalf("expected atom id as guid, got %q", items[0].GUID)
	}
	if items[0].Description != "Entry summary" {
		t.Fatalf("expected summary as description, got %q", items[0].Description)
	}
	if items[0].Content != "Entry summary" {
		t.Fatalf("expected summary as content fallback, got %q", items[0].Content)
	}
	if items[0].PubDate == nil {
		t.Fatalf("expected updated date as pubDate fallback")
	}
}

func TestNormalizeJSONFeedDocument(t *testing.T) {
	payload := `{
		"version": "https://jsonfeed.org/version/1.1",
		"title": "JSON Example",
		"home_page_url": "https://example.com",
		"items": [
			{
				"id": "item-1",
				"url": "https://example.com/1",
				"title": "One",
				"content_html": "<p>One body</p>",
				"summary": "One summary",
				"authors": [{"name": "Ann"}],
				"tags": ["a", "b"],
				"attachments": [
					{"url": "https://example.com/a.mp3", "mime_type": "audio/mpeg", "size_in_bytes": 99}
				]
			},
			{
				"url": "https://example.com/2",
				"content_text": "Two body",
				"author": {"name": "Bob"}
			}
		]
	}`

	meta, items, err := Normalize([]byte(payload), "application/feed+json", testFeedURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if meta.Title != "JSON Example" {
		t.Fatalf("unexpected title: %q", meta.Title)
	}

	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	one := items[0]
	if one.GUID != "item-1" {
		t.Fatalf("unexpected guid: %q", one.GUID)
	}
	if one.Content != "<p>One body</p>" {
		t.Fatalf("expected content_html to win, got %q", one.Content)
	}
	if one.Author != "Ann" {
		t.Fatalf("unexpected author: %q", one.Author)
	}
	if one.Enclosure == nil || one.Enclosure.Type != "audio/mpeg" || one.Enclosure.Length != 99 {
		t.Fatalf("unexpected enclosure: %+v", one.Enclosure)
	}

	two := items[1]
	if two.GUID != "https://example.com/2" {
		t.Fatalf("expected url as guid fallback, got %q", two.GUID)
	}
	if two.Content != "Two body" {
		t.Fatalf("expected content_text fallback, got %q", two.Content)
	}
	if two.Author != "Bob" {
		t.Fatalf("expected singular author fallback, got %q", two.Author)
	}

	// Items lacking date_published are stored with a null date, not an error.
	for i, item := range items {
		if item.PubDate != nil {
			t.Fatalf("expected null pubDate for item %d, got %v", i, item.PubDate)
		}
	}
}

func TestNormalizeJSONFeedDateModifiedFallback(t *testing.T) {
	payload := `{
		"version": "https://jsonfeed.org/version/1",
		"title": "Dates",
		"items": [
			{"id": "a", "date_modified": "2024-05-01T10:00:00Z"},
			{"id": "b", "date_published": "not a date"}
		]
	}`

	_, items, err := Normalize([]byte(payload), "application/json", testFeedURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if items[0].PubDate == nil || !items[0].PubDate.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected date_modified fallback, got %v", items[0].PubDate)
	}
	if items[1].PubDate != nil {
		t.Fatalf("expected unparsable date to yield null, got %v", items[1].PubDate)
	}
}

func TestNormalizeGReaderDocument(t *testing.T) {
	payload := `{
		"id": "user/-/state/com.google/reading-list",
		"title": "Aggregated",
		"alternate": [{"href": "https://reader.example.com"}],
		"items": [
			{
				"id": "tag:google.com,2005:reader/item/0001",
				"title": "Republished",
				"author": "Carol",
				"published": 1714557600,
				"canonical": [{"href": "https://origin.example.com/post"}],
				"alternate": [{"href": "https://mirror.example.com/post"}],
				"content": {"direction": "ltr", "content": "<p>Body <img src=\"https://origin.example.com/pic.jpg\"></p>"},
				"categories": ["user/-/state/com.google/read", "state/com.google/read", "news"],
				"origin": {
					"streamId": "feed/https://origin.example.com/rss",
					"title": "Origin Blog",
					"htmlUrl": "https://origin.example.com",
					"feedUrl": "https://origin.example.com/rss"
				}
			}
		]
	}`

	meta, items, err := Normalize([]byte(payload), "application/json", "https://reader.example.com/api?f=greader")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if meta.Title != "Aggregated" {
		t.Fatalf("unexpected title: %q", meta.Title)
	}
	if meta.SiteURL != "https://reader.example.com" {
		t.Fatalf("unexpected site URL: %q", meta.SiteURL)
	}

	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}

	item := items[0]
	if item.GUID != "tag:google.com,2005:reader/item/0001" {
		t.Fatalf("unexpected guid: %q", item.GUID)
	}
	if item.Link != "https://origin.example.com/post" {
		t.Fatalf("expected canonical href as link, got %q", item.Link)
	}
	if item.PubDate == nil || item.PubDate.Unix() != 1714557600 {
		t.Fatalf("unexpected pubDate: %v", item.PubDate)
	}

	// The upstream source title must never be substituted as author.
	if item.Author != "Carol" {
		t.Fatalf("unexpected author: %q", item.Author)
	}

	if len(item.Categories) != 1 || item.Categories[0] != "news" {
		t.Fatalf("expected only user-visible tags, got %v", item.Categories)
	}

	if item.Origin == nil || item.Origin.StreamID != "feed/https://origin.example.com/rss" {
		t.Fatalf("unexpected origin: %+v", item.Origin)
	}
	if item.SourceTitle != "Origin Blog" || item.SourceURL != "https://origin.example.com" {
		t.Fatalf("unexpected denormalized source: %q %q", item.SourceTitle, item.SourceURL)
	}
	if item.ImageURL != "https://origin.example.com/pic.jpg" {
		t.Fatalf("expected img scan fallback, got %q", item.ImageURL)
	}
}

func TestNormalizeGReaderTimestampFallbacks(t *testing.T) {
	payload := `{
		"items": [
			{"id": "a", "timestampUsec": "1714557600000000"},
			{"id": "b", "crawlTimeMsec": "1714557600000"},
			{"id": "c", "summary": "plain summary"}
		]
	}`

	_, items, err := Normalize([]byte(payload), "application/json", testFeedURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if items[0].PubDate == nil || items[0].PubDate.UnixMilli() != 1714557600000 {
		t.Fatalf("unexpected timestampUsec date: %v", items[0].PubDate)
	}
	if items[1].PubDate == nil || items[1].PubDate.UnixMilli() != 1714557600000 {
		t.Fatalf("unexpected crawlTimeMsec date: %v", items[1].PubDate)
	}
	if items[2].PubDate != nil {
		t.Fatalf("expected null pubDate, got %v", items[2].PubDate)
	}
	if items[2].Content != "plain summary" {
		t.Fatalf("expected bare summary string fallback, got %q", items[2].Content)
	}
}

func TestNormalizeJSONSyntaxFallsThroughToXML(t *testing.T) {
	// A JSON content type over an XML body must still parse.
	_, items, err := Normalize([]byte(rssPayload), "application/json", testFeedURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
}

func TestNormalizeRejectsUnknownJSONShape(t *testing.T) {
	_, _, err := Normalize([]byte(`{"hello": "world"}`), "application/json", testFeedURL)

	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	_, _, err := Normalize([]byte("not a feed at all"), "text/plain", testFeedURL)

	var formatErr *FormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected FormatError, got %v", err)
	}
}
