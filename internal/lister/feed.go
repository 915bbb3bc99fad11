package lister

import (
	"bytes"
	"context"
	"log"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/forumdigest/internal/scrape"
)

// FeedLister reads entries from an RSS or Atom feed, for forums that
// publish their ranked list as a feed.
type FeedLister struct {
	URL    string
	Limit  int
	getter scrape.Getter
	parser *gofeed.Parser
}

// NewFeedLister creates a new FeedLister.
func NewFeedLister(feedURL string, limit int, getter scrape.Getter) *FeedLister {
	return &FeedLister{URL: feedURL, Limit: limit, getter: getter, parser: gofeed.NewParser()}
}

// List fetches the feed and returns at most Limit entries in feed order.
func (f *FeedLister) List(ctx context.Context) []Entry {
	page, err := f.getter.Get(ctx, f.URL)
	if err != nil {
		log.Printf("Could not fetch feed %s: %v", f.URL, err)
		return nil
	}
	if !page.OK() {
		log.Printf("Feed %s returned status %d", f.URL, page.StatusCode)
		return nil
	}

	feed, err := f.parser.Parse(bytes.NewReader(page.Body))
	if err != nil {
		log.Printf("Failed to parse feed %s: %v", f.URL, err)
		return nil
	}

	entries := []Entry{}
	for _, item := range feed.Items {
		if f.Limit > 0 && len(entries) >= f.Limit {
			break
		}
		if e, ok := parseItem(item, page.URL); ok {
			entries = append(entries, e)
		}
	}
	return entries
}

func parseItem(item *gofeed.Item, base string) (Entry, bool) {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	link = resolveURL(base, link)
	if link == "" {
		return Entry{}, false
	}

	title := strings.TrimSpace(item.Title)
	if title == "" {
		return Entry{}, false
	}
	return Entry{Title: collapse(title), Link: link}, true
}
