package lister

import (
	"bytes"
	"context"
	"log"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/TobiSchelling/forumdigest/internal/config"
	"github.com/TobiSchelling/forumdigest/internal/scrape"
)

// Entry is a single ranked item from a listing page.
type Entry struct {
	Title string
	Link  string
}

// Lister produces the ranked entries for one digest run. Implementations
// fail open: any error yields an empty slice.
type Lister interface {
	List(ctx context.Context) []Entry
}

// New returns the Lister for a digest source.
func New(src config.Source, getter scrape.Getter) Lister {
	if src.Type == config.SourceFeed {
		return NewFeedLister(src.URL, src.Limit, getter)
	}
	return &HTMLLister{
		URL:             src.URL,
		BaseURL:         src.BaseURL,
		ListSelector:    src.ListSelector,
		ItemSelector:    src.ItemSelector,
		CaptionSelector: src.CaptionSelector,
		Limit:           src.Limit,
		getter:          getter,
	}
}

// HTMLLister reads entries from a list container on an HTML page.
type HTMLLister struct {
	URL             string
	BaseURL         string
	ListSelector    string
	ItemSelector    string
	CaptionSelector string
	Limit           int
	getter          scrape.Getter
}

// NewHTMLLister creates an HTMLLister.
func NewHTMLLister(pageURL, listSelector, itemSelector, captionSelector string, limit int, getter scrape.Getter) *HTMLLister {
	return &HTMLLister{
		URL:             pageURL,
		ListSelector:    listSelector,
		ItemSelector:    itemSelector,
		CaptionSelector: captionSelector,
		Limit:           limit,
		getter:          getter,
	}
}

// List fetches the listing page and returns at most Limit entries in
// document order.
func (l *HTMLLister) List(ctx context.Context) []Entry {
	page, err := l.getter.Get(ctx, l.URL)
	if err != nil {
		log.Printf("Could not fetch listing %s: %v", l.URL, err)
		return nil
	}
	if !page.OK() {
		log.Printf("Listing %s returned status %d", l.URL, page.StatusCode)
		return nil
	}

	base := l.BaseURL
	if base == "" {
		base = page.URL
	}
	entries, ok := ParseListing(page.Body, base, l.ListSelector, l.ItemSelector, l.CaptionSelector, l.Limit)
	if !ok {
		log.Printf("Listing container %q not found on %s; page layout may have changed", l.ListSelector, l.URL)
		return nil
	}
	return entries
}

// ParseListing extracts entries from the first element matching
// listSelector. The second return value is false when the container is
// missing or the document cannot be parsed.
func ParseListing(body []byte, baseURL, listSelector, itemSelector, captionSelector string, limit int) ([]Entry, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, false
	}

	container := doc.Find(listSelector).First()
	if container.Length() == 0 {
		return nil, false
	}
	if itemSelector == "" {
		itemSelector = "li"
	}

	entries := []Entry{}
	container.Find(itemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if limit > 0 && len(entries) >= limit {
			return false
		}

		anchor := item.Find("a").First()
		href, exists := anchor.Attr("href")
		if !exists || strings.TrimSpace(href) == "" {
			return true
		}
		link := resolveURL(baseURL, href)
		if link == "" {
			return true
		}

		title := ""
		if captionSelector != "" {
			title = collapse(anchor.Find(captionSelector).First().Text())
		}
		if title == "" {
			title = collapse(anchor.Text())
		}

		entries = append(entries, Entry{Title: title, Link: link})
		return true
	})

	return entries, true
}

func resolveURL(base, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		return ref.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ""
	}
	return b.ResolveReference(ref).String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
