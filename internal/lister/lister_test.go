package lister

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/TobiSchelling/forumdigest/internal/config"
	"github.com/TobiSchelling/forumdigest/internal/scrape"
)

type fakeGetter struct {
	pages map[string]*scrape.Page
	err   error
}

func (f *fakeGetter) Get(_ context.Context, pageURL string) (*scrape.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.pages[pageURL]; ok {
		return p, nil
	}
	return &scrape.Page{URL: pageURL, StatusCode: 404}, nil
}

func listingHTML(n int) string {
	var sb strings.Builder
	sb.WriteString(`<html><body><ul class="topic-list partial">`)
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&sb, `<li><a href="/entry/%d"><span class="caption">topic   %d</span><div class="detail">by someone</div></a></li>`, i, i)
	}
	sb.WriteString(`</ul></body></html>`)
	return sb.String()
}

func newTestLister(body string, status int, limit int) *HTMLLister {
	getter := &fakeGetter{pages: map[string]*scrape.Page{
		"https://forum.test/top": {URL: "https://forum.test/top", StatusCode: status, Body: []byte(body)},
	}}
	return NewHTMLLister("https://forum.test/top", "ul.topic-list", "li", "span.caption", limit, getter)
}

func TestListReturnsAllWhenBelowCap(t *testing.T) {
	entries := newTestLister(listingHTML(4), 200, 10).List(context.Background())
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	for i, e := range entries {
		wantLink := fmt.Sprintf("https://forum.test/entry/%d", i+1)
		if e.Link != wantLink {
			t.Errorf("entry %d: expected link %s, got %s", i, wantLink, e.Link)
		}
		wantTitle := fmt.Sprintf("topic %d", i+1)
		if e.Title != wantTitle {
			t.Errorf("entry %d: expected title %q, got %q", i, wantTitle, e.Title)
		}
	}
}

func TestListTruncatesToCap(t *testing.T) {
	entries := newTestLister(listingHTML(25), 200, 20).List(context.Background())
	if len(entries) != 20 {
		t.Fatalf("expected 20 entries, got %d", len(entries))
	}
	if entries[19].Link != "https://forum.test/entry/20" {
		t.Errorf("expected document order, last link %s", entries[19].Link)
	}
}

func TestListMissingContainer(t *testing.T) {
	entries := newTestLister(`<html><body><div class="other"></div></body></html>`, 200, 10).List(context.Background())
	if entries != nil {
		t.Errorf("expected empty result, got %v", entries)
	}
}

func TestListNonSuccessStatus(t *testing.T) {
	entries := newTestLister(listingHTML(3), 503, 10).List(context.Background())
	if len(entries) != 0 {
		t.Errorf("expected empty result on 503, got %d", len(entries))
	}
}

func TestListGetterError(t *testing.T) {
	l := NewHTMLLister("https://forum.test/top", "ul.topic-list", "li", "", 10, &fakeGetter{err: errors.New("boom")})
	if entries := l.List(context.Background()); len(entries) != 0 {
		t.Errorf("expected empty result on error, got %d", len(entries))
	}
}

func TestParseListingCaptionFallback(t *testing.T) {
	body := `<ul class="topic-list">
		<li><a href="https://other.test/abs">  plain   anchor </a></li>
		<li><span>no anchor here</span></li>
		<li><a href="/rel?day=1"><span class="caption">captioned</span> 123</a></li>
	</ul>`
	entries, ok := ParseListing([]byte(body), "https://forum.test/list", "ul.topic-list", "li", "span.caption", 0)
	if !ok {
		t.Fatal("expected container to be found")
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Title != "plain anchor" || entries[0].Link != "https://other.test/abs" {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Title != "captioned" || entries[1].Link != "https://forum.test/rel?day=1" {
		t.Errorf("unexpected second entry %+v", entries[1])
	}
}

func TestParseListingKeepsDuplicates(t *testing.T) {
	body := `<ul class="topic-list"><li><a href="/a">A</a></li><li><a href="/a">A again</a></li></ul>`
	entries, _ := ParseListing([]byte(body), "https://forum.test", "ul.topic-list", "li", "", 10)
	if len(entries) != 2 {
		t.Errorf("expected duplicates to be kept, got %d entries", len(entries))
	}
}

func TestNewUsesBaseURL(t *testing.T) {
	src := config.Source{
		Type:         config.SourceHTML,
		URL:          "https://forum.test/top",
		BaseURL:      "https://cdn.forum.test",
		ListSelector: "ul.topic-list",
		ItemSelector: "li",
		Limit:        5,
	}
	getter := &fakeGetter{pages: map[string]*scrape.Page{
		"https://forum.test/top": {URL: "https://forum.test/top", StatusCode: 200, Body: []byte(listingHTML(2))},
	}}
	entries := New(src, getter).List(context.Background())
	if len(entries) != 2 || !strings.HasPrefix(entries[0].Link, "https://cdn.forum.test/entry/") {
		t.Errorf("expected links resolved against base_url, got %v", entries)
	}
}

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Forum</title>
<item><title>First thread</title><link>https://forum.test/t/1</link></item>
<item><title></title><link>https://forum.test/t/skip</link></item>
<item><title>Second thread</title><guid>/t/2</guid></item>
<item><title>Third thread</title><link>https://forum.test/t/3</link></item>
</channel></rss>`

func TestFeedLister(t *testing.T) {
	getter := &fakeGetter{pages: map[string]*scrape.Page{
		"https://forum.test/rss": {URL: "https://forum.test/rss", StatusCode: 200, Body: []byte(rssFixture)},
	}}
	src := config.Source{Type: config.SourceFeed, URL: "https://forum.test/rss", Limit: 2}
	entries := New(src, getter).List(context.Background())

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Title != "First thread" {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Link != "https://forum.test/t/2" {
		t.Errorf("expected guid fallback resolved, got %s", entries[1].Link)
	}
}

func TestFeedListerInvalidFeed(t *testing.T) {
	getter := &fakeGetter{pages: map[string]*scrape.Page{
		"https://forum.test/rss": {URL: "https://forum.test/rss", StatusCode: 200, Body: []byte("not a feed")},
	}}
	if entries := NewFeedLister("https://forum.test/rss", 5, getter).List(context.Background()); len(entries) != 0 {
		t.Errorf("expected empty result, got %d", len(entries))
	}
}
