package fetch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/TobiSchelling/forumdigest/internal/scrape"
)

type fakeGetter struct {
	pages     map[string]*scrape.Page
	err       error
	requested []string
}

func (f *fakeGetter) Get(_ context.Context, pageURL string) (*scrape.Page, error) {
	f.requested = append(f.requested, pageURL)
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.pages[pageURL]; ok {
		return p, nil
	}
	return &scrape.Page{URL: pageURL, StatusCode: 404}, nil
}

func page(u, body string) *scrape.Page {
	return &scrape.Page{URL: u, StatusCode: 200, Body: []byte(body)}
}

func TestFetchContentCollapsesWhitespace(t *testing.T) {
	getter := &fakeGetter{pages: map[string]*scrape.Page{
		"https://forum.test/e/1?a=search": page("https://forum.test/e/1?a=search",
			`<html><body><div class="content">Hello   world</div><div class="content">second</div></body></html>`),
	}}
	f := NewContentFetcher(getter, "div.content", "a=search", false)

	text, ok := f.FetchContent(context.Background(), "https://forum.test/e/1")
	if !ok {
		t.Fatal("expected content")
	}
	if text != "Hello world" {
		t.Errorf("expected %q, got %q", "Hello world", text)
	}
}

func TestFetchContentKeepsExistingQuery(t *testing.T) {
	getter := &fakeGetter{}
	f := NewContentFetcher(getter, "div.content", "a=search", false)
	f.FetchContent(context.Background(), "https://forum.test/e/1?day=2")

	if len(getter.requested) != 1 || getter.requested[0] != "https://forum.test/e/1?day=2" {
		t.Errorf("unexpected request %v", getter.requested)
	}
}

func TestFetchContentMissingContainer(t *testing.T) {
	getter := &fakeGetter{pages: map[string]*scrape.Page{
		"https://forum.test/e/1": page("https://forum.test/e/1", `<html><head><title>Just a moment...</title></head><body></body></html>`),
	}}
	f := NewContentFetcher(getter, "div.content", "", false)
	if _, ok := f.FetchContent(context.Background(), "https://forum.test/e/1"); ok {
		t.Error("expected absence when container is missing")
	}
}

func TestFetchContentErrorsAreAbsence(t *testing.T) {
	f := NewContentFetcher(&fakeGetter{err: errors.New("connection reset")}, "div.content", "", false)
	if _, ok := f.FetchContent(context.Background(), "https://forum.test/e/1"); ok {
		t.Error("expected absence on getter error")
	}

	f = NewContentFetcher(&fakeGetter{}, "div.content", "", false)
	if _, ok := f.FetchContent(context.Background(), "https://forum.test/e/404"); ok {
		t.Error("expected absence on 404")
	}
}

func TestFetchContentReadabilityFallback(t *testing.T) {
	paragraph := strings.Repeat("Forum members argued at length about the new transit plan and its costs. ", 8)
	body := `<html><head><title>Thread</title></head><body><article><h1>Thread</h1><p>` + paragraph + `</p><p>` + paragraph + `</p></article></body></html>`
	getter := &fakeGetter{pages: map[string]*scrape.Page{
		"https://forum.test/e/1": page("https://forum.test/e/1", body),
	}}

	f := NewContentFetcher(getter, "div.content", "", true)
	text, ok := f.FetchContent(context.Background(), "https://forum.test/e/1")
	if !ok {
		t.Fatal("expected readability fallback to find content")
	}
	if !strings.Contains(text, "transit plan") {
		t.Errorf("unexpected fallback text %q", text)
	}
}

func TestExtractTextSeparatesElements(t *testing.T) {
	text, ok := ExtractText([]byte(`<div class="content">first line<br>second <a href="/x">link</a>end</div>`), "div.content")
	if !ok {
		t.Fatal("expected text")
	}
	if text != "first line second link end" {
		t.Errorf("unexpected text %q", text)
	}

	nested := `<div class="content"><p>line<br>next</p><p>one</p><p>two <a href="/y"><b>bold</b>word</a></p></div>`
	text, ok = ExtractText([]byte(nested), "div.content")
	if !ok {
		t.Fatal("expected text from nested markup")
	}
	if text != "line next one two bold word" {
		t.Errorf("unexpected nested text %q", text)
	}
}

func TestWithQueryParam(t *testing.T) {
	cases := []struct{ link, param, want string }{
		{"https://f.test/a", "a=search", "https://f.test/a?a=search"},
		{"https://f.test/a?x=1", "a=search", "https://f.test/a?x=1"},
		{"https://f.test/a", "", "https://f.test/a"},
	}
	for _, c := range cases {
		if got := WithQueryParam(c.link, c.param); got != c.want {
			t.Errorf("WithQueryParam(%q, %q) = %q, want %q", c.link, c.param, got, c.want)
		}
	}
}
