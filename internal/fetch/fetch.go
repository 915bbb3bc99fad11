package fetch

import (
	"bytes"
	"context"
	"log"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/TobiSchelling/forumdigest/internal/scrape"
)

// minReadableChars is the shortest readability result accepted as content.
const minReadableChars = 100

// ContentFetcher extracts the main text block of an entry page.
type ContentFetcher struct {
	getter              scrape.Getter
	contentSelector     string
	queryParam          string
	readabilityFallback bool
}

// NewContentFetcher creates a new content fetcher. An empty contentSelector
// means readability extraction is always used.
func NewContentFetcher(getter scrape.Getter, contentSelector, queryParam string, readabilityFallback bool) *ContentFetcher {
	return &ContentFetcher{
		getter:              getter,
		contentSelector:     contentSelector,
		queryParam:          queryParam,
		readabilityFallback: readabilityFallback,
	}
}

// FetchContent returns the collapsed text of the entry at link. The second
// return value is false when nothing could be extracted.
func (f *ContentFetcher) FetchContent(ctx context.Context, link string) (string, bool) {
	target := WithQueryParam(link, f.queryParam)

	page, err := f.getter.Get(ctx, target)
	if err != nil {
		log.Printf("Entry fetch failed for %s: %v", target, err)
		return "", false
	}
	if !page.OK() {
		log.Printf("Entry %s returned status %d", target, page.StatusCode)
		return "", false
	}

	if f.contentSelector != "" {
		if text, ok := ExtractText(page.Body, f.contentSelector); ok {
			return text, true
		}
		log.Printf("No content block on %s (page title: %q)", target, pageTitle(page.Body))
		if !f.readabilityFallback {
			return "", false
		}
	}

	text := extractReadable(page.Body, page.URL)
	if text == "" {
		return "", false
	}
	return text, true
}

// ExtractText returns the whitespace-collapsed text of the first element
// matching selector.
func ExtractText(body []byte, selector string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}

	// Text() concatenates adjacent nodes; separate every text node so words
	// at element boundaries at any depth (e.g. "line<br>next") stay apart.
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(sel.Nodes[0])
	text := collapseWhitespace(strings.Join(parts, " "))
	if text == "" {
		return "", false
	}
	return text, true
}

// WithQueryParam appends param to link when link has no query string.
func WithQueryParam(link, param string) string {
	if param == "" || strings.Contains(link, "?") {
		return link
	}
	return link + "?" + param
}

func extractReadable(body []byte, pageURL string) string {
	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return ""
	}
	text := collapseWhitespace(article.TextContent)
	if len(text) < minReadableChars {
		return ""
	}
	return text
}

func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	title := collapseWhitespace(doc.Find("title").First().Text())
	if title == "" {
		return "no title"
	}
	return title
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
