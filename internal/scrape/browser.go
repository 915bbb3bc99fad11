package scrape

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// Browser is one headless Chrome process shared by several getters. It is
// started on first use; every page is rendered in its own tab.
type Browser struct {
	UserAgent string
	Timeout   time.Duration

	mu            sync.Mutex
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

// NewBrowser creates a Browser. Nothing is launched until the first Get.
func NewBrowser(userAgent string, timeout time.Duration) *Browser {
	if timeout == 0 {
		timeout = 45 * time.Second
	}
	return &Browser{UserAgent: userAgent, Timeout: timeout}
}

// Getter returns a getter that renders pages in this browser and waits for
// waitFor (a CSS selector) before capturing the DOM. An empty waitFor waits
// for the body element.
func (b *Browser) Getter(waitFor string) *BrowserGetter {
	if waitFor == "" {
		waitFor = "body"
	}
	return &BrowserGetter{browser: b, WaitFor: waitFor}
}

// Close shuts Chrome down. It is safe to call on a browser that never
// started, and the browser restarts on the next Get.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browserCtx == nil {
		return nil
	}
	b.cancelBrowser()
	b.cancelAlloc()
	b.browserCtx, b.cancelBrowser, b.cancelAlloc = nil, nil, nil
	return nil
}

func (b *Browser) started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.browserCtx != nil
}

func (b *Browser) root() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
	)
	if b.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	// An empty Run launches the process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("starting browser: %w", err)
	}

	b.browserCtx, b.cancelBrowser, b.cancelAlloc = browserCtx, cancelBrowser, cancelAlloc
	return browserCtx, nil
}

// BrowserGetter renders pages in headless Chrome. It is used for sources
// that serve a JavaScript challenge to plain HTTP clients.
type BrowserGetter struct {
	browser *Browser
	WaitFor string
}

// Browser returns the browser this getter renders in.
func (g *BrowserGetter) Browser() *Browser {
	return g.browser
}

// Get opens pageURL in a new tab and returns the rendered outer HTML.
// The status code is reported as 200 once the wait selector appears.
func (g *BrowserGetter) Get(ctx context.Context, pageURL string) (*Page, error) {
	root, err := g.browser.root()
	if err != nil {
		return nil, err
	}

	tabCtx, cancelTab := chromedp.NewContext(root)
	defer cancelTab()

	runCtx, cancel := context.WithTimeout(tabCtx, g.browser.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	var html string
	err = chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitVisible(g.WaitFor, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", pageURL, err)
	}

	return &Page{URL: pageURL, StatusCode: 200, Body: []byte(html)}, nil
}
