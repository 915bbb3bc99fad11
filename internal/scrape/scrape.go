package scrape

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// maxBodyBytes bounds how much of a page is read.
const maxBodyBytes = 8 << 20

// Page is a fetched document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// OK reports whether the response status is 2xx.
func (p *Page) OK() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Getter fetches pages.
type Getter interface {
	Get(ctx context.Context, pageURL string) (*Page, error)
}

// Options configures an HTTPGetter.
type Options struct {
	UserAgent     string
	Timeout       time.Duration
	HostInterval  time.Duration
	RespectRobots bool
}

// HTTPGetter is a browser-like HTTP client. It keeps cookies across requests,
// spaces requests to the same host, and optionally honours robots.txt.
type HTTPGetter struct {
	opts   Options
	client *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	robots   map[string]*robotstxt.Group
}

// ErrDisallowed is returned when robots.txt forbids a path.
var ErrDisallowed = fmt.Errorf("disallowed by robots.txt")

// NewHTTPGetter creates a new HTTPGetter.
func NewHTTPGetter(opts Options) *HTTPGetter {
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "forumdigest/1.0"
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		log.Printf("Cookie jar unavailable: %v", err)
	}

	return &HTTPGetter{
		opts: opts,
		client: &http.Client{
			Timeout: opts.Timeout,
			Jar:     jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		limiters: make(map[string]*rate.Limiter),
		robots:   make(map[string]*robotstxt.Group),
	}
}

// Get fetches pageURL. Non-2xx responses are returned as a Page, not an error.
func (g *HTTPGetter) Get(ctx context.Context, pageURL string) (*Page, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}

	if g.opts.RespectRobots && !g.allowed(ctx, u) {
		return nil, ErrDisallowed
	}

	if err := g.limiter(u.Host).Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", g.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return &Page{URL: resp.Request.URL.String(), StatusCode: resp.StatusCode, Body: body}, nil
}

func (g *HTTPGetter) limiter(host string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	l, ok := g.limiters[host]
	if !ok {
		limit := rate.Inf
		if g.opts.HostInterval > 0 {
			limit = rate.Every(g.opts.HostInterval)
		}
		l = rate.NewLimiter(limit, 1)
		g.limiters[host] = l
	}
	return l
}

func (g *HTTPGetter) allowed(ctx context.Context, u *url.URL) bool {
	g.mu.Lock()
	group, cached := g.robots[u.Host]
	g.mu.Unlock()

	if !cached {
		group = g.fetchRobots(ctx, u)
		g.mu.Lock()
		g.robots[u.Host] = group
		g.mu.Unlock()
	}

	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

// fetchRobots returns nil (allow all) when robots.txt is missing or unreadable.
func (g *HTTPGetter) fetchRobots(ctx context.Context, u *url.URL) *robotstxt.Group {
	robotsURL := u.Scheme + "://" + u.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.opts.UserAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil
	}
	return data.FindGroup(agentToken(g.opts.UserAgent))
}

// agentToken reduces a User-Agent header to its product token.
func agentToken(ua string) string {
	token := strings.Fields(ua)
	if len(token) == 0 {
		return "*"
	}
	return strings.SplitN(token[0], "/", 2)[0]
}
