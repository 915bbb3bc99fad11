package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetReturnsBodyAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "TestAgent/1.0" {
			t.Errorf("unexpected user agent %q", r.Header.Get("User-Agent"))
		}
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	g := NewHTTPGetter(Options{UserAgent: "TestAgent/1.0"})

	page, err := g.Get(context.Background(), srv.URL+"/page")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !page.OK() || string(page.Body) != "<html>ok</html>" {
		t.Errorf("unexpected page: %d %q", page.StatusCode, page.Body)
	}

	page, err = g.Get(context.Background(), srv.URL+"/missing")
	if err != nil {
		t.Fatalf("non-2xx should not be an error: %v", err)
	}
	if page.OK() || page.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 page, got %d", page.StatusCode)
	}
}

func TestGetKeepsCookies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/set" {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			return
		}
		c, err := r.Cookie("session")
		if err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte("welcome back"))
	}))
	defer srv.Close()

	g := NewHTTPGetter(Options{})
	if _, err := g.Get(context.Background(), srv.URL+"/set"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	page, err := g.Get(context.Background(), srv.URL+"/check")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.StatusCode != http.StatusOK {
		t.Errorf("expected cookie to be replayed, got status %d", page.StatusCode)
	}
}

func TestGetRespectsRobots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte("User-agent: *\nDisallow: /private\n"))
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	g := NewHTTPGetter(Options{UserAgent: "DigestBot/1.0", RespectRobots: true})

	if _, err := g.Get(context.Background(), srv.URL+"/private/page"); !errors.Is(err, ErrDisallowed) {
		t.Errorf("expected ErrDisallowed, got %v", err)
	}
	if _, err := g.Get(context.Background(), srv.URL+"/public"); err != nil {
		t.Errorf("expected public path to be allowed, got %v", err)
	}
}

func TestGetConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	g := NewHTTPGetter(Options{})
	if _, err := g.Get(context.Background(), addr); err == nil {
		t.Error("expected error for closed server")
	}
}

func TestAgentToken(t *testing.T) {
	cases := map[string]string{
		"DigestBot/1.0 (+https://example.com)": "DigestBot",
		"Mozilla/5.0 (Windows NT 10.0)":        "Mozilla",
		"":                                     "*",
	}
	for in, want := range cases {
		if got := agentToken(in); got != want {
			t.Errorf("agentToken(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBrowserGettersShareOneBrowser(t *testing.T) {
	b := NewBrowser("forumdigest-test", 0)
	list, entry := b.Getter("ul.topic-list"), b.Getter("")

	if list.Browser() != entry.Browser() {
		t.Error("getters should share the browser")
	}
	if entry.WaitFor != "body" {
		t.Errorf("expected body as the default wait selector, got %q", entry.WaitFor)
	}
	if b.Timeout != 45*time.Second {
		t.Errorf("expected default timeout, got %v", b.Timeout)
	}
	if b.started() {
		t.Error("browser should not launch before the first Get")
	}
	if err := b.Close(); err != nil {
		t.Errorf("closing an unstarted browser: %v", err)
	}
}
