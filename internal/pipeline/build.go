package pipeline

import (
	"fmt"

	"github.com/TobiSchelling/forumdigest/internal/config"
	"github.com/TobiSchelling/forumdigest/internal/database"
	"github.com/TobiSchelling/forumdigest/internal/fetch"
	"github.com/TobiSchelling/forumdigest/internal/lister"
	"github.com/TobiSchelling/forumdigest/internal/llm"
	"github.com/TobiSchelling/forumdigest/internal/notify"
	"github.com/TobiSchelling/forumdigest/internal/scrape"
	"github.com/TobiSchelling/forumdigest/internal/summarize"
)

// Getters returns the page getters for a digest's listing page and entry
// pages. In browser mode both render in one shared browser, which is
// returned so the caller can close it, and each waits for the selector it
// will parse.
func Getters(h config.HTTP, src config.Source) (listGetter, entryGetter scrape.Getter, browser *scrape.Browser) {
	if src.FetchMode == config.FetchBrowser {
		b := scrape.NewBrowser(h.UserAgent, h.Timeout)
		return b.Getter(src.ListSelector), b.Getter(src.ContentSelector), b
	}
	g := scrape.NewHTTPGetter(scrape.Options{
		UserAgent:     h.UserAgent,
		Timeout:       h.Timeout,
		HostInterval:  h.HostInterval,
		RespectRobots: h.RespectRobots,
	})
	return g, g, nil
}

// Build wires a pipeline for digest d from configuration. provider may be
// nil (truncation fallback); notifier and db may be nil.
func Build(cfg *config.Config, d config.Digest, provider llm.Provider, notifier notify.Notifier, db *database.DB) (*Pipeline, error) {
	listGetter, entryGetter, browser := Getters(cfg.HTTP, d.Source)

	summarizer, err := summarize.New(provider, summarize.OptionsFor(cfg.Summarization, d))
	if err != nil {
		return nil, fmt.Errorf("digest %s: %w", d.Name, err)
	}

	return New(d, Components{
		Lister:     lister.New(d.Source, listGetter),
		Fetcher:    fetch.NewContentFetcher(entryGetter, d.Source.ContentSelector, d.Source.QueryParam, d.Source.ReadabilityFallback),
		Summarizer: summarizer,
		Notifier:   notifier,
		DB:         db,
		Pacer:      NewPacer(cfg.Pacing.MinDelay, cfg.Pacing.MaxDelay),
		Browser:    browser,
	}), nil
}
