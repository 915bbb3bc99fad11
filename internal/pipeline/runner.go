package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/TobiSchelling/forumdigest/internal/config"
	"github.com/TobiSchelling/forumdigest/internal/database"
	"github.com/TobiSchelling/forumdigest/internal/llm"
	"github.com/TobiSchelling/forumdigest/internal/notify"
)

// ProviderFor returns the configured LLM provider, or nil when none is
// usable.
func ProviderFor(cfg *config.Config) llm.Provider {
	s := cfg.Summarization
	return llm.CreateProvider(s.Provider, s.Model, s.OllamaURL, cfg.APIKey())
}

// NotifierFor returns a mailer when the mail secrets are complete and nil
// otherwise. Missing secrets are logged, not fatal.
func NotifierFor(cfg *config.Config, secrets *config.Secrets) notify.Notifier {
	if err := secrets.MailConfigured(); err != nil {
		log.Printf("%v; reports will not be emailed", err)
		return nil
	}
	return notify.NewMailer(cfg.Email, secrets)
}

// SelectDigests returns the named digests, or all of them when names is
// empty.
func SelectDigests(cfg *config.Config, names []string) ([]config.Digest, error) {
	if len(names) == 0 {
		return cfg.Digests, nil
	}
	out := make([]config.Digest, 0, len(names))
	for _, name := range names {
		d, ok := cfg.Digest(name)
		if !ok {
			return nil, fmt.Errorf("unknown digest %q (configured: %v)", name, cfg.DigestNames())
		}
		out = append(out, d)
	}
	return out, nil
}

// RunAll runs each digest in order and returns one result per digest.
// Digests never share items; a failure to build one does not stop the rest.
func RunAll(ctx context.Context, cfg *config.Config, digests []config.Digest, provider llm.Provider, notifier notify.Notifier, db *database.DB, opts Options) []*Result {
	var results []*Result
	for _, d := range digests {
		if ctx.Err() != nil {
			break
		}
		log.Printf("Running digest %s (%s)", d.Name, d.Source.URL)
		p, err := Build(cfg, d, provider, notifier, db)
		if err != nil {
			results = append(results, &Result{Digest: d.Name, Steps: []StepResult{{Name: "Build", Err: err}}})
			continue
		}
		results = append(results, p.Run(ctx, opts))
		p.Close()
	}
	return results
}
