package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if len(cfg.Digests) != 2 {
		t.Fatalf("expected 2 digests, got %d", len(cfg.Digests))
	}

	debe, ok := cfg.Digest("debe")
	if !ok {
		t.Fatal("expected digest 'debe'")
	}
	if debe.Source.Limit != 10 {
		t.Errorf("expected debe limit 10, got %d", debe.Source.Limit)
	}
	if debe.Policy != PolicySummarize {
		t.Errorf("expected debe policy summarize, got %q", debe.Policy)
	}

	agenda, _ := cfg.Digest("agenda")
	if agenda.Source.Limit != 20 {
		t.Errorf("expected agenda limit 20, got %d", agenda.Source.Limit)
	}
	if agenda.Report.Format != FormatHTML {
		t.Errorf("expected agenda html format, got %q", agenda.Report.Format)
	}

	if cfg.Pacing.MinDelay != 2*time.Second || cfg.Pacing.MaxDelay != 6*time.Second {
		t.Errorf("unexpected pacing %v..%v", cfg.Pacing.MinDelay, cfg.Pacing.MaxDelay)
	}
	if cfg.Email.Port != 465 {
		t.Errorf("expected port 465, got %d", cfg.Email.Port)
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
digests:
  - name: hn
    source:
      type: feed
      url: https://news.ycombinator.com/rss
summarization:
  provider: openai
  model: gpt-4o-mini
server:
  port: 9000
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	if cfg.Summarization.Provider != "openai" {
		t.Errorf("expected provider 'openai', got %q", cfg.Summarization.Provider)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	// Defaults should still be set for unspecified fields
	if cfg.Summarization.Sentinel != "NOT_INTERESTING" {
		t.Errorf("expected default sentinel, got %q", cfg.Summarization.Sentinel)
	}

	d := cfg.Digests[0]
	if d.Policy != PolicySummarize || d.Report.Format != FormatPlain || d.Source.Limit != 10 {
		t.Errorf("digest defaults not applied: %+v", d)
	}
	if d.Source.FetchMode != FetchHTTP {
		t.Errorf("expected fetch mode http, got %q", d.Source.FetchMode)
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"policy": `
digests:
  - name: x
    policy: shout
    source: {type: feed, url: https://example.com/rss}
`,
		"format": `
digests:
  - name: x
    source: {type: feed, url: https://example.com/rss}
    report: {format: pdf}
`,
		"selectors": `
digests:
  - name: x
    source: {type: html, url: https://example.com}
`,
		"duplicate": `
digests:
  - name: x
    source: {type: feed, url: https://example.com/rss}
  - name: x
    source: {type: feed, url: https://example.com/rss}
`,
		"pacing": `
pacing: {min_delay: 5s, max_delay: 1s}
`,
	}

	for name, data := range cases {
		if _, err := parse([]byte(data)); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if len(cfg.Digests) == 0 {
		t.Error("expected digests to be populated from file")
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	_, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestGetDataDir(t *testing.T) {
	cfg := &Config{}
	defaultDir := cfg.GetDataDir()
	if defaultDir == "" {
		t.Error("expected non-empty default data dir")
	}

	cfg.Output.DataDir = "/custom/path"
	if cfg.GetDataDir() != "/custom/path" {
		t.Errorf("expected '/custom/path', got %q", cfg.GetDataDir())
	}
}

func TestAPIKeyFromEnv(t *testing.T) {
	t.Setenv("FORUMDIGEST_TEST_KEY", "  secret ")
	cfg := &Config{Summarization: Summarization{APIKeyEnv: "FORUMDIGEST_TEST_KEY"}}
	if got := cfg.APIKey(); got != "secret" {
		t.Errorf("expected trimmed key, got %q", got)
	}
}

func TestLoadSecrets(t *testing.T) {
	t.Setenv("DIGEST_SMTP_USERNAME", "me@example.com")
	t.Setenv("DIGEST_SMTP_PASSWORD", "pw")
	t.Setenv("DIGEST_MAIL_FROM", "")
	t.Setenv("DIGEST_MAIL_TO", "a@example.com, b@example.com,")

	s, err := LoadSecrets()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.MailFrom != "me@example.com" {
		t.Errorf("expected sender to default to username, got %q", s.MailFrom)
	}
	rcpt := s.Recipients()
	if len(rcpt) != 2 || rcpt[1] != "b@example.com" {
		t.Errorf("unexpected recipients %v", rcpt)
	}
	if err := s.MailConfigured(); err != nil {
		t.Errorf("expected mail configured, got %v", err)
	}
}

func TestMailConfiguredMissing(t *testing.T) {
	s := &Secrets{SMTPUsername: "me@example.com"}
	err := s.MailConfigured()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "DIGEST_SMTP_PASSWORD") || !strings.Contains(err.Error(), "DIGEST_MAIL_TO") {
		t.Errorf("error should name missing variables: %v", err)
	}
}
