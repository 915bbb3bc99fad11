package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

const appName = "forumdigest"

// Policy values for a digest.
const (
	PolicySummarize = "summarize"
	PolicyFilter    = "filter"
)

// Report formats.
const (
	FormatPlain = "plain"
	FormatHTML  = "html"
)

// Source types and fetch modes.
const (
	SourceHTML   = "html"
	SourceFeed   = "feed"
	FetchHTTP    = "http"
	FetchBrowser = "browser"
)

type Config struct {
	Digests       []Digest      `yaml:"digests"`
	Summarization Summarization `yaml:"summarization"`
	Pacing        Pacing        `yaml:"pacing"`
	Email         Email         `yaml:"email"`
	HTTP          HTTP          `yaml:"http"`
	Output        Output        `yaml:"output"`
	Server        Server        `yaml:"server"`
	Logging       Logging       `yaml:"logging"`
}

// Digest is one configured variant: a listing source, a summarization
// policy and a report layout.
type Digest struct {
	Name   string `yaml:"name"`
	Title  string `yaml:"title"`
	Source Source `yaml:"source"`
	Policy string `yaml:"policy"`
	Prompt string `yaml:"prompt"`
	Report Report `yaml:"report"`
}

type Source struct {
	Type                string `yaml:"type"`
	URL                 string `yaml:"url"`
	BaseURL             string `yaml:"base_url"`
	ListSelector        string `yaml:"list_selector"`
	ItemSelector        string `yaml:"item_selector"`
	CaptionSelector     string `yaml:"caption_selector"`
	ContentSelector     string `yaml:"content_selector"`
	Limit               int    `yaml:"limit"`
	QueryParam          string `yaml:"query_param"`
	FetchMode           string `yaml:"fetch_mode"`
	ReadabilityFallback bool   `yaml:"readability_fallback"`
}

type Report struct {
	Format             string `yaml:"format"`
	Intro              string `yaml:"intro"`
	Outro              string `yaml:"outro"`
	IncludeUnavailable bool   `yaml:"include_unavailable"`
}

type Summarization struct {
	Provider        string `yaml:"provider"`
	Model           string `yaml:"model"`
	OllamaURL       string `yaml:"ollama_url"`
	APIKeyEnv       string `yaml:"api_key_env"`
	MaxTokens       int    `yaml:"max_tokens"`
	MaxInputChars   int    `yaml:"max_input_chars"`
	MinLength       int    `yaml:"min_length"`
	ShortNotePrefix string `yaml:"short_note_prefix"`
	FallbackChars   int    `yaml:"fallback_chars"`
	FallbackSuffix  string `yaml:"fallback_suffix"`
	FailurePrefix   string `yaml:"failure_prefix"`
	Sentinel        string `yaml:"sentinel"`
	SentinelMatch   string `yaml:"sentinel_match"`
}

type Pacing struct {
	MinDelay time.Duration `yaml:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay"`
}

type Email struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	TLSMode string `yaml:"tls_mode"` // "implicit" or "starttls"
}

type HTTP struct {
	UserAgent     string        `yaml:"user_agent"`
	Timeout       time.Duration `yaml:"timeout"`
	HostInterval  time.Duration `yaml:"host_interval"`
	RespectRobots bool          `yaml:"respect_robots"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for forumdigest.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, appName)
}

// DataDir returns the XDG data directory for forumdigest.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// ResolveConfigPath finds the config file following priority:
// explicit path > $XDG_CONFIG_HOME/forumdigest/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'forumdigest init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default parses the embedded default configuration.
func Default() (*Config, error) {
	return parse(DefaultConfigYAML)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Summarization: Summarization{
			Provider:        "gemini",
			Model:           "gemini-2.5-flash",
			OllamaURL:       "http://localhost:11434",
			APIKeyEnv:       "GEMINI_API_KEY",
			MaxTokens:       512,
			MaxInputChars:   6000,
			MinLength:       200,
			ShortNotePrefix: "Short note: ",
			FallbackChars:   300,
			FallbackSuffix:  "... (not summarized: no API key)",
			FailurePrefix:   "Could not summarize: ",
			Sentinel:        "NOT_INTERESTING",
			SentinelMatch:   "substring",
		},
		Pacing: Pacing{MinDelay: 2 * time.Second, MaxDelay: 6 * time.Second},
		Email:  Email{Host: "smtp.gmail.com", Port: 465, TLSMode: "implicit"},
		HTTP: HTTP{
			UserAgent:    "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			Timeout:      20 * time.Second,
			HostInterval: time.Second,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for i := range cfg.Digests {
		applyDigestDefaults(&cfg.Digests[i])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDigestDefaults(d *Digest) {
	if d.Title == "" {
		d.Title = "Daily digest"
	}
	if d.Policy == "" {
		d.Policy = PolicySummarize
	}
	if d.Source.Type == "" {
		d.Source.Type = SourceHTML
	}
	if d.Source.FetchMode == "" {
		d.Source.FetchMode = FetchHTTP
	}
	if d.Source.Limit <= 0 {
		d.Source.Limit = 10
	}
	if d.Source.ItemSelector == "" {
		d.Source.ItemSelector = "li"
	}
	if d.Report.Format == "" {
		d.Report.Format = FormatPlain
	}
}

// Validate checks enumerated fields and required values.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, d := range c.Digests {
		if d.Name == "" {
			return fmt.Errorf("digest without a name")
		}
		if seen[d.Name] {
			return fmt.Errorf("duplicate digest name %q", d.Name)
		}
		seen[d.Name] = true

		if d.Source.URL == "" {
			return fmt.Errorf("digest %q: source.url is required", d.Name)
		}
		switch d.Source.Type {
		case SourceHTML:
			if d.Source.ListSelector == "" || d.Source.ContentSelector == "" {
				return fmt.Errorf("digest %q: html sources need list_selector and content_selector", d.Name)
			}
		case SourceFeed:
		default:
			return fmt.Errorf("digest %q: unknown source type %q (valid: html, feed)", d.Name, d.Source.Type)
		}
		if d.Source.FetchMode != FetchHTTP && d.Source.FetchMode != FetchBrowser {
			return fmt.Errorf("digest %q: unknown fetch_mode %q (valid: http, browser)", d.Name, d.Source.FetchMode)
		}
		if d.Policy != PolicySummarize && d.Policy != PolicyFilter {
			return fmt.Errorf("digest %q: unknown policy %q (valid: summarize, filter)", d.Name, d.Policy)
		}
		if d.Report.Format != FormatPlain && d.Report.Format != FormatHTML {
			return fmt.Errorf("digest %q: unknown report format %q (valid: plain, html)", d.Name, d.Report.Format)
		}
	}

	switch c.Summarization.SentinelMatch {
	case "token", "substring":
	default:
		return fmt.Errorf("unknown sentinel_match %q (valid: token, substring)", c.Summarization.SentinelMatch)
	}
	if c.Pacing.MaxDelay < c.Pacing.MinDelay {
		return fmt.Errorf("pacing.max_delay (%s) is below pacing.min_delay (%s)", c.Pacing.MaxDelay, c.Pacing.MinDelay)
	}
	switch c.Email.TLSMode {
	case "implicit", "starttls":
	default:
		return fmt.Errorf("unknown email.tls_mode %q (valid: implicit, starttls)", c.Email.TLSMode)
	}
	return nil
}

// Digest returns the digest with the given name.
func (c *Config) Digest(name string) (Digest, bool) {
	for _, d := range c.Digests {
		if d.Name == name {
			return d, true
		}
	}
	return Digest{}, false
}

// DigestNames returns the configured digest names in order.
func (c *Config) DigestNames() []string {
	names := make([]string, 0, len(c.Digests))
	for _, d := range c.Digests {
		names = append(names, d.Name)
	}
	return names
}

// APIKey returns the LLM API key from the configured environment variable.
func (c *Config) APIKey() string {
	if c.Summarization.APIKeyEnv == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(c.Summarization.APIKeyEnv))
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// Debug reports whether per-item debug logging is enabled.
func (c *Config) Debug() bool {
	return strings.EqualFold(c.Logging.Level, "DEBUG")
}
