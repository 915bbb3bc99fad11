package summarize

import (
	"context"
	"fmt"
	"log"
	"strings"
	"text/template"

	"github.com/TobiSchelling/forumdigest/internal/config"
	"github.com/TobiSchelling/forumdigest/internal/llm"
)

const summarizePrompt = `You are a personal news assistant. Your tone is respectful but sharp.
Read the following forum entry titled "{{.Title}}" on behalf of your reader.
Drop unnecessary detail and summarize the main idea in two sentences.

Entry text:

{{.Text}}`

const filterPrompt = `You are a personal news assistant curating a daily digest.
Read the following forum entry titled "{{.Title}}".

If the entry is small talk, a joke with no substance, or otherwise not worth the reader's time,
respond with exactly {{.Sentinel}} and nothing else.

Otherwise summarize the main idea in two sentences.

Entry text:

{{.Text}}`

// Source values of a Result.
const (
	SourceModel    = "model"
	SourceShort    = "short"
	SourceFallback = "fallback"
	SourceError    = "error"
)

// Result is the outcome of summarizing one entry.
type Result struct {
	Summary string
	Dropped bool
	Source  string
}

// Options controls summarization behaviour.
type Options struct {
	Policy          string
	Prompt          string
	Sentinel        string
	SentinelMatch   string
	MaxTokens       int
	MaxInputChars   int
	MinLength       int
	ShortNotePrefix string
	FallbackChars   int
	FallbackSuffix  string
	FailurePrefix   string
}

// OptionsFor builds Options from the shared summarization settings and a
// digest's policy and prompt override.
func OptionsFor(s config.Summarization, d config.Digest) Options {
	return Options{
		Policy:          d.Policy,
		Prompt:          d.Prompt,
		Sentinel:        s.Sentinel,
		SentinelMatch:   s.SentinelMatch,
		MaxTokens:       s.MaxTokens,
		MaxInputChars:   s.MaxInputChars,
		MinLength:       s.MinLength,
		ShortNotePrefix: s.ShortNotePrefix,
		FallbackChars:   s.FallbackChars,
		FallbackSuffix:  s.FallbackSuffix,
		FailurePrefix:   s.FailurePrefix,
	}
}

// Summarizer turns entry text into a summary, or drops the entry when the
// filter policy is active and the model answers with the sentinel.
type Summarizer struct {
	provider llm.Provider
	opts     Options
	prompt   *template.Template
}

// New creates a Summarizer. provider may be nil, in which case every entry
// gets the truncation fallback.
func New(provider llm.Provider, opts Options) (*Summarizer, error) {
	text := opts.Prompt
	if text == "" {
		text = summarizePrompt
		if opts.Policy == config.PolicyFilter {
			text = filterPrompt
		}
	}
	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parsing prompt template: %w", err)
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}
	if opts.Policy == config.PolicyFilter && opts.Sentinel == "" {
		return nil, fmt.Errorf("filter policy requires a sentinel")
	}
	return &Summarizer{provider: provider, opts: opts, prompt: tmpl}, nil
}

// Summarize never returns an error: failures become placeholder summaries.
func (s *Summarizer) Summarize(ctx context.Context, title, text string) Result {
	filtering := s.opts.Policy == config.PolicyFilter

	if !filtering && s.opts.MinLength > 0 && len([]rune(text)) <= s.opts.MinLength {
		return Result{Summary: s.opts.ShortNotePrefix + text, Source: SourceShort}
	}

	if s.provider == nil {
		return Result{Summary: Truncate(text, s.opts.FallbackChars) + s.opts.FallbackSuffix, Source: SourceFallback}
	}

	prompt, err := s.render(title, text)
	if err != nil {
		return Result{Summary: s.opts.FailurePrefix + err.Error(), Source: SourceError}
	}

	response, err := s.provider.Generate(ctx, prompt, s.opts.MaxTokens)
	if err != nil {
		log.Printf("Summarization failed for %q: %v", title, err)
		return Result{Summary: s.opts.FailurePrefix + err.Error(), Source: SourceError}
	}

	if filtering && ContainsSentinel(response, s.opts.Sentinel, s.opts.SentinelMatch) {
		return Result{Dropped: true, Source: SourceModel}
	}

	response = strings.TrimSpace(response)
	if response == "" {
		return Result{Summary: s.opts.FailurePrefix + "empty model response", Source: SourceError}
	}
	return Result{Summary: response, Source: SourceModel}
}

func (s *Summarizer) render(title, text string) (string, error) {
	if s.opts.MaxInputChars > 0 && len([]rune(text)) > s.opts.MaxInputChars {
		text = Truncate(text, s.opts.MaxInputChars) + "..."
	}

	var sb strings.Builder
	err := s.prompt.Execute(&sb, map[string]string{
		"Title":    title,
		"Text":     text,
		"Sentinel": s.opts.Sentinel,
	})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return sb.String(), nil
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
