package report

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/forumdigest/internal/config"
)

//go:embed templates/email.html
var templateFS embed.FS

var md = goldmark.New()

var emailTemplate = template.Must(
	template.New("email.html").Funcs(template.FuncMap{"markdown": RenderMarkdown}).ParseFS(templateFS, "templates/email.html"),
)

const (
	defaultIntro = "Good morning,\n\nHere are the most discussed entries since yesterday:"
	defaultOutro = "See you tomorrow."
	separator    = "-----------------------------------"
)

// Item is one entry in a report. Unavailable items carry only a title and
// link and are rendered as a single notice line.
type Item struct {
	Title       string
	Link        string
	Summary     string
	Unavailable bool
}

// Message is a rendered report ready for delivery. HTML is empty for plain
// reports.
type Message struct {
	Subject string
	Plain   string
	HTML    string
}

// Reporter assembles report items into a message.
type Reporter struct {
	title              string
	format             string
	intro              string
	outro              string
	includeUnavailable bool
}

// New creates a Reporter for a digest.
func New(d config.Digest) *Reporter {
	r := &Reporter{
		title:              d.Title,
		format:             d.Report.Format,
		intro:              d.Report.Intro,
		outro:              d.Report.Outro,
		includeUnavailable: d.Report.IncludeUnavailable,
	}
	if r.intro == "" {
		r.intro = defaultIntro
	}
	if r.outro == "" {
		r.outro = defaultOutro
	}
	return r
}

// Subject returns the mail subject for a report generated on day.
func (r *Reporter) Subject(day time.Time) string {
	return fmt.Sprintf("%s - %s", r.title, day.Format("02.01.2006"))
}

// Render builds the message for items in the given order.
func (r *Reporter) Render(items []Item, day time.Time) (*Message, error) {
	items = r.visible(items)
	msg := &Message{
		Subject: r.Subject(day),
		Plain:   r.plain(items),
	}

	if r.format == config.FormatHTML {
		var buf bytes.Buffer
		err := emailTemplate.Execute(&buf, map[string]any{
			"Subject": msg.Subject,
			"Intro":   r.intro,
			"Outro":   r.outro,
			"Items":   items,
		})
		if err != nil {
			return nil, fmt.Errorf("rendering html report: %w", err)
		}
		msg.HTML = buf.String()
	}
	return msg, nil
}

func (r *Reporter) visible(items []Item) []Item {
	if r.includeUnavailable {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if !it.Unavailable {
			out = append(out, it)
		}
	}
	return out
}

// Body returns the plain-text block list without intro and outro.
func Body(items []Item) string {
	var sb strings.Builder
	for _, it := range items {
		if it.Unavailable {
			fmt.Fprintf(&sb, "► %s - (unavailable)\n\n", it.Title)
			continue
		}
		fmt.Fprintf(&sb, "► %s\n", it.Title)
		fmt.Fprintf(&sb, "%s\n", it.Summary)
		fmt.Fprintf(&sb, "Link: %s\n", it.Link)
		sb.WriteString(separator + "\n\n")
	}
	return sb.String()
}

func (r *Reporter) plain(items []Item) string {
	return r.intro + "\n\n" + Body(items) + "\n" + r.outro + "\n"
}

// RenderMarkdown converts model output to HTML. Raw HTML in the input is
// dropped by goldmark's default renderer.
func RenderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}
