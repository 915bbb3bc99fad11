package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/forumdigest/internal/config"
	"github.com/TobiSchelling/forumdigest/internal/database"
	"github.com/TobiSchelling/forumdigest/internal/lister"
	"github.com/TobiSchelling/forumdigest/internal/notify"
	"github.com/TobiSchelling/forumdigest/internal/report"
	"github.com/TobiSchelling/forumdigest/internal/scrape"
	"github.com/TobiSchelling/forumdigest/internal/summarize"
)

// Fetcher extracts the text of one entry. ok is false when nothing could be
// extracted.
type Fetcher interface {
	FetchContent(ctx context.Context, link string) (text string, ok bool)
}

// Summarizer turns entry text into a report summary or drops the entry.
type Summarizer interface {
	Summarize(ctx context.Context, title, text string) summarize.Result
}

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of one digest run.
type Result struct {
	Digest      string
	RunID       int64
	Entries     []lister.Entry
	Items       []report.Item
	Succeeded   int
	Dropped     int
	Unavailable int
	Message     *report.Message
	EmailSent   bool
	Steps       []StepResult
}

// Options adjusts a single run.
type Options struct {
	// NoEmail renders the report but never calls the notifier.
	NoEmail bool
}

// Components are the collaborators of a Pipeline. Notifier, DB and Pacer
// may be nil.
type Components struct {
	Lister     lister.Lister
	Fetcher    Fetcher
	Summarizer Summarizer
	Notifier   notify.Notifier
	DB         *database.DB
	Pacer      *Pacer
	// Browser is closed by Pipeline.Close when set.
	Browser *scrape.Browser
}

// Pipeline runs one digest: list, fetch, summarize, report, notify.
type Pipeline struct {
	digest     config.Digest
	lister     lister.Lister
	fetcher    Fetcher
	summarizer Summarizer
	reporter   *report.Reporter
	notifier   notify.Notifier
	db         *database.DB
	pacer      *Pacer
	browser    *scrape.Browser
	now        func() time.Time
}

// New creates a pipeline for digest d.
func New(d config.Digest, c Components) *Pipeline {
	pacer := c.Pacer
	if pacer == nil {
		pacer = NewPacer(0, 0)
	}
	return &Pipeline{
		digest:     d,
		lister:     c.Lister,
		fetcher:    c.Fetcher,
		summarizer: c.Summarizer,
		reporter:   report.New(d),
		notifier:   c.Notifier,
		db:         c.DB,
		pacer:      pacer,
		browser:    c.Browser,
		now:        time.Now,
	}
}

// Run executes the digest once. Upstream, model and mail failures never
// abort the run; they show up in the step results and the log.
func (p *Pipeline) Run(ctx context.Context, opts Options) *Result {
	r := &Result{Digest: p.digest.Name}
	started := p.now()
	p.startArchive(r, started)

	// Step 1: List
	r.Entries = p.lister.List(ctx)
	r.Steps = append(r.Steps, StepResult{
		Name:    "List",
		Summary: fmt.Sprintf("Found %d entries", len(r.Entries)),
	})
	if len(r.Entries) == 0 {
		log.Printf("[%s] No entries found, nothing to report", p.digest.Name)
		p.finishArchive(r, database.StatusEmpty, "")
		return r
	}

	// Step 2: Fetch and summarize each entry
	if err := p.processEntries(ctx, r); err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Process", Err: err})
		p.finishArchive(r, database.StatusCancelled, "")
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name: "Process",
		Summary: fmt.Sprintf("%d summarized, %d dropped, %d unavailable",
			r.Succeeded, r.Dropped, r.Unavailable),
	})

	if r.Succeeded == 0 {
		r.Steps = append(r.Steps, StepResult{Name: "Report", Summary: "No entry survived, no report"})
		p.finishArchive(r, database.StatusEmpty, "")
		return r
	}

	// Step 3: Report
	msg, err := p.reporter.Render(r.Items, started)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Report", Err: err})
		p.finishArchive(r, database.StatusCompleted, "")
		return r
	}
	r.Message = msg
	r.Steps = append(r.Steps, StepResult{Name: "Report", Summary: fmt.Sprintf("Rendered %q", msg.Subject)})

	// Step 4: Notify
	step := p.notify(ctx, r, opts)
	r.Steps = append(r.Steps, step)

	mailErr := ""
	if step.Err != nil {
		mailErr = step.Err.Error()
	}
	p.finishArchive(r, database.StatusCompleted, mailErr)
	return r
}

// DryRun lists entries without fetching, summarizing or sending anything.
// Close releases the headless browser, if the pipeline started one.
func (p *Pipeline) Close() error {
	if p.browser == nil {
		return nil
	}
	return p.browser.Close()
}

func (p *Pipeline) DryRun(ctx context.Context) *Result {
	r := &Result{Digest: p.digest.Name}
	r.Entries = p.lister.List(ctx)
	r.Steps = append(r.Steps, StepResult{
		Name:    "List",
		Summary: fmt.Sprintf("[dry-run] %d entries would be processed", len(r.Entries)),
	})
	return r
}

func (p *Pipeline) processEntries(ctx context.Context, r *Result) error {
	total := len(r.Entries)
	for i, entry := range r.Entries {
		if i > 0 {
			if err := p.pacer.Wait(ctx); err != nil {
				return fmt.Errorf("stopped after %d of %d entries: %w", i, total, err)
			}
		}
		log.Printf("Processing (%d/%d): %s", i+1, total, entry.Title)

		text, ok := p.fetcher.FetchContent(ctx, entry.Link)
		if !ok {
			log.Printf("  content unavailable: %s", entry.Link)
			r.Unavailable++
			r.Items = append(r.Items, report.Item{Title: entry.Title, Link: entry.Link, Unavailable: true})
			p.archiveItem(r, i, entry, database.OutcomeUnavailable, summarize.Result{})
			continue
		}

		res := p.summarizer.Summarize(ctx, entry.Title, text)
		if res.Dropped {
			log.Printf("  filtered out: %s", entry.Title)
			r.Dropped++
			p.archiveItem(r, i, entry, database.OutcomeDropped, res)
			continue
		}

		r.Succeeded++
		r.Items = append(r.Items, report.Item{Title: entry.Title, Link: entry.Link, Summary: res.Summary})
		p.archiveItem(r, i, entry, database.OutcomeKept, res)
	}
	return nil
}

func (p *Pipeline) notify(ctx context.Context, r *Result, opts Options) StepResult {
	if opts.NoEmail {
		return StepResult{Name: "Notify", Summary: "Email disabled for this run"}
	}
	if p.notifier == nil {
		return StepResult{Name: "Notify", Summary: "No notifier configured, email skipped"}
	}
	if err := p.notifier.Send(ctx, r.Message); err != nil {
		log.Printf("Email could not be sent: %v", err)
		return StepResult{Name: "Notify", Err: fmt.Errorf("sending email: %w", err)}
	}
	r.EmailSent = true
	log.Printf("Email sent: %s", r.Message.Subject)
	return StepResult{Name: "Notify", Summary: "Email sent"}
}

func (p *Pipeline) startArchive(r *Result, started time.Time) {
	if p.db == nil {
		return
	}
	id, err := p.db.InsertRun(p.digest.Name, p.digest.Title, started)
	if err != nil {
		log.Printf("Archive unavailable for this run: %v", err)
		return
	}
	r.RunID = id
}

func (p *Pipeline) archiveItem(r *Result, i int, e lister.Entry, outcome string, res summarize.Result) {
	if p.db == nil || r.RunID == 0 {
		return
	}
	_, err := p.db.InsertRunItem(database.RunItem{
		RunID:    r.RunID,
		Position: i + 1,
		Title:    e.Title,
		Link:     e.Link,
		Summary:  res.Summary,
		Outcome:  outcome,
		Source:   res.Source,
	})
	if err != nil {
		log.Printf("Archiving %q failed: %v", e.Title, err)
	}
}

func (p *Pipeline) finishArchive(r *Result, status, mailErr string) {
	if p.db == nil || r.RunID == 0 {
		return
	}
	o := database.RunOutcome{
		Status:      status,
		Listed:      len(r.Entries),
		Succeeded:   r.Succeeded,
		Dropped:     r.Dropped,
		Unavailable: r.Unavailable,
		EmailSent:   r.EmailSent,
		EmailError:  mailErr,
	}
	if r.Message != nil {
		o.Subject = r.Message.Subject
		o.Body = r.Message.Plain
	}
	if err := p.db.FinishRun(r.RunID, o, p.now()); err != nil {
		log.Printf("Archiving run %d failed: %v", r.RunID, err)
	}
}
