package database

import "time"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusEmpty     = "empty"
	StatusCancelled = "cancelled"
)

// Item outcomes.
const (
	OutcomeKept        = "kept"
	OutcomeDropped     = "dropped"
	OutcomeUnavailable = "unavailable"
)

// timeLayout matches sqlite's datetime('now') output.
const timeLayout = "2006-01-02 15:04:05"

// Run is one archived digest run.
type Run struct {
	ID          int64
	Digest      string
	Title       string
	StartedAt   string
	FinishedAt  *string
	Status      string
	Listed      int
	Succeeded   int
	Dropped     int
	Unavailable int
	EmailSent   bool
	EmailError  *string
	Subject     *string
	Body        *string
}

// RunOutcome is written when a run finishes.
type RunOutcome struct {
	Status      string
	Listed      int
	Succeeded   int
	Dropped     int
	Unavailable int
	EmailSent   bool
	EmailError  string
	Subject     string
	Body        string
}

// RunItem is one processed entry of a run.
type RunItem struct {
	ID       int64
	RunID    int64
	Position int
	Title    string
	Link     string
	Summary  string
	Outcome  string
	Source   string
}

// Stats contains aggregate archive statistics.
type Stats struct {
	Runs             int
	EmailsSent       int
	ItemsKept        int
	ItemsDropped     int
	ItemsUnavailable int
	Digests          int
}

// FormatTimestamp renders a stored timestamp for display, e.g.
// "Feb 06, 2026 08:00". Unparseable values are returned unchanged.
func FormatTimestamp(ts string) string {
	t, err := time.Parse(timeLayout, ts)
	if err != nil {
		return ts
	}
	return t.Format("Jan 02, 2006 15:04")
}
