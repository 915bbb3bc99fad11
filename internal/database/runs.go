package database

import (
	"database/sql"
	"time"
)

// InsertRun records the start of a digest run and returns its ID.
func (db *DB) InsertRun(digest, title string, startedAt time.Time) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO runs (digest, title, started_at, status) VALUES (?, ?, ?, ?)`,
		digest, title, startedAt.UTC().Format(timeLayout), StatusRunning,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// FinishRun stores the outcome of a run.
func (db *DB) FinishRun(runID int64, o RunOutcome, finishedAt time.Time) error {
	_, err := db.conn.Exec(
		`UPDATE runs SET finished_at = ?, status = ?, listed = ?, succeeded = ?, dropped = ?,
		unavailable = ?, email_sent = ?, email_error = ?, subject = ?, body = ?
		WHERE id = ?`,
		finishedAt.UTC().Format(timeLayout), o.Status, o.Listed, o.Succeeded, o.Dropped,
		o.Unavailable, boolToInt(o.EmailSent), nullString(o.EmailError),
		nullString(o.Subject), nullString(o.Body), runID,
	)
	return err
}

// InsertRunItem appends a processed entry to a run.
func (db *DB) InsertRunItem(item RunItem) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO run_items (run_id, position, title, link, summary, outcome, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.RunID, item.Position, item.Title, item.Link, nullString(item.Summary),
		item.Outcome, nullString(item.Source),
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

const runColumns = `id, digest, title, started_at, finished_at, status, listed, succeeded,
	dropped, unavailable, email_sent, email_error, subject, body`

// GetRun returns a run by ID, or nil if it does not exist.
func (db *DB) GetRun(runID int64) (*Run, error) {
	row := db.conn.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// GetRecentRuns returns up to limit runs, newest first. An empty digest
// matches every digest.
func (db *DB) GetRecentRuns(digest string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(
		"SELECT "+runColumns+" FROM runs WHERE (? = '' OR digest = ?) ORDER BY id DESC LIMIT ?",
		digest, digest, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetLastRun returns the most recent run of a digest, or nil.
func (db *DB) GetLastRun(digest string) (*Run, error) {
	runs, err := db.GetRecentRuns(digest, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// GetRunItems returns the items of a run in listing order.
func (db *DB) GetRunItems(runID int64) ([]RunItem, error) {
	rows, err := db.conn.Query(
		`SELECT id, run_id, position, title, link, COALESCE(summary, ''), outcome, COALESCE(source, '')
		FROM run_items WHERE run_id = ? ORDER BY position, id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RunItem
	for rows.Next() {
		var it RunItem
		if err := rows.Scan(&it.ID, &it.RunID, &it.Position, &it.Title, &it.Link,
			&it.Summary, &it.Outcome, &it.Source); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// GetStats returns aggregate archive statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}

	queries := []struct {
		sql  string
		dest *int
	}{
		{"SELECT COUNT(*) FROM runs", &s.Runs},
		{"SELECT COUNT(*) FROM runs WHERE email_sent = 1", &s.EmailsSent},
		{"SELECT COUNT(*) FROM run_items WHERE outcome = 'kept'", &s.ItemsKept},
		{"SELECT COUNT(*) FROM run_items WHERE outcome = 'dropped'", &s.ItemsDropped},
		{"SELECT COUNT(*) FROM run_items WHERE outcome = 'unavailable'", &s.ItemsUnavailable},
		{"SELECT COUNT(DISTINCT digest) FROM runs", &s.Digests},
	}

	for _, q := range queries {
		if err := db.conn.QueryRow(q.sql).Scan(q.dest); err != nil {
			return nil, err
		}
	}

	return s, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var sent int
	if err := row.Scan(&r.ID, &r.Digest, &r.Title, &r.StartedAt, &r.FinishedAt, &r.Status,
		&r.Listed, &r.Succeeded, &r.Dropped, &r.Unavailable, &sent,
		&r.EmailError, &r.Subject, &r.Body); err != nil {
		return nil, err
	}
	r.EmailSent = sent == 1
	return &r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
