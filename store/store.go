package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hazyhaar/domdiff/diff"
	"github.com/hazyhaar/domdiff/evaluate"
	"github.com/hazyhaar/domdiff/report"
)

// Store is the history database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the history database at path.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := openDB(path, opts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Entry is a history row without the change records.
type Entry struct {
	ID            string `json:"id"`
	SourceA       string `json:"source_a"`
	SourceB       string `json:"source_b"`
	HashA         string `json:"hash_a"`
	HashB         string `json:"hash_b"`
	Count         int    `json:"count"`
	HasEvaluation bool   `json:"has_evaluation"`
	CreatedAt     int64  `json:"created_at"`
}

// Save inserts or replaces a report.
func (s *Store) Save(ctx context.Context, rep *report.Report) error {
	diffs, err := json.Marshal(rep.Result.Diffs)
	if err != nil {
		return fmt.Errorf("store: marshal diffs: %w", err)
	}
	var eval sql.NullString
	if rep.Evaluation != nil {
		data, err := json.Marshal(rep.Evaluation)
		if err != nil {
			return fmt.Errorf("store: marshal evaluation: %w", err)
		}
		eval = sql.NullString{String: string(data), Valid: true}
	}

	_, err = execRetry(ctx, s.DB, `
		INSERT OR REPLACE INTO comparisons
			(id, source_a, source_b, hash_a, hash_b, diff_count, diffs, summary, evaluation, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		rep.ID, rep.SourceA, rep.SourceB, rep.HashA, rep.HashB,
		rep.Result.Count, string(diffs), rep.Result.Summary, eval, rep.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", rep.ID, err)
	}
	return nil
}

// Get returns the report with id, or nil, nil when there is none.
func (s *Store) Get(ctx context.Context, id string) (*report.Report, error) {
	rep := &report.Report{}
	var diffs string
	var eval sql.NullString
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, source_a, source_b, hash_a, hash_b, diffs, evaluation, created_at
		FROM comparisons WHERE id = ?`, id).Scan(
		&rep.ID, &rep.SourceA, &rep.SourceB, &rep.HashA, &rep.HashB, &diffs, &eval, &rep.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}

	var records []diff.ChangeRecord
	if err := json.Unmarshal([]byte(diffs), &records); err != nil {
		return nil, fmt.Errorf("store: decode diffs of %s: %w", id, err)
	}
	rep.Result = diff.NewResult(records)
	if eval.Valid {
		rep.Evaluation = &evaluate.Evaluation{}
		if err := json.Unmarshal([]byte(eval.String), rep.Evaluation); err != nil {
			return nil, fmt.Errorf("store: decode evaluation of %s: %w", id, err)
		}
	}
	return rep, nil
}

// List returns up to limit entries, newest first. limit <= 0 means 50.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, source_a, source_b, hash_a, hash_b, diff_count, evaluation IS NOT NULL, created_at
		FROM comparisons ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		var hasEval int
		if err := rows.Scan(&e.ID, &e.SourceA, &e.SourceB, &e.HashA, &e.HashB, &e.Count, &hasEval, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		e.HasEvaluation = hasEval != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes a report. It reports whether a row existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := execRetry(ctx, s.DB, `DELETE FROM comparisons WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("store: delete %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
