// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	_ "modernc.org/sqlite" // pure Go SQLite driver
)

// DefaultMaxEntries bounds the table when no limit is configured.
const DefaultMaxEntries = 500

// ErrClosed is returned after Close.
var ErrClosed = errors.New("history store closed")

// Entry is one stored prompt.
type Entry struct {
	ID        int64
	Text      string
	CreatedAt time.Time
}

// Store is a SQLite-backed prompt history. Safe for concurrent use.
type Store struct {
	db         *sql.DB
	maxEntries int
	log        logrus.FieldLogger
	now        func() time.Time

	mu     sync.Mutex
	closed bool
}

// Open opens or creates the database at path. maxEntries <= 0 uses
// DefaultMaxEntries.
func Open(path string, maxEntries int, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "create history directory")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open history database")
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, errors.Wrapf(err, "apply %q", p)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create history schema")
	}
	if _, err := db.Exec(
		`INSERT INTO metadata(key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		strconv.Itoa(SchemaVersion),
	); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "write schema version")
	}

	log.WithField("path", path).Debug("prompt history opened")
	return &Store{db: db, maxEntries: maxEntries, log: log, now: time.Now}, nil
}

func (s *Store) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Add stores prompt. Blank prompts and an exact repeat of the most recent
// prompt are skipped. The oldest rows beyond the limit are pruned.
func (s *Store) Add(ctx context.Context, prompt string) error {
	if err := s.check(); err != nil {
		return err
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin history insert")
	}
	defer tx.Rollback() //nolint:errcheck

	var last string
	err = tx.QueryRowContext(ctx, `SELECT text FROM prompts ORDER BY id DESC LIMIT 1`).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(err, "read last prompt")
	}
	if last == prompt {
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO prompts(text, created_at) VALUES (?, ?)`,
		prompt, s.now().UnixNano(),
	); err != nil {
		return errors.Wrap(err, "insert prompt")
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM prompts WHERE id NOT IN (SELECT id FROM prompts ORDER BY id DESC LIMIT ?)`,
		s.maxEntries,
	); err != nil {
		return errors.Wrap(err, "prune history")
	}
	return errors.Wrap(tx.Commit(), "commit history insert")
}

// Recent returns up to limit prompts, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.maxEntries
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, created_at FROM prompts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query recent prompts")
	}
	return scanEntries(rows)
}

// Search returns prompts matching query, best match first.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Entry, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	match := ftsQuery(query)
	if match == "" {
		return []Entry{}, nil
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.text, p.created_at
		FROM prompts_fts f
		JOIN prompts p ON p.id = f.rowid
		WHERE prompts_fts MATCH ?
		ORDER BY bm25(prompts_fts), p.id DESC
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, errors.Wrap(err, "search prompts")
	}
	return scanEntries(rows)
}

// ftsQuery turns free text into a prefix query of quoted terms, so user
// input cannot inject FTS syntax.
func ftsQuery(q string) string {
	fields := strings.Fields(q)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, `"`, `""`)
		terms = append(terms, `"`+f+`"*`)
	}
	return strings.Join(terms, " ")
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var e Entry
		var ns int64
		if err := rows.Scan(&e.ID, &e.Text, &ns); err != nil {
			return nil, errors.Wrap(err, "scan prompt")
		}
		e.CreatedAt = time.Unix(0, ns)
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "iterate prompts")
}

// Count returns the number of stored prompts.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM prompts`).Scan(&n)
	return n, errors.Wrap(err, "count prompts")
}

// Clear deletes every prompt.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM prompts`)
	return errors.Wrap(err, "clear history")
}

// Close closes the database. Further calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.db.Close()
}
