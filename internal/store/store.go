// Package store persists test results, session links and setup script
// statistics in SQLite.
//
// Each TestResult is stored as one JSON document under a hard per-record
// ceiling. Sibling links between the results of a session live in their own
// table so documents never need rewriting after they are written.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bobdodd/auto-a11y/internal/models"
	"github.com/bobdodd/auto-a11y/internal/results"
)

// DefaultMaxRecordBytes is the hard ceiling for one stored result document.
const DefaultMaxRecordBytes = 16 << 20

var (
	// ErrNotFound is returned when a result or script has no stored record.
	ErrNotFound = errors.New("not found")
	// ErrRecordTooLarge is returned when a document exceeds the per-record ceiling.
	ErrRecordTooLarge = errors.New("record exceeds size ceiling")
)

// Store manages the SQLite database of results and script stats
type Store struct {
	db             *sql.DB
	dbPath         string
	maxRecordBytes int
}

// NewStore creates a new Store instance and initializes the database.
// A maxRecordBytes of zero uses DefaultMaxRecordBytes.
func NewStore(dbPath string, maxRecordBytes int) (*Store, error) {
	if maxRecordBytes <= 0 {
		maxRecordBytes = DefaultMaxRecordBytes
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA busy_timeout=5000", // Must be first
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if err := execWithRetry(db, pragma, 5, 10*time.Millisecond); err != nil {
			db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	s := &Store{db: db, dbPath: dbPath, maxRecordBytes: maxRecordBytes}
	if err := s.ApplyMigrations(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

// execWithRetry executes a SQL statement with exponential backoff retry on lock errors.
func execWithRetry(db *sql.DB, stmt string, maxRetries int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		_, err := db.Exec(stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "database is locked") {
			return err
		}
		lastErr = err
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return lastErr
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// MaxRecordBytes returns the per-record ceiling.
func (s *Store) MaxRecordBytes() int { return s.maxRecordBytes }

// SaveResult writes r as a new document. Documents larger than the ceiling
// are rejected with ErrRecordTooLarge; callers run the size guard first.
func (s *Store) SaveResult(ctx context.Context, r *models.TestResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result %s: %w", r.ID, err)
	}
	if len(data) > s.maxRecordBytes {
		return fmt.Errorf("result %s is %d bytes: %w", r.ID, len(data), ErrRecordTooLarge)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO test_results
		(id, page_id, session_id, state_sequence, tested_at, size_bytes, size_limited, document)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.PageID, r.SessionID, r.StateSequence, r.TestedAt.UnixNano(), len(data), r.SizeLimited, string(data))
	if err != nil {
		return fmt.Errorf("insert result %s: %w", r.ID, err)
	}
	return nil
}

// LinkResults records every result in ids as related to every other one.
// Links are written in both directions in one transaction.
func (s *Store) LinkResults(ctx context.Context, ids []string) error {
	if len(ids) < 2 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin link transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO result_links (result_id, related_id) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare link: %w", err)
	}
	defer stmt.Close()

	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			if _, err := stmt.ExecContext(ctx, a, b); err != nil {
				return fmt.Errorf("link %s to %s: %w", a, b, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit links: %w", err)
	}
	return nil
}

// GetResult loads one result with its related ids filled in from the link table.
func (s *Store) GetResult(ctx context.Context, id string) (*models.TestResult, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM test_results WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query result %s: %w", id, err)
	}
	r, err := decodeResult(doc)
	if err != nil {
		return nil, err
	}
	if r.RelatedResultIDs, err = s.relatedIDs(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Store) relatedIDs(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT l.related_id FROM result_links l
		JOIN test_results r ON r.id = l.related_id
		WHERE l.result_id = ?
		ORDER BY r.state_sequence`, id)
	if err != nil {
		return nil, fmt.Errorf("query links for %s: %w", id, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var rel string
		if err := rows.Scan(&rel); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		ids = append(ids, rel)
	}
	return ids, rows.Err()
}

func decodeResult(doc string) (*models.TestResult, error) {
	var r models.TestResult
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &r, nil
}

// GetStatesForResult returns every state of the session the result belongs
// to, ordered by state sequence.
func (s *Store) GetStatesForResult(ctx context.Context, id string) ([]*models.TestResult, error) {
	var sessionID string
	err := s.db.QueryRowContext(ctx, `SELECT session_id FROM test_results WHERE id = ?`, id).Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("result %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query session of %s: %w", id, err)
	}
	return s.sessionStates(ctx, sessionID)
}

func (s *Store) sessionStates(ctx context.Context, sessionID string) ([]*models.TestResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM test_results WHERE session_id = ? ORDER BY state_sequence`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session %s: %w", sessionID, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate session %s: %w", sessionID, err)
	}

	out := make([]*models.TestResult, 0, len(ids))
	for _, id := range ids {
		r, err := s.GetResult(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// GetSessionsForPage lists the page's sessions, most recent first.
func (s *Store) GetSessionsForPage(ctx context.Context, pageID string) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT session_id, id, tested_at FROM test_results
		WHERE page_id = ?
		ORDER BY session_id, state_sequence`, pageID)
	if err != nil {
		return nil, fmt.Errorf("query sessions for %s: %w", pageID, err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var sessionID, id string
		var testedAt int64
		if err := rows.Scan(&sessionID, &id, &testedAt); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		at := time.Unix(0, testedAt).UTC()
		if n := len(sessions); n == 0 || sessions[n-1].SessionID != sessionID {
			sessions = append(sessions, models.Session{SessionID: sessionID, PageID: pageID, StartedAt: at})
		}
		cur := &sessions[len(sessions)-1]
		cur.ResultIDs = append(cur.ResultIDs, id)
		cur.States++
		if at.Before(cur.StartedAt) {
			cur.StartedAt = at
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].StartedAt.After(sessions[j].StartedAt) })
	return sessions, nil
}

// GetLatestStatesForPage returns the states of the page's most recent
// session keyed by state sequence. A page that was never tested yields an
// empty map.
func (s *Store) GetLatestStatesForPage(ctx context.Context, pageID string) (map[int]*models.TestResult, error) {
	sessions, err := s.GetSessionsForPage(ctx, pageID)
	if err != nil {
		return nil, err
	}
	out := make(map[int]*models.TestResult)
	if len(sessions) == 0 {
		return out, nil
	}
	states, err := s.sessionStates(ctx, sessions[0].SessionID)
	if err != nil {
		return nil, err
	}
	for _, r := range states {
		out[r.StateSequence] = r
	}
	return out, nil
}

// Compare loads two results and diffs their violations.
func (s *Store) Compare(ctx context.Context, beforeID, afterID string) (models.Diff, error) {
	before, err := s.GetResult(ctx, beforeID)
	if err != nil {
		return models.Diff{}, err
	}
	after, err := s.GetResult(ctx, afterID)
	if err != nil {
		return models.Diff{}, err
	}
	return results.Compare(before, after), nil
}
