package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/itsmostafa/gokernel/internal/expr"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a durable Store. Every kernel session writes under its own
// session id, so one database can hold the history of many sessions.
// Outputs are stored as their display text.
type SQLite struct {
	db        *sql.DB
	sessionID string
	last      int
}

// OpenSQLite opens or creates the database at path and scopes the store
// to sessionID. Indices already recorded for that session are honoured
// by the ordering check.
func OpenSQLite(ctx context.Context, path, sessionID string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply history schema: %w", err)
	}

	s := &SQLite{db: db, sessionID: sessionID}
	row := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(idx), 0) FROM history WHERE session_id = ?`, sessionID)
	if err := row.Scan(&s.last); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read last history index: %w", err)
	}
	return s, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// SessionID returns the session the store writes under.
func (s *SQLite) SessionID() string {
	return s.sessionID
}

// RecordInput inserts a new entry.
func (s *SQLite) RecordInput(ctx context.Context, index int, text string) error {
	if index <= s.last {
		return ErrIndexOrder
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (session_id, idx, input, recorded_at) VALUES (?, ?, ?, ?)`,
		s.sessionID, index, text, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record input %d: %w", index, err)
	}
	s.last = index
	return nil
}

// RecordOutput fills the output column of the entry at index.
func (s *SQLite) RecordOutput(ctx context.Context, index int, value any) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE history SET output = ? WHERE session_id = ? AND idx = ? AND output IS NULL`,
		expr.Format(value), s.sessionID, index)
	if err != nil {
		return fmt.Errorf("failed to record output %d: %w", index, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record output %d: %w", index, err)
	}
	if n == 1 {
		return nil
	}

	if _, err := s.Lookup(ctx, index); err != nil {
		return err
	}
	return ErrOutputRecorded
}

// Lookup returns the entry at index. Output holds the display Text.
func (s *SQLite) Lookup(ctx context.Context, index int) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT idx, input, output, recorded_at FROM history WHERE session_id = ? AND idx = ?`,
		s.sessionID, index)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to look up history %d: %w", index, err)
	}
	return e, nil
}

// Entries returns every entry of the session in index order.
func (s *SQLite) Entries(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, input, output, recorded_at FROM history WHERE session_id = ? ORDER BY idx`,
		s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Sessions lists the session ids present in the database, oldest first.
func (s *SQLite) Sessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM history GROUP BY session_id ORDER BY MIN(recorded_at)`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e      Entry
		output sql.NullString
		nanos  int64
	)
	if err := sc.Scan(&e.Index, &e.Input, &output, &nanos); err != nil {
		return Entry{}, err
	}
	if output.Valid {
		e.Output = Text(output.String)
		e.HasOutput = true
	}
	e.RecordedAt = time.Unix(0, nanos)
	return e, nil
}
