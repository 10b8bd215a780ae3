package inspect

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema versions:
// 1 - lookup index on events(session_id, store)
const currentSchemaVersion = 1

// Journal is a Tool that records inspection sessions into SQLite. Writes
// are idempotent: an event with an ID already in the journal is skipped.
type Journal struct {
	db *sql.DB
}

var _ Tool = (*Journal)(nil)

// Entry is one journal row. JSON columns are returned as stored.
type Entry struct {
	Ord     int64
	ID      string
	Session string
	Store   string
	Kind    EventKind
	Seq     int64
	Action  string
	Fields  json.RawMessage
	Prev    json.RawMessage
	Current json.RawMessage
}

// Filter narrows Entries. Empty fields match everything.
type Filter struct {
	Session string
	Store   string
}

// OpenJournal creates or opens a journal at path. Use ":memory:" for a
// throwaway journal.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to journal: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory database
	// exists per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return runMigrations(db)
}

func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("journal schema v%d is newer than supported v%d", version, currentSchemaVersion)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_events_session_store
		ON events(session_id, store, ord)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// Init records an init event.
func (j *Journal) Init(ctx context.Context, e Event) error {
	e.Kind = KindInit
	e.Prev = nil
	return j.write(ctx, e)
}

// Send records a change event.
func (j *Journal) Send(ctx context.Context, e Event) error {
	e.Kind = KindChange
	return j.write(ctx, e)
}

func (j *Journal) write(ctx context.Context, e Event) error {
	id, err := EventID(e)
	if err != nil {
		return fmt.Errorf("write %s event: %w", e.Kind, err)
	}

	fields := e.Action.Fields
	if fields == nil {
		fields = map[string]any{}
	}
	fieldsJSON, err := MarshalCanonical(fields)
	if err != nil {
		return fmt.Errorf("write %s event: fields: %w", e.Kind, err)
	}
	currentJSON, err := MarshalCanonical(e.Current)
	if err != nil {
		return fmt.Errorf("write %s event: current: %w", e.Kind, err)
	}
	var prevJSON sql.NullString
	if e.Kind == KindChange {
		b, err := MarshalCanonical(e.Prev)
		if err != nil {
			return fmt.Errorf("write %s event: prev: %w", e.Kind, err)
		}
		prevJSON = sql.NullString{String: string(b), Valid: true}
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write %s event: %w", e.Kind, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id) VALUES (?)
		ON CONFLICT(id) DO NOTHING
	`, e.Session); err != nil {
		return fmt.Errorf("write session: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO events
		(id, session_id, store, kind, seq, action, fields, prev, current)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		id,
		e.Session,
		e.Store,
		string(e.Kind),
		e.Seq,
		e.Action.Type,
		string(fieldsJSON),
		prevJSON,
		string(currentJSON),
	); err != nil {
		return fmt.Errorf("write %s event: %w", e.Kind, err)
	}

	return tx.Commit()
}

// Entries returns matching events in the order they were recorded.
// Returns an empty slice, not nil, when nothing matches.
func (j *Journal) Entries(ctx context.Context, f Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if f.Session != "" {
		where = append(where, "session_id = ?")
		args = append(args, f.Session)
	}
	if f.Store != "" {
		where = append(where, "store = ?")
		args = append(args, f.Store)
	}

	query := `SELECT ord, id, session_id, store, kind, seq, action, fields, prev, current FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY ord ASC"

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                     Entry
			kind, fields, current string
			prev                  sql.NullString
		)
		if err := rows.Scan(&e.Ord, &e.ID, &e.Session, &e.Store, &kind, &e.Seq, &e.Action, &fields, &prev, &current); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = EventKind(kind)
		e.Fields = json.RawMessage(fields)
		e.Current = json.RawMessage(current)
		if prev.Valid {
			e.Prev = json.RawMessage(prev.String)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return entries, nil
}

// Sessions returns the recorded session IDs in sorted order.
func (j *Journal) Sessions(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT id FROM sessions ORDER BY id COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return ids, nil
}
