// Package sqlite provides the event store and message projection reader on an
// embedded SQLite database. It backs local runs and the aggregation tests and
// follows the same rules as the PostgreSQL store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"fdm/internal/types"
)

// timeLayout is fixed width in UTC so stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id              TEXT PRIMARY KEY,
    event_id        TEXT NOT NULL,
    source          TEXT NOT NULL,
    specversion     TEXT NOT NULL,
    type            TEXT NOT NULL,
    time            TEXT NOT NULL,
    subject         TEXT,
    datacontenttype TEXT,
    data            TEXT,
    received_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
);

CREATE TABLE IF NOT EXISTS messages (
    correlation_id TEXT PRIMARY KEY,
    crn            INTEGER,
    sbi            INTEGER,
    recipient      TEXT,
    subject        TEXT,
    body           TEXT,
    status         TEXT NOT NULL,
    created        TEXT NOT NULL,
    last_updated   TEXT NOT NULL,
    events         TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS messages_crn_idx ON messages (crn);
CREATE INDEX IF NOT EXISTS messages_sbi_idx ON messages (sbi);
CREATE INDEX IF NOT EXISTS messages_created_idx ON messages (created);
`

// Store is the SQLite event store and projection reader.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		dsn = path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection: an in-memory database exists per connection and SQLite
	// allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, types.NewStorageError("failed to apply schema", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const insertEventSQL = `
INSERT INTO events (id, event_id, source, specversion, type, time, subject, datacontenttype, data)
VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?9)
ON CONFLICT (id) DO NOTHING`

const upsertMessageSQL = `
INSERT INTO messages
    (correlation_id, crn, sbi, recipient, subject, body, status, created, last_updated, events)
VALUES (?1, ?2, ?3, ?4, ?5, ?6, ?7, ?8, ?8, json_array(json(?9)))
ON CONFLICT (correlation_id) DO UPDATE SET
    events       = json_insert(messages.events, '$[#]', json(?9)),
    recipient    = COALESCE(messages.recipient, excluded.recipient),
    status       = CASE WHEN excluded.last_updated >= messages.last_updated
                        THEN excluded.status ELSE messages.status END,
    crn          = CASE WHEN excluded.last_updated >= messages.last_updated AND excluded.crn IS NOT NULL
                        THEN excluded.crn ELSE messages.crn END,
    sbi          = CASE WHEN excluded.last_updated >= messages.last_updated AND excluded.sbi IS NOT NULL
                        THEN excluded.sbi ELSE messages.sbi END,
    subject      = CASE WHEN excluded.last_updated >= messages.last_updated AND excluded.subject IS NOT NULL
                        THEN excluded.subject ELSE messages.subject END,
    body         = CASE WHEN excluded.last_updated >= messages.last_updated AND excluded.body IS NOT NULL
                        THEN excluded.body ELSE messages.body END,
    last_updated = MAX(messages.last_updated, excluded.last_updated)`

// SaveMessageEvent records event and applies update to its aggregate in one
// transaction. It returns types.ErrDuplicateEvent when the event key exists.
func (s *Store) SaveMessageEvent(ctx context.Context, event *types.Event, update *types.MessageUpdate) (*types.SaveResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, types.NewStorageError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, insertEventSQL,
		event.Key(),
		event.ID,
		event.Source,
		event.SpecVersion,
		event.Type,
		formatTime(event.Time),
		nullString(event.Subject),
		nullString(event.DataContentType),
		nullData(event.Data),
	)
	if err != nil {
		return nil, types.NewStorageError("failed to insert event", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, types.NewStorageError("failed to insert event", err)
	} else if n == 0 {
		return nil, types.NewAppError(types.ErrCodeConflictDuplicateEvent,
			fmt.Sprintf("event %s has already been processed", event.Key()), nil)
	}

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM messages WHERE correlation_id = ?1)`,
		update.CorrelationID,
	).Scan(&exists)
	if err != nil {
		return nil, types.NewStorageError("failed to update message aggregate", err)
	}

	ref, err := eventRefJSON(update.Event)
	if err != nil {
		return nil, types.NewStorageError("failed to encode event reference", err)
	}
	_, err = tx.ExecContext(ctx, upsertMessageSQL,
		update.CorrelationID,
		nullInt(update.CRN),
		nullInt(update.SBI),
		nullString(update.Recipient),
		nullString(update.Subject),
		nullString(update.Body),
		update.Status,
		formatTime(update.Time),
		ref,
	)
	if err != nil {
		return nil, types.NewStorageError("failed to update message aggregate", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, types.NewStorageError("failed to commit event", err)
	}
	return &types.SaveResult{
		EventKey:      event.Key(),
		CorrelationID: update.CorrelationID,
		Created:       !exists,
	}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullInt(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}

func nullData(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
