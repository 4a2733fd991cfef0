package db

import (
	"context"

	"fdm/internal/types"
)

// Schema creates the event store and message projection tables. Every
// statement is idempotent so it can run on each startup.
const Schema = `
CREATE TABLE IF NOT EXISTS events (
    id              TEXT PRIMARY KEY,
    event_id        TEXT NOT NULL,
    source          TEXT NOT NULL,
    specversion     TEXT NOT NULL,
    type            TEXT NOT NULL,
    time            TIMESTAMPTZ NOT NULL,
    subject         TEXT,
    datacontenttype TEXT,
    data            JSONB,
    received_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS messages (
    correlation_id TEXT PRIMARY KEY,
    crn            BIGINT,
    sbi            BIGINT,
    recipient      TEXT,
    subject        TEXT,
    body           TEXT,
    status         TEXT NOT NULL,
    created        TIMESTAMPTZ NOT NULL,
    last_updated   TIMESTAMPTZ NOT NULL,
    events         JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS messages_crn_idx ON messages (crn);
CREATE INDEX IF NOT EXISTS messages_sbi_idx ON messages (sbi);
CREATE INDEX IF NOT EXISTS messages_created_idx ON messages (created);
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return types.NewStorageError("failed to apply schema", err)
	}
	return nil
}
