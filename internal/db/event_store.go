package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"fdm/internal/types"
)

// EventStore records events and folds message events into their aggregate.
// Both writes share one transaction: a duplicate event key or a failed
// aggregate write leaves neither table changed.
type EventStore struct {
	pool TxBeginner
}

// NewEventStore creates an EventStore backed by the given pool.
func NewEventStore(pool TxBeginner) *EventStore {
	return &EventStore{pool: pool}
}

const insertEventSQL = `
INSERT INTO events (id, event_id, source, specversion, type, time, subject, datacontenttype, data)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO NOTHING`

// upsertMessageSQL creates the aggregate or appends the event reference to
// it. Status and the sticky fields are overwritten only when the event is not
// older than last_updated, and only by non-null values. Recipient is filled
// while empty. The (xmax = 0) test is true for freshly inserted rows.
const upsertMessageSQL = `
INSERT INTO messages AS m
    (correlation_id, crn, sbi, recipient, subject, body, status, created, last_updated, events)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8,
        jsonb_build_array(jsonb_build_object('_id', $9::text, 'type', $10::text)))
ON CONFLICT (correlation_id) DO UPDATE SET
    events       = m.events || EXCLUDED.events,
    recipient    = COALESCE(m.recipient, EXCLUDED.recipient),
    status       = CASE WHEN EXCLUDED.last_updated >= m.last_updated
                        THEN EXCLUDED.status ELSE m.status END,
    crn          = CASE WHEN EXCLUDED.last_updated >= m.last_updated AND EXCLUDED.crn IS NOT NULL
                        THEN EXCLUDED.crn ELSE m.crn END,
    sbi          = CASE WHEN EXCLUDED.last_updated >= m.last_updated AND EXCLUDED.sbi IS NOT NULL
                        THEN EXCLUDED.sbi ELSE m.sbi END,
    subject      = CASE WHEN EXCLUDED.last_updated >= m.last_updated AND EXCLUDED.subject IS NOT NULL
                        THEN EXCLUDED.subject ELSE m.subject END,
    body         = CASE WHEN EXCLUDED.last_updated >= m.last_updated AND EXCLUDED.body IS NOT NULL
                        THEN EXCLUDED.body ELSE m.body END,
    last_updated = GREATEST(m.last_updated, EXCLUDED.last_updated)
RETURNING (xmax = 0)`

// SaveMessageEvent records event under its source:id key and applies update
// to the message aggregate. It returns types.ErrDuplicateEvent when the key
// already exists.
func (s *EventStore) SaveMessageEvent(ctx context.Context, event *types.Event, update *types.MessageUpdate) (*types.SaveResult, error) {
	result := &types.SaveResult{
		EventKey:      event.Key(),
		CorrelationID: update.CorrelationID,
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		inserted, err := insertEvent(ctx, tx, event)
		if err != nil {
			return err
		}
		if !inserted {
			return types.NewAppError(types.ErrCodeConflictDuplicateEvent,
				fmt.Sprintf("event %s has already been processed", event.Key()), nil)
		}

		created, err := upsertMessage(ctx, tx, update)
		if err != nil {
			return err
		}
		result.Created = created
		return nil
	})
	if err != nil {
		if types.CodeOf(err) != "" {
			return nil, err
		}
		return nil, types.NewStorageError("failed to save event", err)
	}
	return result, nil
}

func insertEvent(ctx context.Context, db DBTX, event *types.Event) (bool, error) {
	var data []byte
	if len(event.Data) > 0 {
		data = event.Data
	}
	tag, err := db.Exec(ctx, insertEventSQL,
		event.Key(),
		event.ID,
		event.Source,
		event.SpecVersion,
		event.Type,
		event.Time,
		event.Subject,
		event.DataContentType,
		data,
	)
	if err != nil {
		return false, types.NewStorageError("failed to insert event", err)
	}
	return tag.RowsAffected() == 1, nil
}

func upsertMessage(ctx context.Context, db DBTX, u *types.MessageUpdate) (bool, error) {
	var created bool
	err := db.QueryRow(ctx, upsertMessageSQL,
		u.CorrelationID,
		u.CRN,
		u.SBI,
		u.Recipient,
		u.Subject,
		u.Body,
		u.Status,
		u.Time,
		u.Event.ID,
		u.Event.Type,
	).Scan(&created)
	if err != nil {
		return false, types.NewStorageError("failed to update message aggregate", err)
	}
	return created, nil
}
