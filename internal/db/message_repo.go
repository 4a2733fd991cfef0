package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"fdm/internal/types"
)

// MessageRepository reads message aggregates for the API.
type MessageRepository struct {
	db DBTX
}

// NewMessageRepository creates a new MessageRepository backed by the given
// database connection (pool or transaction).
func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `correlation_id, crn, sbi, recipient, subject, body, status, created, last_updated, events`

// List returns the aggregates matching the crn/sbi filters ordered by
// creation time. Content and events are populated only when requested.
func (r *MessageRepository) List(ctx context.Context, filter types.MessageFilter) ([]*types.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+messageColumns+`
		 FROM messages
		 WHERE ($1::bigint IS NULL OR crn = $1)
		   AND ($2::bigint IS NULL OR sbi = $2)
		 ORDER BY created, correlation_id`,
		filter.CRN,
		filter.SBI,
	)
	if err != nil {
		return nil, types.NewStorageError("failed to list messages", err)
	}
	defer rows.Close()

	messages := []*types.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows, filter)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("failed to list messages", err)
	}
	return messages, nil
}

// Get returns the aggregate for correlationID or a not-found error.
func (r *MessageRepository) Get(ctx context.Context, correlationID string, filter types.MessageFilter) (*types.Message, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+messageColumns+`
		 FROM messages
		 WHERE correlation_id = $1`,
		correlationID,
	)
	msg, err := scanMessage(row, filter)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NewMessageNotFoundError(correlationID)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// NewMessageNotFoundError reports a correlation id with no aggregate.
func NewMessageNotFoundError(correlationID string) *types.AppError {
	return types.NewAppError(types.ErrCodeNotFoundMessage,
		"Message not found with correlationId: "+correlationID, nil)
}

func scanMessage(row pgx.Row, filter types.MessageFilter) (*types.Message, error) {
	var (
		msg         types.Message
		created     time.Time
		lastUpdated time.Time
		events      []byte
	)
	err := row.Scan(
		&msg.CorrelationID,
		&msg.CRN,
		&msg.SBI,
		&msg.Recipient,
		&msg.Subject,
		&msg.Body,
		&msg.Status,
		&created,
		&lastUpdated,
		&events,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, types.NewStorageError("failed to read message", err)
	}
	msg.Created = created.UTC()
	msg.LastUpdated = lastUpdated.UTC()

	if err := ShapeMessage(&msg, events, filter); err != nil {
		return nil, err
	}
	return &msg, nil
}

// ShapeMessage applies the include flags of filter to msg. eventsJSON is the
// stored events array and is decoded only when events were requested.
func ShapeMessage(msg *types.Message, eventsJSON []byte, filter types.MessageFilter) error {
	if !filter.IncludeContent {
		msg.Recipient = nil
		msg.Subject = nil
		msg.Body = nil
	}
	if !filter.IncludeEvents {
		msg.Events = nil
		return nil
	}
	msg.Events = []types.EventRef{}
	if len(eventsJSON) == 0 {
		return nil
	}
	if err := json.Unmarshal(eventsJSON, &msg.Events); err != nil {
		return types.NewStorageError("failed to decode message events", err)
	}
	return nil
}
