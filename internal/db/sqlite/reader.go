package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"fdm/internal/db"
	"fdm/internal/types"
)

const messageColumns = `correlation_id, crn, sbi, recipient, subject, body, status, created, last_updated, events`

// List returns the aggregates matching the crn/sbi filters ordered by
// creation time.
func (s *Store) List(ctx context.Context, filter types.MessageFilter) ([]*types.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+`
		 FROM messages
		 WHERE (?1 IS NULL OR crn = ?1)
		   AND (?2 IS NULL OR sbi = ?2)
		 ORDER BY created, correlation_id`,
		nullInt(filter.CRN),
		nullInt(filter.SBI),
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
func (s *Store) Get(ctx context.Context, correlationID string, filter types.MessageFilter) (*types.Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE correlation_id = ?1`,
		correlationID,
	)
	msg, err := scanMessage(row, filter)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.NewMessageNotFoundError(correlationID)
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(row scanner, filter types.MessageFilter) (*types.Message, error) {
	var (
		msg                  types.Message
		crn, sbi             sql.NullInt64
		recipient, subj, bod sql.NullString
		created, lastUpdated string
		events               string
	)
	err := row.Scan(
		&msg.CorrelationID,
		&crn,
		&sbi,
		&recipient,
		&subj,
		&bod,
		&msg.Status,
		&created,
		&lastUpdated,
		&events,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, types.NewStorageError("failed to read message", err)
	}

	if msg.Created, err = parseTime(created); err != nil {
		return nil, types.NewStorageError("failed to read message", err)
	}
	if msg.LastUpdated, err = parseTime(lastUpdated); err != nil {
		return nil, types.NewStorageError("failed to read message", err)
	}
	msg.CRN = int64Ptr(crn)
	msg.SBI = int64Ptr(sbi)
	msg.Recipient = stringPtr(recipient)
	msg.Subject = stringPtr(subj)
	msg.Body = stringPtr(bod)

	if err := db.ShapeMessage(&msg, []byte(events), filter); err != nil {
		return nil, err
	}
	return &msg, nil
}

func eventRefJSON(ref types.EventRef) (string, error) {
	data, err := json.Marshal(ref)
	return string(data), err
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	return &n.Int64
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
