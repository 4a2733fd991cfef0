package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"fdm/internal/types"
)

func sampleRow(id string, created time.Time) messageRowData {
	return messageRowData{
		correlationID: id,
		crn:           ptr(int64(1234567890)),
		sbi:           ptr(int64(123456789)),
		recipient:     ptr("farmer@example.com"),
		subject:       ptr("Your review is coming up"),
		body:          ptr("Please log in."),
		status:        "delivered",
		created:       created,
		lastUpdated:   created.Add(2 * time.Minute),
		events: eventsJSON(
			map[string]string{"_id": "fcp-sfd-comms:1", "type": "uk.gov.fcp.sfd.notification.received"},
			map[string]string{"_id": "fcp-sfd-comms:2", "type": "uk.gov.fcp.sfd.notification.delivered"},
		),
	}
}

func TestMessageRepository_List(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.FixedZone("BST", 3600))

	t.Run("passes filters and hides content by default", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewMessageRepository(db)
		rows := &messageMockRows{data: []messageRowData{sampleRow("a", created), sampleRow("b", created)}}

		db.On("Query", mock.Anything, mock.Anything, mock.MatchedBy(func(args []any) bool {
			crn, ok := args[0].(*int64)
			return ok && *crn == 1234567890 && args[1].(*int64) == nil
		})).Return(rows, nil).Once()

		msgs, err := repo.List(context.Background(), types.MessageFilter{CRN: ptr(int64(1234567890))})

		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "a", msgs[0].CorrelationID)
		assert.Equal(t, "delivered", msgs[0].Status)
		assert.Nil(t, msgs[0].Recipient)
		assert.Nil(t, msgs[0].Subject)
		assert.Nil(t, msgs[0].Body)
		assert.Nil(t, msgs[0].Events)
		assert.Equal(t, time.UTC, msgs[0].Created.Location())
		assert.True(t, rows.closed)
		db.AssertExpectations(t)
	})

	t.Run("includes content and events when asked", func(t *testing.T) {
		db := new(mockDBTX)
		repo := NewMessageRepository(db)
		db.On("Query", mock.Anything, mock.Anything, mock.Anything).
			Return(&messageMockRows{data: []messageRowData{sampleRow("a", created)}}, nil).Once()

		msgs, err := repo.List(context.Background(), types.MessageFilter{IncludeContent: true, IncludeEvents: true})

		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, "farmer@example.com", *msgs[0].Recipient)
		assert.Equal(t, "Please log in.", *msgs[0].Body)
		assert.Equal(t, []types.EventRef{
			{ID: "fcp-sfd-comms:1", Type: "uk.gov.fcp.sfd.notification.received"},
			{ID: "fcp-sfd-comms:2", Type: "uk.gov.fcp.sfd.notification.delivered"},
		}, msgs[0].Events)
	})

	t.Run("empty result is a non-nil slice", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(&messageMockRows{}, nil).Once()

		msgs, err := NewMessageRepository(db).List(context.Background(), types.MessageFilter{})

		require.NoError(t, err)
		assert.NotNil(t, msgs)
		assert.Empty(t, msgs)
	})

	t.Run("query error", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Query", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()

		_, err := NewMessageRepository(db).List(context.Background(), types.MessageFilter{})

		assert.Equal(t, types.ErrCodeInternalStorage, types.CodeOf(err))
	})

	t.Run("rows error", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Query", mock.Anything, mock.Anything, mock.Anything).
			Return(&messageMockRows{errVal: errors.New("conn lost")}, nil).Once()

		_, err := NewMessageRepository(db).List(context.Background(), types.MessageFilter{})

		assert.Equal(t, types.ErrCodeInternalStorage, types.CodeOf(err))
	})
}

func TestMessageRepository_Get(t *testing.T) {
	created := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("QueryRow", mock.Anything, mock.Anything, []any{"abc"}).
			Return(&mockRow{scanFn: sampleRow("abc", created).scanInto}).Once()

		msg, err := NewMessageRepository(db).Get(context.Background(), "abc", types.MessageFilter{IncludeEvents: true})

		require.NoError(t, err)
		assert.Equal(t, "abc", msg.CorrelationID)
		assert.Len(t, msg.Events, 2)
		assert.Nil(t, msg.Recipient)
	})

	t.Run("not found", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
			Return(&mockRow{scanErr: pgx.ErrNoRows}).Once()

		_, err := NewMessageRepository(db).Get(context.Background(), "missing", types.MessageFilter{})

		require.Error(t, err)
		assert.Equal(t, types.ErrCodeNotFoundMessage, types.CodeOf(err))
		assert.Contains(t, err.Error(), "Message not found with correlationId: missing")
	})

	t.Run("scan error", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("QueryRow", mock.Anything, mock.Anything, mock.Anything).
			Return(&mockRow{scanErr: errors.New("bad column")}).Once()

		_, err := NewMessageRepository(db).Get(context.Background(), "abc", types.MessageFilter{})

		assert.Equal(t, types.ErrCodeInternalStorage, types.CodeOf(err))
	})
}

func TestShapeMessage_CorruptEvents(t *testing.T) {
	msg := &types.Message{CorrelationID: "abc"}

	err := ShapeMessage(msg, []byte(`{not json`), types.MessageFilter{IncludeEvents: true})

	assert.Equal(t, types.ErrCodeInternalStorage, types.CodeOf(err))
}

func TestShapeMessage_EmptyEventsWhenRequested(t *testing.T) {
	msg := &types.Message{CorrelationID: "abc"}

	require.NoError(t, ShapeMessage(msg, nil, types.MessageFilter{IncludeEvents: true}))

	assert.NotNil(t, msg.Events)
	assert.Empty(t, msg.Events)
}
