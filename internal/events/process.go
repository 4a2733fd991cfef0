package events

import (
	"context"
	"errors"
	"log/slog"

	"fdm/internal/types"
)

// MessageStore records message-category events and folds them into their
// aggregate. Implementations return types.ErrDuplicateEvent when the event key
// was already recorded and a StorageError for any persistence failure.
type MessageStore interface {
	SaveMessageEvent(ctx context.Context, event *types.Event, update *types.MessageUpdate) (*types.SaveResult, error)
}

// Processor runs one queue message body through parse, classify, validate
// and save.
type Processor struct {
	validator *Validator
	messages  MessageStore
	logger    *slog.Logger
}

// NewProcessor creates a Processor. A nil logger falls back to slog.Default().
func NewProcessor(messages MessageStore, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		validator: NewValidator(),
		messages:  messages,
		logger:    logger,
	}
}

// Process handles a single queue message body. A redelivered event is
// reported as ResultDuplicate with a nil error. Any other failure returns
// ResultFailed and the error, leaving the message for redelivery.
func (p *Processor) Process(ctx context.Context, body string) (types.ProcessResult, error) {
	raw, err := ParseEvent(body)
	if err != nil {
		return types.ResultFailed, err
	}

	category, err := Classify(raw)
	if err != nil {
		return types.ResultFailed, err
	}

	if err := p.validator.Validate(raw, category); err != nil {
		return types.ResultFailed, err
	}

	event, err := ToEvent(raw)
	if err != nil {
		return types.ResultFailed, err
	}

	switch category {
	case types.CategoryMessage:
		err = p.saveMessage(ctx, event, raw)
	default:
		err = types.NewUnknownEventTypeError(event.Type)
	}

	if errors.Is(err, types.ErrDuplicateEvent) {
		p.loggerFor(ctx).InfoContext(ctx, "Skipping duplicate event",
			"event_id", event.Key(),
			"event_type", event.Type,
		)
		return types.ResultDuplicate, nil
	}
	if err != nil {
		return types.ResultFailed, err
	}
	return types.ResultProcessed, nil
}

func (p *Processor) saveMessage(ctx context.Context, event *types.Event, raw RawEvent) error {
	update := BuildMessageUpdate(event, raw)

	result, err := p.messages.SaveMessageEvent(ctx, event, update)
	if err != nil {
		return err
	}

	p.loggerFor(ctx).DebugContext(ctx, "Event saved",
		"event_id", result.EventKey,
		"event_type", event.Type,
		"correlation_id", result.CorrelationID,
		"aggregate_created", result.Created,
	)
	return nil
}

// loggerFor prefers the message-scoped logger the consumer put in ctx.
func (p *Processor) loggerFor(ctx context.Context) *slog.Logger {
	return types.LoggerFromContextOr(ctx, p.logger)
}
