package eventlogger

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Audit event types written for domain mutations.
const (
	TypeExpenseApplied           = "expense.applied"
	TypeExpenseReplaced          = "expense.replaced"
	TypeExpenseReversed          = "expense.reversed"
	TypeBudgetIntegrityViolation = "budget.integrity_violation"
	TypeDestinationUpdated       = "destination.updated"
)

type Event struct {
	ID        uuid.UUID         `json:"id,omitempty"`
	Type      string            `json:"event_type,omitempty"`
	Data      any               `json:"event_data,omitempty"`
	Metadata  map[string]string `json:"event_metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

type EventOption func(*Event)

func WithType(eventType string) EventOption {
	return func(e *Event) {
		e.Type = eventType
	}
}

func WithData(data any) EventOption {
	return func(e *Event) {
		e.Data = data
	}
}

// WithPrincipal records who performed the mutation.
func WithPrincipal(id uuid.UUID) EventOption {
	return func(e *Event) {
		e.Metadata["principal_id"] = id.String()
	}
}

func WithTrip(id uuid.UUID) EventOption {
	return func(e *Event) {
		e.Metadata["trip_id"] = id.String()
	}
}

func NewEvent(opts ...EventOption) Event {
	e := Event{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Metadata:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

type EventLogger interface {
	Save(ctx context.Context, e Event) error
	GetByType(ctx context.Context, eventType string) ([]Event, error)
}

// Emitter accepts events without blocking the caller.
type Emitter interface {
	Log(event Event)
}
