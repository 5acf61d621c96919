// Package events carries change notifications from the API to the mirror
// worker. Messages only name what changed; consumers re-read the store.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind identifies the write that produced a ChangeEvent.
type Kind string

const (
	KindBatchUpserted Kind = "batch_upserted"
	KindDayReconciled Kind = "day_reconciled"
)

// ChangeEvent describes one committed write.
type ChangeEvent struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	Dates     []string  `json:"dates"`
	Inserted  int       `json:"inserted"`
	Updated   int       `json:"updated"`
	Deleted   int       `json:"deleted"`
	Timestamp time.Time `json:"timestamp"`
}

type (
	// Publisher emits change events.
	Publisher interface {
		Publish(ctx context.Context, ev ChangeEvent) error
		Close() error
	}

	// Handler processes one event. Returning an error asks the transport to
	// redeliver it.
	Handler func(ctx context.Context, ev ChangeEvent) error

	// Consumer delivers events to a Handler until ctx is done.
	Consumer interface {
		Consume(ctx context.Context, h Handler) error
		Close() error
	}
)

// NewChangeEvent stamps an event with a fresh id and the current time.
func NewChangeEvent(kind Kind, dates []string, inserted, updated, deleted int) ChangeEvent {
	return ChangeEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Dates:     dates,
		Inserted:  inserted,
		Updated:   updated,
		Deleted:   deleted,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes
func (ev ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(ev)
}

// FromJSON decodes an event produced by ToJSON.
func FromJSON(data []byte) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ChangeEvent{}, err
	}
	return ev, nil
}
