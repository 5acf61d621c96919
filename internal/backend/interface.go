package backend

import (
	"context"

	"kharcha/internal/events"
	"kharcha/internal/services"
	"kharcha/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is the wired service graph for one process.
type BackendResult struct {
	Store      storage.Store
	Aggregator *services.Aggregator
	Expenses   *services.ExpenseService
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the store and the event publisher.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateConsumer opens the event consumer used by the mirror worker.
	// It returns nil when events are disabled.
	CreateConsumer(ctx context.Context, config Config) (events.Consumer, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	DatabaseURL  string

	Events       EventsType
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
	MemoryBackend   BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, PostgresBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// EventsType selects the change-event transport.
type EventsType string

const (
	EventsNone  EventsType = "none"
	EventsAMQP  EventsType = "amqp"
	EventsKafka EventsType = "kafka"
)

func (et EventsType) IsValid() bool {
	switch et {
	case EventsNone, EventsAMQP, EventsKafka:
		return true
	default:
		return false
	}
}
