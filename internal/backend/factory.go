package backend

import (
	"context"
	"errors"
	"fmt"

	"kharcha/internal/events"
	"kharcha/internal/events/amqp"
	"kharcha/internal/events/kafka"
	applog "kharcha/internal/log"
	"kharcha/internal/services"
	"kharcha/internal/storage"
	"kharcha/internal/storage/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := f.createStore(config)
	if err != nil {
		return nil, err
	}

	publisher, err := f.createPublisher(config)
	if err != nil {
		store.Close()
		return nil, err
	}

	expenses := services.NewExpenseService(services.NewReconciler(store), publisher)

	f.logger.InfoContext(ctx, "Initialized backend",
		"data_backend", config.Type,
		"events_backend", config.Events)

	return &BackendResult{
		Store:      store,
		Aggregator: services.NewAggregator(store),
		Expenses:   expenses,
		Cleanup: func() error {
			return errors.Join(expenses.Close(), store.Close())
		},
	}, nil
}

// CreateConsumer implements Factory.CreateConsumer
func (f *DefaultFactory) CreateConsumer(ctx context.Context, config Config) (events.Consumer, error) {
	switch config.Events {
	case EventsAMQP:
		c, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AMQP consumer: %w", err)
		}
		f.logger.InfoContext(ctx, "Initialized AMQP consumer", "queue", config.AMQPQueue)
		return c, nil
	case EventsKafka:
		f.logger.InfoContext(ctx, "Initialized Kafka consumer", "topic", config.KafkaTopic, "group_id", config.KafkaGroupID)
		return kafka.NewConsumer(config.KafkaBrokers, config.KafkaTopic, config.KafkaGroupID), nil
	default:
		return nil, nil
	}
}

func (f *DefaultFactory) createStore(config Config) (storage.Store, error) {
	switch config.Type {
	case SQLiteBackend:
		s, err := storage.NewSQLiteStore(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
		}
		return s, nil
	case PostgresBackend:
		s, err := storage.NewPostgresStore(config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL store: %w", err)
		}
		return s, nil
	case MemoryBackend:
		f.logger.Warn("Using in-memory store, data is lost on restart")
		s, err := memory.New()
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// createPublisher never fails the API start-up on a broker outage; the
// AMQP client reconnects lazily and the service only logs publish errors.
func (f *DefaultFactory) createPublisher(config Config) (events.Publisher, error) {
	switch config.Events {
	case EventsAMQP:
		c, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.Warn("AMQP broker unavailable, publishing will retry lazily", "error", err)
			return amqp.NewLazyClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue), nil
		}
		f.logger.Info("Initialized AMQP publisher",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		return c, nil
	case EventsKafka:
		f.logger.Info("Initialized Kafka publisher", "topic", config.KafkaTopic)
		return kafka.NewPublisher(config.KafkaBrokers, config.KafkaTopic), nil
	case EventsNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported events backend: %s", config.Events)
	}
}
