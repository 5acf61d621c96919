package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"kharcha/internal/core"
	"kharcha/internal/events"
)

// ExpenseService runs writes through the Reconciler and announces committed
// changes on the event bus.
type ExpenseService struct {
	reconciler *Reconciler
	publisher  events.Publisher
}

// NewExpenseService accepts a nil publisher, in which case no events are sent.
func NewExpenseService(reconciler *Reconciler, publisher events.Publisher) *ExpenseService {
	return &ExpenseService{
		reconciler: reconciler,
		publisher:  publisher,
	}
}

// SaveExpenses upserts full records and publishes a batch_upserted event.
func (s *ExpenseService) SaveExpenses(ctx context.Context, records []core.Expense) (core.UpsertResult, error) {
	res, err := s.reconciler.BatchUpsert(ctx, records)
	if err != nil {
		return core.UpsertResult{}, fmt.Errorf("save expenses: %w", err)
	}

	if res.Inserted+res.Updated > 0 {
		ev := events.NewChangeEvent(events.KindBatchUpserted, distinctDates(records), res.Inserted, res.Updated, 0)
		s.publish(ctx, ev)
	}
	return res, nil
}

// ReconcileDay replaces one day's records and publishes a day_reconciled event.
func (s *ExpenseService) ReconcileDay(ctx context.Context, year, month, day string, records []core.Expense) (core.ReconcileResult, error) {
	res, err := s.reconciler.Reconcile(ctx, year, month, day, records)
	if err != nil {
		return core.ReconcileResult{}, fmt.Errorf("reconcile day: %w", err)
	}

	if res.Inserted+res.Updated+res.Deleted > 0 {
		// Reconcile already validated the key.
		key, _ := core.NewDateKey(year, month, day)
		ev := events.NewChangeEvent(events.KindDayReconciled, []string{key.String()}, res.Inserted, res.Updated, res.Deleted)
		s.publish(ctx, ev)
	}
	return res, nil
}

// publish never fails the request: the write is already committed.
func (s *ExpenseService) publish(ctx context.Context, ev events.ChangeEvent) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping change event", "kind", ev.Kind)
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event",
			"event_id", ev.ID,
			"kind", ev.Kind,
			"error", err)
	}
}

// Close releases the publisher. The store is owned by the caller.
func (s *ExpenseService) Close() error {
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}

func distinctDates(records []core.Expense) []string {
	seen := make(map[string]struct{}, len(records))
	dates := make([]string, 0, len(records))
	for _, e := range records {
		if _, ok := seen[e.Date]; ok {
			continue
		}
		seen[e.Date] = struct{}{}
		dates = append(dates, e.Date)
	}
	sort.Strings(dates)
	return dates
}
