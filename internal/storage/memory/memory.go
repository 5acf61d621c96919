// Package memory provides an in-process Store used by tests and by the
// memory backend. Nothing is persisted.
package memory

import (
	"context"
	"sort"
	"sync"

	"kharcha/internal/core"
	"kharcha/internal/storage"
)

type Store struct {
	mu       sync.RWMutex
	expenses map[int64]core.Expense
}

var _ storage.Store = (*Store)(nil)

// New returns a store seeded with the given records. Invalid records are
// rejected so the store never holds a partially populated row.
func New(seed ...core.Expense) (*Store, error) {
	s := &Store{expenses: make(map[int64]core.Expense, len(seed))}
	for _, e := range seed {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		s.expenses[e.Timestamp] = e
	}
	return s, nil
}

func (s *Store) Find(ctx context.Context, f storage.Filter) ([]core.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filter(s.expenses, f), nil
}

func (s *Store) All(ctx context.Context) ([]core.Expense, error) {
	return s.Find(ctx, storage.Filter{})
}

func (s *Store) Upsert(ctx context.Context, e core.Expense) (bool, error) {
	var existed bool
	err := s.Update(ctx, func(tx storage.Tx) error {
		var err error
		existed, err = tx.Upsert(ctx, e)
		return err
	})
	return existed, err
}

func (s *Store) Delete(ctx context.Context, timestamp int64) error {
	return s.Update(ctx, func(tx storage.Tx) error {
		return tx.Delete(ctx, timestamp)
	})
}

// Update works on a copy of the table and swaps it in only when fn succeeds.
func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := make(map[int64]core.Expense, len(s.expenses))
	for k, v := range s.expenses {
		work[k] = v
	}

	if err := fn(&memTx{expenses: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.expenses = work
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

type memTx struct {
	expenses map[int64]core.Expense
}

func (t *memTx) Find(ctx context.Context, f storage.Filter) ([]core.Expense, error) {
	return filter(t.expenses, f), nil
}

func (t *memTx) All(ctx context.Context) ([]core.Expense, error) {
	return filter(t.expenses, storage.Filter{}), nil
}

func (t *memTx) Upsert(ctx context.Context, e core.Expense) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	_, existed := t.expenses[e.Timestamp]
	t.expenses[e.Timestamp] = e
	return existed, nil
}

func (t *memTx) Delete(ctx context.Context, timestamp int64) error {
	delete(t.expenses, timestamp)
	return nil
}

func filter(expenses map[int64]core.Expense, f storage.Filter) []core.Expense {
	out := []core.Expense{}
	for _, e := range expenses {
		if f.Matches(e.Date) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}
