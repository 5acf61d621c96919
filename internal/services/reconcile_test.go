package services

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"kharcha/internal/core"
	"kharcha/internal/storage"
)

// failingStore fails any upsert of failOn inside a transaction.
type failingStore struct {
	storage.Store
	failOn int64
}

var errInjected = errors.New("injected upsert failure")

func (s *failingStore) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.Store.Update(ctx, func(tx storage.Tx) error {
		return fn(&failingTx{Tx: tx, failOn: s.failOn})
	})
}

type failingTx struct {
	storage.Tx
	failOn int64
}

func (t *failingTx) Upsert(ctx context.Context, e core.Expense) (bool, error) {
	if e.Timestamp == t.failOn {
		return false, errInjected
	}
	return t.Tx.Upsert(ctx, e)
}

func TestReconciler_Reconcile(t *testing.T) {
	seed := []core.Expense{
		{Timestamp: 1, Date: "2025-07-01", Purpose: "a", Amount: 10},
		{Timestamp: 2, Date: "2025-07-01", Purpose: "b", Amount: 20},
		{Timestamp: 9, Date: "2025-07-02", Purpose: "other day", Amount: 99},
	}

	for name, store := range backends(t, seed...) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := NewReconciler(store)

			res, err := rec.Reconcile(ctx, "2025", "7", "1", []core.Expense{
				{Timestamp: 2, Purpose: "b", Amount: 25},
				{Timestamp: 3, Purpose: "c", Amount: 5},
			})
			if err != nil {
				t.Fatalf("Reconcile() error = %v", err)
			}
			if want := (core.ReconcileResult{Inserted: 1, Updated: 1, Deleted: 1}); res != want {
				t.Errorf("Reconcile() = %+v, want %+v", res, want)
			}

			leaf, err := NewAggregator(store).Expenses(ctx, "2025", "07", "01")
			if err != nil {
				t.Fatalf("Expenses() error = %v", err)
			}
			want := []core.DayExpense{{Timestamp: 2, Purpose: "b", Amount: 25}, {Timestamp: 3, Purpose: "c", Amount: 5}}
			if !reflect.DeepEqual(leaf, want) {
				t.Errorf("day after reconcile = %+v, want %+v", leaf, want)
			}

			other, _ := store.Find(ctx, storage.Filter{Year: "2025", Month: "07", Day: "02"})
			if len(other) != 1 {
				t.Errorf("other days must be untouched, got %+v", other)
			}
		})
	}
}

func TestReconciler_EmptyListClearsDay(t *testing.T) {
	store := newMemoryStore(t,
		core.Expense{Timestamp: 1, Date: "2025-07-01", Purpose: "a", Amount: 10},
		core.Expense{Timestamp: 2, Date: "2025-07-01", Purpose: "b", Amount: 20},
	)

	res, err := NewReconciler(store).Reconcile(context.Background(), "2025", "07", "01", []core.Expense{})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if want := (core.ReconcileResult{Deleted: 2}); res != want {
		t.Errorf("Reconcile() = %+v, want %+v", res, want)
	}
	all, _ := store.All(context.Background())
	if len(all) != 0 {
		t.Errorf("expected empty store, got %+v", all)
	}
}

func TestReconciler_ForcesTargetDate(t *testing.T) {
	store := newMemoryStore(t)

	_, err := NewReconciler(store).Reconcile(context.Background(), "2025", "7", "4", []core.Expense{
		{Timestamp: 5, Date: "1999-01-01", Purpose: "x", Amount: 1},
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	all, _ := store.All(context.Background())
	if len(all) != 1 || all[0].Date != "2025-07-04" {
		t.Errorf("date not forced to target day: %+v", all)
	}
}

func TestReconciler_MovesRecordFromAnotherDay(t *testing.T) {
	store := newMemoryStore(t, core.Expense{Timestamp: 5, Date: "2025-07-03", Purpose: "x", Amount: 1})

	res, err := NewReconciler(store).Reconcile(context.Background(), "2025", "07", "04", []core.Expense{
		{Timestamp: 5, Purpose: "x", Amount: 1},
	})
	if err != nil {
		t.Fatalf("Reconcile() error = %v", err)
	}
	if want := (core.ReconcileResult{Inserted: 1}); res != want {
		t.Errorf("Reconcile() = %+v, want %+v", res, want)
	}
	all, _ := store.All(context.Background())
	if len(all) != 1 || all[0].Date != "2025-07-04" {
		t.Errorf("record should have moved: %+v", all)
	}
}

func TestReconciler_RejectsBadInput(t *testing.T) {
	seed := core.Expense{Timestamp: 1, Date: "2025-07-01", Purpose: "a", Amount: 10}
	store := newMemoryStore(t, seed)
	rec := NewReconciler(store)
	ctx := context.Background()

	tests := []struct {
		name    string
		day     string
		records []core.Expense
		wantErr error
	}{
		{"duplicate timestamps", "01", []core.Expense{{Timestamp: 2, Purpose: "x"}, {Timestamp: 2, Purpose: "y"}}, core.ErrDuplicateTimestamp},
		{"empty purpose", "01", []core.Expense{{Timestamp: 2, Purpose: " "}}, core.ErrEmptyPurpose},
		{"comma in purpose", "01", []core.Expense{{Timestamp: 2, Purpose: "a, b"}}, core.ErrPurposeComma},
		{"impossible day", "32", nil, core.ErrInvalidDay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rec.Reconcile(ctx, "2025", "07", tt.day, tt.records)
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, core.ErrInvalid) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			all, _ := store.All(ctx)
			if !reflect.DeepEqual(all, []core.Expense{seed}) {
				t.Fatalf("store changed on rejected input: %+v", all)
			}
		})
	}
}

func TestReconciler_AtomicOnFailure(t *testing.T) {
	seed := []core.Expense{
		{Timestamp: 1, Date: "2025-07-01", Purpose: "a", Amount: 10},
		{Timestamp: 2, Date: "2025-07-01", Purpose: "b", Amount: 20},
	}
	for name, store := range backends(t, seed...) {
		t.Run(name, func(t *testing.T) {
			rec := NewReconciler(&failingStore{Store: store, failOn: 3})

			_, err := rec.Reconcile(context.Background(), "2025", "07", "01", []core.Expense{
				{Timestamp: 2, Purpose: "b", Amount: 25},
				{Timestamp: 3, Purpose: "c", Amount: 5},
			})
			if !errors.Is(err, errInjected) {
				t.Fatalf("error = %v, want injected failure", err)
			}

			all, _ := store.All(context.Background())
			if !reflect.DeepEqual(all, seed) {
				t.Fatalf("day changed after failed reconcile: %+v", all)
			}
		})
	}
}

func TestReconciler_BatchUpsert(t *testing.T) {
	store := newMemoryStore(t, core.Expense{Timestamp: 1, Date: "2025-07-01", Purpose: "a", Amount: 10})
	rec := NewReconciler(store)
	ctx := context.Background()

	batch := []core.Expense{
		{Timestamp: 1, Date: "2025-07-01", Purpose: "a", Amount: 15},
		{Timestamp: 2, Date: "2025-07-02", Purpose: "b", Amount: 20},
	}
	res, err := rec.BatchUpsert(ctx, batch)
	if err != nil {
		t.Fatalf("BatchUpsert() error = %v", err)
	}
	if want := (core.UpsertResult{Inserted: 1, Updated: 1}); res != want {
		t.Errorf("BatchUpsert() = %+v, want %+v", res, want)
	}

	// Idempotent: replaying the batch only updates.
	res, err = rec.BatchUpsert(ctx, batch)
	if err != nil {
		t.Fatalf("BatchUpsert() replay error = %v", err)
	}
	if want := (core.UpsertResult{Updated: 2}); res != want {
		t.Errorf("BatchUpsert() replay = %+v, want %+v", res, want)
	}
	all, _ := store.All(ctx)
	if !reflect.DeepEqual(all, batch) {
		t.Errorf("stored = %+v, want %+v", all, batch)
	}

	res, err = rec.BatchUpsert(ctx, nil)
	if err != nil || res != (core.UpsertResult{}) {
		t.Errorf("empty batch = %+v, %v", res, err)
	}

	_, err = rec.BatchUpsert(ctx, []core.Expense{
		{Timestamp: 3, Date: "2025-07-03", Purpose: "ok", Amount: 1},
		{Timestamp: 4, Date: "07/03/2025", Purpose: "bad date", Amount: 1},
	})
	if !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("error = %v, want ErrInvalidDate", err)
	}
	all, _ = store.All(ctx)
	if len(all) != 2 {
		t.Errorf("invalid batch must not write anything, got %+v", all)
	}
}
