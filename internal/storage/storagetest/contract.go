// Package storagetest holds the behavioural checks every storage.Store
// implementation must pass.
package storagetest

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"kharcha/internal/core"
	"kharcha/internal/storage"
)

// Run exercises newStore against the Store contract. newStore must return an
// empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("upsert reports insert then update", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		e := core.Expense{Timestamp: 1722762600001, Date: "2025-07-05", Purpose: "kirana", Amount: 390}

		existed, err := s.Upsert(ctx, e)
		if err != nil || existed {
			t.Fatalf("first upsert: existed=%v err=%v", existed, err)
		}
		existed, err = s.Upsert(ctx, e)
		if err != nil || !existed {
			t.Fatalf("second upsert: existed=%v err=%v", existed, err)
		}

		all, err := s.All(ctx)
		if err != nil {
			t.Fatalf("all: %v", err)
		}
		if len(all) != 1 || all[0] != e {
			t.Fatalf("expected single stored record, got %+v", all)
		}
	})

	t.Run("upsert overwrites date purpose and amount", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustUpsert(t, s, core.Expense{Timestamp: 7, Date: "2025-07-01", Purpose: "a", Amount: 10})
		mustUpsert(t, s, core.Expense{Timestamp: 7, Date: "2025-08-02", Purpose: "b", Amount: 20})

		got, err := s.All(ctx)
		if err != nil {
			t.Fatalf("all: %v", err)
		}
		want := []core.Expense{{Timestamp: 7, Date: "2025-08-02", Purpose: "b", Amount: 20}}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("got %+v, want %+v", got, want)
		}
	})

	t.Run("upsert rejects incomplete records", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Upsert(context.Background(), core.Expense{Timestamp: 1, Date: "", Purpose: "x", Amount: 1})
		if !errors.Is(err, core.ErrInvalid) {
			t.Fatalf("expected validation error, got %v", err)
		}
	})

	t.Run("delete is a no-op for missing keys", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		if err := s.Delete(ctx, 42); err != nil {
			t.Fatalf("delete missing: %v", err)
		}
		mustUpsert(t, s, core.Expense{Timestamp: 42, Date: "2025-07-01", Purpose: "a", Amount: 1})
		if err := s.Delete(ctx, 42); err != nil {
			t.Fatalf("delete: %v", err)
		}
		all, _ := s.All(ctx)
		if len(all) != 0 {
			t.Fatalf("expected empty store, got %+v", all)
		}
	})

	t.Run("find filters on stored date and orders by timestamp", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		// Same millisecond, different dates.
		mustUpsert(t, s, core.Expense{Timestamp: 30, Date: "2025-08-01", Purpose: "c", Amount: 3})
		mustUpsert(t, s, core.Expense{Timestamp: 10, Date: "2025-07-01", Purpose: "a", Amount: 1})
		mustUpsert(t, s, core.Expense{Timestamp: 20, Date: "2024-07-01", Purpose: "b", Amount: 2})
		mustUpsert(t, s, core.Expense{Timestamp: 5, Date: "2025-07-01", Purpose: "d", Amount: 4})

		cases := []struct {
			f    storage.Filter
			want []int64
		}{
			{storage.Filter{}, []int64{5, 10, 20, 30}},
			{storage.Filter{Year: "2025"}, []int64{5, 10, 30}},
			{storage.Filter{Month: "07"}, []int64{5, 10, 20}},
			{storage.Filter{Year: "2025", Month: "07", Day: "01"}, []int64{5, 10}},
			{storage.Filter{Day: "01"}, []int64{5, 10, 20, 30}},
			{storage.Filter{Year: "2023"}, nil},
		}
		for _, tc := range cases {
			got, err := s.Find(ctx, tc.f)
			if err != nil {
				t.Fatalf("find %+v: %v", tc.f, err)
			}
			if got == nil {
				t.Fatalf("find %+v returned nil slice", tc.f)
			}
			var keys []int64
			for _, e := range got {
				keys = append(keys, e.Timestamp)
			}
			if !reflect.DeepEqual(keys, tc.want) {
				t.Fatalf("find %+v: got %v, want %v", tc.f, keys, tc.want)
			}
		}
	})

	t.Run("update rolls back on error", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustUpsert(t, s, core.Expense{Timestamp: 1, Date: "2025-07-01", Purpose: "a", Amount: 10})

		boom := errors.New("boom")
		err := s.Update(ctx, func(tx storage.Tx) error {
			if err := tx.Delete(ctx, 1); err != nil {
				return err
			}
			if _, err := tx.Upsert(ctx, core.Expense{Timestamp: 2, Date: "2025-07-01", Purpose: "b", Amount: 20}); err != nil {
				return err
			}
			inTx, err := tx.Find(ctx, storage.Filter{Year: "2025"})
			if err != nil {
				return err
			}
			if len(inTx) != 1 || inTx[0].Timestamp != 2 {
				t.Errorf("transaction does not see its own writes: %+v", inTx)
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}

		all, _ := s.All(ctx)
		want := []core.Expense{{Timestamp: 1, Date: "2025-07-01", Purpose: "a", Amount: 10}}
		if !reflect.DeepEqual(all, want) {
			t.Fatalf("rollback failed: got %+v", all)
		}
	})

	t.Run("update commits all mutations", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		mustUpsert(t, s, core.Expense{Timestamp: 1, Date: "2025-07-01", Purpose: "a", Amount: 10})

		err := s.Update(ctx, func(tx storage.Tx) error {
			if err := tx.Delete(ctx, 1); err != nil {
				return err
			}
			_, err := tx.Upsert(ctx, core.Expense{Timestamp: 2, Date: "2025-07-01", Purpose: "b", Amount: 20})
			return err
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		all, _ := s.All(ctx)
		if len(all) != 1 || all[0].Timestamp != 2 {
			t.Fatalf("unexpected contents: %+v", all)
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := newStore(t).Ping(context.Background()); err != nil {
			t.Fatalf("ping: %v", err)
		}
	})
}

func mustUpsert(t *testing.T, s storage.Store, e core.Expense) {
	t.Helper()
	if _, err := s.Upsert(context.Background(), e); err != nil {
		t.Fatalf("upsert %+v: %v", e, err)
	}
}
