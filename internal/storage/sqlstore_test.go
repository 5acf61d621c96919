package storage_test

import (
	"context"
	"path/filepath"
	"testing"

	"kharcha/internal/core"
	"kharcha/internal/storage"
	"kharcha/internal/storage/storagetest"
)

func newSQLiteStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "data", "expenses.db"))
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreContract(t *testing.T) {
	storagetest.Run(t, newSQLiteStore)
}

func TestSQLiteStoreReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.db")
	s, err := storage.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Upsert(context.Background(), validExpense()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	s.Close()

	// Migrations must be a no-op on an existing schema.
	s, err = storage.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	all, err := s.All(context.Background())
	if err != nil || len(all) != 1 {
		t.Fatalf("expected persisted record, got %+v (err=%v)", all, err)
	}
}

func TestFilterMatches(t *testing.T) {
	cases := []struct {
		f    storage.Filter
		date string
		want bool
	}{
		{storage.Filter{}, "2025-07-01", true},
		{storage.Filter{Year: "2025"}, "2025-07-01", true},
		{storage.Filter{Year: "2024"}, "2025-07-01", false},
		{storage.Filter{Month: "07", Day: "01"}, "2025-07-01", true},
		{storage.Filter{Month: "07", Day: "02"}, "2025-07-01", false},
		{storage.Filter{}, "bogus", false},
	}
	for _, tc := range cases {
		if got := tc.f.Matches(tc.date); got != tc.want {
			t.Fatalf("%+v.Matches(%q) = %v, want %v", tc.f, tc.date, got, tc.want)
		}
	}
}

func validExpense() core.Expense {
	return core.Expense{Timestamp: 1722417000000, Date: "2025-07-01", Purpose: "miscellaneous", Amount: 30}
}
