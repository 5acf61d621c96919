package services

import (
	"context"
	"path/filepath"
	"testing"

	"kharcha/internal/core"
	"kharcha/internal/storage"
	"kharcha/internal/storage/memory"
)

// backends returns a freshly seeded store of every kind the service layer
// is expected to work against.
func backends(t *testing.T, seed ...core.Expense) map[string]storage.Store {
	t.Helper()

	mem, err := memory.New(seed...)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}

	sqlite, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "expenses.db"))
	if err != nil {
		t.Fatalf("sqlite store: %v", err)
	}
	t.Cleanup(func() { sqlite.Close() })
	for _, e := range seed {
		if _, err := sqlite.Upsert(context.Background(), e); err != nil {
			t.Fatalf("seed sqlite: %v", err)
		}
	}

	return map[string]storage.Store{"memory": mem, "sqlite": sqlite}
}

func newMemoryStore(t *testing.T, seed ...core.Expense) *memory.Store {
	t.Helper()
	s, err := memory.New(seed...)
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	return s
}

func sampleExpenses() []core.Expense {
	return []core.Expense{
		{Timestamp: 1719800000000, Date: "2024-07-01", Purpose: "rent", Amount: 1000},
		{Timestamp: 1722417000000, Date: "2025-07-01", Purpose: "miscellaneous", Amount: 30},
		{Timestamp: 1722417000001, Date: "2025-07-01", Purpose: "Kirana", Amount: 100},
		{Timestamp: 1722500000000, Date: "2025-07-02", Purpose: "fuel", Amount: 200},
		{Timestamp: 1722600000000, Date: "2025-07-03", Purpose: "kirana", Amount: 50},
		{Timestamp: 1722700000000, Date: "2025-07-03", Purpose: "tea", Amount: 150},
		{Timestamp: 1725000000000, Date: "2025-08-15", Purpose: "maintenance", Amount: 580},
	}
}
