package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestRebind(t *testing.T) {
	q := `SELECT 1 FROM expenses WHERE a = ? AND b = ?`
	if got := rebind(DialectSQLite, q); got != q {
		t.Fatalf("sqlite query rewritten: %s", got)
	}
	want := `SELECT 1 FROM expenses WHERE a = $1 AND b = $2`
	if got := rebind(DialectPostgres, q); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestDateWhere(t *testing.T) {
	cases := []struct {
		name  string
		f     Filter
		where []string
		args  []any
	}{
		{"empty", Filter{}, nil, nil},
		{"year", Filter{Year: "2025"}, []string{`"date" >= ?`, `"date" < ?`}, []any{"2025", "2026"}},
		{"year month", Filter{Year: "2025", Month: "07"}, []string{`"date" >= ?`, `"date" < ?`}, []any{"2025-07", "2025-08"}},
		{"month carry", Filter{Year: "2025", Month: "09"}, []string{`"date" >= ?`, `"date" < ?`}, []any{"2025-09", "2025-10"}},
		{"december", Filter{Year: "2025", Month: "12"}, []string{`"date" >= ?`, `"date" < ?`}, []any{"2025-12", "2025-13"}},
		{"last year", Filter{Year: "9999"}, []string{`"date" >= ?`}, []any{"9999"}},
		{"full day", Filter{Year: "2025", Month: "07", Day: "01"}, []string{`"date" = ?`}, []any{"2025-07-01"}},
		{"month only", Filter{Month: "07"}, []string{`substr("date", 6, 2) = ?`}, []any{"07"}},
		{"month and day", Filter{Month: "07", Day: "01"},
			[]string{`substr("date", 6, 2) = ?`, `substr("date", 9, 2) = ?`}, []any{"07", "01"}},
		{"year and day", Filter{Year: "2025", Day: "01"},
			[]string{`"date" >= ?`, `"date" < ?`, `substr("date", 9, 2) = ?`}, []any{"2025", "2026", "01"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			where, args := dateWhere(tc.f)
			if !reflect.DeepEqual(where, tc.where) || !reflect.DeepEqual(args, tc.args) {
				t.Errorf("dateWhere(%+v) = %v %v, want %v %v", tc.f, where, args, tc.where, tc.args)
			}
		})
	}
}

func TestFindUsesDateIndex(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "expenses.db"))
	if err != nil {
		t.Fatalf("new sqlite store: %v", err)
	}
	defer s.Close()

	for _, f := range []Filter{
		{Year: "2025"},
		{Year: "2025", Month: "07"},
		{Year: "2025", Month: "07", Day: "01"},
	} {
		where, args := dateWhere(f)
		query := "EXPLAIN QUERY PLAN " + selectExpensesSQL + " WHERE " + strings.Join(where, " AND ")
		rows, err := s.db.QueryContext(context.Background(), query, args...)
		if err != nil {
			t.Fatalf("explain %+v: %v", f, err)
		}
		var plan []string
		for rows.Next() {
			var id, parent, unused int
			var detail string
			if err := rows.Scan(&id, &parent, &unused, &detail); err != nil {
				rows.Close()
				t.Fatalf("scan plan: %v", err)
			}
			plan = append(plan, detail)
		}
		rows.Close()

		if !strings.Contains(strings.Join(plan, "\n"), "idx_expenses_date") {
			t.Errorf("filter %+v does not use the date index: %v", f, plan)
		}
	}
}
