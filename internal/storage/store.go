package storage

import (
	"context"

	"kharcha/internal/core"
)

// Filter selects records by the components of their stored date. Empty
// fields match any value; set fields must already be normalised
// ("2025", "07", "01").
type Filter struct {
	Year  string
	Month string
	Day   string
}

// ForDay returns the filter matching exactly one calendar day.
func ForDay(k core.DateKey) Filter {
	return Filter{Year: k.Year, Month: k.Month, Day: k.Day}
}

// Matches reports whether a canonical YYYY-MM-DD date satisfies the filter.
func (f Filter) Matches(date string) bool {
	if len(date) != len(core.DateLayout) {
		return false
	}
	if f.Year != "" && date[0:4] != f.Year {
		return false
	}
	if f.Month != "" && date[5:7] != f.Month {
		return false
	}
	if f.Day != "" && date[8:10] != f.Day {
		return false
	}
	return true
}

type (
	// Reader exposes the read side of the expense table. Results are
	// ordered by timestamp ascending.
	Reader interface {
		Find(ctx context.Context, f Filter) ([]core.Expense, error)
		All(ctx context.Context) ([]core.Expense, error)
	}

	// Tx is a unit of work. Mutations made through a Tx become visible to
	// other readers only when the enclosing Update returns nil.
	Tx interface {
		Reader
		// Upsert inserts e or overwrites the record with the same timestamp.
		// existed reports the state before the write.
		Upsert(ctx context.Context, e core.Expense) (existed bool, err error)
		// Delete removes the record with the given timestamp; absent keys
		// are not an error.
		Delete(ctx context.Context, timestamp int64) error
	}

	// Store is the expense table. Implementations are safe for concurrent use.
	Store interface {
		Reader
		Upsert(ctx context.Context, e core.Expense) (existed bool, err error)
		Delete(ctx context.Context, timestamp int64) error
		// Update runs fn in a single transaction, rolling back every
		// mutation if fn returns an error.
		Update(ctx context.Context, fn func(tx Tx) error) error
		Ping(ctx context.Context) error
		Close() error
	}
)
