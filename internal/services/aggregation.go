package services

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"kharcha/internal/core"
	"kharcha/internal/storage"
)

// Aggregator derives every summary view from committed store state. Nothing
// is cached; each call reads the store again.
type Aggregator struct {
	store storage.Reader
}

func NewAggregator(store storage.Reader) *Aggregator {
	return &Aggregator{store: store}
}

// Years returns the total per year, oldest first.
func (a *Aggregator) Years(ctx context.Context) ([]core.YearTotal, error) {
	expenses, err := a.store.All(ctx)
	if err != nil {
		return nil, err
	}
	keys, totals := sumBy(expenses, func(e core.Expense) string { return e.Date[0:4] })
	sort.Strings(keys)

	out := make([]core.YearTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, core.YearTotal{Year: k, Total: totals[k]})
	}
	return out, nil
}

// Months returns the total per month of year.
func (a *Aggregator) Months(ctx context.Context, year string) ([]core.MonthTotal, error) {
	y, err := core.NormalizeYear(year)
	if err != nil {
		return nil, err
	}
	expenses, err := a.store.Find(ctx, storage.Filter{Year: y})
	if err != nil {
		return nil, err
	}
	keys, totals := sumBy(expenses, func(e core.Expense) string { return e.Date[5:7] })
	sort.Strings(keys)

	out := make([]core.MonthTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, core.MonthTotal{Month: k, Total: totals[k]})
	}
	return out, nil
}

// Days returns the total per day of one month.
func (a *Aggregator) Days(ctx context.Context, year, month string) ([]core.DayTotal, error) {
	f, err := monthFilter(year, month)
	if err != nil {
		return nil, err
	}
	expenses, err := a.store.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	keys, totals := sumBy(expenses, func(e core.Expense) string { return e.Date[8:10] })
	sort.Strings(keys)

	out := make([]core.DayTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, core.DayTotal{Day: k, Total: totals[k]})
	}
	return out, nil
}

// Expenses returns the raw records of one day in timestamp order.
func (a *Aggregator) Expenses(ctx context.Context, year, month, day string) ([]core.DayExpense, error) {
	key, err := core.NewDateKey(year, month, day)
	if err != nil {
		return nil, err
	}
	expenses, err := a.store.Find(ctx, storage.ForDay(key))
	if err != nil {
		return nil, err
	}

	out := make([]core.DayExpense, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, core.DayExpense{Timestamp: e.Timestamp, Purpose: e.Purpose, Amount: e.Amount})
	}
	return out, nil
}

// Export returns one row per date, newest date first. Purposes of a date
// are joined in timestamp order.
func (a *Aggregator) Export(ctx context.Context) ([]core.DailyExpense, error) {
	expenses, err := a.store.All(ctx)
	if err != nil {
		return nil, err
	}
	groups := groupBy(expenses, func(e core.Expense) string { return e.Date })
	sort.Slice(groups, func(i, j int) bool { return groups[i].key > groups[j].key })

	out := make([]core.DailyExpense, 0, len(groups))
	for _, g := range groups {
		out = append(out, core.DailyExpense{Date: g.key, Purpose: g.joinPurposes(), Total: g.total})
	}
	return out, nil
}

// MonthReport returns one row per day of the month with that day's purposes
// in timestamp order.
func (a *Aggregator) MonthReport(ctx context.Context, year, month string) ([]core.DayReport, error) {
	f, err := monthFilter(year, month)
	if err != nil {
		return nil, err
	}
	expenses, err := a.store.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	groups := groupBy(expenses, func(e core.Expense) string { return e.Date[8:10] })
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })

	out := make([]core.DayReport, 0, len(groups))
	for _, g := range groups {
		out = append(out, core.DayReport{Day: g.key, Purpose: g.joinPurposes(), Total: g.total})
	}
	return out, nil
}

// YearReport returns one row per month. Within a month, purposes are summed
// first and then listed by descending subtotal, ties by purpose.
func (a *Aggregator) YearReport(ctx context.Context, year string) ([]core.MonthReport, error) {
	y, err := core.NormalizeYear(year)
	if err != nil {
		return nil, err
	}
	expenses, err := a.store.Find(ctx, storage.Filter{Year: y})
	if err != nil {
		return nil, err
	}
	groups := groupBy(expenses, func(e core.Expense) string { return e.Date[5:7] })
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })

	out := make([]core.MonthReport, 0, len(groups))
	for _, g := range groups {
		categories := categoryTotals(g.expenses)
		purposes := make([]string, 0, len(categories))
		for _, c := range categories {
			purposes = append(purposes, c.Purpose)
		}
		out = append(out, core.MonthReport{
			Month:   g.key,
			Purpose: strings.Join(purposes, core.PurposeSeparator),
			Total:   g.total,
		})
	}
	return out, nil
}

// MonthCategories returns the total per purpose in one month, largest first.
func (a *Aggregator) MonthCategories(ctx context.Context, year, month string) ([]core.CategoryTotal, error) {
	f, err := monthFilter(year, month)
	if err != nil {
		return nil, err
	}
	expenses, err := a.store.Find(ctx, f)
	if err != nil {
		return nil, err
	}
	return categoryTotals(expenses), nil
}

// YearCategories returns the total per purpose in one year, largest first.
func (a *Aggregator) YearCategories(ctx context.Context, year string) ([]core.CategoryTotal, error) {
	y, err := core.NormalizeYear(year)
	if err != nil {
		return nil, err
	}
	expenses, err := a.store.Find(ctx, storage.Filter{Year: y})
	if err != nil {
		return nil, err
	}
	return categoryTotals(expenses), nil
}

// Search returns records whose purpose contains text, ignoring case. Results
// are ordered newest date first, then by timestamp.
func (a *Aggregator) Search(ctx context.Context, text string) ([]core.SearchedExpense, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.ErrEmptySearch
	}
	expenses, err := a.store.All(ctx)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	needle := fold.String(text)
	matches := make([]core.Expense, 0)
	for _, e := range expenses {
		if strings.Contains(fold.String(e.Purpose), needle) {
			matches = append(matches, e)
		}
	}
	// All() is timestamp ordered, so a stable sort keeps that as tie-break.
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Date > matches[j].Date })

	out := make([]core.SearchedExpense, 0, len(matches))
	for _, e := range matches {
		out = append(out, core.SearchedExpense{Date: e.Date, Purpose: e.Purpose, Amount: e.Amount})
	}
	return out, nil
}

func monthFilter(year, month string) (storage.Filter, error) {
	y, err := core.NormalizeYear(year)
	if err != nil {
		return storage.Filter{}, err
	}
	m, err := core.NormalizeMonth(month)
	if err != nil {
		return storage.Filter{}, err
	}
	return storage.Filter{Year: y, Month: m}, nil
}

func sumBy(expenses []core.Expense, key func(core.Expense) string) ([]string, map[string]int64) {
	totals := make(map[string]int64)
	var keys []string
	for _, e := range expenses {
		k := key(e)
		if _, ok := totals[k]; !ok {
			keys = append(keys, k)
		}
		totals[k] += e.Amount
	}
	return keys, totals
}

type group struct {
	key      string
	total    int64
	expenses []core.Expense
}

func (g *group) joinPurposes() string {
	purposes := make([]string, 0, len(g.expenses))
	for _, e := range g.expenses {
		purposes = append(purposes, e.Purpose)
	}
	return strings.Join(purposes, core.PurposeSeparator)
}

// groupBy preserves the input order inside each group.
func groupBy(expenses []core.Expense, key func(core.Expense) string) []*group {
	index := make(map[string]*group)
	var groups []*group
	for _, e := range expenses {
		k := key(e)
		g, ok := index[k]
		if !ok {
			g = &group{key: k}
			index[k] = g
			groups = append(groups, g)
		}
		g.total += e.Amount
		g.expenses = append(g.expenses, e)
	}
	return groups
}

func categoryTotals(expenses []core.Expense) []core.CategoryTotal {
	keys, totals := sumBy(expenses, func(e core.Expense) string { return e.Purpose })

	out := make([]core.CategoryTotal, 0, len(keys))
	for _, k := range keys {
		out = append(out, core.CategoryTotal{Purpose: k, Total: totals[k]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Purpose < out[j].Purpose
	})
	return out
}
