package core

// YearTotal is the sum of amounts recorded in one calendar year.
type YearTotal struct {
	Year  string `json:"year"`
	Total int64  `json:"total"`
}

// MonthTotal is the sum of amounts recorded in one month of a year.
type MonthTotal struct {
	Month string `json:"month"`
	Total int64  `json:"total"`
}

// DayTotal is the sum of amounts recorded on one day of a month.
type DayTotal struct {
	Day   string `json:"day"`
	Total int64  `json:"total"`
}

// DayExpense is a raw record as returned by the leaf query.
type DayExpense struct {
	Timestamp int64  `json:"timestamp"`
	Purpose   string `json:"purpose"`
	Amount    int64  `json:"amount"`
}

// DailyExpense is one export row: every purpose of a date and their total.
type DailyExpense struct {
	Date    string `json:"date"`
	Purpose string `json:"purpose"`
	Total   int64  `json:"total"`
}

// DayReport is one row of a month report.
type DayReport struct {
	Day     string `json:"day"`
	Purpose string `json:"purpose"`
	Total   int64  `json:"total"`
}

// MonthReport is one row of a year report. Purpose lists the month's
// purposes biggest subtotal first.
type MonthReport struct {
	Month   string `json:"month"`
	Purpose string `json:"purpose"`
	Total   int64  `json:"total"`
}

// CategoryTotal is the sum of amounts for one purpose within a period.
type CategoryTotal struct {
	Purpose string `json:"purpose"`
	Total   int64  `json:"total"`
}

// SearchedExpense is a search hit.
type SearchedExpense struct {
	Date    string `json:"date"`
	Purpose string `json:"purpose"`
	Amount  int64  `json:"amount"`
}

// UpsertResult summarises a batch upsert.
type UpsertResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// ReconcileResult summarises the replacement of one day's expenses.
type ReconcileResult struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Deleted  int `json:"deleted"`
}
