package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical storage format of Expense.Date.
const DateLayout = "2006-01-02"

// PurposeSeparator joins purposes in report and export rows.
const PurposeSeparator = ", "

type (
	// Expense is a single ledger entry. Timestamp is the identity key and is
	// assigned by the caller; Date is stored independently of it.
	Expense struct {
		Timestamp int64  `json:"timestamp"`
		Date      string `json:"date"`
		Purpose   string `json:"purpose"`
		Amount    int64  `json:"amount"`
	}

	// DateKey is a fully specified, normalised calendar day.
	DateKey struct {
		Year  string
		Month string
		Day   string
	}
)

var (
	// ErrInvalid is the root of every validation error.
	ErrInvalid = errors.New("invalid input")

	ErrInvalidDate        = fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalid)
	ErrInvalidYear        = fmt.Errorf("%w: year", ErrInvalid)
	ErrInvalidMonth       = fmt.Errorf("%w: month", ErrInvalid)
	ErrInvalidDay         = fmt.Errorf("%w: day", ErrInvalid)
	ErrEmptyPurpose       = fmt.Errorf("%w: empty purpose", ErrInvalid)
	ErrPurposeComma       = fmt.Errorf("%w: purpose must not contain a comma", ErrInvalid)
	ErrMissingField       = fmt.Errorf("%w: missing required field", ErrInvalid)
	ErrDuplicateTimestamp = fmt.Errorf("%w: duplicate timestamp", ErrInvalid)
	ErrEmptySearch        = fmt.Errorf("%w: empty search text", ErrInvalid)

	// ErrInvariant marks an internal accounting mismatch. It is never caused
	// by caller input.
	ErrInvariant = errors.New("invariant violation")
)

// Validate checks that every field of the record is populated and well formed.
func (e Expense) Validate() error {
	if _, err := ParseDate(e.Date); err != nil {
		return err
	}
	return ValidatePurpose(e.Purpose)
}

// ValidatePurpose rejects blank purposes and purposes that would break the
// comma-joined report format.
func ValidatePurpose(p string) error {
	if strings.TrimSpace(p) == "" {
		return ErrEmptyPurpose
	}
	if strings.Contains(p, ",") {
		return ErrPurposeComma
	}
	return nil
}

// ParseDate parses a canonical YYYY-MM-DD date into its components.
func ParseDate(s string) (DateKey, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return DateKey{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateKey{
		Year:  fmt.Sprintf("%04d", t.Year()),
		Month: fmt.Sprintf("%02d", int(t.Month())),
		Day:   fmt.Sprintf("%02d", t.Day()),
	}, nil
}

// NewDateKey normalises and validates path components such as "2025", "7", "01".
func NewDateKey(year, month, day string) (DateKey, error) {
	y, err := NormalizeYear(year)
	if err != nil {
		return DateKey{}, err
	}
	m, err := NormalizeMonth(month)
	if err != nil {
		return DateKey{}, err
	}
	d, err := NormalizeDay(day)
	if err != nil {
		return DateKey{}, err
	}
	k := DateKey{Year: y, Month: m, Day: d}
	// Rejects impossible days such as 2025-02-30.
	if _, err := time.Parse(DateLayout, k.String()); err != nil {
		return DateKey{}, fmt.Errorf("%w: %s", ErrInvalidDay, k.String())
	}
	return k, nil
}

// String renders the key in DateLayout.
func (k DateKey) String() string {
	return k.Year + "-" + k.Month + "-" + k.Day
}

// NormalizeYear accepts exactly four digits, so "25" is rejected rather
// than read as year 0025.
func NormalizeYear(s string) (string, error) {
	y := strings.TrimSpace(s)
	if len(y) != 4 || strings.Trim(y, "0123456789") != "" || y == "0000" {
		return "", fmt.Errorf("%w: %q", ErrInvalidYear, s)
	}
	return y, nil
}

// NormalizeMonth returns the month as a two digit string in 01..12.
func NormalizeMonth(s string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 12 {
		return "", fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return fmt.Sprintf("%02d", n), nil
}

// NormalizeDay returns the day as a two digit string in 01..31.
func NormalizeDay(s string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 31 {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	return fmt.Sprintf("%02d", n), nil
}
