package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"kharcha/internal/core"
)

const maxBodyBytes = 1 << 20

var errNotArray = fmt.Errorf("%w: request body must be a JSON array of expenses", core.ErrInvalid)

// expenseRequest mirrors core.Expense with every field optional so that a
// missing field can be told apart from a zero value.
type expenseRequest struct {
	Timestamp *int64  `json:"timestamp"`
	Date      *string `json:"date"`
	Purpose   *string `json:"purpose"`
	Amount    *int64  `json:"amount"`
}

func (er expenseRequest) toExpense(requireDate bool) (core.Expense, error) {
	var missing []string
	if er.Timestamp == nil {
		missing = append(missing, "timestamp")
	}
	if er.Date == nil && requireDate {
		missing = append(missing, "date")
	}
	if er.Purpose == nil {
		missing = append(missing, "purpose")
	}
	if er.Amount == nil {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return core.Expense{}, fmt.Errorf("%w: %s", core.ErrMissingField, strings.Join(missing, ", "))
	}

	e := core.Expense{
		Timestamp: *er.Timestamp,
		Purpose:   *er.Purpose,
		Amount:    *er.Amount,
	}
	if er.Date != nil {
		e.Date = *er.Date
	}
	return e, nil
}

// decodeExpenses reads a JSON array of expenses from the request body.
// The reconcile route takes the date from the path, so requireDate is false
// there.
func decodeExpenses(w http.ResponseWriter, r *http.Request, requireDate bool) ([]core.Expense, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errNotArray
	}

	var raw []expenseRequest
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return nil, fmt.Errorf("%w: field %s has the wrong type", core.ErrInvalid, typeErr.Field)
		}
		return nil, fmt.Errorf("%w: malformed JSON: %v", core.ErrInvalid, err)
	}

	records := make([]core.Expense, 0, len(raw))
	for i, er := range raw {
		e, err := er.toExpense(requireDate)
		if err != nil {
			return nil, fmt.Errorf("expense %d: %w", i, err)
		}
		records = append(records, e)
	}
	return records, nil
}

// queryFlag reports whether a boolean query flag such as report=true is set.
func queryFlag(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
