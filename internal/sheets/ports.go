package sheets

import (
	"context"

	"kharcha/internal/core"
)

// ExportWriter mirrors the export view to an external spreadsheet.
type ExportWriter interface {
	// WriteExport replaces the mirrored content with rows.
	WriteExport(ctx context.Context, rows []core.DailyExpense) error
}
