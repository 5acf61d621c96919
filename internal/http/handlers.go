package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	applog "kharcha/internal/log"
)

// handleRoot serves GET /expenses. search takes precedence over export.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fields := applog.NewFields()

	switch {
	case r.URL.Query().Has("search"):
		res, err := s.reader.Search(ctx, r.URL.Query().Get("search"))
		s.respond(w, r, applog.OpSearch, fields, res, err)
	case queryFlag(r, "export"):
		res, err := s.reader.Export(ctx)
		s.respond(w, r, applog.OpExport, fields, res, err)
	default:
		res, err := s.reader.Years(ctx)
		s.respond(w, r, applog.OpList, fields, res, err)
	}
}

// handleYear serves GET /expenses/{year}. report takes precedence over
// categories.
func (s *Server) handleYear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year := chi.URLParam(r, "year")
	fields := applog.NewFields().WithDate(year, "", "")

	switch {
	case queryFlag(r, "report"):
		res, err := s.reader.YearReport(ctx, year)
		s.respond(w, r, applog.OpReport, fields, res, err)
	case queryFlag(r, "categories"):
		res, err := s.reader.YearCategories(ctx, year)
		s.respond(w, r, applog.OpCategories, fields, res, err)
	default:
		res, err := s.reader.Months(ctx, year)
		s.respond(w, r, applog.OpList, fields, res, err)
	}
}

func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, month := chi.URLParam(r, "year"), chi.URLParam(r, "month")
	fields := applog.NewFields().WithDate(year, month, "")

	switch {
	case queryFlag(r, "report"):
		res, err := s.reader.MonthReport(ctx, year, month)
		s.respond(w, r, applog.OpReport, fields, res, err)
	case queryFlag(r, "categories"):
		res, err := s.reader.MonthCategories(ctx, year, month)
		s.respond(w, r, applog.OpCategories, fields, res, err)
	default:
		res, err := s.reader.Days(ctx, year, month)
		s.respond(w, r, applog.OpList, fields, res, err)
	}
}

func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	year, month, day := chi.URLParam(r, "year"), chi.URLParam(r, "month"), chi.URLParam(r, "day")
	res, err := s.reader.Expenses(r.Context(), year, month, day)
	s.respond(w, r, applog.OpList, applog.NewFields().WithDate(year, month, day), res, err)
}

// handleSaveExpenses serves POST /expenses: a batch upsert of full records.
func (s *Server) handleSaveExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	fields := applog.NewFields()

	records, err := decodeExpenses(w, r, true)
	if err != nil {
		s.fail(w, r, applog.OpUpsert, fields, err)
		return
	}

	res, err := s.writer.SaveExpenses(ctx, records)
	if err != nil {
		s.fail(w, r, applog.OpUpsert, fields, err)
		return
	}

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogWriteCompleted(ctx, applog.OpUpsert, fields, len(records), res.Inserted, res.Updated, 0)
	writeJSON(w, writeStatus(res.Inserted), res)
}

// handleReconcileDay serves POST /expenses/{year}/{month}/{day}: the body
// replaces every stored expense of that day.
func (s *Server) handleReconcileDay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	year, month, day := chi.URLParam(r, "year"), chi.URLParam(r, "month"), chi.URLParam(r, "day")
	fields := applog.NewFields().WithDate(year, month, day)

	records, err := decodeExpenses(w, r, false)
	if err != nil {
		s.fail(w, r, applog.OpReconcile, fields, err)
		return
	}

	res, err := s.writer.ReconcileDay(ctx, year, month, day, records)
	if err != nil {
		s.fail(w, r, applog.OpReconcile, fields, err)
		return
	}

	applog.NewStructuredLogger(applog.FromContext(ctx)).
		LogWriteCompleted(ctx, applog.OpReconcile, fields, len(records), res.Inserted, res.Updated, res.Deleted)
	writeJSON(w, writeStatus(res.Inserted), res)
}

func writeStatus(inserted int) int {
	if inserted > 0 {
		return http.StatusCreated
	}
	return http.StatusOK
}
