package http

import (
	"net/http"

	"churchbook/internal/core"
	"churchbook/internal/ledger"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "Readiness check failed", "error", err)
		ErrorResponse(http.StatusServiceUnavailable, "storage unavailable").Write(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready", "metrics": s.Metrics()})
}

// summaryResponse adds display strings to the derived views.
type summaryResponse struct {
	ledger.Summary
	Currency string         `json:"currency"`
	Display  summaryDisplay `json:"display"`
}

type summaryDisplay struct {
	Previous      string `json:"previousBalance"`
	TodaysChange  string `json:"todaysChange"`
	Today         string `json:"todaysBalance"`
	WeekIncome    string `json:"weekIncome"`
	WeekExpense   string `json:"weekExpense"`
	YearIncome    string `json:"yearIncome"`
	YearExpense   string `json:"yearExpense"`
	SelectedTotal string `json:"selectedYearNet"`
}

func (s *Server) display(sum ledger.Summary) summaryDisplay {
	f := func(v int64) string { return core.FormatAmount(v, s.currency) }
	return summaryDisplay{
		Previous:      f(sum.Balance.Previous),
		TodaysChange:  f(sum.Balance.TodaysChange),
		Today:         f(sum.Balance.Today),
		WeekIncome:    f(sum.Week.Income),
		WeekExpense:   f(sum.Week.Expense),
		YearIncome:    f(sum.Year.Income),
		YearExpense:   f(sum.Year.Expense),
		SelectedTotal: f(sum.Selected.Net),
	}
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum := s.ledger.Summary(r.Context(), year)
	// The cached summary is shared; FilterBreakdown returns copies.
	if category := sanitizeInput(r.URL.Query().Get("category")); category != "" {
		sum.WeekCore = ledger.FilterBreakdown(sum.WeekCore, category)
		sum.SelectedCore = ledger.FilterBreakdown(sum.SelectedCore, category)
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Summary:  sum,
		Currency: s.currency,
		Display:  s.display(sum),
	})
}

type ledgerPage struct {
	Rows    []ledger.Row `json:"rows"`
	Page    int          `json:"page"`
	PerPage int          `json:"perPage"`
	Pages   int          `json:"pages"`
	Total   int          `json:"total"`
}

func (s *Server) handleLedgerPage(w http.ResponseWriter, r *http.Request) {
	params, err := parsePageParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum := s.ledger.Summary(r.Context(), 0)
	rows, pages := ledger.Page(sum.Rows, params.Page, params.PerPage)
	writeJSON(w, http.StatusOK, ledgerPage{
		Rows:    rows,
		Page:    min(params.Page, max(pages, 1)),
		PerPage: params.PerPage,
		Pages:   pages,
		Total:   len(sum.Rows),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ledger.State(r.Context()))
}

func (s *Server) handleSetChurchName(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.SetChurchName(r.Context(), sanitizeInput(req.Name)); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleSetPIN(w http.ResponseWriter, r *http.Request) {
	var req pinChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.SetPIN(r.Context(), req.Current, req.Next); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w)
}

func (s *Server) handleVerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.VerifyPIN(r.Context(), req.PIN); err != nil {
		writeError(w, r, err)
		return
	}
	writeNoContent(w)
}
