package http

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"churchbook/internal/core"
	"churchbook/internal/log"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.ledger.Export(r.Context(), &buf); err != nil {
		writeError(w, r, err)
		return
	}

	filename := fmt.Sprintf("churchbook-%s.json", time.Now().Format(core.DateFormat))
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Export write failed", log.FieldError, err)
	}
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	if err := s.ledger.Import(r.Context(), body, pinFrom(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.State(r.Context()))
}

// snapshotInfo describes a snapshot without its data.
type snapshotInfo struct {
	ID                string    `json:"id"`
	TakenAt           time.Time `json:"timestamp"`
	Members           int       `json:"members"`
	Transactions      int       `json:"transactions"`
	ExpenseCategories int       `json:"expenseCategories"`
}

func infoOf(snap core.Snapshot) snapshotInfo {
	return snapshotInfo{
		ID:                snap.ID,
		TakenAt:           snap.TakenAt,
		Members:           len(snap.Data.Members),
		Transactions:      len(snap.Data.Transactions),
		ExpenseCategories: len(snap.Data.ExpenseCategories),
	}
}

func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.ledger.ListSnapshots(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]snapshotInfo, len(snaps))
	for i, snap := range snaps {
		out[i] = infoOf(snap)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTakeSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.ledger.TakeSnapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, infoOf(snap))
}

func (s *Server) handleRestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.RestoreSnapshot(r.Context(), id, pinFrom(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ledger.State(r.Context()))
}
