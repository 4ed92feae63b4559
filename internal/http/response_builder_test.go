package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"churchbook/internal/core"
	"churchbook/internal/services"
	"churchbook/internal/storage"
	"churchbook/internal/transfer"
)

func TestResponseBuilderWrite(t *testing.T) {
	rr := httptest.NewRecorder()
	NewResponse().Status(http.StatusCreated).Header("X-Test", "1").Data([]string{}).Write(rr)

	if rr.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rr.Code)
	}
	if rr.Header().Get("X-Test") != "1" {
		t.Error("custom header missing")
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "success" {
		t.Errorf("status field = %v", body["status"])
	}
	if data, ok := body["data"].([]any); !ok || len(data) != 0 {
		t.Errorf("empty data should encode as [], got %v", body["data"])
	}
}

func TestNoContentHasNoBody(t *testing.T) {
	rr := httptest.NewRecorder()
	writeNoContent(rr)
	if rr.Code != http.StatusNoContent || rr.Body.Len() != 0 {
		t.Errorf("got %d with %d bytes", rr.Code, rr.Body.Len())
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", badRequest("x"), http.StatusBadRequest},
		{"malformed import", fmt.Errorf("import: %w", transfer.ErrInvalidDocument), http.StatusBadRequest},
		{"validation", core.ErrInvalidAmount, http.StatusUnprocessableEntity},
		{"invalid pin format", services.ErrInvalidPIN, http.StatusUnprocessableEntity},
		{"unknown expense category", services.ErrUnknownExpenseCategory, http.StatusUnprocessableEntity},
		{"not found", fmt.Errorf("tx 1: %w", core.ErrNotFound), http.StatusNotFound},
		{"snapshot not found", storage.ErrSnapshotNotFound, http.StatusNotFound},
		{"pin required", services.ErrPINRequired, http.StatusForbidden},
		{"pin mismatch", services.ErrPINMismatch, http.StatusForbidden},
		{"too large", &http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{"cancelled", context.Canceled, http.StatusServiceUnavailable},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("sqlite: database is locked"))

	var body APIResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "error" || body.Message != "Internal Server Error" {
		t.Errorf("body = %+v", body)
	}
}
