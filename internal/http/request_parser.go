// Package http provides HTTP server and handler implementations.
//
// This file holds the helpers that turn request paths, queries, headers and
// JSON bodies into handler arguments.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"churchbook/internal/core"
)

const (
	// PINHeader carries the settings PIN for protected actions.
	PINHeader = "X-PIN"

	maxBodyBytes   = 1 << 20
	maxImportBytes = 10 << 20

	defaultPerPage = 20
	maxPerPage     = 200
)

// errBadRequest marks input the handlers could not read at all.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// decodeJSON reads exactly one JSON value into dst. Unknown fields are
// rejected so that typos do not silently drop data.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest("decode body: %v", err)
	}
	if dec.More() {
		return badRequest("decode body: trailing data")
	}
	return nil
}

// parseYear reads ?year=. Absent means zero, which the summary treats as
// the current year.
func parseYear(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("year"))
	if v == "" {
		return 0, nil
	}
	y, err := strconv.Atoi(v)
	if err != nil || y < 1 || y > 9999 {
		return 0, badRequest("invalid year %q", v)
	}
	return y, nil
}

// parsePositiveInt reads a positive integer query parameter.
func parsePositiveInt(query url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(query.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, badRequest("invalid %s %q", name, v)
	}
	return n, nil
}

// PageParams holds the ledger paging query.
type PageParams struct {
	Page    int
	PerPage int
}

func parsePageParams(query url.Values) (PageParams, error) {
	page, err := parsePositiveInt(query, "page", 1)
	if err != nil {
		return PageParams{}, err
	}
	perPage, err := parsePositiveInt(query, "per_page", defaultPerPage)
	if err != nil {
		return PageParams{}, err
	}
	return PageParams{Page: page, PerPage: min(perPage, maxPerPage)}, nil
}

// parseID reads the {id} path parameter.
func parseID(r *http.Request) (int64, error) {
	v := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest("invalid id %q", v)
	}
	return id, nil
}

// pathParam returns a decoded path parameter.
func pathParam(r *http.Request, name string) (string, error) {
	raw := chi.URLParam(r, name)
	v, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(v) == "" {
		return "", badRequest("invalid %s %q", name, raw)
	}
	return v, nil
}

func pinFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(PINHeader))
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// amountField accepts a JSON number or a string with thousands separators.
// Unreadable amounts decode as zero so that validation reports them.
type amountField int64

func (a *amountField) UnmarshalJSON(b []byte) error {
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			*a = amountField(v)
			return nil
		}
		*a = 0
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("amount must be a number or string")
	}
	v, err := core.ParseAmount(s)
	if err != nil {
		*a = 0
		return nil
	}
	*a = amountField(v)
	return nil
}

type memberRequest struct {
	Name     string        `json:"name"`
	Position core.Position `json:"position"`
}

type transactionRequest struct {
	Type     core.TxType `json:"type"`
	Date     string      `json:"date"`
	Category string      `json:"category"`
	Amount   amountField `json:"amount"`
	MemberID *int64      `json:"memberId"`
	Memo     string      `json:"memo"`
}

func (t transactionRequest) transaction(id int64) core.Transaction {
	return core.Transaction{
		ID:       id,
		Type:     t.Type,
		Date:     sanitizeInput(t.Date),
		Category: sanitizeInput(t.Category),
		Amount:   int64(t.Amount),
		MemberID: t.MemberID,
		Memo:     sanitizeInput(t.Memo),
	}
}

type nameRequest struct {
	Name string `json:"name"`
}

type pinChangeRequest struct {
	Current string `json:"current"`
	Next    string `json:"next"`
}

type pinRequest struct {
	PIN string `json:"pin"`
}
