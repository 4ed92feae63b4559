// Package transfer reads and writes the portable JSON document holding
// members, transactions and the expense category registry.
package transfer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"churchbook/internal/core"
)

// ErrInvalidDocument is returned when the input is not a ledger document.
var ErrInvalidDocument = errors.New("invalid ledger document")

// Document is the exported shape. A nil ExpenseCategories means the
// document did not carry a registry.
type Document = core.Dataset

// Envelope wraps a Document with the time it was captured.
type Envelope struct {
	Timestamp time.Time `json:"timestamp"`
	Data      Document  `json:"data"`
}

// Encode writes doc as indented JSON. Nil member and transaction lists are
// written as empty arrays.
func Encode(w io.Writer, doc Document) error {
	if doc.Members == nil {
		doc.Members = []core.Member{}
	}
	if doc.Transactions == nil {
		doc.Transactions = []core.Transaction{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

// EncodeSnapshot writes snap in the envelope form.
func EncodeSnapshot(w io.Writer, snap core.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Envelope{Timestamp: snap.TakenAt, Data: snap.Data}); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// Decode reads a document, or the data of an envelope. It fails with
// ErrInvalidDocument unless members and transactions are present and
// array-shaped; expenseCategories may be absent or null but not any other
// shape.
func Decode(r io.Reader) (Document, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read document: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if _, ok := fields["members"]; !ok {
		if data, ok := fields["data"]; ok {
			var inner map[string]json.RawMessage
			if err := json.Unmarshal(data, &inner); err != nil {
				return Document{}, fmt.Errorf("%w: envelope data: %v", ErrInvalidDocument, err)
			}
			fields = inner
		}
	}

	for _, name := range []string{"members", "transactions"} {
		if !isArray(fields[name]) {
			return Document{}, fmt.Errorf("%w: %s must be an array", ErrInvalidDocument, name)
		}
	}
	if cats, ok := fields["expenseCategories"]; ok && !isArray(cats) && !isNull(cats) {
		return Document{}, fmt.Errorf("%w: expenseCategories must be an array", ErrInvalidDocument)
	}

	var doc Document
	if err := json.Unmarshal(fields["members"], &doc.Members); err != nil {
		return Document{}, fmt.Errorf("%w: members: %v", ErrInvalidDocument, err)
	}
	if err := json.Unmarshal(fields["transactions"], &doc.Transactions); err != nil {
		return Document{}, fmt.Errorf("%w: transactions: %v", ErrInvalidDocument, err)
	}
	if cats, ok := fields["expenseCategories"]; ok {
		if err := json.Unmarshal(cats, &doc.ExpenseCategories); err != nil {
			return Document{}, fmt.Errorf("%w: expenseCategories: %v", ErrInvalidDocument, err)
		}
	}
	return doc, nil
}

func isArray(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && v[0] == '['
}

func isNull(v json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}
