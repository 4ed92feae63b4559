package transfer

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"churchbook/internal/core"
)

func TestEncodeDecode(t *testing.T) {
	doc := Document{
		Members: []core.Member{{ID: 1, Name: "Kim", Position: core.Deacon}},
		Transactions: []core.Transaction{
			{ID: 5, Type: core.Income, Date: "2024-06-09", Category: core.Tithe, Amount: 1000, MemberID: core.MemberRef(1)},
		},
		ExpenseCategories: []string{"Utilities"},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))
	assert.Contains(t, buf.String(), `"memberId": 1`)
	assert.Contains(t, buf.String(), `"expenseCategories"`)

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestEncodeWritesEmptyArrays(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Document{}))
	assert.Contains(t, buf.String(), `"members": []`)
	assert.Contains(t, buf.String(), `"transactions": []`)

	_, err := Decode(&buf)
	require.NoError(t, err)
}

func TestDecodeRejectsMalformedShapes(t *testing.T) {
	cases := map[string]string{
		"not json":               `{{`,
		"top-level array":        `[]`,
		"missing members":        `{"transactions": []}`,
		"missing transactions":   `{"members": []}`,
		"members object":         `{"members": {}, "transactions": []}`,
		"transactions string":    `{"members": [], "transactions": "x"}`,
		"members null":           `{"members": null, "transactions": []}`,
		"categories object":      `{"members": [], "transactions": [], "expenseCategories": {}}`,
		"member wrong type":      `{"members": [{"id": "one"}], "transactions": []}`,
		"envelope without lists": `{"timestamp": "2024-01-01T00:00:00Z", "data": {"members": []}}`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(in))
			require.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestDecodeOptionalCategories(t *testing.T) {
	doc, err := Decode(strings.NewReader(`{"members": [], "transactions": []}`))
	require.NoError(t, err)
	assert.Nil(t, doc.ExpenseCategories)

	doc, err = Decode(strings.NewReader(`{"members": [], "transactions": [], "expenseCategories": null}`))
	require.NoError(t, err)
	assert.Nil(t, doc.ExpenseCategories)
}

func TestSnapshotEnvelope(t *testing.T) {
	snap := core.Snapshot{
		ID:      "abc",
		TakenAt: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
		Data:    core.Dataset{Members: []core.Member{{ID: 2, Name: "Lee"}}, Transactions: []core.Transaction{}},
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeSnapshot(&buf, snap))
	assert.Contains(t, buf.String(), `"timestamp": "2024-06-10T12:00:00Z"`)

	doc, err := Decode(&buf)
	require.NoError(t, err)
	require.Len(t, doc.Members, 1)
	assert.Equal(t, "Lee", doc.Members[0].Name)
}
