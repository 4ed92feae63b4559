package storage

import (
	"encoding/json"
	"fmt"

	"churchbook/internal/core"
)

var slotOrder = []string{SlotChurchName, SlotMembers, SlotTransactions, SlotExpenseCategories, SlotPINHash}

func encodeSlots(st core.State) (map[string][]byte, error) {
	members := st.Members
	if members == nil {
		members = []core.Member{}
	}
	txs := st.Transactions
	if txs == nil {
		txs = []core.Transaction{}
	}

	values := map[string]any{
		SlotChurchName:        st.ChurchName,
		SlotMembers:           members,
		SlotTransactions:      txs,
		SlotExpenseCategories: st.ExpenseCategories,
		SlotPINHash:           st.PINHash,
	}
	out := make(map[string][]byte, len(values))
	for name, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode slot %s: %w", name, err)
		}
		out[name] = b
	}
	return out, nil
}

// decodeSlot fills the State field named by slot. Unknown slots are ignored.
func decodeSlot(st *core.State, slot string, value []byte) error {
	var target any
	switch slot {
	case SlotChurchName:
		target = &st.ChurchName
	case SlotMembers:
		target = &st.Members
	case SlotTransactions:
		target = &st.Transactions
	case SlotExpenseCategories:
		target = &st.ExpenseCategories
	case SlotPINHash:
		target = &st.PINHash
	default:
		return nil
	}
	if err := json.Unmarshal(value, target); err != nil {
		return fmt.Errorf("decode slot %s: %w", slot, err)
	}
	return nil
}
