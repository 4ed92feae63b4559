package amqp

import (
	"encoding/json"
	"time"
)

// LedgerChangedMessage announces that the ledger state moved to Revision.
// It carries no ledger data; consumers read the store themselves.
type LedgerChangedMessage struct {
	Revision  int64     `json:"revision"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(revision int64, reason string) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		Revision:  revision,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
