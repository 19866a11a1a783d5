package amqp

import (
	"encoding/json"
	"time"
)

// Operations carried by a LedgerChangeMessage.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// LedgerChangeMessage announces that one of the ledger documents changed.
// It carries only the collection key, the operation and the record id; the
// worker reloads the full document from the primary store before mirroring it.
type LedgerChangeMessage struct {
	Collection string    `json:"collection"`
	Op         string    `json:"op"`
	ID         string    `json:"id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewLedgerChangeMessage creates a change message stamped with the current time.
func NewLedgerChangeMessage(collection, op, id string) *LedgerChangeMessage {
	return &LedgerChangeMessage{
		Collection: collection,
		Op:         op,
		ID:         id,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangeMessageFromJSON creates a message from JSON bytes
func LedgerChangeMessageFromJSON(data []byte) (*LedgerChangeMessage, error) {
	var msg LedgerChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
