package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kakeibo/internal/core"
)

// LedgerChangedMessage announces a committed ledger mutation. It carries no
// record data; consumers read the current snapshot from the source table.
type LedgerChangedMessage struct {
	ID        string        `json:"id"`
	Op        core.ChangeOp `json:"op"`
	Positions []int         `json:"positions,omitempty"`
	Revision  uint64        `json:"revision"`
	Timestamp time.Time     `json:"timestamp"`
}

// NewLedgerChangedMessage wraps a change with a fresh message id.
func NewLedgerChangedMessage(c core.Change) *LedgerChangedMessage {
	return &LedgerChangedMessage{
		ID:        uuid.NewString(),
		Op:        c.Op,
		Positions: c.Positions,
		Revision:  c.Revision,
		Timestamp: time.Now(),
	}
}

// Change returns the ledger change described by the message.
func (m *LedgerChangedMessage) Change() core.Change {
	return core.Change{Op: m.Op, Positions: m.Positions, Revision: m.Revision}
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON decodes and checks a message body.
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(msg.ID); err != nil {
		return nil, fmt.Errorf("invalid message id %q: %w", msg.ID, err)
	}
	switch msg.Op {
	case core.OpAppend, core.OpUpdate, core.OpDelete, core.OpReload:
	default:
		return nil, fmt.Errorf("unknown op %q", msg.Op)
	}
	return &msg, nil
}
