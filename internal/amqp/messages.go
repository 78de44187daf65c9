package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"fintrack/internal/core"
)

// Event types carried on the ledger queue.
const (
	PostingCreated = "posting.created"
	PostingDeleted = "posting.deleted"
	StatementPaid  = "statement.paid"
)

// LedgerEvent is a lightweight notification about a committed ledger change.
// It carries identifiers only; consumers read the row back from the store.
type LedgerEvent struct {
	Type          string    `json:"type"`
	ID            int64     `json:"id"`
	Owner         string    `json:"owner"`
	TransferGroup string    `json:"transfer_group,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewPostingCreatedEvent(p core.Posting) *LedgerEvent {
	return &LedgerEvent{
		Type:          PostingCreated,
		ID:            p.ID,
		Owner:         p.Owner,
		TransferGroup: p.TransferGroup,
		Timestamp:     time.Now().UTC(),
	}
}

func NewPostingDeletedEvent(owner string, id int64) *LedgerEvent {
	return &LedgerEvent{
		Type:      PostingDeleted,
		ID:        id,
		Owner:     owner,
		Timestamp: time.Now().UTC(),
	}
}

func NewStatementPaidEvent(s core.Statement, transferGroup string) *LedgerEvent {
	return &LedgerEvent{
		Type:          StatementPaid,
		ID:            s.ID,
		Owner:         s.Owner,
		TransferGroup: transferGroup,
		Timestamp:     time.Now().UTC(),
	}
}

func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and rejects unknown types.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	switch ev.Type {
	case PostingCreated, PostingDeleted, StatementPaid:
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	if ev.ID <= 0 {
		return nil, fmt.Errorf("event %s without id", ev.Type)
	}
	return &ev, nil
}
