package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Routing keys for expense change events.
const (
	ExpenseCreated = "expense.created"
	ExpenseUpdated = "expense.updated"
	ExpenseDeleted = "expense.deleted"

	// ExpenseBinding matches every expense event on a topic exchange.
	ExpenseBinding = "expense.*"
)

// ExpenseEvent announces that a group's ledger changed.
// It carries identifiers only; consumers reload what they need.
type ExpenseEvent struct {
	Type      string    `json:"type"`
	GroupID   string    `json:"groupId"`
	ExpenseID string    `json:"expenseId"`
	ActorID   string    `json:"actorId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseEvent creates an event stamped with the current time.
func NewExpenseEvent(eventType, groupID, expenseID, actorID string) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      eventType,
		GroupID:   groupID,
		ExpenseID: expenseID,
		ActorID:   actorID,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the event to JSON bytes.
func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes an event and checks the fields consumers rely on.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var e ExpenseEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	switch e.Type {
	case ExpenseCreated, ExpenseUpdated, ExpenseDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.GroupID == "" {
		return nil, fmt.Errorf("event %s without group id", e.Type)
	}
	return &e, nil
}
