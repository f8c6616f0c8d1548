package models

import "time"

// User is a locally stored account linked to a provider customer.
type User struct {
	CustomerID   string    `json:"customer_id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"first_name"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`

	// Current plan, empty until one is selected.
	PlanID         string     `json:"plan_id,omitempty"`
	ContractID     string     `json:"contract_id,omitempty"`
	PlanSelectedAt *time.Time `json:"plan_selected_at,omitempty"`
}

// Notification event types pushed to subscribers.
const (
	EventConnected         = "connected"
	EventPing              = "ping"
	EventBalanceUpdated    = "balance_updated"
	EventRechargeCompleted = "recharge_completed"
	EventUsageRecorded     = "usage_recorded"
)

// Event is a push notification payload. Type is always set; Data holds
// type-specific fields and is flattened alongside it on the wire.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"-"`
}

// NewEvent builds an event with the given type and fields.
func NewEvent(eventType string, data map[string]any) Event {
	return Event{Type: eventType, Data: data}
}

// Payload returns the flattened wire form of the event.
func (e Event) Payload() map[string]any {
	out := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		out[k] = v
	}
	out["type"] = e.Type
	return out
}
