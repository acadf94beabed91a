package models

import "time"

// Inventory event types, also used as AMQP routing keys.
const (
	EventSweetCreated   = "sweet.created"
	EventSweetUpdated   = "sweet.updated"
	EventSweetDeleted   = "sweet.deleted"
	EventSweetPurchased = "sweet.purchased"
	EventSweetRestocked = "sweet.restocked"
)

// SweetEvent is published after every successful inventory write.
type SweetEvent struct {
	Type       string    `json:"type"`
	SweetID    string    `json:"sweetId"`
	Name       string    `json:"name,omitempty"`
	Quantity   int       `json:"quantity"`
	Delta      int       `json:"delta,omitempty"`
	Staff      string    `json:"staff,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
