package models

import (
	"time"

	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketStatusValid     TicketStatus = "valid"
	TicketStatusUsed      TicketStatus = "used"
	TicketStatusCancelled TicketStatus = "cancelled"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID           string       `bun:"id,pk" json:"id"`
	EventID      string       `bun:"event_id,notnull" json:"event_id"`
	UserID       string       `bun:"user_id,notnull" json:"user_id"`
	Code         string       `bun:"code,notnull" json:"code"`
	Status       TicketStatus `bun:"status,notnull" json:"status"`
	PurchaseDate time.Time    `bun:"purchase_date,notnull" json:"purchase_date"`
	ValidatedAt  *time.Time   `bun:"validated_at,nullzero" json:"validated_at,omitempty"`
	Price        float64      `bun:"price" json:"price"`
}

// TicketIssuedEvent is the payload the ticketing service publishes when it
// issues a new ticket. The check-in service consumes it to keep its local
// projection of redeemable tickets current.
type TicketIssuedEvent struct {
	TicketID     string    `json:"ticket_id"`
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	Code         string    `json:"code"`
	Price        float64   `json:"price"`
	PurchaseDate time.Time `json:"purchase_date"`
}

// TicketRedeemedEvent is published on every successful check-in.
type TicketRedeemedEvent struct {
	TicketID    string    `json:"ticket_id"`
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	OperatorID  string    `json:"operator_id"`
	ValidatedAt time.Time `json:"validated_at"`
}
