package events

import (
	"time"

	"github.com/fieldops/field-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketUnassigned    EventType = "ticket_unassigned"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketCompleted     EventType = "ticket_completed"
	EventTicketClosed        EventType = "ticket_closed"
	EventEngineerCheckedIn   EventType = "engineer_checked_in"
	EventEngineerCheckedOut  EventType = "engineer_checked_out"
	EventAutoCheckoutSweep   EventType = "auto_checkout_sweep"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id,omitempty"`
	ActorID   string      `json:"actor_id,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	DisplayID string                `json:"display_id"`
	Priority  domain.TicketPriority `json:"priority"`
	Problem   string                `json:"problem"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	EngineerID string  `json:"engineer_id"`
	Score      float64 `json:"score,omitempty"`
	Auto       bool    `json:"auto"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// AttendancePayload payload for check-in/check-out events.
type AttendancePayload struct {
	EngineerID   string    `json:"engineer_id"`
	At           time.Time `json:"at"`
	Minutes      int       `json:"minutes,omitempty"`
	AutoCheckout bool      `json:"auto_checkout,omitempty"`
}

// SweepPayload summarizes one auto-checkout sweep.
type SweepPayload struct {
	CheckedOut int `json:"checked_out"`
	Failed     int `json:"failed"`
}
