package domain

import "time"

// TicketStatus enumerates lifecycle states for service tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "pending"
	TicketStatusAssigned   TicketStatus = "assigned"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusCompleted  TicketStatus = "completed"
	TicketStatusClosed     TicketStatus = "closed"
)

// ValidStatus reports whether s is a known ticket status.
func ValidStatus(s TicketStatus) bool {
	switch s {
	case TicketStatusPending, TicketStatusAssigned, TicketStatusInProgress,
		TicketStatusCompleted, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Ticket is the aggregate for a machine-service incident.
//
// Invariant: Status == pending exactly when AssignedTo == nil. Once a ticket
// reaches completed or closed, AssignedTo is retained as an audit field.
type Ticket struct {
	ID              string
	DisplayID       string
	Problem         string
	Description     string
	Priority        TicketPriority
	IssueCategories []string
	CustomerID      *string
	MachineID       *string
	Status          TicketStatus
	AssignedTo      *string
	AssignedBy      *string
	AssignedAt      *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	ClosedAt        *time.Time
	SolutionNotes   *string
	SparesUsed      []string
	CreatedBy       *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
