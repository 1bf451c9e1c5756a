package domain

import "time"

// ServiceHistoryEntry is an append-only audit record written when a
// ticket is completed or closed.
type ServiceHistoryEntry struct {
	ID            string
	TicketID      string
	MachineID     *string
	CustomerID    *string
	EngineerID    *string
	Action        string // completed | closed
	WorkPerformed *string
	SolutionNotes *string
	SparesUsed    []string
	RecordedAt    time.Time
}
