package dto

import (
	"time"

	"github.com/fieldops/field-service/internal/domain"
)

// CustomerData inline payload for ticket creation.
type CustomerData struct {
	CompanyName   string  `json:"company_name"`
	ContactPerson *string `json:"contact_person"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	City          *string `json:"city"`
	Address       *string `json:"address"`
	ServiceNo     *string `json:"service_no"`
}

// MachineData inline payload for ticket creation.
type MachineData struct {
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Problem         string                `json:"problem"`
	Priority        domain.TicketPriority `json:"priority"`
	IssueCategories []string              `json:"issue_categories"`
	CustomerID      *string               `json:"customer_id"`
	MachineID       *string               `json:"machine_id"`
	CustomerData    *CustomerData         `json:"customer_data"`
	MachineData     *MachineData          `json:"machine_data"`
}

// UpdateTicketRequest payload.
type UpdateTicketRequest struct {
	Problem         *string                `json:"problem"`
	Description     *string                `json:"description"`
	Priority        *domain.TicketPriority `json:"priority"`
	IssueCategories []string               `json:"issue_categories"`
}

// AssignTicketRequest payload. EngineerID empty means self-claim.
type AssignTicketRequest struct {
	EngineerID string `json:"engineer_id"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// CompleteTicketRequest payload.
type CompleteTicketRequest struct {
	WorkPerformed *string  `json:"work_performed"`
	SolutionNotes *string  `json:"solution_notes"`
	SparesUsed    []string `json:"spares_used"`
}

// CloseTicketRequest payload.
type CloseTicketRequest struct {
	SolutionNotes string `json:"solution_notes"`
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID              string                `json:"id"`
	DisplayID       string                `json:"display_id"`
	Problem         string                `json:"problem"`
	Description     string                `json:"description,omitempty"`
	Priority        domain.TicketPriority `json:"priority"`
	IssueCategories []string              `json:"issue_categories"`
	CustomerID      *string               `json:"customer_id"`
	MachineID       *string               `json:"machine_id"`
	Status          domain.TicketStatus   `json:"status"`
	AssignedTo      *string               `json:"assigned_to"`
	AssignedBy      *string               `json:"assigned_by"`
	AssignedAt      *time.Time            `json:"assigned_at"`
	StartedAt       *time.Time            `json:"started_at"`
	CompletedAt     *time.Time            `json:"completed_at"`
	ClosedAt        *time.Time            `json:"closed_at"`
	SolutionNotes   *string               `json:"solution_notes"`
	SparesUsed      []string              `json:"spares_used"`
	CreatedBy       *string               `json:"created_by"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// ServiceHistoryResponse is one audit entry on a ticket.
type ServiceHistoryResponse struct {
	ID            string    `json:"id"`
	Action        string    `json:"action"`
	EngineerID    *string   `json:"engineer_id"`
	WorkPerformed *string   `json:"work_performed"`
	SolutionNotes *string   `json:"solution_notes"`
	SparesUsed    []string  `json:"spares_used"`
	RecordedAt    time.Time `json:"recorded_at"`
}
