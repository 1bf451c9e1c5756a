package handlers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/field-service/internal/api/dto"
	"github.com/fieldops/field-service/internal/auth"
	"github.com/fieldops/field-service/internal/domain"
	"github.com/fieldops/field-service/internal/service"
	apperrors "github.com/fieldops/field-service/pkg/util"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	tickets    *service.TicketService
	assignment *service.AssignmentService
}

// NewTicketsHandler constructs the handler.
func NewTicketsHandler(tickets *service.TicketService, assignment *service.AssignmentService) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, assignment: assignment}
}

// CreateTicket POST /tickets. No auth required: walk-up reporting is
// allowed, the actor is recorded when a token is present.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		Problem:         req.Problem,
		Priority:        req.Priority,
		IssueCategories: req.IssueCategories,
		CustomerID:      req.CustomerID,
		MachineID:       req.MachineID,
	}
	if req.CustomerData != nil {
		input.CustomerData = &service.CustomerInput{
			CompanyName:   req.CustomerData.CompanyName,
			ContactPerson: req.CustomerData.ContactPerson,
			Email:         req.CustomerData.Email,
			Phone:         req.CustomerData.Phone,
			City:          req.CustomerData.City,
			Address:       req.CustomerData.Address,
			ServiceNo:     req.CustomerData.ServiceNo,
		}
	}
	if req.MachineData != nil {
		input.MachineData = &service.MachineInput{
			Model:        req.MachineData.Model,
			SerialNumber: req.MachineData.SerialNumber,
		}
	}

	ticket, err := h.tickets.CreateTicket(c.Context(), actor, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	tickets, err := h.tickets.ListTickets(c.Context(), actor, parseTicketQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// ListAvailable GET /tickets/available.
func (h *TicketsHandler) ListAvailable(c *fiber.Ctx) error {
	tickets, err := h.tickets.ListAvailable(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// ListMine GET /tickets/mine.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	id := actor.ID
	tickets, err := h.tickets.ListTickets(c.Context(), actor, service.TicketListFilter{AssignedTo: &id})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// Summary GET /tickets/summary.
func (h *TicketsHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.tickets.Summary(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

// GetTicket GET /tickets/:id. Accepts the internal id or the display id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.tickets.GetTicket(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.UpdateTicket(c.Context(), actor, c.Params("id"),
		req.Problem, req.Description, req.Priority, req.IssueCategories)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// AssignTicket POST /tickets/:id/assign.
func (h *TicketsHandler) AssignTicket(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.Assign(c.Context(), actor, c.Params("id"), req.EngineerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UnassignTicket POST /tickets/:id/unassign.
func (h *TicketsHandler) UnassignTicket(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	ticket, err := h.tickets.Unassign(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// UpdateStatus PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.UpdateStatus(c.Context(), actor, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// CompleteTicket POST /tickets/:id/complete.
func (h *TicketsHandler) CompleteTicket(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	var req dto.CompleteTicketRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.Complete(c.Context(), actor, c.Params("id"),
		req.WorkPerformed, req.SolutionNotes, req.SparesUsed)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	var req dto.CloseTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.tickets.Close(c.Context(), actor, c.Params("id"), req.SolutionNotes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// AutoAssign POST /tickets/:id/auto-assign.
func (h *TicketsHandler) AutoAssign(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	ticket, winner, err := h.assignment.AutoAssign(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{
		"ticket":   ticketResponse(ticket),
		"assigned": winner,
	}})
}

// SuggestedEngineers GET /tickets/:id/suggested-engineers.
func (h *TicketsHandler) SuggestedEngineers(c *fiber.Ctx) error {
	suggestions, err := h.assignment.SuggestedEngineers(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": suggestions})
}

func parseTicketQuery(c *fiber.Ctx) service.TicketListFilter {
	filter := service.TicketListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			filter.Statuses = append(filter.Statuses, domain.TicketStatus(strings.TrimSpace(part)))
		}
	}
	if engineer := c.Query("assigned_to"); engineer != "" {
		filter.AssignedTo = &engineer
	}
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:              ticket.ID,
		DisplayID:       ticket.DisplayID,
		Problem:         ticket.Problem,
		Description:     ticket.Description,
		Priority:        ticket.Priority,
		IssueCategories: ticket.IssueCategories,
		CustomerID:      ticket.CustomerID,
		MachineID:       ticket.MachineID,
		Status:          ticket.Status,
		AssignedTo:      ticket.AssignedTo,
		AssignedBy:      ticket.AssignedBy,
		AssignedAt:      ticket.AssignedAt,
		StartedAt:       ticket.StartedAt,
		CompletedAt:     ticket.CompletedAt,
		ClosedAt:        ticket.ClosedAt,
		SolutionNotes:   ticket.SolutionNotes,
		SparesUsed:      ticket.SparesUsed,
		CreatedBy:       ticket.CreatedBy,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
	}
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return items
}
