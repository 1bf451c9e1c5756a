package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fieldops/field-service/internal/domain"
	"github.com/fieldops/field-service/internal/events"
	"github.com/fieldops/field-service/internal/repository"
	apperrors "github.com/fieldops/field-service/pkg/util"
)

// TicketService orchestrates the ticket lifecycle state machine:
//
//	pending --assign--> assigned --start--> in_progress --complete--> completed --close--> closed
//
// with assigned|in_progress --unassign--> pending. Closed is terminal.
// Availability flips are secondary side effects of transitions: a failure
// there is logged and never rolls back the ticket update.
type TicketService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	history    repository.ServiceHistoryRepository
	directory  *DirectoryService
	dispatcher events.Dispatcher
	clock      Clock
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	HistoryRepo repository.ServiceHistoryRepository
	Directory   *DirectoryService
	Dispatcher  events.Dispatcher
	Clock       Clock
	Logger      *zap.Logger
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		history:    deps.HistoryRepo,
		directory:  deps.Directory,
		dispatcher: deps.Dispatcher,
		clock:      clock,
		logger:     logger,
	}
}

// CustomerInput describes inline customer data on ticket creation.
type CustomerInput struct {
	CompanyName   string
	ContactPerson *string
	Email         *string
	Phone         *string
	City          *string
	Address       *string
	ServiceNo     *string
}

// MachineInput describes inline machine data on ticket creation.
type MachineInput struct {
	Model        string
	SerialNumber string
}

// TicketCreateInput describes ticket creation payload. Either the id or
// the inline data must be present for customer and machine.
type TicketCreateInput struct {
	Problem         string
	Priority        domain.TicketPriority
	IssueCategories []string
	CustomerID      *string
	MachineID       *string
	CustomerData    *CustomerInput
	MachineData     *MachineInput
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	AssignedTo *string
	OpenOnly   bool
	Limit      int
	Offset     int
}

// CreateTicket validates input, resolves customer and machine through the
// party directory, and creates a pending unassigned ticket. Creation is
// intentionally unauthenticated-permissive: actor may be nil.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	var missing []string
	if strings.TrimSpace(input.Problem) == "" {
		missing = append(missing, "problem")
	}
	if input.CustomerID == nil && (input.CustomerData == nil || strings.TrimSpace(input.CustomerData.CompanyName) == "") {
		missing = append(missing, "customerId")
	}
	if input.MachineID == nil && (input.MachineData == nil || input.MachineData.Model == "" || input.MachineData.SerialNumber == "") {
		missing = append(missing, "machineId")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", ")), nil)
	}

	customerID, err := s.directory.ResolveOrCreateCustomer(ctx, input.CustomerID, input.CustomerData)
	if err != nil {
		return nil, err
	}
	machineID, err := s.directory.ResolveOrCreateMachine(ctx, input.MachineID, input.MachineData, customerID)
	if err != nil {
		return nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}

	ticket := &domain.Ticket{
		DisplayID:       fmt.Sprintf("TKT-%d", s.clock.Now().UnixMilli()),
		Problem:         strings.TrimSpace(input.Problem),
		Priority:        priority,
		IssueCategories: input.IssueCategories,
		CustomerID:      customerID,
		MachineID:       machineID,
		Status:          domain.TicketStatusPending,
	}
	if actor != nil {
		createdBy := actor.ID
		ticket.CreatedBy = &createdBy
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		ActorID:  actorID(actor),
		Payload: events.TicketCreatedPayload{
			DisplayID: ticket.DisplayID,
			Priority:  ticket.Priority,
			Problem:   ticket.Problem,
		},
	})
	return ticket, nil
}

// GetTicket resolves a ticket by id, falling back to the display id.
func (s *TicketService) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}
	ticket, err = s.tickets.GetByDisplayID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// ListTickets returns tickets for the actor. Engineers without an
// explicit filter see only their own assignments.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		Statuses:   filter.Statuses,
		AssignedTo: filter.AssignedTo,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if filter.OpenOnly {
		repoFilter.Statuses = []domain.TicketStatus{domain.TicketStatusPending}
	} else if filter.AssignedTo == nil && actor != nil && actor.Role == domain.RoleEngineer {
		id := actor.ID
		repoFilter.AssignedTo = &id
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListAvailable returns the pending unassigned pool engineers can claim from.
func (s *TicketService) ListAvailable(ctx context.Context) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses:   []domain.TicketStatus{domain.TicketStatusPending},
		Unassigned: true,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// UpdateTicket edits problem, description, priority and categories.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.Actor, ticketID string, problem, description *string, priority *domain.TicketPriority, categories []string) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.requireActorOnTicket(actor, ticket); err != nil {
		return nil, err
	}
	if problem != nil {
		ticket.Problem = strings.TrimSpace(*problem)
	}
	if description != nil {
		ticket.Description = *description
	}
	if priority != nil {
		ticket.Priority = *priority
	}
	if categories != nil {
		ticket.IssueCategories = categories
	}
	if err := s.tickets.UpdateDetails(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// Assign claims or assigns a ticket. Engineers may only claim pending
// tickets for themselves; manager-tier actors may assign anyone and
// reassign non-pending tickets. The claim is a single conditional update
// so two racing engineers settle with exactly one winner.
func (s *TicketService) Assign(ctx context.Context, actor *domain.Actor, ticketID, engineerID string) (*domain.Ticket, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if engineerID == "" {
		engineerID = actor.ID
	}

	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if actor.Role == domain.RoleEngineer {
		if engineerID != actor.ID {
			return nil, apperrors.NewForbidden("engineers may only claim tickets for themselves")
		}
		if ticket.Status != domain.TicketStatusPending {
			return nil, apperrors.NewInvalidState("ticket is not pending", map[string]any{"status": ticket.Status})
		}
	} else if !actor.Role.IsManagerTier() {
		return nil, apperrors.NewForbidden("insufficient role for assignment")
	}

	target, err := s.users.GetByID(ctx, engineerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("engineer", map[string]any{"engineer_id": engineerID})
		}
		return nil, apperrors.MapError(err)
	}
	if target.Role != domain.RoleEngineer {
		return nil, apperrors.NewValidationError("assignee is not an engineer", map[string]any{"engineer_id": engineerID})
	}

	now := s.clock.Now()
	previousAssignee := ticket.AssignedTo

	switch ticket.Status {
	case domain.TicketStatusPending:
		matched, err := s.tickets.AssignIfPending(ctx, ticket.ID, engineerID, actor.ID, now)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !matched {
			return nil, apperrors.NewConflict("ticket was claimed by someone else", map[string]any{"ticket_id": ticket.ID})
		}
	case domain.TicketStatusAssigned, domain.TicketStatusInProgress:
		matched, err := s.tickets.ReassignActive(ctx, ticket.ID, engineerID, actor.ID, now)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !matched {
			return nil, apperrors.NewConflict("ticket state changed during reassignment", map[string]any{"ticket_id": ticket.ID})
		}
	default:
		return nil, apperrors.NewInvalidState("ticket cannot be assigned in current status", map[string]any{"status": ticket.Status})
	}

	s.flipAvailability(ctx, engineerID, domain.AvailabilityBusy)
	if previousAssignee != nil && *previousAssignee != engineerID {
		s.flipAvailability(ctx, *previousAssignee, domain.AvailabilityFree)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketAssigned,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketAssignedPayload{EngineerID: engineerID},
	})

	return s.GetTicket(ctx, ticket.ID)
}

// Unassign returns the ticket to the pending pool. Allowed for the
// currently assigned engineer or a manager-tier actor.
func (s *TicketService) Unassign(ctx context.Context, actor *domain.Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.requireActorOnTicket(actor, ticket); err != nil {
		return nil, err
	}

	previousAssignee := ticket.AssignedTo
	matched, err := s.tickets.Unassign(ctx, ticket.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !matched {
		return nil, apperrors.NewInvalidState("ticket is not assigned", map[string]any{"status": ticket.Status})
	}
	if previousAssignee != nil {
		s.flipAvailability(ctx, *previousAssignee, domain.AvailabilityFree)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketUnassigned,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
	})
	return s.GetTicket(ctx, ticket.ID)
}

// UpdateStatus applies a lifecycle transition requested by status name.
// Entering in_progress stamps startedAt; entering completed routes through
// the completion path. Assignment moves go through Assign/Unassign, and
// closing requires notes through Close.
func (s *TicketService) UpdateStatus(ctx context.Context, actor *domain.Actor, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !domain.ValidStatus(newStatus) {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": newStatus})
	}
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.requireActorOnTicket(actor, ticket); err != nil {
		return nil, err
	}

	oldStatus := ticket.Status
	switch newStatus {
	case domain.TicketStatusInProgress:
		matched, err := s.tickets.TransitionStatus(ctx, ticket.ID,
			[]domain.TicketStatus{domain.TicketStatusAssigned}, domain.TicketStatusInProgress, s.clock.Now())
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if !matched {
			return nil, apperrors.NewInvalidState("only assigned tickets can be started", map[string]any{"status": oldStatus})
		}
	case domain.TicketStatusCompleted:
		if err := s.completeInternal(ctx, actor, ticket, nil, nil, nil); err != nil {
			return nil, err
		}
	case domain.TicketStatusClosed:
		return nil, apperrors.NewValidationError("closing requires solution notes; use the close operation", nil)
	case domain.TicketStatusPending:
		return nil, apperrors.NewInvalidState("use unassign to return a ticket to pending", nil)
	case domain.TicketStatusAssigned:
		return nil, apperrors.NewInvalidState("use assign to allocate a ticket", nil)
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketStatusChangedPayload{OldStatus: oldStatus, NewStatus: newStatus},
	})
	return s.GetTicket(ctx, ticket.ID)
}

// Complete finishes the service visit: stamps completedAt, records the
// work in the service history, and frees the engineer.
func (s *TicketService) Complete(ctx context.Context, actor *domain.Actor, ticketID string, workPerformed, solutionNotes *string, sparesUsed []string) (*domain.Ticket, error) {
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.requireActorOnTicket(actor, ticket); err != nil {
		return nil, err
	}
	if err := s.completeInternal(ctx, actor, ticket, workPerformed, solutionNotes, sparesUsed); err != nil {
		return nil, err
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCompleted,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketStatusChangedPayload{OldStatus: ticket.Status, NewStatus: domain.TicketStatusCompleted},
	})
	return s.GetTicket(ctx, ticket.ID)
}

func (s *TicketService) completeInternal(ctx context.Context, actor *domain.Actor, ticket *domain.Ticket, workPerformed, solutionNotes *string, sparesUsed []string) error {
	now := s.clock.Now()
	matched, err := s.tickets.Complete(ctx, ticket.ID, workPerformed, solutionNotes, sparesUsed, now)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !matched {
		return apperrors.NewInvalidState("only assigned or in-progress tickets can be completed", map[string]any{"status": ticket.Status})
	}

	if ticket.AssignedTo != nil {
		s.flipAvailability(ctx, *ticket.AssignedTo, domain.AvailabilityFree)
	}
	s.appendHistory(ctx, ticket, "completed", workPerformed, solutionNotes, sparesUsed, now)
	return nil
}

// Close finalizes a completed or in-progress ticket. Solution notes are
// mandatory. Availability release is idempotent: completion usually freed
// the engineer already.
func (s *TicketService) Close(ctx context.Context, actor *domain.Actor, ticketID, solutionNotes string) (*domain.Ticket, error) {
	if strings.TrimSpace(solutionNotes) == "" {
		return nil, apperrors.NewValidationError("solution notes are required for closing", nil)
	}
	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if err := s.requireActorOnTicket(actor, ticket); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	matched, err := s.tickets.Close(ctx, ticket.ID, solutionNotes, now)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !matched {
		return nil, apperrors.NewInvalidState("only completed or in-progress tickets can be closed", map[string]any{"status": ticket.Status})
	}

	if ticket.AssignedTo != nil {
		s.flipAvailability(ctx, *ticket.AssignedTo, domain.AvailabilityFree)
	}
	s.appendHistory(ctx, ticket, "closed", nil, &solutionNotes, nil, now)

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketClosed,
		TicketID: ticket.ID,
		ActorID:  actor.ID,
		Payload:  events.TicketStatusChangedPayload{OldStatus: ticket.Status, NewStatus: domain.TicketStatusClosed},
	})
	return s.GetTicket(ctx, ticket.ID)
}

// Summary aggregates ticket counts by status and assignee.
func (s *TicketService) Summary(ctx context.Context) (map[string]any, error) {
	byStatus, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byAssignee, err := s.tickets.CountByAssignee(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return map[string]any{
		"statusCounts":   byStatus,
		"engineerCounts": byAssignee,
	}, nil
}

// requireActorOnTicket enforces the shared permission rule for lifecycle
// transitions: only the currently assigned engineer or a manager-tier
// actor may act, regardless of the calling surface.
func (s *TicketService) requireActorOnTicket(actor *domain.Actor, ticket *domain.Ticket) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if actor.Role.IsManagerTier() {
		return nil
	}
	if ticket.AssignedTo != nil && *ticket.AssignedTo == actor.ID {
		return nil
	}
	return apperrors.NewForbidden("only the assigned engineer or a manager may act on this ticket")
}

func (s *TicketService) flipAvailability(ctx context.Context, engineerID string, availability domain.Availability) {
	if err := s.users.SetAvailability(ctx, engineerID, availability); err != nil {
		// The ticket status is the source of truth; stale availability is
		// reconciled out of band.
		s.logger.Warn("failed to update engineer availability",
			zap.String("engineer_id", engineerID),
			zap.String("availability", string(availability)),
			zap.Error(err))
	}
}

func (s *TicketService) appendHistory(ctx context.Context, ticket *domain.Ticket, action string, workPerformed, solutionNotes *string, sparesUsed []string, at time.Time) {
	if s.history == nil {
		return
	}
	entry := &domain.ServiceHistoryEntry{
		TicketID:      ticket.ID,
		MachineID:     ticket.MachineID,
		CustomerID:    ticket.CustomerID,
		EngineerID:    ticket.AssignedTo,
		Action:        action,
		WorkPerformed: workPerformed,
		SolutionNotes: solutionNotes,
		SparesUsed:    sparesUsed,
		RecordedAt:    at,
	}
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Warn("failed to append service history",
			zap.String("ticket_id", ticket.ID),
			zap.String("action", action),
			zap.Error(err))
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}

func actorID(actor *domain.Actor) string {
	if actor == nil {
		return ""
	}
	return actor.ID
}
