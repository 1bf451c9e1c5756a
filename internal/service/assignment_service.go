package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fieldops/field-service/internal/domain"
	"github.com/fieldops/field-service/internal/events"
	"github.com/fieldops/field-service/internal/repository"
	apperrors "github.com/fieldops/field-service/pkg/util"
)

// AssignmentService picks the best-fit engineer for a ticket using the
// scoring heuristic. The selection itself is advisory; the commit goes
// through the same conditional update as manual claims, so a racing
// manual assignment simply wins and auto-assign reports a conflict.
type AssignmentService struct {
	tickets    repository.TicketRepository
	users      repository.UserRepository
	machines   repository.MachineRepository
	dispatcher events.Dispatcher
	clock      Clock
	logger     *zap.Logger
}

// AssignmentDependencies bundles collaborators for the assignment service.
type AssignmentDependencies struct {
	TicketRepo  repository.TicketRepository
	UserRepo    repository.UserRepository
	MachineRepo repository.MachineRepository
	Dispatcher  events.Dispatcher
	Clock       Clock
	Logger      *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		users:      deps.UserRepo,
		machines:   deps.MachineRepo,
		dispatcher: deps.Dispatcher,
		clock:      clock,
		logger:     logger,
	}
}

// EngineerSuggestion is one ranked candidate for a ticket.
type EngineerSuggestion struct {
	EngineerID     string   `json:"engineerId"`
	Name           string   `json:"name"`
	Score          float64  `json:"score"`
	IsAvailable    bool     `json:"isAvailable"`
	MatchingSkills []string `json:"matchingSkills"`
}

// AutoAssign ranks the candidate pool and commits the top scorer with a
// pending-only conditional update.
func (s *AssignmentService) AutoAssign(ctx context.Context, actor *domain.Actor, ticketID string) (*domain.Ticket, *EngineerSuggestion, error) {
	if actor == nil {
		return nil, nil, apperrors.NewUnauthorized("authentication required")
	}
	if !actor.Role.IsManagerTier() {
		return nil, nil, apperrors.NewForbidden("only managers may auto-assign tickets")
	}

	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, nil, apperrors.MapError(err)
	}
	if ticket.Status != domain.TicketStatusPending {
		return nil, nil, apperrors.NewInvalidState("only pending tickets can be auto-assigned", map[string]any{"status": ticket.Status})
	}

	ranked, err := s.rankForTicket(ctx, ticket)
	if err != nil {
		return nil, nil, err
	}
	if len(ranked) == 0 {
		return nil, nil, apperrors.NewNotFound("eligible engineer", map[string]any{"ticket_id": ticket.ID})
	}

	winner := ranked[0]
	matched, err := s.tickets.AssignIfPending(ctx, ticket.ID, winner.Engineer.ID, actor.ID, s.clock.Now())
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	if !matched {
		return nil, nil, apperrors.NewConflict("ticket is no longer pending", map[string]any{"ticket_id": ticket.ID})
	}

	if err := s.users.SetAvailability(ctx, winner.Engineer.ID, domain.AvailabilityBusy); err != nil {
		s.logger.Warn("failed to mark auto-assigned engineer busy",
			zap.String("engineer_id", winner.Engineer.ID),
			zap.Error(err))
	}

	if s.dispatcher != nil {
		event := events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventTicketAssigned,
			TicketID:  ticket.ID,
			ActorID:   actor.ID,
			Timestamp: s.clock.Now(),
			Payload: events.TicketAssignedPayload{
				EngineerID: winner.Engineer.ID,
				Score:      winner.Score,
				Auto:       true,
			},
		}
		if err := s.dispatcher.Publish(ctx, event); err != nil {
			s.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.Error(err))
		}
	}

	assigned, err := s.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	suggestion := s.toSuggestion(winner, ticket)
	return assigned, &suggestion, nil
}

// SuggestedEngineers returns the top five ranked candidates for a ticket
// without committing anything.
func (s *AssignmentService) SuggestedEngineers(ctx context.Context, ticketID string) ([]EngineerSuggestion, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}

	ranked, err := s.rankForTicket(ctx, ticket)
	if err != nil {
		return nil, err
	}
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}

	suggestions := make([]EngineerSuggestion, 0, len(ranked))
	for _, candidate := range ranked {
		suggestions = append(suggestions, s.toSuggestion(candidate, ticket))
	}
	return suggestions, nil
}

func (s *AssignmentService) rankForTicket(ctx context.Context, ticket *domain.Ticket) ([]ScoredEngineer, error) {
	candidates, err := s.users.ListActiveEngineersWithSkills(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	model, err := s.machineModel(ctx, ticket)
	if err != nil {
		return nil, err
	}
	return RankEngineers(candidates, model, ticket.IssueCategories), nil
}

func (s *AssignmentService) machineModel(ctx context.Context, ticket *domain.Ticket) (string, error) {
	if ticket.MachineID == nil {
		return "", nil
	}
	machine, err := s.machines.GetByID(ctx, *ticket.MachineID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", apperrors.MapError(err)
	}
	return machine.Model, nil
}

func (s *AssignmentService) toSuggestion(candidate ScoredEngineer, ticket *domain.Ticket) EngineerSuggestion {
	matching := matchingSkillNames(candidate.Engineer.Skills, ticket.IssueCategories)
	return EngineerSuggestion{
		EngineerID:     candidate.Engineer.ID,
		Name:           candidate.Engineer.Name,
		Score:          candidate.Score,
		IsAvailable:    candidate.Engineer.Availability == domain.AvailabilityFree,
		MatchingSkills: matching,
	}
}

func matchingSkillNames(skills []domain.Skill, issueCategories []string) []string {
	matching := make([]string, 0, len(skills))
	for _, skill := range skills {
		name := strings.ToLower(strings.TrimSpace(skill.Name))
		if name == "" {
			continue
		}
		for _, category := range issueCategories {
			if matchesEitherDirection(name, strings.ToLower(strings.TrimSpace(category))) {
				matching = append(matching, skill.Name)
				break
			}
		}
	}
	return matching
}
