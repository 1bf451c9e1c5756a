package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/field-service/internal/domain"
	apperrors "github.com/fieldops/field-service/pkg/util"
)

type assignmentFixture struct {
	svc      *AssignmentService
	tickets  *fakeTicketRepo
	users    *fakeUserRepo
	machines *fakeMachineRepo
}

func newAssignmentFixture(t *testing.T) *assignmentFixture {
	t.Helper()
	tickets := newFakeTicketRepo()
	users := newFakeUserRepo()
	machines := newFakeMachineRepo()
	svc := NewAssignmentService(AssignmentDependencies{
		TicketRepo:  tickets,
		UserRepo:    users,
		MachineRepo: machines,
		Clock:       newFakeClock(time.Date(2026, time.March, 10, 11, 0, 0, 0, time.Local)),
	})
	return &assignmentFixture{svc: svc, tickets: tickets, users: users, machines: machines}
}

func (f *assignmentFixture) addCandidate(id string, availability domain.Availability, skills ...domain.Skill) {
	f.users.add(&domain.User{
		ID:           id,
		Name:         id,
		Role:         domain.RoleEngineer,
		Status:       domain.UserStatusActive,
		Availability: availability,
		Skills:       skills,
		CreatedAt:    time.Now().Add(time.Duration(len(f.users.users)) * time.Second),
	})
}

func (f *assignmentFixture) addTicket(t *testing.T, model string, categories ...string) *domain.Ticket {
	t.Helper()
	machine := &domain.Machine{Model: model, SerialNumber: "SN-" + model}
	require.NoError(t, f.machines.Create(context.Background(), machine))
	ticket := &domain.Ticket{
		DisplayID:       fmt.Sprintf("TKT-%s", model),
		Problem:         "does not start",
		Priority:        domain.TicketPriorityMedium,
		IssueCategories: categories,
		MachineID:       &machine.ID,
		Status:          domain.TicketStatusPending,
	}
	require.NoError(t, f.tickets.Create(context.Background(), ticket))
	return ticket
}

func TestAutoAssignPicksBestScoringEngineer(t *testing.T) {
	f := newAssignmentFixture(t)
	manager := &domain.Actor{ID: "mgr-1", Role: domain.RoleManager}

	f.addCandidate("eng-generalist", domain.AvailabilityFree)
	f.addCandidate("eng-specialist", domain.AvailabilityFree,
		domain.Skill{Name: "CO2", Level: domain.SkillLevelExpert, YearsExperience: 4})
	ticket := f.addTicket(t, "CO2 150W")

	assigned, winner, err := f.svc.AutoAssign(context.Background(), manager, ticket.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.TicketStatusAssigned, assigned.Status)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, "eng-specialist", *assigned.AssignedTo)
	assert.InDelta(t, 20.0, winner.Score, 0.001)

	user, err := f.users.GetByID(context.Background(), "eng-specialist")
	require.NoError(t, err)
	assert.Equal(t, domain.AvailabilityBusy, user.Availability)
}

func TestAutoAssignRequiresManagerTier(t *testing.T) {
	f := newAssignmentFixture(t)
	engineer := &domain.Actor{ID: "eng-1", Role: domain.RoleEngineer}
	ticket := f.addTicket(t, "CO2 150W")

	_, _, err := f.svc.AutoAssign(context.Background(), engineer, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestAutoAssignRejectsNonPendingTicket(t *testing.T) {
	f := newAssignmentFixture(t)
	manager := &domain.Actor{ID: "mgr-1", Role: domain.RoleManager}
	f.addCandidate("eng-1", domain.AvailabilityFree)
	ticket := f.addTicket(t, "CO2 150W")

	_, _, err := f.svc.AutoAssign(context.Background(), manager, ticket.ID)
	require.NoError(t, err)

	_, _, err = f.svc.AutoAssign(context.Background(), manager, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "INVALID_STATE"))
}

func TestAutoAssignFailsWithoutCandidates(t *testing.T) {
	f := newAssignmentFixture(t)
	manager := &domain.Actor{ID: "mgr-1", Role: domain.RoleManager}
	f.addCandidate("eng-offline", domain.AvailabilityOffline)
	ticket := f.addTicket(t, "CO2 150W")

	_, _, err := f.svc.AutoAssign(context.Background(), manager, ticket.ID)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestSuggestedEngineersReturnsTopFive(t *testing.T) {
	f := newAssignmentFixture(t)

	f.addCandidate("eng-best", domain.AvailabilityFree,
		domain.Skill{Name: "laser", Level: domain.SkillLevelExpert, YearsExperience: 6})
	for i := 0; i < 6; i++ {
		f.addCandidate(fmt.Sprintf("eng-%d", i), domain.AvailabilityFree)
	}
	ticket := f.addTicket(t, "Laser 500", "laser optics")

	suggestions, err := f.svc.SuggestedEngineers(context.Background(), ticket.ID)
	require.NoError(t, err)

	require.Len(t, suggestions, 5)
	assert.Equal(t, "eng-best", suggestions[0].EngineerID)
	assert.True(t, suggestions[0].IsAvailable)
	assert.Equal(t, []string{"laser"}, suggestions[0].MatchingSkills)
	for i := 1; i < len(suggestions); i++ {
		assert.LessOrEqual(t, suggestions[i].Score, suggestions[i-1].Score)
	}
}
