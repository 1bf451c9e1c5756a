package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fieldops/field-service/internal/domain"
	"github.com/fieldops/field-service/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	copied := *ticket
	r.tickets[ticket.ID] = &copied
	return nil
}

func (r *fakeTicketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *ticket
	return &copied, nil
}

func (r *fakeTicketRepo) GetByDisplayID(ctx context.Context, displayID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ticket := range r.tickets {
		if ticket.DisplayID == displayID {
			copied := *ticket
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTicketRepo) ListWithFilter(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, ticket.Status) {
			continue
		}
		if filter.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.Unassigned && ticket.AssignedTo != nil {
			continue
		}
		result = append(result, *ticket)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (r *fakeTicketRepo) UpdateDetails(ctx context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Problem = ticket.Problem
	stored.Description = ticket.Description
	stored.Priority = ticket.Priority
	stored.IssueCategories = ticket.IssueCategories
	return nil
}

func (r *fakeTicketRepo) AssignIfPending(ctx context.Context, ticketID, engineerID, assignedBy string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.Status != domain.TicketStatusPending {
		return false, nil
	}
	ticket.Status = domain.TicketStatusAssigned
	ticket.AssignedTo = &engineerID
	ticket.AssignedBy = &assignedBy
	ticket.AssignedAt = &at
	return true, nil
}

func (r *fakeTicketRepo) ReassignActive(ctx context.Context, ticketID, engineerID, assignedBy string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || (ticket.Status != domain.TicketStatusAssigned && ticket.Status != domain.TicketStatusInProgress) {
		return false, nil
	}
	ticket.AssignedTo = &engineerID
	ticket.AssignedBy = &assignedBy
	ticket.AssignedAt = &at
	return true, nil
}

func (r *fakeTicketRepo) Unassign(ctx context.Context, ticketID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || (ticket.Status != domain.TicketStatusAssigned && ticket.Status != domain.TicketStatusInProgress) {
		return false, nil
	}
	ticket.Status = domain.TicketStatusPending
	ticket.AssignedTo = nil
	ticket.AssignedBy = nil
	ticket.AssignedAt = nil
	return true, nil
}

func (r *fakeTicketRepo) TransitionStatus(ctx context.Context, ticketID string, from []domain.TicketStatus, to domain.TicketStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || !containsStatus(from, ticket.Status) {
		return false, nil
	}
	ticket.Status = to
	if to == domain.TicketStatusInProgress {
		ticket.StartedAt = &at
	}
	return true, nil
}

func (r *fakeTicketRepo) Complete(ctx context.Context, ticketID string, workPerformed, solutionNotes *string, sparesUsed []string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || (ticket.Status != domain.TicketStatusAssigned && ticket.Status != domain.TicketStatusInProgress) {
		return false, nil
	}
	ticket.Status = domain.TicketStatusCompleted
	ticket.CompletedAt = &at
	if solutionNotes != nil {
		ticket.SolutionNotes = solutionNotes
	}
	if sparesUsed != nil {
		ticket.SparesUsed = sparesUsed
	}
	return true, nil
}

func (r *fakeTicketRepo) Close(ctx context.Context, ticketID, solutionNotes string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || (ticket.Status != domain.TicketStatusCompleted && ticket.Status != domain.TicketStatusInProgress) {
		return false, nil
	}
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &at
	ticket.SolutionNotes = &solutionNotes
	return true, nil
}

func (r *fakeTicketRepo) CountByStatus(ctx context.Context) ([]repository.StatusCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.TicketStatus]int64)
	for _, ticket := range r.tickets {
		counts[ticket.Status]++
	}
	var result []repository.StatusCount
	for status, count := range counts {
		result = append(result, repository.StatusCount{Status: status, Count: count})
	}
	return result, nil
}

func (r *fakeTicketRepo) CountByAssignee(ctx context.Context) ([]repository.AssigneeCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	for _, ticket := range r.tickets {
		if ticket.AssignedTo != nil {
			counts[*ticket.AssignedTo]++
		}
	}
	var result []repository.AssigneeCount
	for assignee, count := range counts {
		id := assignee
		result = append(result, repository.AssigneeCount{AssignedTo: &id, Count: count})
	}
	return result, nil
}

func containsStatus(statuses []domain.TicketStatus, status domain.TicketStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User

	checkOutErr map[string]error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:       make(map[string]*domain.User),
		checkOutErr: make(map[string]error),
	}
}

func (r *fakeUserRepo) add(user *domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	copied := *user
	r.users[user.ID] = &copied
	return user
}

func (r *fakeUserRepo) Create(ctx context.Context, user *domain.User) error {
	r.add(user)
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeUserRepo) ListActiveEngineersWithSkills(ctx context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.users {
		if user.Role == domain.RoleEngineer && user.Status == domain.UserStatusActive {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (r *fakeUserRepo) ListCheckedIn(ctx context.Context) ([]domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.User
	for _, user := range r.users {
		if user.IsCheckedIn {
			result = append(result, *user)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r *fakeUserRepo) ReplaceSkills(ctx context.Context, engineerID string, skills []domain.Skill) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[engineerID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Skills = skills
	return nil
}

func (r *fakeUserRepo) SetAvailability(ctx context.Context, id string, availability domain.Availability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Availability = availability
	return nil
}

func (r *fakeUserRepo) CheckIn(ctx context.Context, id string, at time.Time, rollover bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok || user.IsCheckedIn {
		return false, nil
	}
	user.IsCheckedIn = true
	user.LastCheckIn = &at
	user.Availability = domain.AvailabilityFree
	if rollover {
		user.DailyFirstCheckIn = &at
		user.DailyLastCheckOut = nil
		user.DailyTotalWorkMinutes = 0
	}
	return true, nil
}

func (r *fakeUserRepo) CheckOut(ctx context.Context, id string, effective time.Time, minutes int) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkOutErr[id]; err != nil {
		return nil, err
	}
	user, ok := r.users[id]
	if !ok || !user.IsCheckedIn {
		return nil, pgx.ErrNoRows
	}
	user.IsCheckedIn = false
	user.LastCheckOut = &effective
	user.DailyLastCheckOut = &effective
	user.DailyTotalWorkMinutes += minutes
	user.Availability = domain.AvailabilityOffline
	copied := *user
	return &copied, nil
}

type fakeWorkTimeRepo struct {
	mu      sync.Mutex
	records map[string]*domain.DailyWorkRecord
	upserts int
}

func newFakeWorkTimeRepo() *fakeWorkTimeRepo {
	return &fakeWorkTimeRepo{records: make(map[string]*domain.DailyWorkRecord)}
}

func workRecordKey(engineerID, workDate string) string {
	return engineerID + "|" + workDate
}

func (r *fakeWorkTimeRepo) Upsert(ctx context.Context, record *domain.DailyWorkRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	key := workRecordKey(record.EngineerID, record.WorkDate)
	if existing, ok := r.records[key]; ok {
		record.ID = existing.ID
	} else if record.ID == "" {
		record.ID = uuid.NewString()
	}
	copied := *record
	r.records[key] = &copied
	return nil
}

func (r *fakeWorkTimeRepo) GetByEngineerAndDate(ctx context.Context, engineerID, workDate string) (*domain.DailyWorkRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[workRecordKey(engineerID, workDate)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *record
	return &copied, nil
}

func (r *fakeWorkTimeRepo) ListByEngineer(ctx context.Context, engineerID string, fromDate, toDate *string, limit int) ([]domain.DailyWorkRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.DailyWorkRecord
	for _, record := range r.records {
		if record.EngineerID != engineerID {
			continue
		}
		if fromDate != nil && record.WorkDate < *fromDate {
			continue
		}
		if toDate != nil && record.WorkDate > *toDate {
			continue
		}
		result = append(result, *record)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].WorkDate > result[j].WorkDate })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	entries []domain.ServiceHistoryEntry
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{}
}

func (r *fakeHistoryRepo) Append(ctx context.Context, entry *domain.ServiceHistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry.ID = uuid.NewString()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeHistoryRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.ServiceHistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []domain.ServiceHistoryEntry
	for _, entry := range r.entries {
		if entry.TicketID == ticketID {
			result = append(result, entry)
		}
	}
	return result, nil
}

type fakeCustomerRepo struct {
	mu        sync.Mutex
	customers map[string]*domain.Customer
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{customers: make(map[string]*domain.Customer)}
}

func (r *fakeCustomerRepo) Create(ctx context.Context, customer *domain.Customer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	customer.ID = uuid.NewString()
	copied := *customer
	r.customers[customer.ID] = &copied
	return nil
}

func (r *fakeCustomerRepo) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	customer, ok := r.customers[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *customer
	return &copied, nil
}

type fakeMachineRepo struct {
	mu       sync.Mutex
	machines map[string]*domain.Machine
}

func newFakeMachineRepo() *fakeMachineRepo {
	return &fakeMachineRepo{machines: make(map[string]*domain.Machine)}
}

func (r *fakeMachineRepo) Create(ctx context.Context, machine *domain.Machine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.machines {
		if existing.SerialNumber == machine.SerialNumber {
			return &pgconn.PgError{Code: "23505", ConstraintName: "machines_serial_number_key"}
		}
	}
	machine.ID = uuid.NewString()
	copied := *machine
	r.machines[machine.ID] = &copied
	return nil
}

func (r *fakeMachineRepo) GetByID(ctx context.Context, id string) (*domain.Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	machine, ok := r.machines[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *machine
	return &copied, nil
}

func (r *fakeMachineRepo) GetBySerial(ctx context.Context, serialNumber string) (*domain.Machine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, machine := range r.machines {
		if machine.SerialNumber == serialNumber {
			copied := *machine
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}
