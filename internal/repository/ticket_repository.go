package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/field-service/internal/domain"
)

// TicketFilter captures listing parameters.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	AssignedTo *string
	Unassigned bool
	CustomerID *string
	CreatedBy  *string
	Limit      int
	Offset     int
}

// StatusCount is one row of the status summary aggregation.
type StatusCount struct {
	Status domain.TicketStatus
	Count  int64
}

// AssigneeCount is one row of the per-engineer summary aggregation.
type AssigneeCount struct {
	AssignedTo *string
	Count      int64
}

// TicketRepository encapsulates ticket persistence. All mutating state
// transitions are single conditional UPDATE statements: the boolean result
// reports whether the precondition matched, which is what makes concurrent
// claims settle with exactly one winner.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetByDisplayID(ctx context.Context, displayID string) (*domain.Ticket, error)
	ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	UpdateDetails(ctx context.Context, ticket *domain.Ticket) error

	AssignIfPending(ctx context.Context, ticketID, engineerID, assignedBy string, at time.Time) (bool, error)
	ReassignActive(ctx context.Context, ticketID, engineerID, assignedBy string, at time.Time) (bool, error)
	Unassign(ctx context.Context, ticketID string) (bool, error)
	TransitionStatus(ctx context.Context, ticketID string, from []domain.TicketStatus, to domain.TicketStatus, at time.Time) (bool, error)
	Complete(ctx context.Context, ticketID string, workPerformed, solutionNotes *string, sparesUsed []string, at time.Time) (bool, error)
	Close(ctx context.Context, ticketID, solutionNotes string, at time.Time) (bool, error)

	CountByStatus(ctx context.Context) ([]StatusCount, error)
	CountByAssignee(ctx context.Context) ([]AssigneeCount, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, display_id, problem, description, priority, issue_categories,
               customer_id, machine_id, status, assigned_to, assigned_by, assigned_at,
               started_at, completed_at, closed_at, solution_notes, spares_used,
               created_by, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (display_id, problem, description, priority, issue_categories,
            customer_id, machine_id, status, created_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.DisplayID,
		ticket.Problem,
		ticket.Description,
		ticket.Priority,
		ticket.IssueCategories,
		ticket.CustomerID,
		ticket.MachineID,
		ticket.Status,
		ticket.CreatedBy,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetByDisplayID(ctx context.Context, displayID string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE display_id=$1`, ticketColumns)
	return r.fetchSingle(ctx, query, displayID)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := scanTicket(r.pool.QueryRow(ctx, query, arg), &ticket); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListWithFilter(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := fmt.Sprintf(`SELECT %s FROM tickets`, ticketColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.Unassigned {
		clauses = append(clauses, "assigned_to IS NULL")
	}
	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		clauses = append(clauses, fmt.Sprintf("customer_id=$%d", len(args)))
	}
	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("created_by=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) UpdateDetails(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET problem=$1, description=$2, priority=$3, issue_categories=$4, updated_at=NOW()
        WHERE id=$5`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Problem,
		ticket.Description,
		ticket.Priority,
		ticket.IssueCategories,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) AssignIfPending(ctx context.Context, ticketID, engineerID, assignedBy string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET status='assigned', assigned_to=$2, assigned_by=$3, assigned_at=$4, updated_at=NOW()
        WHERE id=$1 AND status='pending'`
	cmd, err := r.pool.Exec(ctx, query, ticketID, engineerID, assignedBy, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) ReassignActive(ctx context.Context, ticketID, engineerID, assignedBy string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET assigned_to=$2, assigned_by=$3, assigned_at=$4, updated_at=NOW()
        WHERE id=$1 AND status IN ('assigned','in_progress')`
	cmd, err := r.pool.Exec(ctx, query, ticketID, engineerID, assignedBy, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) Unassign(ctx context.Context, ticketID string) (bool, error) {
	const query = `
        UPDATE tickets SET status='pending', assigned_to=NULL, assigned_by=NULL, assigned_at=NULL, updated_at=NOW()
        WHERE id=$1 AND status IN ('assigned','in_progress')`
	cmd, err := r.pool.Exec(ctx, query, ticketID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) TransitionStatus(ctx context.Context, ticketID string, from []domain.TicketStatus, to domain.TicketStatus, at time.Time) (bool, error) {
	placeholders := make([]string, len(from))
	args := []any{ticketID, to}
	for i, status := range from {
		args = append(args, status)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	stamp := ""
	if to == domain.TicketStatusInProgress {
		args = append(args, at)
		stamp = fmt.Sprintf(", started_at=$%d", len(args))
	}
	query := fmt.Sprintf(`
        UPDATE tickets SET status=$2%s, updated_at=NOW()
        WHERE id=$1 AND status IN (%s)`, stamp, strings.Join(placeholders, ","))
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) Complete(ctx context.Context, ticketID string, workPerformed, solutionNotes *string, sparesUsed []string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET status='completed', completed_at=$2,
            description=COALESCE($3, description),
            solution_notes=COALESCE($4, solution_notes),
            spares_used=COALESCE($5, spares_used),
            updated_at=NOW()
        WHERE id=$1 AND status IN ('assigned','in_progress')`
	cmd, err := r.pool.Exec(ctx, query, ticketID, at, workPerformed, solutionNotes, sparesUsed)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) Close(ctx context.Context, ticketID, solutionNotes string, at time.Time) (bool, error) {
	const query = `
        UPDATE tickets SET status='closed', closed_at=$2, solution_notes=$3, updated_at=NOW()
        WHERE id=$1 AND status IN ('completed','in_progress')`
	cmd, err := r.pool.Exec(ctx, query, ticketID, at, solutionNotes)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) CountByStatus(ctx context.Context) ([]StatusCount, error) {
	const query = `SELECT status, COUNT(*) FROM tickets GROUP BY status`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []StatusCount
	for rows.Next() {
		var entry StatusCount
		if err := rows.Scan(&entry.Status, &entry.Count); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *ticketRepository) CountByAssignee(ctx context.Context) ([]AssigneeCount, error) {
	const query = `SELECT assigned_to, COUNT(*) FROM tickets GROUP BY assigned_to`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []AssigneeCount
	for rows.Next() {
		var entry AssigneeCount
		if err := rows.Scan(&entry.AssignedTo, &entry.Count); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func scanTicket(row pgx.Row, ticket *domain.Ticket) error {
	return row.Scan(
		&ticket.ID,
		&ticket.DisplayID,
		&ticket.Problem,
		&ticket.Description,
		&ticket.Priority,
		&ticket.IssueCategories,
		&ticket.CustomerID,
		&ticket.MachineID,
		&ticket.Status,
		&ticket.AssignedTo,
		&ticket.AssignedBy,
		&ticket.AssignedAt,
		&ticket.StartedAt,
		&ticket.CompletedAt,
		&ticket.ClosedAt,
		&ticket.SolutionNotes,
		&ticket.SparesUsed,
		&ticket.CreatedBy,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
