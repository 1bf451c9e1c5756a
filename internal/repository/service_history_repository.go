package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/field-service/internal/domain"
)

// ServiceHistoryRepository is the append-only audit log written when
// tickets complete or close.
type ServiceHistoryRepository interface {
	Append(ctx context.Context, entry *domain.ServiceHistoryEntry) error
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ServiceHistoryEntry, error)
}

type serviceHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewServiceHistoryRepository instantiates the repository.
func NewServiceHistoryRepository(pool *pgxpool.Pool) ServiceHistoryRepository {
	return &serviceHistoryRepository{pool: pool}
}

func (r *serviceHistoryRepository) Append(ctx context.Context, entry *domain.ServiceHistoryEntry) error {
	const query = `
        INSERT INTO service_history (ticket_id, machine_id, customer_id, engineer_id, action, work_performed, solution_notes, spares_used, recorded_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		entry.TicketID,
		entry.MachineID,
		entry.CustomerID,
		entry.EngineerID,
		entry.Action,
		entry.WorkPerformed,
		entry.SolutionNotes,
		entry.SparesUsed,
		entry.RecordedAt,
	).Scan(&entry.ID)
}

func (r *serviceHistoryRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ServiceHistoryEntry, error) {
	const query = `
        SELECT id, ticket_id, machine_id, customer_id, engineer_id, action, work_performed, solution_notes, spares_used, recorded_at
        FROM service_history WHERE ticket_id=$1 ORDER BY recorded_at`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ServiceHistoryEntry
	for rows.Next() {
		var entry domain.ServiceHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.MachineID,
			&entry.CustomerID,
			&entry.EngineerID,
			&entry.Action,
			&entry.WorkPerformed,
			&entry.SolutionNotes,
			&entry.SparesUsed,
			&entry.RecordedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
