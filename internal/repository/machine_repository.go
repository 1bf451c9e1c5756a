package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/field-service/internal/domain"
)

// MachineRepository handles machine records. Serial numbers carry a
// unique constraint; creation surfaces the violation to the caller.
type MachineRepository interface {
	Create(ctx context.Context, machine *domain.Machine) error
	GetByID(ctx context.Context, id string) (*domain.Machine, error)
	GetBySerial(ctx context.Context, serialNumber string) (*domain.Machine, error)
}

type machineRepository struct {
	pool *pgxpool.Pool
}

// NewMachineRepository instantiates the repository.
func NewMachineRepository(pool *pgxpool.Pool) MachineRepository {
	return &machineRepository{pool: pool}
}

func (r *machineRepository) Create(ctx context.Context, machine *domain.Machine) error {
	const query = `
        INSERT INTO machines (model, serial_number, customer_id)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		machine.Model,
		machine.SerialNumber,
		machine.CustomerID,
	).Scan(&machine.ID, &machine.CreatedAt, &machine.UpdatedAt)
}

func (r *machineRepository) GetByID(ctx context.Context, id string) (*domain.Machine, error) {
	const query = `
        SELECT id, model, serial_number, customer_id, created_at, updated_at
        FROM machines WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *machineRepository) GetBySerial(ctx context.Context, serialNumber string) (*domain.Machine, error) {
	const query = `
        SELECT id, model, serial_number, customer_id, created_at, updated_at
        FROM machines WHERE serial_number=$1`
	return r.fetchSingle(ctx, query, serialNumber)
}

func (r *machineRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Machine, error) {
	var machine domain.Machine
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&machine.ID,
		&machine.Model,
		&machine.SerialNumber,
		&machine.CustomerID,
		&machine.CreatedAt,
		&machine.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &machine, nil
}
