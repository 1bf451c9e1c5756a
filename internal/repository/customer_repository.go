package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldops/field-service/internal/domain"
)

// CustomerRepository handles customer records.
type CustomerRepository interface {
	Create(ctx context.Context, customer *domain.Customer) error
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
}

type customerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository instantiates the repository.
func NewCustomerRepository(pool *pgxpool.Pool) CustomerRepository {
	return &customerRepository{pool: pool}
}

func (r *customerRepository) Create(ctx context.Context, customer *domain.Customer) error {
	const query = `
        INSERT INTO customers (name, company_name, contact_person, email, phone, city, address, service_no)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		customer.Name,
		customer.CompanyName,
		customer.ContactPerson,
		customer.Email,
		customer.Phone,
		customer.City,
		customer.Address,
		customer.ServiceNo,
	).Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt)
}

func (r *customerRepository) GetByID(ctx context.Context, id string) (*domain.Customer, error) {
	const query = `
        SELECT id, name, company_name, contact_person, email, phone, city, address, service_no, created_at, updated_at
        FROM customers WHERE id=$1`
	var customer domain.Customer
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&customer.ID,
		&customer.Name,
		&customer.CompanyName,
		&customer.ContactPerson,
		&customer.Email,
		&customer.Phone,
		&customer.City,
		&customer.Address,
		&customer.ServiceNo,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &customer, nil
}
