package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fieldops/field-service/internal/domain"
	"github.com/fieldops/field-service/internal/repository"
	apperrors "github.com/fieldops/field-service/pkg/util"
)

const pgUniqueViolation = "23505"

// DirectoryService resolves customers and machines during ticket
// creation: an existing id is validated, inline data creates a record.
type DirectoryService struct {
	customers repository.CustomerRepository
	machines  repository.MachineRepository
}

// NewDirectoryService constructs the directory.
func NewDirectoryService(customers repository.CustomerRepository, machines repository.MachineRepository) *DirectoryService {
	return &DirectoryService{customers: customers, machines: machines}
}

// ResolveOrCreateCustomer returns the id of an existing customer or
// creates one from the inline payload.
func (s *DirectoryService) ResolveOrCreateCustomer(ctx context.Context, customerID *string, data *CustomerInput) (*string, error) {
	if customerID != nil {
		if _, err := s.customers.GetByID(ctx, *customerID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("customer", map[string]any{"customer_id": *customerID})
			}
			return nil, apperrors.MapError(err)
		}
		return customerID, nil
	}
	if data == nil {
		return nil, apperrors.NewValidationError("customer data required", nil)
	}

	customer := &domain.Customer{
		Name:          strings.TrimSpace(data.CompanyName),
		CompanyName:   strings.TrimSpace(data.CompanyName),
		ContactPerson: data.ContactPerson,
		Email:         data.Email,
		Phone:         data.Phone,
		City:          data.City,
		Address:       data.Address,
		ServiceNo:     data.ServiceNo,
	}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, apperrors.MapError(err)
	}
	return &customer.ID, nil
}

// ResolveOrCreateMachine returns the id of an existing machine or creates
// one. A serial-number collision resolves to the existing machine when it
// belongs to the same customer (or to none); a serial already bound to a
// different customer is a conflict.
func (s *DirectoryService) ResolveOrCreateMachine(ctx context.Context, machineID *string, data *MachineInput, customerID *string) (*string, error) {
	if machineID != nil {
		if _, err := s.machines.GetByID(ctx, *machineID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("machine", map[string]any{"machine_id": *machineID})
			}
			return nil, apperrors.MapError(err)
		}
		return machineID, nil
	}
	if data == nil {
		return nil, apperrors.NewValidationError("machine data required", nil)
	}

	machine := &domain.Machine{
		Model:        strings.TrimSpace(data.Model),
		SerialNumber: strings.TrimSpace(data.SerialNumber),
		CustomerID:   customerID,
	}
	if err := s.machines.Create(ctx, machine); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			existing, lookupErr := s.machines.GetBySerial(ctx, machine.SerialNumber)
			if lookupErr != nil {
				return nil, apperrors.MapError(lookupErr)
			}
			if existing.CustomerID != nil && customerID != nil && *existing.CustomerID != *customerID {
				return nil, apperrors.NewConflict("machine serial belongs to another customer",
					map[string]any{"serial_number": machine.SerialNumber})
			}
			return &existing.ID, nil
		}
		return nil, apperrors.MapError(err)
	}
	return &machine.ID, nil
}
