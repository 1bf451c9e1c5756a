package domain

import "time"

// Customer is a serviced party. Simple CRUD record resolved during
// ticket creation.
type Customer struct {
	ID            string
	Name          string
	CompanyName   string
	ContactPerson *string
	Email         *string
	Phone         *string
	City          *string
	Address       *string
	ServiceNo     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Machine is a serviced unit bound to a customer. Serial numbers are
// unique across customers.
type Machine struct {
	ID           string
	Model        string
	SerialNumber string
	CustomerID   *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
