package dto

import (
	"time"

	"github.com/fieldops/field-service/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// SkillInput describes one engineer competency.
type SkillInput struct {
	Name            string            `json:"name"`
	Level           domain.SkillLevel `json:"level"`
	YearsExperience float64           `json:"years_experience"`
}

// RegisterRequest payload for account creation.
type RegisterRequest struct {
	Name     string       `json:"name"`
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Role     domain.Role  `json:"role"`
	Skills   []SkillInput `json:"skills"`
}

// UserResponse is the wire form of an account.
type UserResponse struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Role         domain.Role `json:"role"`
	Status       string      `json:"status"`
	Availability string      `json:"availability"`
}
