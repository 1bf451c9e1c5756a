package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/field-service/internal/api/dto"
	"github.com/fieldops/field-service/internal/auth"
	"github.com/fieldops/field-service/internal/domain"
	"github.com/fieldops/field-service/internal/service"
	apperrors "github.com/fieldops/field-service/pkg/util"
)

// AuthHandler manages authentication endpoints.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.authService.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      userResponse(result.User),
	}})
}

// Register POST /auth/register. Manager tier only.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	actor, _ := auth.ActorFromContext(c)
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	skills := make([]domain.Skill, 0, len(req.Skills))
	for _, skill := range req.Skills {
		skills = append(skills, domain.Skill{
			Name:            skill.Name,
			Level:           skill.Level,
			YearsExperience: skill.YearsExperience,
		})
	}
	user, err := h.authService.Register(c.Context(), actor, service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		Skills:   skills,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": userResponse(user)})
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Role:         user.Role,
		Status:       string(user.Status),
		Availability: string(user.Availability),
	}
}
