package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/fieldops/field-service/internal/domain"
	"github.com/fieldops/field-service/internal/repository"
	apperrors "github.com/fieldops/field-service/pkg/util"
)

const actorKey = "auth_actor"

// AuthMiddleware validates bearer tokens and loads the acting account.
type AuthMiddleware struct {
	tokens *TokenManager
	users  repository.UserRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	actor, err := m.resolve(c)
	if err != nil {
		return err
	}
	c.Locals(actorKey, actor)
	return c.Next()
}

// HandleOptional loads the actor when a token is present but lets
// anonymous requests through. Ticket creation is intentionally
// unauthenticated-permissive.
func (m *AuthMiddleware) HandleOptional(c *fiber.Ctx) error {
	if c.Get("Authorization") == "" {
		return c.Next()
	}
	actor, err := m.resolve(c)
	if err != nil {
		return err
	}
	c.Locals(actorKey, actor)
	return c.Next()
}

func (m *AuthMiddleware) resolve(c *fiber.Ctx) (*domain.Actor, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return nil, apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.Context(), claims.SubjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("account not found")
		}
		return nil, apperrors.MapError(err)
	}
	if user.Status == domain.UserStatusBlocked {
		return nil, apperrors.NewForbidden("account blocked")
	}

	return &domain.Actor{ID: user.ID, Role: user.Role}, nil
}

// ActorFromContext retrieves the authenticated actor.
func ActorFromContext(c *fiber.Ctx) (*domain.Actor, bool) {
	val := c.Locals(actorKey)
	if val == nil {
		return nil, false
	}
	actor, ok := val.(*domain.Actor)
	return actor, ok
}
