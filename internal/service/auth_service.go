package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/fieldops/field-service/internal/auth"
	"github.com/fieldops/field-service/internal/domain"
	"github.com/fieldops/field-service/internal/repository"
	apperrors "github.com/fieldops/field-service/pkg/util"
)

// AuthService handles credential login and account provisioning.
type AuthService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Tokens     *auth.TokenManager
	BcryptCost int
	Logger     *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		tokens:     deps.Tokens,
		bcryptCost: deps.BcryptCost,
		logger:     logger,
	}
}

// LoginResult carries the issued token and the authenticated account.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *domain.User
}

// Login verifies credentials and issues a JWT. Unknown emails and wrong
// passwords get the same response.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.MapError(err)
	}
	if user.Status == domain.UserStatusBlocked {
		return nil, apperrors.NewForbidden("account is blocked")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, expiresAt, err := s.tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.logger.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)))

	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// RegisterInput describes account creation.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
	Skills   []domain.Skill
}

// Register creates an account. Only manager-tier actors may create
// accounts, and nobody can mint a role above their own.
func (s *AuthService) Register(ctx context.Context, actor *domain.Actor, input RegisterInput) (*domain.User, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !actor.Role.IsManagerTier() {
		return nil, apperrors.NewForbidden("only managers may create accounts")
	}

	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Name == "" || input.Email == "" || len(input.Password) < 8 {
		return nil, apperrors.NewValidationError("name, email, and a password of at least 8 characters are required", nil)
	}
	if input.Role == "" {
		input.Role = domain.RoleEngineer
	}
	if input.Role.Rank() < 0 {
		return nil, apperrors.NewValidationError("unknown role", map[string]any{"role": input.Role})
	}
	if input.Role.Rank() > actor.Role.Rank() {
		return nil, apperrors.NewForbidden("cannot create an account above your own role")
	}

	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": input.Email})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		Status:       domain.UserStatusActive,
		Availability: domain.AvailabilityOffline,
		Skills:       input.Skills,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(input.Skills) > 0 {
		if err := s.users.ReplaceSkills(ctx, user.ID, input.Skills); err != nil {
			s.logger.Warn("failed to store engineer skills",
				zap.String("user_id", user.ID),
				zap.Error(err))
		}
	}
	return user, nil
}
