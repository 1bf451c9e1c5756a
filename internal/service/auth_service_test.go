package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/field-service/internal/auth"
	"github.com/fieldops/field-service/internal/domain"
	apperrors "github.com/fieldops/field-service/pkg/util"
)

func newTestAuthService(t *testing.T) (*AuthService, *fakeUserRepo) {
	t.Helper()
	users := newFakeUserRepo()
	svc := NewAuthService(AuthDependencies{
		UserRepo:   users,
		Tokens:     auth.NewTokenManager("test-secret", 60),
		BcryptCost: 4, // min cost keeps the test fast
	})
	return svc, users
}

func seedAccount(t *testing.T, users *fakeUserRepo, email, password string, role domain.Role) {
	t.Helper()
	hash, err := auth.HashPassword(password, 4)
	require.NoError(t, err)
	users.add(&domain.User{
		Name:         "Test Account",
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       domain.UserStatusActive,
	})
}

func TestLoginIssuesToken(t *testing.T) {
	svc, users := newTestAuthService(t)
	seedAccount(t, users, "eng@example.com", "s3cret-pass", domain.RoleEngineer)

	result, err := svc.Login(context.Background(), "ENG@example.com ", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, domain.RoleEngineer, result.User.Role)
	assert.False(t, result.ExpiresAt.IsZero())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, users := newTestAuthService(t)
	seedAccount(t, users, "eng@example.com", "s3cret-pass", domain.RoleEngineer)

	_, err := svc.Login(context.Background(), "eng@example.com", "wrong")
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))

	_, err = svc.Login(context.Background(), "nobody@example.com", "s3cret-pass")
	assert.True(t, apperrors.IsCode(err, "UNAUTHORIZED"))
}

func TestRegisterEnforcesRoleCeiling(t *testing.T) {
	svc, _ := newTestAuthService(t)
	manager := &domain.Actor{ID: "mgr-1", Role: domain.RoleManager}

	_, err := svc.Register(context.Background(), manager, RegisterInput{
		Name:     "New Admin",
		Email:    "admin@example.com",
		Password: "long-enough-pass",
		Role:     domain.RoleAdmin,
	})
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	engineer := &domain.Actor{ID: "eng-1", Role: domain.RoleEngineer}
	_, err = svc.Register(context.Background(), engineer, RegisterInput{
		Name:     "Someone",
		Email:    "someone@example.com",
		Password: "long-enough-pass",
	})
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestRegisterCreatesEngineerWithSkills(t *testing.T) {
	svc, users := newTestAuthService(t)
	manager := &domain.Actor{ID: "mgr-1", Role: domain.RoleManager}

	user, err := svc.Register(context.Background(), manager, RegisterInput{
		Name:     "Field Engineer",
		Email:    "Field@Example.com",
		Password: "long-enough-pass",
		Skills: []domain.Skill{
			{Name: "CO2", Level: domain.SkillLevelExpert, YearsExperience: 4},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "field@example.com", user.Email)
	assert.Equal(t, domain.RoleEngineer, user.Role)

	stored, err := users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, stored.Skills, 1)
	assert.Equal(t, "CO2", stored.Skills[0].Name)

	_, err = svc.Register(context.Background(), manager, RegisterInput{
		Name:     "Duplicate",
		Email:    "field@example.com",
		Password: "long-enough-pass",
	})
	assert.True(t, apperrors.IsCode(err, "CONFLICT"))
}
