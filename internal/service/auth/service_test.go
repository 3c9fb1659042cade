package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroscan/neuroscan-api/internal/config"
	"github.com/neuroscan/neuroscan-api/internal/model"
	"github.com/neuroscan/neuroscan-api/pkg/auth"
	apperrors "github.com/neuroscan/neuroscan-api/pkg/errors"
)

type fakeUserRepo struct {
	byID       map[uuid.UUID]*model.User
	byUsername map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:       make(map[uuid.UUID]*model.User),
		byUsername: make(map[string]*model.User),
	}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *model.User) error {
	if _, exists := r.byUsername[user.Username]; exists {
		return apperrors.Conflict("username already exists", nil)
	}
	r.byID[user.ID] = user
	r.byUsername[user.Username] = user
	return nil
}

func (r *fakeUserRepo) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, apperrors.NotFound("user", nil)
	}
	return u, nil
}

func (r *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	u, ok := r.byUsername[username]
	if !ok {
		return nil, apperrors.NotFound("user", nil)
	}
	return u, nil
}

func newTestService() (Service, *fakeUserRepo) {
	repo := newFakeUserRepo()
	jwtSvc := auth.NewJWTService(config.JWTConfig{
		Secret:             "test-secret",
		RefreshSecret:      "test-refresh-secret",
		ExpiryHours:        1,
		RefreshExpiryHours: 24,
	})
	return NewService(repo, jwtSvc), repo
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, &model.RegisterRequest{
		Username: "tech1",
		Password: "secret-password",
		Role:     "TECHNICIAN",
	})
	require.NoError(t, err)
	assert.Equal(t, model.RoleTechnician, user.Role)
	assert.NotEqual(t, "secret-password", user.PasswordHash)

	tokens, err := svc.Login(ctx, &model.LoginRequest{
		Username: "tech1",
		Password: "secret-password",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
}

func TestRegisterRejectsUnknownRole(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Register(context.Background(), &model.RegisterRequest{
		Username: "admin1",
		Password: "secret-password",
		Role:     "ADMIN",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrValidation))
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &model.RegisterRequest{
		Username: "tech1", Password: "secret-password", Role: "TECHNICIAN",
	})
	require.NoError(t, err)

	_, err = svc.Register(ctx, &model.RegisterRequest{
		Username: "tech1", Password: "other-password", Role: "DOCTOR",
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestLoginBadPassword(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Register(ctx, &model.RegisterRequest{
		Username: "doc1", Password: "secret-password", Role: "DOCTOR",
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, &model.LoginRequest{Username: "doc1", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))

	// Unknown user yields the same error class.
	_, err = svc.Login(ctx, &model.LoginRequest{Username: "nobody", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrUnauthorized))
}

func TestRefresh(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.Register(ctx, &model.RegisterRequest{
		Username: "doc1", Password: "secret-password", Role: "DOCTOR",
	})
	require.NoError(t, err)

	tokens, err := svc.Login(ctx, &model.LoginRequest{Username: "doc1", Password: "secret-password"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(ctx, tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)

	// Access token is not accepted as a refresh token when secrets differ.
	_, err = svc.Refresh(ctx, tokens.AccessToken)
	assert.Error(t, err)

	me, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "doc1", me.Username)
}
