package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	apperrors "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/errors"
)

func newTestTokenService(repo *mockTokenRepository) *TokenService {
	return NewTokenService(repo, newTestLogger())
}

// --- Issue Tests ---

func TestTokenService_Issue_Success(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	var stored *domain.AuthToken
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.AuthToken")).
		Run(func(args mock.Arguments) {
			stored = args.Get(1).(*domain.AuthToken)
		}).
		Return(nil)

	token, raw, err := svc.Issue(context.Background(), IssueInput{
		IdentityID: "user-1",
		Kind:       domain.TokenKindSession,
		FromIP:     "203.0.113.7",
		UserAgent:  "doorpro-ios/2.1",
	})

	require.NoError(t, err)
	require.NotNil(t, token)
	assert.NotEmpty(t, raw)
	assert.NotEqual(t, raw, token.TokenHash, "raw token must never be stored")
	assert.Equal(t, hashToken(raw), token.TokenHash)
	assert.Equal(t, stored.ID, token.ID)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), token.ExpiresAt, time.Minute)
	repo.AssertExpectations(t)
}

func TestTokenService_Issue_APITokenTTL(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	token, _, err := svc.Issue(context.Background(), IssueInput{
		IdentityID: "user-1",
		Kind:       domain.TokenKindAPI,
	})

	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), token.ExpiresAt, time.Minute)
}

func TestTokenService_Issue_RawTokensUnique(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		_, raw, err := svc.Issue(context.Background(), IssueInput{
			IdentityID: "user-1",
			Kind:       domain.TokenKindSession,
		})
		require.NoError(t, err)
		assert.False(t, seen[raw], "duplicate raw token issued")
		seen[raw] = true
	}
}

func TestTokenService_Issue_UnknownKind(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	_, _, err := svc.Issue(context.Background(), IssueInput{
		IdentityID: "user-1",
		Kind:       "refresh",
	})

	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	repo.AssertNotCalled(t, "Create")
}

func TestTokenService_Issue_StorageFailureSurfaces(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	_, raw, err := svc.Issue(context.Background(), IssueInput{
		IdentityID: "user-1",
		Kind:       domain.TokenKindSession,
	})

	assert.Empty(t, raw)
	assert.True(t, errors.Is(err, apperrors.ErrStorage))
}

// --- Verify Tests ---

func TestTokenService_Verify_Success(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	raw := "raw-token"
	stored := &domain.AuthToken{
		ID:         "tok-1",
		IdentityID: "user-1",
		TokenHash:  hashToken(raw),
		Kind:       domain.TokenKindSession,
		ExpiresAt:  time.Now().UTC().Add(time.Hour),
	}

	repo.On("GetByHash", mock.Anything, hashToken(raw)).Return(stored, nil)
	repo.On("TouchLastUsed", mock.Anything, "tok-1", mock.Anything).Return(nil)

	got := svc.Verify(context.Background(), raw, domain.TokenKindSession)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.IdentityID)
	repo.AssertExpectations(t)
}

func TestTokenService_Verify_UnknownToken(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	repo.On("GetByHash", mock.Anything, mock.Anything).Return(nil, apperrors.ErrNotFound)

	got := svc.Verify(context.Background(), "nope", domain.TokenKindSession)
	assert.Nil(t, got)
}

func TestTokenService_Verify_EmptyToken(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	got := svc.Verify(context.Background(), "", domain.TokenKindSession)
	assert.Nil(t, got)
	repo.AssertNotCalled(t, "GetByHash")
}

func TestTokenService_Verify_Expired(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	raw := "raw-token"
	stored := &domain.AuthToken{
		ID:        "tok-1",
		TokenHash: hashToken(raw),
		Kind:      domain.TokenKindSession,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	}

	repo.On("GetByHash", mock.Anything, hashToken(raw)).Return(stored, nil)

	got := svc.Verify(context.Background(), raw, domain.TokenKindSession)
	assert.Nil(t, got)
	repo.AssertNotCalled(t, "TouchLastUsed")
}

func TestTokenService_Verify_Revoked(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	raw := "raw-token"
	stored := &domain.AuthToken{
		ID:        "tok-1",
		TokenHash: hashToken(raw),
		Kind:      domain.TokenKindSession,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
		Revoked:   true,
	}

	repo.On("GetByHash", mock.Anything, hashToken(raw)).Return(stored, nil)

	got := svc.Verify(context.Background(), raw, domain.TokenKindSession)
	assert.Nil(t, got)
}

func TestTokenService_Verify_KindMismatch(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	raw := "raw-token"
	stored := &domain.AuthToken{
		ID:        "tok-1",
		TokenHash: hashToken(raw),
		Kind:      domain.TokenKindPasswordReset,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	repo.On("GetByHash", mock.Anything, hashToken(raw)).Return(stored, nil)

	got := svc.Verify(context.Background(), raw, domain.TokenKindSession)
	assert.Nil(t, got, "a reset token must not pass as a session token")
}

func TestTokenService_Verify_StorageErrorIsNil(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	repo.On("GetByHash", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	got := svc.Verify(context.Background(), "raw-token", domain.TokenKindSession)
	assert.Nil(t, got)
}

func TestTokenService_Verify_TouchFailureIgnored(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	raw := "raw-token"
	stored := &domain.AuthToken{
		ID:        "tok-1",
		TokenHash: hashToken(raw),
		Kind:      domain.TokenKindAPI,
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}

	repo.On("GetByHash", mock.Anything, hashToken(raw)).Return(stored, nil)
	repo.On("TouchLastUsed", mock.Anything, "tok-1", mock.Anything).Return(errors.New("timeout"))

	got := svc.Verify(context.Background(), raw, domain.TokenKindAPI)
	assert.NotNil(t, got)
}

// --- Revoke Tests ---

func TestTokenService_Revoke_Success(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	repo.On("RevokeByHash", mock.Anything, hashToken("raw-token")).Return(true, nil)

	revoked, err := svc.Revoke(context.Background(), "raw-token")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestTokenService_Revoke_AlreadyRevokedIsIdempotent(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	repo.On("RevokeByHash", mock.Anything, mock.Anything).Return(false, nil)

	// Revoking an already-revoked or unknown token reports false, not an
	// error.
	revoked, err := svc.Revoke(context.Background(), "raw-token")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestTokenService_Revoke_StorageError(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	repo.On("RevokeByHash", mock.Anything, mock.Anything).Return(false, errors.New("timeout"))

	revoked, err := svc.Revoke(context.Background(), "raw-token")
	assert.True(t, errors.Is(err, apperrors.ErrStorage))
	assert.False(t, revoked)
}

func TestTokenService_RevokeAll(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	var kind *domain.TokenKind
	repo.On("RevokeAllByIdentity", mock.Anything, "user-1", kind).Return(int64(3), nil)

	n, err := svc.RevokeAll(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

// --- Sweep Tests ---

func TestTokenService_Sweep(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	repo.On("DeleteExpired", mock.Anything, fixed).Return(int64(7), nil)

	n, err := svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	repo.AssertExpectations(t)
}

func TestTokenService_Sweep_StorageError(t *testing.T) {
	repo := new(mockTokenRepository)
	svc := newTestTokenService(repo)

	repo.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(0), errors.New("timeout"))

	_, err := svc.Sweep(context.Background())
	assert.Error(t, err)
}
