package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/repository"
	apperrors "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/errors"
)

// rawTokenBytes is the entropy of a raw token before encoding.
const rawTokenBytes = 32

// TokenService implements the opaque token lifecycle: issuance, verification,
// revocation, and expiry sweeping. All token kinds flow through this one type.
type TokenService struct {
	tokens repository.TokenRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewTokenService creates a new token service.
func NewTokenService(tokens repository.TokenRepository, logger *slog.Logger) *TokenService {
	return &TokenService{
		tokens: tokens,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// IssueInput holds the parameters for issuing a token.
type IssueInput struct {
	IdentityID string
	Kind       domain.TokenKind
	FromIP     string
	UserAgent  string
}

// Issue mints a new opaque token. The raw token is returned exactly once;
// only its SHA-256 digest is stored. A storage failure here is surfaced to
// the caller, never papered over, because a token the client holds but the
// store does not know about would be unverifiable.
func (s *TokenService) Issue(ctx context.Context, input IssueInput) (*domain.AuthToken, string, error) {
	if !domain.IsValidTokenKind(input.Kind) {
		return nil, "", apperrors.InvalidInput(fmt.Sprintf("unknown token kind %q", input.Kind))
	}

	raw, err := generateRawToken()
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	now := s.now()
	token := &domain.AuthToken{
		ID:           uuid.New().String(),
		IdentityID:   input.IdentityID,
		TokenHash:    hashToken(raw),
		Kind:         input.Kind,
		ExpiresAt:    now.Add(input.Kind.TTL()),
		IssuedFromIP: input.FromIP,
		IssuedAgent:  input.UserAgent,
		CreatedAt:    now,
	}

	if err := s.tokens.Create(ctx, token); err != nil {
		return nil, "", apperrors.Storage(err)
	}

	tokensIssued.WithLabelValues(string(input.Kind)).Inc()
	s.logger.InfoContext(ctx, "token issued",
		slog.String("token_id", token.ID),
		slog.String("identity_id", input.IdentityID),
		slog.String("kind", string(input.Kind)),
	)

	return token, raw, nil
}

// Verify checks a raw token against the store. It returns the stored record
// when the token is live and of the expected kind, and nil in every other
// case. Callers cannot distinguish a missing, expired, revoked, or malformed
// token, and that is the point.
func (s *TokenService) Verify(ctx context.Context, raw string, kind domain.TokenKind) *domain.AuthToken {
	if raw == "" {
		tokenVerifications.WithLabelValues("miss").Inc()
		return nil
	}

	token, err := s.tokens.GetByHash(ctx, hashToken(raw))
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.ErrorContext(ctx, "token lookup failed",
				slog.String("error", err.Error()),
			)
			tokenVerifications.WithLabelValues("error").Inc()
			return nil
		}
		tokenVerifications.WithLabelValues("miss").Inc()
		return nil
	}

	if token.Kind != kind || !token.Usable(s.now()) {
		tokenVerifications.WithLabelValues("miss").Inc()
		return nil
	}

	// Best effort; a failed touch must not fail the verification.
	if err := s.tokens.TouchLastUsed(ctx, token.ID, s.now()); err != nil {
		s.logger.WarnContext(ctx, "failed to touch token",
			slog.String("token_id", token.ID),
			slog.String("error", err.Error()),
		)
	}

	tokenVerifications.WithLabelValues("ok").Inc()
	return token
}

// Revoke marks the token identified by its raw value as revoked. Revocation
// is terminal and idempotent: it reports whether a live token was revoked,
// and revoking an already-revoked or unknown token is false, not an error.
// A caller holding a raw value learns nothing it could not learn from Verify.
func (s *TokenService) Revoke(ctx context.Context, raw string) (bool, error) {
	revoked, err := s.tokens.RevokeByHash(ctx, hashToken(raw))
	if err != nil {
		return false, apperrors.Storage(err)
	}
	return revoked, nil
}

// RevokeByHash revokes a token by its stored digest, for callers that hold
// the record rather than the raw value. Same idempotent contract as Revoke.
func (s *TokenService) RevokeByHash(ctx context.Context, tokenHash string) (bool, error) {
	revoked, err := s.tokens.RevokeByHash(ctx, tokenHash)
	if err != nil {
		return false, apperrors.Storage(err)
	}
	return revoked, nil
}

// RevokeAll revokes every live token of the identity, optionally restricted
// to one kind, and returns the number revoked.
func (s *TokenService) RevokeAll(ctx context.Context, identityID string, kind *domain.TokenKind) (int64, error) {
	n, err := s.tokens.RevokeAllByIdentity(ctx, identityID, kind)
	if err != nil {
		return 0, apperrors.Storage(err)
	}

	s.logger.InfoContext(ctx, "tokens revoked",
		slog.String("identity_id", identityID),
		slog.Int64("count", n),
	)

	return n, nil
}

// ListSessions returns the identity's live tokens.
func (s *TokenService) ListSessions(ctx context.Context, identityID string) ([]domain.AuthToken, error) {
	tokens, err := s.tokens.ListActiveByIdentity(ctx, identityID, s.now())
	if err != nil {
		return nil, apperrors.Storage(err)
	}
	return tokens, nil
}

// Sweep deletes expired, unrevoked tokens in one pass. The cutoff is read
// once so a long-running pass uses a consistent notion of now.
func (s *TokenService) Sweep(ctx context.Context) (int64, error) {
	now := s.now()

	n, err := s.tokens.DeleteExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("sweep expired tokens: %w", err)
	}

	if n > 0 {
		tokensSwept.Add(float64(n))
		s.logger.InfoContext(ctx, "expired tokens swept",
			slog.Int64("deleted", n),
		)
	}

	return n, nil
}

// generateRawToken returns a fresh random token in URL-safe base64.
func generateRawToken() (string, error) {
	buf := make([]byte, rawTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// hashToken returns the SHA256 hex digest of the given token string.
func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
