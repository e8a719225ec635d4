package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/event"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/repository"
	apperrors "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/errors"
)

// bcryptCost is the cost factor for bcrypt password hashing.
const bcryptCost = 12

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// CredentialService implements password authentication and the password and
// email token flows built on top of the token service.
type CredentialService struct {
	identities repository.IdentityRepository
	tokenSvc   *TokenService
	producer   *event.Producer
	logger     *slog.Logger
}

// NewCredentialService creates a new credential service.
func NewCredentialService(
	identities repository.IdentityRepository,
	tokenSvc *TokenService,
	producer *event.Producer,
	logger *slog.Logger,
) *CredentialService {
	return &CredentialService{
		identities: identities,
		tokenSvc:   tokenSvc,
		producer:   producer,
		logger:     logger,
	}
}

// Authenticate verifies a username and password pair. Every failure, whether
// the username is unknown or the password is wrong, returns the same
// INVALID_CREDENTIALS error so a caller cannot probe for valid usernames.
func (s *CredentialService) Authenticate(ctx context.Context, username, password string) (*domain.Identity, error) {
	if username == "" || password == "" {
		return nil, apperrors.InvalidCredentials()
	}

	identity, err := s.identities.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.InvalidCredentials()
		}
		return nil, apperrors.Storage(err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(password)); err != nil {
		return nil, apperrors.InvalidCredentials()
	}

	s.logger.InfoContext(ctx, "identity authenticated",
		slog.String("identity_id", identity.ID),
	)

	return identity, nil
}

// ChangePassword verifies the current password, stores a new hash, and
// revokes every outstanding token so other devices must log in again.
func (s *CredentialService) ChangePassword(ctx context.Context, identityID, currentPassword, newPassword string) error {
	if currentPassword == "" {
		return apperrors.InvalidInput("current password is required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	if currentPassword == newPassword {
		return apperrors.InvalidInput("new password must be different from current password")
	}

	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return fmt.Errorf("get identity for password change: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(currentPassword)); err != nil {
		return apperrors.Unauthorized("current password is incorrect")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.identities.UpdatePasswordHash(ctx, identityID, string(hashed)); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	if _, err := s.tokenSvc.RevokeAll(ctx, identityID, nil); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke tokens after password change",
			slog.String("identity_id", identityID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password changed",
		slog.String("identity_id", identityID),
	)

	return nil
}

// RequestPasswordReset issues a reset token for the identity and hands it to
// the notification pipeline. It always succeeds from the caller's point of
// view so the endpoint cannot be used to probe for valid usernames.
func (s *CredentialService) RequestPasswordReset(ctx context.Context, username string) error {
	if username == "" {
		return apperrors.InvalidInput("username is required")
	}

	identity, err := s.identities.GetByUsername(ctx, username)
	if err != nil {
		s.logger.InfoContext(ctx, "password reset requested for unknown username",
			slog.String("username", username),
		)
		return nil
	}

	_, raw, err := s.tokenSvc.Issue(ctx, IssueInput{
		IdentityID: identity.ID,
		Kind:       domain.TokenKindPasswordReset,
	})
	if err != nil {
		return fmt.Errorf("issue reset token: %w", err)
	}

	if err := s.producer.PublishPasswordReset(ctx, identity.ID, identity.Email, raw); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish password_reset event",
			slog.String("identity_id", identity.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset requested",
		slog.String("identity_id", identity.ID),
	)

	return nil
}

// ResetPassword consumes a reset token and stores the new password hash. The
// reset token and every other outstanding token are revoked.
func (s *CredentialService) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	token := s.tokenSvc.Verify(ctx, rawToken, domain.TokenKindPasswordReset)
	if token == nil {
		return apperrors.Unauthorized("invalid or expired reset token")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.identities.UpdatePasswordHash(ctx, token.IdentityID, string(hashed)); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	if _, err := s.tokenSvc.RevokeAll(ctx, token.IdentityID, nil); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke tokens after password reset",
			slog.String("identity_id", token.IdentityID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("identity_id", token.IdentityID),
	)

	return nil
}

// RequestEmailVerification issues a verification token for the identity and
// hands it to the notification pipeline.
func (s *CredentialService) RequestEmailVerification(ctx context.Context, identityID string) error {
	identity, err := s.identities.GetByID(ctx, identityID)
	if err != nil {
		return fmt.Errorf("get identity for email verification: %w", err)
	}

	_, raw, err := s.tokenSvc.Issue(ctx, IssueInput{
		IdentityID: identity.ID,
		Kind:       domain.TokenKindEmailVerification,
	})
	if err != nil {
		return fmt.Errorf("issue verification token: %w", err)
	}

	if err := s.producer.PublishEmailVerification(ctx, identity.ID, identity.Email, raw); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish email_verification event",
			slog.String("identity_id", identity.ID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// VerifyEmail consumes an email verification token. The identity subsystem
// that owns the verified flag learns of it through the published event.
func (s *CredentialService) VerifyEmail(ctx context.Context, rawToken string) (string, error) {
	token := s.tokenSvc.Verify(ctx, rawToken, domain.TokenKindEmailVerification)
	if token == nil {
		return "", apperrors.Unauthorized("invalid or expired verification token")
	}

	// Single use.
	if _, err := s.tokenSvc.RevokeByHash(ctx, token.TokenHash); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke verification token",
			slog.String("token_id", token.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishEmailVerified(ctx, token.IdentityID); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish email_verified event",
			slog.String("identity_id", token.IdentityID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "email verified",
		slog.String("identity_id", token.IdentityID),
	)

	return token.IdentityID, nil
}

// validatePassword checks that the password meets minimum complexity requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
