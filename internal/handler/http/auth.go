package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/service"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/session"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/validator"
)

// AuthHandler handles HTTP requests for login, logout, and token endpoints.
type AuthHandler struct {
	credentials *service.CredentialService
	tokens      *service.TokenService
	sessions    *session.Codec
	audit       *service.AuditRecorder
}

// NewAuthHandler creates a new auth HTTP handler.
func NewAuthHandler(
	credentials *service.CredentialService,
	tokens *service.TokenService,
	sessions *session.Codec,
	audit *service.AuditRecorder,
) *AuthHandler {
	return &AuthHandler{
		credentials: credentials,
		tokens:      tokens,
		sessions:    sessions,
		audit:       audit,
	}
}

// --- Request DTOs ---

// LoginRequest is the JSON request body for login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=100"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest is the JSON request body for changing a password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8"`
}

// PasswordResetRequest is the JSON request body for requesting a reset.
type PasswordResetRequest struct {
	Username string `json:"username" validate:"required,min=1,max=100"`
}

// PasswordResetConfirm is the JSON request body for completing a reset.
type PasswordResetConfirm struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// EmailVerificationConfirm is the JSON request body for confirming an email.
type EmailVerificationConfirm struct {
	Token string `json:"token" validate:"required"`
}

// RevokeAPITokenRequest is the JSON request body for revoking an API token.
type RevokeAPITokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// --- Response types ---

// LoginResponse carries the identity and its one-time raw session token.
type LoginResponse struct {
	Identity     *domain.Identity `json:"identity"`
	SessionToken string           `json:"session_token"`
	ExpiresAt    time.Time        `json:"expires_at"`
}

// IssuedTokenResponse carries a freshly issued token. The raw value appears
// here and nowhere else, ever again.
type IssuedTokenResponse struct {
	Token     string    `json:"token"`
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
}

// --- Handlers ---

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	identity, err := h.credentials.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		h.audit.Record(domain.AuditEntry{
			Action:    domain.AuditActionFailedLogin,
			Resource:  "session",
			Details:   fmt.Sprintf(`{"username":%q}`, req.Username),
			IPAddress: clientIP(r),
		})
		writeAppError(w, r, err)
		return
	}

	token, raw, err := h.tokens.Issue(r.Context(), service.IssueInput{
		IdentityID: identity.ID,
		Kind:       domain.TokenKindSession,
		FromIP:     clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	cookieValue, err := h.sessions.Encode(identity.ID, raw)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	http.SetCookie(w, h.sessions.NewCookie(cookieValue))

	h.audit.Record(domain.AuditEntry{
		IdentityID: identity.ID,
		Action:     domain.AuditActionLogin,
		Resource:   "session",
		ResourceID: token.ID,
		IPAddress:  clientIP(r),
	})

	writeJSON(w, http.StatusOK, response{
		Data: LoginResponse{
			Identity:     identity,
			SessionToken: raw,
			ExpiresAt:    token.ExpiresAt,
		},
	})
}

// Logout handles POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tc, ok := TenantFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	if token, ok := AuthTokenFromContext(r.Context()); ok {
		if _, err := h.tokens.RevokeByHash(r.Context(), token.TokenHash); err != nil {
			writeAppError(w, r, err)
			return
		}
	}

	http.SetCookie(w, h.sessions.ExpiredCookie())

	h.audit.Record(domain.AuditEntry{
		IdentityID: tc.IdentityID,
		Action:     domain.AuditActionLogout,
		Resource:   "session",
		IPAddress:  clientIP(r),
	})

	writeJSON(w, http.StatusOK, response{Data: map[string]string{"status": "logged_out"}})
}

// LogoutAll handles POST /api/v1/auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	tc, ok := TenantFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	kind := domain.TokenKindSession
	n, err := h.tokens.RevokeAll(r.Context(), tc.IdentityID, &kind)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessions.ExpiredCookie())

	h.audit.Record(domain.AuditEntry{
		IdentityID: tc.IdentityID,
		Action:     domain.AuditActionLogout,
		Resource:   "session",
		Details:    fmt.Sprintf(`{"revoked":%d}`, n),
		IPAddress:  clientIP(r),
	})

	writeJSON(w, http.StatusOK, response{Data: map[string]int64{"revoked": n}})
}

// ListSessions handles GET /api/v1/auth/sessions
func (h *AuthHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	tc, ok := TenantFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	tokens, err := h.tokens.ListSessions(r.Context(), tc.IdentityID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{Data: tokens})
}

// IssueAPIToken handles POST /api/v1/auth/api-tokens
func (h *AuthHandler) IssueAPIToken(w http.ResponseWriter, r *http.Request) {
	tc, ok := TenantFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	token, raw, err := h.tokens.Issue(r.Context(), service.IssueInput{
		IdentityID: tc.IdentityID,
		Kind:       domain.TokenKindAPI,
		FromIP:     clientIP(r),
		UserAgent:  r.UserAgent(),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, response{
		Data: IssuedTokenResponse{
			Token:     raw,
			ID:        token.ID,
			Kind:      string(token.Kind),
			ExpiresAt: token.ExpiresAt,
		},
	})
}

// RevokeAPIToken handles DELETE /api/v1/auth/api-tokens
func (h *AuthHandler) RevokeAPIToken(w http.ResponseWriter, r *http.Request) {
	if _, ok := TenantFromContext(r.Context()); !ok {
		writeUnauthorized(w)
		return
	}

	var req RevokeAPITokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	revoked, err := h.tokens.Revoke(r.Context(), req.Token)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	// Idempotent: revoking an unknown or already-revoked token is not an
	// error, it just reports false.
	writeJSON(w, http.StatusOK, response{Data: map[string]bool{"revoked": revoked}})
}

// ChangePassword handles POST /api/v1/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	tc, ok := TenantFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.credentials.ChangePassword(r.Context(), tc.IdentityID, req.CurrentPassword, req.NewPassword); err != nil {
		writeAppError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessions.ExpiredCookie())

	h.audit.Record(domain.AuditEntry{
		IdentityID: tc.IdentityID,
		Action:     domain.AuditActionUpdate,
		Resource:   "credential",
		IPAddress:  clientIP(r),
	})

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"message": "password changed, all sessions revoked"},
	})
}

// RequestPasswordReset handles POST /api/v1/auth/password-reset/request
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req PasswordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.credentials.RequestPasswordReset(r.Context(), req.Username); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"message": "if the account exists, a password reset link has been sent"},
	})
}

// ConfirmPasswordReset handles POST /api/v1/auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req PasswordResetConfirm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	if err := h.credentials.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"message": "password has been reset successfully"},
	})
}

// RequestEmailVerification handles POST /api/v1/auth/email-verification/request
func (h *AuthHandler) RequestEmailVerification(w http.ResponseWriter, r *http.Request) {
	tc, ok := TenantFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	if err := h.credentials.RequestEmailVerification(r.Context(), tc.IdentityID); err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"message": "verification email has been sent"},
	})
}

// ConfirmEmailVerification handles POST /api/v1/auth/email-verification/confirm
func (h *AuthHandler) ConfirmEmailVerification(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit

	var req EmailVerificationConfirm
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Error: &errorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		writeValidationError(w, err)
		return
	}

	identityID, err := h.credentials.VerifyEmail(r.Context(), req.Token)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	h.audit.Record(domain.AuditEntry{
		IdentityID: identityID,
		Action:     domain.AuditActionUpdate,
		Resource:   "email_verification",
		IPAddress:  clientIP(r),
	})

	writeJSON(w, http.StatusOK, response{
		Data: map[string]string{"message": "email verified"},
	})
}
