package domain

import "time"

// TokenKind distinguishes the purposes an opaque bearer token can serve.
// All kinds share one storage table and one verification path; only the TTL
// and the call-site expectations differ.
type TokenKind string

const (
	TokenKindSession           TokenKind = "session"
	TokenKindAPI               TokenKind = "api"
	TokenKindPasswordReset     TokenKind = "password_reset"
	TokenKindEmailVerification TokenKind = "email_verification"
)

// IsValidTokenKind checks whether the given kind is one of the known kinds.
func IsValidTokenKind(kind TokenKind) bool {
	switch kind {
	case TokenKindSession, TokenKindAPI, TokenKindPasswordReset, TokenKindEmailVerification:
		return true
	}
	return false
}

// TTL returns the validity window for tokens of this kind.
func (k TokenKind) TTL() time.Duration {
	if k == TokenKindAPI {
		return 30 * 24 * time.Hour
	}
	return 24 * time.Hour
}

// AuthToken is the persisted form of an opaque bearer token. Only the SHA-256
// digest of the raw token is stored; the raw value is returned to the caller
// once at issuance and never again.
type AuthToken struct {
	ID           string     `json:"id"`
	IdentityID   string     `json:"identity_id"`
	TokenHash    string     `json:"-"`
	Kind         TokenKind  `json:"kind"`
	ExpiresAt    time.Time  `json:"expires_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
	IssuedFromIP string     `json:"issued_from_ip,omitempty"`
	IssuedAgent  string     `json:"issued_from_agent,omitempty"`
	Revoked      bool       `json:"revoked"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Usable reports whether the token is valid for verification at the given
// instant: not revoked and not past its expiry.
func (t *AuthToken) Usable(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
