package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// TokenKind Tests
// ============================================================================

func TestIsValidTokenKind(t *testing.T) {
	for _, k := range []TokenKind{TokenKindSession, TokenKindAPI, TokenKindPasswordReset, TokenKindEmailVerification} {
		assert.True(t, IsValidTokenKind(k), "expected %q to be valid", k)
	}
	assert.False(t, IsValidTokenKind("refresh"))
	assert.False(t, IsValidTokenKind(""))
}

func TestTokenKind_TTL(t *testing.T) {
	assert.Equal(t, 30*24*time.Hour, TokenKindAPI.TTL())
	assert.Equal(t, 24*time.Hour, TokenKindSession.TTL())
	assert.Equal(t, 24*time.Hour, TokenKindPasswordReset.TTL())
	assert.Equal(t, 24*time.Hour, TokenKindEmailVerification.TTL())
}

// ============================================================================
// AuthToken Tests
// ============================================================================

func TestAuthToken_Usable(t *testing.T) {
	now := time.Now()
	tok := AuthToken{ExpiresAt: now.Add(time.Hour)}
	assert.True(t, tok.Usable(now))
}

func TestAuthToken_ExpiredNotUsable(t *testing.T) {
	now := time.Now()
	tok := AuthToken{ExpiresAt: now.Add(-time.Second)}
	assert.False(t, tok.Usable(now))
}

func TestAuthToken_ExpiryBoundaryNotUsable(t *testing.T) {
	now := time.Now()
	tok := AuthToken{ExpiresAt: now}
	assert.False(t, tok.Usable(now))
}

func TestAuthToken_RevokedNotUsable(t *testing.T) {
	now := time.Now()
	tok := AuthToken{ExpiresAt: now.Add(time.Hour), Revoked: true}
	assert.False(t, tok.Usable(now))
}

func TestAuthToken_TokenHashExcludedFromJSON(t *testing.T) {
	tok := AuthToken{TokenHash: "hashed-value"}
	assert.Equal(t, "hashed-value", tok.TokenHash)
}
