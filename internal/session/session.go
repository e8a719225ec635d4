package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CookieName is the name of the session cookie set at login.
const CookieName = "doorpro_session"

// Claims is the signed payload of the session cookie. It carries the raw
// opaque session token so the cookie stays revocable: every request still
// verifies the embedded token against the store.
type Claims struct {
	IdentityID   string `json:"identity_id"`
	SessionToken string `json:"session_token"`
	jwt.RegisteredClaims
}

// Codec signs and verifies session cookies.
type Codec struct {
	secret []byte
	ttl    time.Duration
	secure bool
}

// NewCodec creates a session cookie codec with the given signing secret and
// cookie lifetime. secure controls the cookie's Secure attribute and should
// be false only in development.
func NewCodec(secret string, ttl time.Duration, secure bool) *Codec {
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
	}
}

// Encode creates a signed session cookie value for the identity and its raw
// session token.
func (c *Codec) Encode(identityID, sessionToken string) (string, error) {
	now := time.Now().UTC()
	claims := &Claims{
		IdentityID:   identityID,
		SessionToken: sessionToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			Issuer:    "access-service",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}

	return signed, nil
}

// Decode parses and validates a session cookie value, returning the claims.
func (c *Codec) Decode(value string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(value, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse session cookie: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid session cookie claims")
	}

	return claims, nil
}

// NewCookie builds the http.Cookie carrying the signed session value.
func (c *Codec) NewCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie builds a cookie that clears the session on the client.
func (c *Codec) ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
