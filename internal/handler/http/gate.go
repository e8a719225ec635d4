package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/domain"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/repository"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/service"
	"github.com/scottrconsulting/DoorPro-CRM-v2-sub000/internal/session"
	apperrors "github.com/scottrconsulting/DoorPro-CRM-v2-sub000/pkg/errors"
)

// defaultGateTimeout bounds the storage lookups the gate performs per request.
const defaultGateTimeout = 5 * time.Second

type ctxKey int

const (
	tenantContextKey ctxKey = iota
	authTokenKey
)

// TenantFromContext returns the tenant context the gate attached to the
// request, if any.
func TenantFromContext(ctx context.Context) (domain.TenantContext, bool) {
	tc, ok := ctx.Value(tenantContextKey).(domain.TenantContext)
	return tc, ok
}

// AuthTokenFromContext returns the verified token record behind the current
// request. Logout uses it to revoke the very credential that authenticated
// the call.
func AuthTokenFromContext(ctx context.Context) (*domain.AuthToken, bool) {
	token, ok := ctx.Value(authTokenKey).(*domain.AuthToken)
	return token, ok
}

// Gate is the tenant isolation gate. It authenticates every request behind
// it, binds the request to exactly one tenant, meters API usage, and feeds
// the audit trail. The tenant context is rebuilt from the store on every
// request; nothing is cached between requests.
type Gate struct {
	tokens     *service.TokenService
	identities repository.IdentityRepository
	sessions   *session.Codec
	usage      *service.UsageService
	audit      *service.AuditRecorder
	logger     *slog.Logger
	timeout    time.Duration
}

// NewGate creates a tenant isolation gate. timeout <= 0 selects the default.
func NewGate(
	tokens *service.TokenService,
	identities repository.IdentityRepository,
	sessions *session.Codec,
	usage *service.UsageService,
	audit *service.AuditRecorder,
	logger *slog.Logger,
	timeout time.Duration,
) *Gate {
	if timeout <= 0 {
		timeout = defaultGateTimeout
	}
	return &Gate{
		tokens:     tokens,
		identities: identities,
		sessions:   sessions,
		usage:      usage,
		audit:      audit,
		logger:     logger,
		timeout:    timeout,
	}
}

// Authenticate resolves the caller's credential (session cookie first, then
// bearer token), loads the identity, and attaches a fresh TenantContext to
// the request. Unauthenticated requests get a uniform 401.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lookupCtx, cancel := context.WithTimeout(r.Context(), g.timeout)
		defer cancel()

		token := g.resolveToken(lookupCtx, r)
		if token == nil {
			writeUnauthorized(w)
			return
		}

		identity, err := g.identities.GetByID(lookupCtx, token.IdentityID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				// Live token for a vanished identity; treat as unauthenticated.
				writeUnauthorized(w)
				return
			}
			writeAppError(w, r, apperrors.Storage(err))
			return
		}

		tc := domain.TenantContext{
			TenantID:   identity.ID,
			IdentityID: identity.ID,
			Role:       identity.Role,
		}

		ctx := context.WithValue(r.Context(), tenantContextKey, tc)
		ctx = context.WithValue(ctx, authTokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AuditRequests records an audit entry after the response for every request
// that passed authentication, including requests the quota middleware later
// rejects. The write goes through the non-blocking recorder and never delays
// the response.
func (g *Gate) AuditRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, ok := TenantFromContext(r.Context())
		if !ok {
			writeUnauthorized(w)
			return
		}

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		g.audit.Record(domain.AuditEntry{
			IdentityID: tc.IdentityID,
			Action:     domain.ActionForMethod(r.Method),
			Resource:   resourceFromPath(r.URL.Path),
			Details: fmt.Sprintf(`{"method":%q,"path":%q,"status":%d,"user_agent":%q}`,
				r.Method, r.URL.Path, ww.Status(), r.UserAgent()),
			IPAddress: clientIP(r),
		})
	})
}

// MeterAPIRequests enforces the daily API request quota before the handler
// runs, then records usage after the response is written. The post-response
// write is asynchronous and never delays the response.
func (g *Gate) MeterAPIRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc, ok := TenantFromContext(r.Context())
		if !ok {
			writeUnauthorized(w)
			return
		}

		check, err := g.usage.CheckLimit(r.Context(), tc.IdentityID, tc.Role, domain.MetricAPIRequests)
		if err != nil {
			// Fail open: a metering outage must not take the API down.
			g.logger.ErrorContext(r.Context(), "quota check failed",
				slog.String("identity_id", tc.IdentityID),
				slog.String("error", err.Error()),
			)
		} else if !check.Allowed {
			writeAppError(w, r, apperrors.QuotaExceeded(check.Reason, check.CurrentUsage, check.Limit))
			return
		}

		next.ServeHTTP(w, r)

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
			defer cancel()
			if err := g.usage.RecordUsage(ctx, tc.IdentityID, domain.MetricAPIRequests, 1); err != nil {
				g.logger.Error("failed to record api usage",
					slog.String("identity_id", tc.IdentityID),
					slog.String("error", err.Error()),
				)
			}
		}()
	})
}

// RequireCapability rejects requests whose tenant's role lacks the
// capability.
func (g *Gate) RequireCapability(cap domain.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tc, ok := TenantFromContext(r.Context())
			if !ok {
				writeUnauthorized(w)
				return
			}
			if !domain.HasCapability(tc.Role, cap) {
				writeAppError(w, r, apperrors.Forbidden("insufficient permissions"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ValidateAccess checks whether the tenant may act on a resource owned by
// resourceOwnerID. Handlers call this before touching any tenant-owned row.
func ValidateAccess(tc domain.TenantContext, resourceOwnerID string) error {
	if tc.AllowsAccessTo(resourceOwnerID) {
		return nil
	}
	return apperrors.Forbidden("access denied")
}

// resolveToken extracts and verifies the request's credential. A valid
// session cookie wins; otherwise a bearer token is accepted as either an API
// token or a raw session token.
func (g *Gate) resolveToken(ctx context.Context, r *http.Request) *domain.AuthToken {
	if c, err := r.Cookie(session.CookieName); err == nil {
		if claims, err := g.sessions.Decode(c.Value); err == nil {
			return g.tokens.Verify(ctx, claims.SessionToken, domain.TokenKindSession)
		}
	}

	header := r.Header.Get("Authorization")
	if raw, ok := strings.CutPrefix(header, "Bearer "); ok && raw != "" {
		if token := g.tokens.Verify(ctx, raw, domain.TokenKindAPI); token != nil {
			return token
		}
		return g.tokens.Verify(ctx, raw, domain.TokenKindSession)
	}

	return nil
}

// resourceFromPath returns the first path segment after the API version
// prefix, e.g. "contacts" for /api/v1/contacts/42.
func resourceFromPath(path string) string {
	trimmed := strings.TrimPrefix(path, "/api/v1/")
	if i := strings.IndexByte(trimmed, '/'); i >= 0 {
		return trimmed[:i]
	}
	return trimmed
}

// clientIP returns the originating client address, honoring X-Forwarded-For.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
