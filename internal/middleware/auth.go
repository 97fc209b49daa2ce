// Package middleware contains HTTP middleware for the caption API.
//
// Middleware functions follow the standard Go pattern of wrapping http.Handler.
// They are designed to be composed using a middleware stack approach.
package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/captionmyart/captiond/internal/auth"
	"github.com/captionmyart/captiond/internal/domain"
	"github.com/captionmyart/captiond/internal/handler"
	"github.com/captionmyart/captiond/internal/service"
	gocache "github.com/patrickmn/go-cache"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// identityCacheTTL is how long a verified token stays cached before the
	// identity provider is asked again. Short enough that revoked tokens die
	// quickly, long enough to keep bursts of requests off the provider.
	identityCacheTTL = 1 * time.Minute

	// identityCacheSweep is how often expired cache entries are purged.
	identityCacheSweep = 5 * time.Minute
)

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware authenticates requests with a bearer token.
//
// Tokens are verified against the external identity provider; the verified
// identity is cached with a short TTL, and the local user row is provisioned
// lazily on first sight.
type AuthMiddleware struct {
	verifier    auth.TokenVerifier
	userService service.UserService
	cache       *gocache.Cache
	logger      *slog.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
//
// Parameters:
// - verifier: Token verifier backed by the identity provider
// - userService: Service for provisioning and loading local users
// - logger: Structured logger for auth events
func NewAuthMiddleware(verifier auth.TokenVerifier, userService service.UserService, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier:    verifier,
		userService: userService,
		cache:       gocache.New(identityCacheTTL, identityCacheSweep),
		logger:      logger,
	}
}

// =============================================================================
// RequireUser Middleware
// =============================================================================

// RequireUser is middleware that requires a valid bearer token.
//
// This middleware:
// 1. Extracts the token from the Authorization header
// 2. Verifies it against the identity provider (with a short-TTL cache)
// 3. Provisions/loads the local user row and stores it in the context
// 4. Rejects the request with 401 when any step fails
//
// The user can be retrieved in handlers using:
//
//	user := auth.GetUserFromRequest(r)
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}

		identity, err := m.verify(r, token)
		if err != nil {
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}

		user, err := m.userService.Provision(r.Context(), identity.ID, identity.Email)
		if err != nil {
			m.logger.Error("Failed to provision user", "user_id", identity.ID, "error", err)
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
	})
}

// verify resolves the identity behind a token, consulting the cache first.
func (m *AuthMiddleware) verify(r *http.Request, token string) (*auth.Identity, error) {
	if cached, ok := m.cache.Get(token); ok {
		return cached.(*auth.Identity), nil
	}

	identity, err := m.verifier.VerifyToken(r.Context(), token)
	if err != nil {
		return nil, err
	}

	m.cache.Set(token, identity, gocache.DefaultExpiration)
	return identity, nil
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	const op = "auth.bearer"

	header := r.Header.Get("Authorization")
	if header == "" {
		return "", domain.Unauthorized(op, "Authorization header required")
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", domain.Unauthorized(op, "Invalid authorization header format")
	}
	return parts[1], nil
}

// =============================================================================
// Middleware Stack Helpers
// =============================================================================

// Stack composes multiple middleware functions into a single middleware.
//
// Middleware is applied in the order provided, meaning the first middleware
// in the slice is the outermost (runs first on request, last on response).
//
// Example:
//
//	stack := Stack(loggingMw, authMw.RequireUser)
//	mux.Handle("POST /api/captions", stack(captionHandler))
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}

// =============================================================================
// Compile-time checks
// =============================================================================

var (
	_ func(http.Handler) http.Handler = (&AuthMiddleware{}).RequireUser
)
