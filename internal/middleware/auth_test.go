package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/captionmyart/captiond/internal/auth"
	"github.com/captionmyart/captiond/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// mockVerifier implements auth.TokenVerifier for testing.
type mockVerifier struct {
	verifyFunc  func(ctx context.Context, token string) (*auth.Identity, error)
	verifyCalls int
}

func (m *mockVerifier) VerifyToken(ctx context.Context, token string) (*auth.Identity, error) {
	m.verifyCalls++
	return m.verifyFunc(ctx, token)
}

// mockUserService implements the service.UserService interface for testing.
type mockUserService struct {
	provisionFunc  func(ctx context.Context, id uuid.UUID, email string) (*domain.User, error)
	provisionCalls int
}

func (m *mockUserService) Provision(ctx context.Context, id uuid.UUID, email string) (*domain.User, error) {
	m.provisionCalls++
	if m.provisionFunc != nil {
		return m.provisionFunc(ctx, id, email)
	}
	return &domain.User{ID: id, Email: email, Tier: domain.TierFree}, nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (m *mockUserService) SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error {
	return errors.New("not implemented")
}

func (m *mockUserService) UpdateSubscription(ctx context.Context, params domain.SubscriptionUpdate) error {
	return errors.New("not implemented")
}

// =============================================================================
// Test Helpers
// =============================================================================

// newTestLogger creates a logger that only reports errors during tests.
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// =============================================================================
// RequireUser Middleware Tests
// =============================================================================

func TestRequireUser_ValidToken_SetsUserInContext(t *testing.T) {
	identity := &auth.Identity{ID: uuid.New(), Email: "artist@example.com"}
	verifier := &mockVerifier{
		verifyFunc: func(ctx context.Context, token string) (*auth.Identity, error) {
			if token != "valid-token-123" {
				t.Errorf("VerifyToken called with token = %q, want %q", token, "valid-token-123")
			}
			return identity, nil
		},
	}
	users := &mockUserService{}
	mw := NewAuthMiddleware(verifier, users, newTestLogger())

	var capturedUser *domain.User
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUser = auth.GetUser(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set("Authorization", "Bearer valid-token-123")
	rec := httptest.NewRecorder()

	mw.RequireUser(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rec.Code, http.StatusOK)
	}
	if capturedUser == nil {
		t.Fatal("user not set in context")
	}
	if capturedUser.ID != identity.ID {
		t.Errorf("user.ID = %v, want %v", capturedUser.ID, identity.ID)
	}
	if capturedUser.Email != identity.Email {
		t.Errorf("user.Email = %q, want %q", capturedUser.Email, identity.Email)
	}
	if users.provisionCalls != 1 {
		t.Errorf("provision calls = %d, want 1", users.provisionCalls)
	}
}

func TestRequireUser_MissingHeader_Returns401(t *testing.T) {
	verifier := &mockVerifier{
		verifyFunc: func(ctx context.Context, token string) (*auth.Identity, error) {
			t.Error("verifier should not be called without a header")
			return nil, errors.New("unexpected")
		},
	}
	mw := NewAuthMiddleware(verifier, &mockUserService{}, newTestLogger())

	handlerCalled := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	})

	req := httptest.NewRequest("GET", "/api/usage", nil)
	rec := httptest.NewRecorder()

	mw.RequireUser(handler).ServeHTTP(rec, req)

	if handlerCalled {
		t.Error("handler should not be called without a token")
	}
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestRequireUser_MalformedHeader_Returns401(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no scheme", "valid-token-123"},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"empty token", "Bearer "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewAuthMiddleware(&mockVerifier{
				verifyFunc: func(ctx context.Context, token string) (*auth.Identity, error) {
					return nil, errors.New("unexpected")
				},
			}, &mockUserService{}, newTestLogger())

			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler should not be called")
			})

			req := httptest.NewRequest("GET", "/api/usage", nil)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			mw.RequireUser(handler).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status code = %d, want %d", rec.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestRequireUser_InvalidToken_Returns401(t *testing.T) {
	verifier := &mockVerifier{
		verifyFunc: func(ctx context.Context, token string) (*auth.Identity, error) {
			return nil, domain.Unauthorized("auth.verify", "Invalid or expired token")
		},
	}
	mw := NewAuthMiddleware(verifier, &mockUserService{}, newTestLogger())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called with an invalid token")
	})

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set("Authorization", "Bearer expired-token")
	rec := httptest.NewRecorder()

	mw.RequireUser(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireUser_CachesVerifiedIdentity(t *testing.T) {
	identity := &auth.Identity{ID: uuid.New(), Email: "artist@example.com"}
	verifier := &mockVerifier{
		verifyFunc: func(ctx context.Context, token string) (*auth.Identity, error) {
			return identity, nil
		},
	}
	users := &mockUserService{}
	mw := NewAuthMiddleware(verifier, users, newTestLogger())

	handler := mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("GET", "/api/usage", nil)
		req.Header.Set("Authorization", "Bearer same-token")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status code = %d, want %d", i, rec.Code, http.StatusOK)
		}
	}

	// The provider is consulted once; repeat requests hit the cache.
	if verifier.verifyCalls != 1 {
		t.Errorf("verify calls = %d, want 1", verifier.verifyCalls)
	}
	// Provisioning still runs per request to load the current user row.
	if users.provisionCalls != 3 {
		t.Errorf("provision calls = %d, want 3", users.provisionCalls)
	}
}

func TestRequireUser_ProvisionFailure_Returns500(t *testing.T) {
	identity := &auth.Identity{ID: uuid.New(), Email: "artist@example.com"}
	verifier := &mockVerifier{
		verifyFunc: func(ctx context.Context, token string) (*auth.Identity, error) {
			return identity, nil
		},
	}
	users := &mockUserService{
		provisionFunc: func(ctx context.Context, id uuid.UUID, email string) (*domain.User, error) {
			return nil, domain.Internal(errors.New("db down"), "user.provision", "failed to provision user")
		},
	}
	mw := NewAuthMiddleware(verifier, users, newTestLogger())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called when provisioning fails")
	})

	req := httptest.NewRequest("GET", "/api/usage", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	rec := httptest.NewRecorder()

	mw.RequireUser(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

// =============================================================================
// Stack Tests
// =============================================================================

func TestStack_AppliesMiddlewareInOrder(t *testing.T) {
	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	stack := Stack(tag("outer"), tag("inner"))
	handler := stack(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	want := []string{"outer", "inner", "handler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}
