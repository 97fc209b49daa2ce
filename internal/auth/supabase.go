package auth

import (
	"context"
	"fmt"

	"github.com/captionmyart/captiond/internal/domain"
	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

// Identity is the verified identity behind a bearer token.
type Identity struct {
	ID    uuid.UUID
	Email string
}

// TokenVerifier validates bearer tokens against the identity provider.
type TokenVerifier interface {
	// VerifyToken checks the token and returns the identity it belongs to.
	// Returns domain.EUNAUTHORIZED for invalid or expired tokens.
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// supabaseVerifier verifies tokens by asking Supabase Auth for the user
// behind them. No local JWT secret is needed; an invalid or expired token is
// simply rejected upstream.
type supabaseVerifier struct {
	client *supabase.Client
}

// NewSupabaseVerifier creates a TokenVerifier backed by Supabase Auth.
func NewSupabaseVerifier(projectURL, anonKey string) (TokenVerifier, error) {
	if projectURL == "" || anonKey == "" {
		return nil, fmt.Errorf("supabase URL and anon key are required")
	}

	client, err := supabase.NewClient(projectURL, anonKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &supabaseVerifier{client: client}, nil
}

func (v *supabaseVerifier) VerifyToken(ctx context.Context, token string) (*Identity, error) {
	const op = "auth.verify_token"

	user, err := v.client.Auth.WithToken(token).GetUser()
	if err != nil {
		return nil, domain.Unauthorized(op, "Invalid or expired token")
	}
	if user == nil || user.ID == uuid.Nil {
		return nil, domain.Unauthorized(op, "Invalid or expired token")
	}

	return &Identity{
		ID:    user.ID,
		Email: user.Email,
	}, nil
}
