// Package service contains the business logic layer.
//
// Services orchestrate interactions between repositories, external APIs,
// and domain logic. They are responsible for:
// - Input validation
// - Business rule enforcement
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/captionmyart/captiond/internal/domain"
	"github.com/captionmyart/captiond/internal/repository"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UserService defines the interface for user-related operations.
//
// Identity and credentials live with the external auth provider; this service
// only manages the local subscription-state row keyed by the provider's user
// ID.
type UserService interface {
	// Provision creates the local row for an externally authenticated user,
	// or refreshes the stored email if the row already exists. New users
	// start on the free tier with no subscription.
	Provision(ctx context.Context, id uuid.UUID, email string) (*domain.User, error)

	// GetByID retrieves a user by their ID.
	// Returns domain.ENOTFOUND if user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByStripeCustomerID retrieves a user by their Stripe customer ID.
	// Returns domain.ENOTFOUND if no user has that customer.
	GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error)

	// SetStripeCustomer records the Stripe customer ID for a user.
	SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error

	// UpdateSubscription updates a user's tier and subscription state after
	// a billing event.
	UpdateSubscription(ctx context.Context, params domain.SubscriptionUpdate) error
}

// =============================================================================
// Implementation
// =============================================================================

type userService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(queries *repository.Queries, logger *slog.Logger) UserService {
	return &userService{
		queries: queries,
		logger:  logger,
	}
}

func (s *userService) Provision(ctx context.Context, id uuid.UUID, email string) (*domain.User, error) {
	const op = "user.provision"

	if email == "" {
		return nil, domain.Invalid(op, "email is required")
	}

	row, err := s.queries.UpsertUser(ctx, id, email)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to provision user")
	}
	return userToDomain(row), nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "user.get"

	row, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "failed to fetch user")
	}
	return userToDomain(row), nil
}

func (s *userService) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	const op = "user.get_by_customer"

	row, err := s.queries.GetUserByStripeCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", customerID)
		}
		return nil, domain.Internal(err, op, "failed to fetch user by customer")
	}
	return userToDomain(row), nil
}

func (s *userService) SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error {
	const op = "user.set_customer"

	if err := s.queries.UpdateStripeCustomer(ctx, id, customerID); err != nil {
		return domain.Internal(err, op, "failed to store stripe customer")
	}
	return nil
}

func (s *userService) UpdateSubscription(ctx context.Context, params domain.SubscriptionUpdate) error {
	const op = "user.update_subscription"

	if !params.Tier.Valid() {
		return domain.UnknownTier(op, params.Tier)
	}

	err := s.queries.UpdateSubscription(ctx, repository.UpdateSubscriptionParams{
		ID:                 params.UserID,
		SubscriptionStatus: string(params.Status),
		Tier:               string(params.Tier),
		SubscriptionID: sql.NullString{
			String: params.SubscriptionID,
			Valid:  params.SubscriptionID != "",
		},
	})
	if err != nil {
		return domain.Internal(err, op, "failed to update subscription")
	}

	s.logger.Info("Subscription updated",
		"user_id", params.UserID,
		"tier", params.Tier,
		"status", params.Status,
	)
	return nil
}

// userToDomain converts a repository user row to the domain type.
func userToDomain(row repository.User) *domain.User {
	return &domain.User{
		ID:                 row.ID,
		Email:              row.Email,
		StripeCustomerID:   row.StripeCustomerID.String,
		SubscriptionID:     row.SubscriptionID.String,
		SubscriptionStatus: domain.SubscriptionStatus(row.SubscriptionStatus),
		Tier:               domain.Tier(row.Tier),
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}
