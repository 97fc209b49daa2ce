package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User is the persisted subscription state for one artist.
// The ID is the auth provider's user ID.
type User struct {
	ID                 uuid.UUID
	Email              string
	StripeCustomerID   sql.NullString
	SubscriptionID     sql.NullString
	SubscriptionStatus string
	Tier               string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

const getUserByID = `
SELECT id, email, stripe_customer_id, subscription_id, subscription_status, tier, created_at, updated_at
FROM users
WHERE id = $1
`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByID, id)
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.StripeCustomerID, &u.SubscriptionID,
		&u.SubscriptionStatus, &u.Tier, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const getUserByStripeCustomerID = `
SELECT id, email, stripe_customer_id, subscription_id, subscription_status, tier, created_at, updated_at
FROM users
WHERE stripe_customer_id = $1
`

func (q *Queries) GetUserByStripeCustomerID(ctx context.Context, customerID string) (User, error) {
	row := q.db.QueryRowContext(ctx, getUserByStripeCustomerID, customerID)
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.StripeCustomerID, &u.SubscriptionID,
		&u.SubscriptionStatus, &u.Tier, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const upsertUser = `
INSERT INTO users (id, email, subscription_status, tier)
VALUES ($1, $2, 'inactive', 'free')
ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, updated_at = now()
RETURNING id, email, stripe_customer_id, subscription_id, subscription_status, tier, created_at, updated_at
`

// UpsertUser provisions a user on first sight and refreshes the email on
// subsequent logins. Subscription fields are never touched here.
func (q *Queries) UpsertUser(ctx context.Context, id uuid.UUID, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, upsertUser, id, email)
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.StripeCustomerID, &u.SubscriptionID,
		&u.SubscriptionStatus, &u.Tier, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const updateStripeCustomer = `
UPDATE users SET stripe_customer_id = $2, updated_at = now()
WHERE id = $1
`

func (q *Queries) UpdateStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error {
	_, err := q.db.ExecContext(ctx, updateStripeCustomer, id, customerID)
	return err
}

type UpdateSubscriptionParams struct {
	ID                 uuid.UUID
	SubscriptionStatus string
	Tier               string
	SubscriptionID     sql.NullString
}

const updateSubscription = `
UPDATE users
SET subscription_status = $2, tier = $3, subscription_id = $4, updated_at = now()
WHERE id = $1
`

func (q *Queries) UpdateSubscription(ctx context.Context, arg UpdateSubscriptionParams) error {
	_, err := q.db.ExecContext(ctx, updateSubscription,
		arg.ID, arg.SubscriptionStatus, arg.Tier, arg.SubscriptionID)
	return err
}

const countActiveSubscriptions = `
SELECT count(*) FROM users WHERE subscription_status IN ('active', 'trialing')
`

func (q *Queries) CountActiveSubscriptions(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countActiveSubscriptions).Scan(&n)
	return n, err
}
