// Package domain contains core business types and interfaces.
//
// This file defines the User domain type. Identity and credentials live with
// the external auth provider; this row only tracks the billing-relevant
// subscription state keyed by the provider's user ID.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus represents the possible states of a user's subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusInactive SubscriptionStatus = "inactive"
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// User represents a registered artist.
//
// The ID is the auth provider's user ID, so no separate mapping table is
// needed. Users are provisioned lazily on their first authenticated request
// and start on the free tier.
type User struct {
	ID                 uuid.UUID
	Email              string
	StripeCustomerID   string
	SubscriptionID     string
	SubscriptionStatus SubscriptionStatus
	Tier               Tier
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// SubscriptionUpdate carries the outcome of a billing event.
type SubscriptionUpdate struct {
	UserID         uuid.UUID
	Tier           Tier
	Status         SubscriptionStatus
	SubscriptionID string
}

// IsActive returns true if the user has an active or trialing subscription.
// Free-tier users have no subscription and are always considered active.
func (u *User) IsActive() bool {
	if u.Tier == TierFree {
		return true
	}
	return u.SubscriptionStatus == SubscriptionStatusActive ||
		u.SubscriptionStatus == SubscriptionStatusTrialing
}

// EffectiveTier returns the tier quota checks should run against.
// A lapsed paid subscription falls back to free rather than keeping paid
// limits.
func (u *User) EffectiveTier() Tier {
	if u.Tier != TierFree && !u.IsActive() {
		return TierFree
	}
	return u.Tier
}
