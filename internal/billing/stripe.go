// Package billing provides Stripe billing integration for subscription management.
package billing

import (
	"fmt"

	"github.com/captionmyart/captiond/internal/domain"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	billingportalsession "github.com/stripe/stripe-go/v79/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Service defines the interface for billing operations.
type Service interface {
	// CreateCheckoutSession creates a Stripe Checkout session for subscribing
	// to a paid tier. Returns the checkout URL to redirect the user to.
	CreateCheckoutSession(tier domain.Tier, userID uuid.UUID, email string) (string, error)

	// CreatePortalSession creates a Stripe Customer Portal session.
	// Returns the portal URL to redirect the user to.
	CreatePortalSession(customerID, returnURL string) (string, error)

	// GetSubscription retrieves a Stripe subscription by ID.
	GetSubscription(subscriptionID string) (*stripe.Subscription, error)

	// CancelSubscription sets a subscription to cancel at period end.
	CancelSubscription(subscriptionID string) error

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// TierForPriceID returns the subscription tier for a given Stripe price ID.
	TierForPriceID(priceID string) domain.Tier
}

// PriceConfig holds the Stripe price IDs for each paid tier.
type PriceConfig struct {
	ProMonthlyPriceID       string
	ProYearlyPriceID        string
	PremiumMonthlyPriceID   string
	PremiumYearlyPriceID    string
	PlatinumMonthlyPriceID  string
	PlatinumYearlyPriceID   string
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	baseURL       string
	prices        PriceConfig
	priceToTier   map[string]domain.Tier // maps price ID -> tier
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
// The baseURL builds the success/cancel redirect URLs.
// The prices configure which Stripe price IDs map to which tiers.
func NewStripeService(secretKey, webhookSecret, baseURL string, prices PriceConfig) Service {
	stripe.Key = secretKey

	priceToTier := make(map[string]domain.Tier)
	add := func(priceID string, tier domain.Tier) {
		if priceID != "" {
			priceToTier[priceID] = tier
		}
	}
	add(prices.ProMonthlyPriceID, domain.TierPro)
	add(prices.ProYearlyPriceID, domain.TierPro)
	add(prices.PremiumMonthlyPriceID, domain.TierPremium)
	add(prices.PremiumYearlyPriceID, domain.TierPremium)
	add(prices.PlatinumMonthlyPriceID, domain.TierPlatinum)
	add(prices.PlatinumYearlyPriceID, domain.TierPlatinum)

	return &stripeService{
		webhookSecret: webhookSecret,
		baseURL:       baseURL,
		prices:        prices,
		priceToTier:   priceToTier,
	}
}

// priceIDForTier returns the monthly price ID for a purchasable tier.
func (s *stripeService) priceIDForTier(tier domain.Tier) (string, error) {
	switch tier {
	case domain.TierPro:
		return s.prices.ProMonthlyPriceID, nil
	case domain.TierPremium:
		return s.prices.PremiumMonthlyPriceID, nil
	case domain.TierPlatinum:
		return s.prices.PlatinumMonthlyPriceID, nil
	default:
		return "", fmt.Errorf("tier %q is not purchasable", tier)
	}
}

func (s *stripeService) CreateCheckoutSession(tier domain.Tier, userID uuid.UUID, email string) (string, error) {
	priceID, err := s.priceIDForTier(tier)
	if err != nil {
		return "", err
	}
	if priceID == "" {
		return "", fmt.Errorf("no price configured for tier %q", tier)
	}

	params := &stripe.CheckoutSessionParams{
		CustomerEmail: stripe.String(email),
		Mode:          stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.baseURL + "/pricing"),
	}
	params.AddMetadata("user_id", userID.String())
	params.AddMetadata("plan", string(tier))

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) CreatePortalSession(customerID, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	sess, err := billingportalsession.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *stripeService) GetSubscription(subscriptionID string) (*stripe.Subscription, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe get subscription: %w", err)
	}
	return sub, nil
}

func (s *stripeService) CancelSubscription(subscriptionID string) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	_, err := subscription.Update(subscriptionID, params)
	if err != nil {
		return fmt.Errorf("stripe cancel subscription: %w", err)
	}
	return nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) TierForPriceID(priceID string) domain.Tier {
	if tier, ok := s.priceToTier[priceID]; ok {
		return tier
	}
	return ""
}
