// Package handler contains HTTP handlers for the captiond API.
//
// This file implements the billing endpoints backed by Stripe.
//
// Routes:
//   - POST /api/checkout-session    -> CreateCheckoutSession
//   - POST /api/portal-session      -> CreatePortalSession
//   - POST /api/subscription/cancel -> CancelSubscription
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/captionmyart/captiond/internal/auth"
	"github.com/captionmyart/captiond/internal/billing"
	"github.com/captionmyart/captiond/internal/domain"
	"github.com/captionmyart/captiond/internal/metrics"
)

// BillingHandler handles subscription purchase and management requests.
type BillingHandler struct {
	billing billing.Service
	baseURL string
	logger  *slog.Logger
}

// NewBillingHandler creates a new BillingHandler.
// billingService may be nil when Stripe is not configured (development mode).
func NewBillingHandler(billingService billing.Service, baseURL string, logger *slog.Logger) *BillingHandler {
	return &BillingHandler{
		billing: billingService,
		baseURL: baseURL,
		logger:  logger,
	}
}

// RegisterRoutes registers billing routes on the provided mux.
func (h *BillingHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/checkout-session", requireUser(http.HandlerFunc(h.CreateCheckoutSession)))
	mux.Handle("POST /api/portal-session", requireUser(http.HandlerFunc(h.CreatePortalSession)))
	mux.Handle("POST /api/subscription/cancel", requireUser(http.HandlerFunc(h.CancelSubscription)))
}

// checkoutRequest is the JSON body for creating a checkout session.
type checkoutRequest struct {
	Tier string `json:"tier"`
}

// CreateCheckoutSession starts a Stripe Checkout flow for a paid tier.
// The subscription itself is recorded later via webhook events; this endpoint
// only returns the URL to hand the user to Stripe.
func (h *BillingHandler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	const op = "handler.create_checkout"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Internal(nil, op, "Billing is not configured."))
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Invalid request body."))
		return
	}

	tier := domain.Tier(req.Tier)
	if !tier.Valid() || tier == domain.TierFree {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Choose a paid plan: pro, premium, or platinum."))
		return
	}

	url, err := h.billing.CreateCheckoutSession(tier, user.ID, user.Email)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	metrics.CheckoutSessionsCreated.Inc()
	h.logger.Info("checkout session created", "user_id", user.ID, "tier", tier)
	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// CreatePortalSession opens the Stripe Customer Portal for the user.
func (h *BillingHandler) CreatePortalSession(w http.ResponseWriter, r *http.Request) {
	const op = "handler.create_portal"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Internal(nil, op, "Billing is not configured."))
		return
	}
	if user.StripeCustomerID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "No billing account yet. Subscribe to a plan first."))
		return
	}

	url, err := h.billing.CreatePortalSession(user.StripeCustomerID, h.baseURL+"/account")
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"url": url})
}

// CancelSubscription sets the user's subscription to cancel at period end.
// Access stays until the paid period runs out; the webhook downgrade happens
// when Stripe actually deletes the subscription.
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	const op = "handler.cancel_subscription"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	if h.billing == nil {
		ErrorResponse(w, r, h.logger, domain.Internal(nil, op, "Billing is not configured."))
		return
	}
	if user.SubscriptionID == "" {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "No active subscription to cancel."))
		return
	}

	if err := h.billing.CancelSubscription(user.SubscriptionID); err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("subscription set to cancel at period end", "user_id", user.ID, "subscription_id", user.SubscriptionID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancel_at_period_end"})
}
