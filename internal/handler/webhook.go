// Package handler contains HTTP handlers for the captiond API.
//
// This file implements the Stripe webhook handler for processing billing
// events.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/captionmyart/captiond/internal/billing"
	"github.com/captionmyart/captiond/internal/domain"
	"github.com/captionmyart/captiond/internal/metrics"
	"github.com/captionmyart/captiond/internal/service"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
)

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing     billing.Service
	userService service.UserService
	logger      *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, userService service.UserService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:     billingService,
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are public; Stripe authenticates with the signature header.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	// Read body (limit to 64KB)
	body, err := io.ReadAll(io.LimitReader(r.Body, 65536))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Verify signature
	signature := r.Header.Get("Stripe-Signature")
	event, err := h.billing.VerifyWebhookSignature(body, signature)
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	// Route to event-specific handler
	var handled bool
	switch event.Type {
	case "checkout.session.completed":
		handled = h.handleCheckoutCompleted(r.Context(), event)
	case "customer.subscription.created":
		handled = h.processSubscriptionEvent(r.Context(), event, "created")
	case "customer.subscription.updated":
		handled = h.processSubscriptionEvent(r.Context(), event, "updated")
	case "customer.subscription.deleted":
		handled = h.handleSubscriptionDeleted(r.Context(), event)
	case "invoice.payment_succeeded":
		handled = h.handlePaymentSucceeded(r.Context(), event)
	case "invoice.payment_failed":
		handled = h.handlePaymentFailed(r.Context(), event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		metrics.WebhookEvents.WithLabelValues(string(event.Type), "ignored").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	status := "processed"
	if !handled {
		status = "skipped"
	}
	metrics.WebhookEvents.WithLabelValues(string(event.Type), status).Inc()

	// Always 200: Stripe retries on anything else, and a permanently bad
	// event would retry forever.
	w.WriteHeader(http.StatusOK)
}

// handleCheckoutCompleted links the new Stripe customer to the user who
// started the checkout. The user ID travels through the session metadata set
// at session creation.
func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) bool {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return false
	}

	if session.Customer == nil || session.Subscription == nil {
		h.logger.Warn("checkout session missing customer or subscription", "session_id", session.ID)
		return false
	}

	userID, err := uuid.Parse(session.Metadata["user_id"])
	if err != nil {
		h.logger.Error("checkout session metadata has no valid user_id", "session_id", session.ID)
		return false
	}

	if err := h.userService.SetStripeCustomer(ctx, userID, session.Customer.ID); err != nil {
		h.logger.Error("failed to link stripe customer", "error", err, "user_id", userID)
		return false
	}

	tier := domain.Tier(session.Metadata["plan"])
	if !tier.Valid() {
		// The subscription.created event carries the price and will set the
		// tier; the customer link above is the important part here.
		h.logger.Warn("checkout session metadata has no valid plan", "session_id", session.ID)
		return true
	}

	err = h.userService.UpdateSubscription(ctx, domain.SubscriptionUpdate{
		UserID:         userID,
		Tier:           tier,
		Status:         domain.SubscriptionStatusActive,
		SubscriptionID: session.Subscription.ID,
	})
	if err != nil {
		h.logger.Error("failed to update subscription on checkout", "error", err, "user_id", userID)
		return false
	}

	h.logger.Info("checkout completed", "user_id", userID, "tier", tier)
	return true
}

// processSubscriptionEvent applies a subscription created/updated event.
func (h *WebhookHandler) processSubscriptionEvent(ctx context.Context, event stripe.Event, action string) bool {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err, "action", action)
		return false
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription event missing customer", "subscription_id", sub.ID, "action", action)
		return false
	}

	user, err := h.userService.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		// Checkout and subscription events race; the customer link may not
		// exist yet. Stripe retries delivery, so skipping is safe.
		h.logger.Warn("user not found for subscription event",
			"customer_id", sub.Customer.ID, "subscription_id", sub.ID, "action", action)
		return false
	}

	tier := user.Tier
	if len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		if t := h.billing.TierForPriceID(sub.Items.Data[0].Price.ID); t != "" {
			tier = t
		}
	}

	status := subscriptionStatus(sub.Status)
	err = h.userService.UpdateSubscription(ctx, domain.SubscriptionUpdate{
		UserID:         user.ID,
		Tier:           tier,
		Status:         status,
		SubscriptionID: sub.ID,
	})
	if err != nil {
		h.logger.Error("failed to update subscription", "error", err, "user_id", user.ID, "action", action)
		return false
	}

	h.logger.Info("subscription event processed",
		"user_id", user.ID, "action", action, "status", status, "tier", tier)
	return true
}

// handleSubscriptionDeleted downgrades the user back to the free tier.
func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) bool {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription deleted event", "error", err)
		return false
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription deleted event missing customer", "subscription_id", sub.ID)
		return false
	}

	user, err := h.userService.GetByStripeCustomerID(ctx, sub.Customer.ID)
	if err != nil {
		h.logger.Warn("user not found for subscription deletion", "customer_id", sub.Customer.ID)
		return false
	}

	err = h.userService.UpdateSubscription(ctx, domain.SubscriptionUpdate{
		UserID: user.ID,
		Tier:   domain.TierFree,
		Status: domain.SubscriptionStatusCanceled,
	})
	if err != nil {
		h.logger.Error("failed to downgrade subscription", "error", err, "user_id", user.ID)
		return false
	}

	h.logger.Info("subscription deleted, user downgraded to free", "user_id", user.ID, "subscription_id", sub.ID)
	return true
}

// handlePaymentSucceeded recovers a past_due subscription back to active.
func (h *WebhookHandler) handlePaymentSucceeded(ctx context.Context, event stripe.Event) bool {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice payment succeeded event", "error", err)
		return false
	}

	if invoice.Customer == nil {
		return false
	}

	user, err := h.userService.GetByStripeCustomerID(ctx, invoice.Customer.ID)
	if err != nil {
		h.logger.Debug("user not found for payment succeeded", "customer_id", invoice.Customer.ID)
		return false
	}

	if user.SubscriptionStatus == domain.SubscriptionStatusActive {
		return true
	}

	err = h.userService.UpdateSubscription(ctx, domain.SubscriptionUpdate{
		UserID:         user.ID,
		Tier:           user.Tier,
		Status:         domain.SubscriptionStatusActive,
		SubscriptionID: user.SubscriptionID,
	})
	if err != nil {
		h.logger.Error("failed to reactivate on payment success", "error", err, "user_id", user.ID)
		return false
	}
	return true
}

// handlePaymentFailed marks the subscription past_due. The user's effective
// tier falls back to free until payment recovers.
func (h *WebhookHandler) handlePaymentFailed(ctx context.Context, event stripe.Event) bool {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		h.logger.Error("failed to parse invoice payment failed event", "error", err)
		return false
	}

	if invoice.Customer == nil {
		return false
	}

	user, err := h.userService.GetByStripeCustomerID(ctx, invoice.Customer.ID)
	if err != nil {
		h.logger.Debug("user not found for payment failed", "customer_id", invoice.Customer.ID)
		return false
	}

	err = h.userService.UpdateSubscription(ctx, domain.SubscriptionUpdate{
		UserID:         user.ID,
		Tier:           user.Tier,
		Status:         domain.SubscriptionStatusPastDue,
		SubscriptionID: user.SubscriptionID,
	})
	if err != nil {
		h.logger.Error("failed to set past_due on payment failure", "error", err, "user_id", user.ID)
		return false
	}

	h.logger.Warn("payment failed", "user_id", user.ID, "customer_id", invoice.Customer.ID)
	return true
}

// subscriptionStatus maps Stripe's subscription status to the domain status.
func subscriptionStatus(s stripe.SubscriptionStatus) domain.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusActive:
		return domain.SubscriptionStatusActive
	case stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionStatusTrialing
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return domain.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return domain.SubscriptionStatusCanceled
	default:
		return domain.SubscriptionStatusInactive
	}
}
