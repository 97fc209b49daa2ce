package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/captionmyart/captiond/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

// fakeBillingService implements billing.Service for webhook tests.
type fakeBillingService struct {
	verifyFunc     func(payload []byte, signature string) (stripe.Event, error)
	tierForPriceID map[string]domain.Tier
}

func (f *fakeBillingService) CreateCheckoutSession(tier domain.Tier, userID uuid.UUID, email string) (string, error) {
	return "https://checkout.stripe.test/session", nil
}

func (f *fakeBillingService) CreatePortalSession(customerID, returnURL string) (string, error) {
	return "https://billing.stripe.test/portal", nil
}

func (f *fakeBillingService) GetSubscription(subscriptionID string) (*stripe.Subscription, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBillingService) CancelSubscription(subscriptionID string) error {
	return nil
}

func (f *fakeBillingService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	return f.verifyFunc(payload, signature)
}

func (f *fakeBillingService) TierForPriceID(priceID string) domain.Tier {
	return f.tierForPriceID[priceID]
}

// fakeUserService implements service.UserService for webhook tests.
type fakeUserService struct {
	users             map[string]*domain.User // keyed by stripe customer ID
	linkedCustomers   map[uuid.UUID]string
	subscriptionCalls []domain.SubscriptionUpdate
}

func newFakeUserService() *fakeUserService {
	return &fakeUserService{
		users:           make(map[string]*domain.User),
		linkedCustomers: make(map[uuid.UUID]string),
	}
}

func (f *fakeUserService) Provision(ctx context.Context, id uuid.UUID, email string) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserService) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	user, ok := f.users[customerID]
	if !ok {
		return nil, domain.NotFound("user.get_by_customer", "user", customerID)
	}
	return user, nil
}

func (f *fakeUserService) SetStripeCustomer(ctx context.Context, id uuid.UUID, customerID string) error {
	f.linkedCustomers[id] = customerID
	return nil
}

func (f *fakeUserService) UpdateSubscription(ctx context.Context, params domain.SubscriptionUpdate) error {
	f.subscriptionCalls = append(f.subscriptionCalls, params)
	return nil
}

// signedEvent returns a billing fake whose signature check yields the event.
func signedEvent(eventType string, payload interface{}) *fakeBillingService {
	raw, _ := json.Marshal(payload)
	return &fakeBillingService{
		verifyFunc: func(body []byte, signature string) (stripe.Event, error) {
			return stripe.Event{
				ID:   "evt_test",
				Type: stripe.EventType(eventType),
				Data: &stripe.EventData{Raw: raw},
			}, nil
		},
		tierForPriceID: map[string]domain.Tier{
			"price_pro_monthly":     domain.TierPro,
			"price_premium_monthly": domain.TierPremium,
		},
	}
}

func postWebhook(t *testing.T, billingSvc *fakeBillingService, users *fakeUserService) *httptest.ResponseRecorder {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	NewWebhookHandler(billingSvc, users, logger).RegisterRoutes(mux)

	req := httptest.NewRequest("POST", "/webhooks/stripe", bytes.NewReader([]byte("{}")))
	req.Header.Set("Stripe-Signature", "t=1,v1=test")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestStripeWebhook_RejectsBadSignature(t *testing.T) {
	billingSvc := &fakeBillingService{
		verifyFunc: func(payload []byte, signature string) (stripe.Event, error) {
			return stripe.Event{}, errors.New("signature mismatch")
		},
	}
	users := newFakeUserService()

	rec := postWebhook(t, billingSvc, users)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, users.subscriptionCalls)
}

func TestStripeWebhook_CheckoutCompleted(t *testing.T) {
	userID := uuid.New()
	billingSvc := signedEvent("checkout.session.completed", map[string]interface{}{
		"id":           "cs_test",
		"customer":     map[string]interface{}{"id": "cus_123"},
		"subscription": map[string]interface{}{"id": "sub_123"},
		"metadata": map[string]string{
			"user_id": userID.String(),
			"plan":    "premium",
		},
	})
	users := newFakeUserService()

	rec := postWebhook(t, billingSvc, users)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cus_123", users.linkedCustomers[userID])

	require.Len(t, users.subscriptionCalls, 1)
	call := users.subscriptionCalls[0]
	assert.Equal(t, userID, call.UserID)
	assert.Equal(t, domain.TierPremium, call.Tier)
	assert.Equal(t, domain.SubscriptionStatusActive, call.Status)
	assert.Equal(t, "sub_123", call.SubscriptionID)
}

func TestStripeWebhook_SubscriptionUpdatedSetsTierFromPrice(t *testing.T) {
	userID := uuid.New()
	billingSvc := signedEvent("customer.subscription.updated", map[string]interface{}{
		"id":       "sub_456",
		"status":   "active",
		"customer": map[string]interface{}{"id": "cus_456"},
		"items": map[string]interface{}{
			"data": []map[string]interface{}{
				{"price": map[string]interface{}{"id": "price_pro_monthly"}},
			},
		},
	})
	users := newFakeUserService()
	users.users["cus_456"] = &domain.User{ID: userID, Tier: domain.TierFree}

	rec := postWebhook(t, billingSvc, users)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, users.subscriptionCalls, 1)
	call := users.subscriptionCalls[0]
	assert.Equal(t, domain.TierPro, call.Tier)
	assert.Equal(t, domain.SubscriptionStatusActive, call.Status)
	assert.Equal(t, "sub_456", call.SubscriptionID)
}

func TestStripeWebhook_SubscriptionDeletedDowngradesToFree(t *testing.T) {
	userID := uuid.New()
	billingSvc := signedEvent("customer.subscription.deleted", map[string]interface{}{
		"id":       "sub_789",
		"customer": map[string]interface{}{"id": "cus_789"},
	})
	users := newFakeUserService()
	users.users["cus_789"] = &domain.User{ID: userID, Tier: domain.TierPlatinum}

	rec := postWebhook(t, billingSvc, users)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, users.subscriptionCalls, 1)
	call := users.subscriptionCalls[0]
	assert.Equal(t, domain.TierFree, call.Tier)
	assert.Equal(t, domain.SubscriptionStatusCanceled, call.Status)
}

func TestStripeWebhook_PaymentFailedMarksPastDue(t *testing.T) {
	userID := uuid.New()
	billingSvc := signedEvent("invoice.payment_failed", map[string]interface{}{
		"id":       "in_test",
		"customer": map[string]interface{}{"id": "cus_abc"},
	})
	users := newFakeUserService()
	users.users["cus_abc"] = &domain.User{
		ID:                 userID,
		Tier:               domain.TierPro,
		SubscriptionID:     "sub_abc",
		SubscriptionStatus: domain.SubscriptionStatusActive,
	}

	rec := postWebhook(t, billingSvc, users)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, users.subscriptionCalls, 1)
	call := users.subscriptionCalls[0]
	assert.Equal(t, domain.SubscriptionStatusPastDue, call.Status)
	assert.Equal(t, domain.TierPro, call.Tier)
	assert.Equal(t, "sub_abc", call.SubscriptionID)
}

func TestStripeWebhook_PaymentSucceededRecoversPastDue(t *testing.T) {
	userID := uuid.New()
	billingSvc := signedEvent("invoice.payment_succeeded", map[string]interface{}{
		"id":       "in_test",
		"customer": map[string]interface{}{"id": "cus_def"},
	})
	users := newFakeUserService()
	users.users["cus_def"] = &domain.User{
		ID:                 userID,
		Tier:               domain.TierPremium,
		SubscriptionID:     "sub_def",
		SubscriptionStatus: domain.SubscriptionStatusPastDue,
	}

	rec := postWebhook(t, billingSvc, users)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, users.subscriptionCalls, 1)
	assert.Equal(t, domain.SubscriptionStatusActive, users.subscriptionCalls[0].Status)
}

func TestStripeWebhook_UnknownCustomerIsIgnored(t *testing.T) {
	billingSvc := signedEvent("customer.subscription.updated", map[string]interface{}{
		"id":       "sub_zzz",
		"status":   "active",
		"customer": map[string]interface{}{"id": "cus_unknown"},
	})
	users := newFakeUserService()

	rec := postWebhook(t, billingSvc, users)

	// Stripe retries non-200 responses; missing users must not cause one.
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, users.subscriptionCalls)
}
