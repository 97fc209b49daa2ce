package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/captionmyart/captiond/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEntitlementService implements service.EntitlementService for handler tests.
type fakeEntitlementService struct {
	getUsageFunc func(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time) (*domain.UsageSummary, error)
}

func (f *fakeEntitlementService) CheckGenerate(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time, requestedPlatforms int) (*domain.Evaluation, error) {
	panic("not used in usage handler tests")
}

func (f *fakeEntitlementService) RecordGeneration(ctx context.Context, record *domain.UsageRecord) (*domain.UsageRecord, error) {
	panic("not used in usage handler tests")
}

func (f *fakeEntitlementService) GetUsage(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time) (*domain.UsageSummary, error) {
	return f.getUsageFunc(ctx, userID, tier, now)
}

func newUsageMux(svc *fakeEntitlementService, user *domain.User) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	NewUsageHandler(svc, logger).RegisterRoutes(mux, withUser(user))
	return mux
}

func TestGetUsage_Success(t *testing.T) {
	periodStart := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	svc := &fakeEntitlementService{
		getUsageFunc: func(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time) (*domain.UsageSummary, error) {
			assert.Equal(t, domain.TierPremium, tier)
			return &domain.UsageSummary{
				Tier:        tier,
				PeriodKind:  domain.PeriodMonthly,
				PeriodStart: periodStart,
				PeriodEnd:   periodStart.AddDate(0, 1, 0),
				Used:        4,
				Limit:       10,
				Remaining:   6,
			}, nil
		},
	}
	mux := newUsageMux(svc, testUser(domain.TierPremium))

	req := httptest.NewRequest("GET", "/api/usage", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp usageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "premium", resp.Tier)
	assert.Equal(t, "monthly", resp.Period)
	assert.Equal(t, int64(4), resp.Used)
	assert.Equal(t, int64(10), resp.Limit)
	assert.Equal(t, int64(6), resp.Remaining)
	assert.False(t, resp.Unlimited)
}

func TestGetUsage_LapsedSubscriptionFallsBackToFree(t *testing.T) {
	var gotTier domain.Tier
	svc := &fakeEntitlementService{
		getUsageFunc: func(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time) (*domain.UsageSummary, error) {
			gotTier = tier
			return &domain.UsageSummary{
				Tier:       tier,
				PeriodKind: domain.PeriodWeekly,
				Limit:      3,
				Remaining:  3,
			}, nil
		},
	}

	user := testUser(domain.TierPro)
	user.SubscriptionStatus = domain.SubscriptionStatusPastDue
	mux := newUsageMux(svc, user)

	req := httptest.NewRequest("GET", "/api/usage", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.TierFree, gotTier)
}

func TestGetUsage_Unauthenticated(t *testing.T) {
	svc := &fakeEntitlementService{
		getUsageFunc: func(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time) (*domain.UsageSummary, error) {
			t.Fatal("service should not be called without a user")
			return nil, nil
		},
	}
	mux := newUsageMux(svc, nil)

	req := httptest.NewRequest("GET", "/api/usage", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
