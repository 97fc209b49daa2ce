package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/captionmyart/captiond/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Fake UsageLedger
// =============================================================================

// fakeLedger is an in-memory UsageLedger with the same uniqueness and
// containment semantics as the Postgres implementation.
type fakeLedger struct {
	records map[uuid.UUID]*domain.UsageRecord

	failFind      error // forced error for Find, if set
	failIncrement error // forced error for Increment, if set
	createCalls   int
	findCalls     int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[uuid.UUID]*domain.UsageRecord)}
}

func (f *fakeLedger) Find(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time) (*domain.UsageRecord, error) {
	f.findCalls++
	if f.failFind != nil {
		return nil, f.failFind
	}
	for _, r := range f.records {
		if r.UserID == userID && r.Tier == tier && r.Period().Contains(now) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.NotFound("ledger.find", "usage record", userID.String())
}

func (f *fakeLedger) Create(ctx context.Context, userID uuid.UUID, tier domain.Tier, period domain.Period) (*domain.UsageRecord, error) {
	f.createCalls++
	for _, r := range f.records {
		if r.UserID == userID && r.Tier == tier && r.PeriodStart.Equal(period.Start) {
			return nil, domain.Conflict("ledger.create", "usage record already exists for this period")
		}
	}
	r := &domain.UsageRecord{
		ID:          uuid.New(),
		UserID:      userID,
		Tier:        tier,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
	}
	f.records[r.ID] = r
	cp := *r
	return &cp, nil
}

func (f *fakeLedger) Increment(ctx context.Context, id uuid.UUID) (*domain.UsageRecord, error) {
	if f.failIncrement != nil {
		return nil, f.failIncrement
	}
	r, ok := f.records[id]
	if !ok {
		return nil, domain.NotFound("ledger.increment", "usage record", id.String())
	}
	r.CaptionsUsed++
	cp := *r
	return &cp, nil
}

func testEntitlement(t *testing.T) (EntitlementService, *fakeLedger) {
	t.Helper()
	ledger := newFakeLedger()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewEntitlementService(ledger, logger), ledger
}

var testNow = time.Date(2026, 9, 2, 14, 30, 0, 0, time.UTC) // Wednesday

// =============================================================================
// CheckGenerate
// =============================================================================

func TestCheckGenerate_UnknownTier(t *testing.T) {
	svc, ledger := testEntitlement(t)

	_, err := svc.CheckGenerate(context.Background(), uuid.New(), "gold", testNow, 1)
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
	assert.Zero(t, ledger.createCalls, "unknown tier must be rejected before touching the ledger")
}

func TestCheckGenerate_CreatesRecordLazily(t *testing.T) {
	svc, ledger := testEntitlement(t)
	userID := uuid.New()

	eval, err := svc.CheckGenerate(context.Background(), userID, domain.TierFree, testNow, 1)
	require.NoError(t, err)
	require.True(t, eval.Allowed())
	require.NotNil(t, eval.Record)
	assert.EqualValues(t, 0, eval.Record.CaptionsUsed)
	assert.EqualValues(t, 3, eval.Remaining)
	assert.Equal(t, 1, ledger.createCalls)

	// Weekly tier: record covers the Monday-anchored week containing now.
	assert.Equal(t, time.Monday, eval.Record.PeriodStart.Weekday())
	assert.True(t, eval.Record.Period().Contains(testNow))
}

func TestCheckGenerate_Idempotent(t *testing.T) {
	svc, _ := testEntitlement(t)
	userID := uuid.New()

	for i := 0; i < 5; i++ {
		eval, err := svc.CheckGenerate(context.Background(), userID, domain.TierFree, testNow, 1)
		require.NoError(t, err)
		assert.EqualValues(t, 0, eval.Record.CaptionsUsed,
			"check %d must not consume quota", i+1)
	}
}

func TestCheckGenerate_PlatformCap(t *testing.T) {
	svc, _ := testEntitlement(t)
	userID := uuid.New()

	// Free tier is capped at a single platform regardless of quota state.
	eval, err := svc.CheckGenerate(context.Background(), userID, domain.TierFree, testNow, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.EvaluationDeniedPlatformCount, eval.State)

	// Pro has no platform cap.
	eval, err = svc.CheckGenerate(context.Background(), userID, domain.TierPro, testNow, 6)
	require.NoError(t, err)
	assert.True(t, eval.Allowed())
}

func TestCheckGenerate_QuotaBoundary(t *testing.T) {
	svc, _ := testEntitlement(t)
	userID := uuid.New()
	ctx := context.Background()

	// Free quota is 3: consume two.
	for i := 0; i < 2; i++ {
		eval, err := svc.CheckGenerate(ctx, userID, domain.TierFree, testNow, 1)
		require.NoError(t, err)
		require.True(t, eval.Allowed())
		_, err = svc.RecordGeneration(ctx, eval.Record)
		require.NoError(t, err)
	}

	// At quota-1 the request is allowed with one remaining.
	eval, err := svc.CheckGenerate(ctx, userID, domain.TierFree, testNow, 1)
	require.NoError(t, err)
	assert.True(t, eval.Allowed())
	assert.EqualValues(t, 1, eval.Remaining)

	record, err := svc.RecordGeneration(ctx, eval.Record)
	require.NoError(t, err)
	assert.EqualValues(t, 3, record.CaptionsUsed)

	// At quota the next check is denied.
	eval, err = svc.CheckGenerate(ctx, userID, domain.TierFree, testNow, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.EvaluationDeniedQuota, eval.State)
}

func TestCheckGenerate_PlatinumUnlimited(t *testing.T) {
	svc, ledger := testEntitlement(t)
	userID := uuid.New()
	ctx := context.Background()

	eval, err := svc.CheckGenerate(ctx, userID, domain.TierPlatinum, testNow, 6)
	require.NoError(t, err)
	require.True(t, eval.Allowed())
	assert.True(t, eval.Unlimited)

	// Even an absurd consumed count stays allowed.
	ledger.records[eval.Record.ID].CaptionsUsed = 100000
	eval, err = svc.CheckGenerate(ctx, userID, domain.TierPlatinum, testNow, 1)
	require.NoError(t, err)
	assert.True(t, eval.Allowed())
}

func TestCheckGenerate_Rollover(t *testing.T) {
	svc, ledger := testEntitlement(t)
	userID := uuid.New()
	ctx := context.Background()

	eval, err := svc.CheckGenerate(ctx, userID, domain.TierFree, testNow, 1)
	require.NoError(t, err)
	_, err = svc.RecordGeneration(ctx, eval.Record)
	require.NoError(t, err)
	firstID := eval.Record.ID

	// A week later the old record still has remaining quota, but it must
	// not be found: a fresh zeroed record starts the new period.
	nextWeek := testNow.AddDate(0, 0, 7)
	eval, err = svc.CheckGenerate(ctx, userID, domain.TierFree, nextWeek, 1)
	require.NoError(t, err)
	require.True(t, eval.Allowed())
	assert.NotEqual(t, firstID, eval.Record.ID)
	assert.EqualValues(t, 0, eval.Record.CaptionsUsed)
	assert.EqualValues(t, 3, eval.Remaining)
	assert.Len(t, ledger.records, 2, "old record is retained, not deleted")
}

func TestCheckGenerate_CreateRaceRecovered(t *testing.T) {
	svc, ledger := testEntitlement(t)
	userID := uuid.New()

	// Simulate losing the find-then-create race: the competing request's
	// record appears after our Find misses. The fake returns ECONFLICT on
	// Create, and the evaluator must recover by re-finding.
	period := domain.ComputePeriod(testNow, domain.PeriodWeekly)
	winner, err := ledger.Create(context.Background(), userID, domain.TierFree, period)
	require.NoError(t, err)
	ledger.records[winner.ID].CaptionsUsed = 2
	findsBefore := ledger.findCalls

	eval, err := svc.CheckGenerate(context.Background(), userID, domain.TierFree, testNow, 1)
	require.NoError(t, err)
	assert.True(t, eval.Allowed())
	assert.Equal(t, winner.ID, eval.Record.ID)
	assert.EqualValues(t, 2, eval.Record.CaptionsUsed)
	_ = findsBefore
}

func TestCheckGenerate_LedgerUnavailable(t *testing.T) {
	svc, ledger := testEntitlement(t)
	ledger.failFind = domain.Internal(assert.AnError, "ledger.find", "failed to read usage ledger")

	// Fail closed: a broken ledger denies the whole check.
	_, err := svc.CheckGenerate(context.Background(), uuid.New(), domain.TierPro, testNow, 1)
	require.Error(t, err)
	assert.Equal(t, domain.EINTERNAL, domain.ErrorCode(err))
}

// =============================================================================
// RecordGeneration
// =============================================================================

func TestRecordGeneration_Monotonic(t *testing.T) {
	svc, _ := testEntitlement(t)
	userID := uuid.New()
	ctx := context.Background()

	eval, err := svc.CheckGenerate(ctx, userID, domain.TierPro, testNow, 2)
	require.NoError(t, err)

	var last int64
	for i := 1; i <= 4; i++ {
		record, err := svc.RecordGeneration(ctx, eval.Record)
		require.NoError(t, err)
		assert.EqualValues(t, i, record.CaptionsUsed)
		assert.Greater(t, record.CaptionsUsed, last)
		last = record.CaptionsUsed
	}
}

func TestRecordGeneration_VanishedRecordReseeds(t *testing.T) {
	svc, ledger := testEntitlement(t)
	userID := uuid.New()
	ctx := context.Background()

	eval, err := svc.CheckGenerate(ctx, userID, domain.TierPro, testNow, 1)
	require.NoError(t, err)

	// Period rolled over mid-request: the checked record is gone by the
	// time we record. The generation already happened, so the evaluator
	// must charge the new period rather than fail.
	delete(ledger.records, eval.Record.ID)

	record, err := svc.RecordGeneration(ctx, eval.Record)
	require.NoError(t, err)
	assert.NotEqual(t, eval.Record.ID, record.ID)
	assert.EqualValues(t, 1, record.CaptionsUsed)
}

// =============================================================================
// GetUsage
// =============================================================================

func TestGetUsage(t *testing.T) {
	svc, _ := testEntitlement(t)
	userID := uuid.New()
	ctx := context.Background()

	eval, err := svc.CheckGenerate(ctx, userID, domain.TierPremium, testNow, 3)
	require.NoError(t, err)
	_, err = svc.RecordGeneration(ctx, eval.Record)
	require.NoError(t, err)

	summary, err := svc.GetUsage(ctx, userID, domain.TierPremium, testNow)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPremium, summary.Tier)
	assert.Equal(t, domain.PeriodMonthly, summary.PeriodKind)
	assert.EqualValues(t, 1, summary.Used)
	assert.EqualValues(t, 10, summary.Limit)
	assert.EqualValues(t, 9, summary.Remaining)
	assert.False(t, summary.Unlimited)
	assert.Equal(t, 1, summary.PeriodStart.Day())
}

func TestGetUsage_Unlimited(t *testing.T) {
	svc, _ := testEntitlement(t)

	summary, err := svc.GetUsage(context.Background(), uuid.New(), domain.TierPlatinum, testNow)
	require.NoError(t, err)
	assert.True(t, summary.Unlimited)
	assert.Zero(t, summary.Limit)
}
