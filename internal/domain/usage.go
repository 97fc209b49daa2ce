package domain

import (
	"time"

	"github.com/google/uuid"
)

// UsageRecord is the persisted caption counter for one (user, tier, period).
// Records are created lazily on first access within a period and only ever
// mutated by incrementing CaptionsUsed by one per successful generation.
// At most one record is current for a given (user, tier) at any instant.
type UsageRecord struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Tier         Tier
	PeriodStart  time.Time
	PeriodEnd    time.Time
	CaptionsUsed int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Period returns the record's accounting window.
func (r *UsageRecord) Period() Period {
	return Period{Start: r.PeriodStart, End: r.PeriodEnd}
}

// EvaluationState is the outcome of an entitlement check.
type EvaluationState string

const (
	EvaluationAllowed             EvaluationState = "allowed"
	EvaluationDeniedQuota         EvaluationState = "denied_quota"
	EvaluationDeniedPlatformCount EvaluationState = "denied_platform_count"
)

// Evaluation is the result of checking whether a user may generate a caption
// right now. It is recomputed on every check and never persisted.
type Evaluation struct {
	State     EvaluationState
	Record    *UsageRecord // Resolved current-period record (nil only on denial before resolution)
	Remaining int64        // Captions left this period; meaningless when Unlimited
	Unlimited bool
}

// Allowed reports whether the generation may proceed.
func (e *Evaluation) Allowed() bool {
	return e.State == EvaluationAllowed
}

// UsageSummary describes a user's current entitlement for display.
type UsageSummary struct {
	Tier        Tier
	PeriodKind  PeriodKind
	PeriodStart time.Time
	PeriodEnd   time.Time
	Used        int64
	Limit       int64 // 0 when Unlimited
	Remaining   int64 // 0 when Unlimited
	Unlimited   bool
}
