package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UsageRecord is one row of the usage ledger: the caption counter for a
// (user, tier, period). A unique index on (user_id, tier, period_start)
// makes concurrent lazy creation race-safe.
type UsageRecord struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Tier         string
	PeriodStart  time.Time
	PeriodEnd    time.Time
	CaptionsUsed int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type FindUsageRecordParams struct {
	UserID uuid.UUID
	Tier   string
	Now    time.Time
}

const findUsageRecord = `
SELECT id, user_id, tier, period_start, period_end, captions_used, created_at, updated_at
FROM usage_records
WHERE user_id = $1 AND tier = $2 AND period_start <= $3 AND period_end > $3
`

// FindUsageRecord looks up the record whose period contains Now. The lookup
// is by period containment, not recency, so a leftover record from a prior
// period is never returned after rollover.
func (q *Queries) FindUsageRecord(ctx context.Context, arg FindUsageRecordParams) (UsageRecord, error) {
	row := q.db.QueryRowContext(ctx, findUsageRecord, arg.UserID, arg.Tier, arg.Now)
	var r UsageRecord
	err := row.Scan(&r.ID, &r.UserID, &r.Tier, &r.PeriodStart, &r.PeriodEnd,
		&r.CaptionsUsed, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

type CreateUsageRecordParams struct {
	UserID      uuid.UUID
	Tier        string
	PeriodStart time.Time
	PeriodEnd   time.Time
}

const createUsageRecord = `
INSERT INTO usage_records (id, user_id, tier, period_start, period_end, captions_used)
VALUES ($1, $2, $3, $4, $5, 0)
RETURNING id, user_id, tier, period_start, period_end, captions_used, created_at, updated_at
`

func (q *Queries) CreateUsageRecord(ctx context.Context, arg CreateUsageRecordParams) (UsageRecord, error) {
	row := q.db.QueryRowContext(ctx, createUsageRecord,
		uuid.New(), arg.UserID, arg.Tier, arg.PeriodStart, arg.PeriodEnd)
	var r UsageRecord
	err := row.Scan(&r.ID, &r.UserID, &r.Tier, &r.PeriodStart, &r.PeriodEnd,
		&r.CaptionsUsed, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const incrementUsageRecord = `
UPDATE usage_records
SET captions_used = captions_used + 1, updated_at = now()
WHERE id = $1
RETURNING id, user_id, tier, period_start, period_end, captions_used, created_at, updated_at
`

// IncrementUsageRecord advances the counter in a single conditional update.
// Two racing requests both land their increment; there is no read-modify-write
// window to lose one.
func (q *Queries) IncrementUsageRecord(ctx context.Context, id uuid.UUID) (UsageRecord, error) {
	row := q.db.QueryRowContext(ctx, incrementUsageRecord, id)
	var r UsageRecord
	err := row.Scan(&r.ID, &r.UserID, &r.Tier, &r.PeriodStart, &r.PeriodEnd,
		&r.CaptionsUsed, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const countCaptionsSince = `
SELECT coalesce(sum(captions_used), 0)
FROM usage_records
WHERE period_start >= $1
`

// CountCaptionsSince totals ledger consumption across all users for periods
// starting at or after the given instant. Used by the metrics poller.
func (q *Queries) CountCaptionsSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countCaptionsSince, since).Scan(&n)
	return n, err
}
