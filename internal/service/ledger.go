// Package service contains the business logic layer.
//
// This file implements the usage ledger: the narrow storage interface the
// entitlement evaluator consumes, backed by Postgres.
package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/captionmyart/captiond/internal/domain"
	"github.com/captionmyart/captiond/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// =============================================================================
// Interface Definition
// =============================================================================

// UsageLedger stores one caption counter per (user, tier, period).
//
// The evaluator is the only consumer. All failures other than the two
// documented domain codes surface as EINTERNAL, which callers treat as a
// denial (quota correctness beats availability).
type UsageLedger interface {
	// Find returns the record whose stored period contains now.
	// Returns domain.ENOTFOUND if no current record exists.
	Find(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time) (*domain.UsageRecord, error)

	// Create inserts a zeroed record for the given period.
	// Returns domain.ECONFLICT if a record with the same start already
	// exists; the caller resolves the race by re-Finding.
	Create(ctx context.Context, userID uuid.UUID, tier domain.Tier, period domain.Period) (*domain.UsageRecord, error)

	// Increment atomically advances captions_used by one and returns the
	// updated record. Returns domain.ENOTFOUND if the record is gone.
	Increment(ctx context.Context, id uuid.UUID) (*domain.UsageRecord, error)
}

// =============================================================================
// Implementation
// =============================================================================

type pgUsageLedger struct {
	queries *repository.Queries
}

// NewUsageLedger creates a Postgres-backed UsageLedger.
func NewUsageLedger(queries *repository.Queries) UsageLedger {
	return &pgUsageLedger{queries: queries}
}

func (l *pgUsageLedger) Find(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time) (*domain.UsageRecord, error) {
	const op = "ledger.find"

	row, err := l.queries.FindUsageRecord(ctx, repository.FindUsageRecordParams{
		UserID: userID,
		Tier:   string(tier),
		Now:    now,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "usage record", userID.String())
		}
		return nil, domain.Internal(err, op, "failed to read usage ledger")
	}
	return usageRecordToDomain(row), nil
}

func (l *pgUsageLedger) Create(ctx context.Context, userID uuid.UUID, tier domain.Tier, period domain.Period) (*domain.UsageRecord, error) {
	const op = "ledger.create"

	row, err := l.queries.CreateUsageRecord(ctx, repository.CreateUsageRecordParams{
		UserID:      userID,
		Tier:        string(tier),
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "usage record already exists for this period")
		}
		return nil, domain.Internal(err, op, "failed to create usage record")
	}
	return usageRecordToDomain(row), nil
}

func (l *pgUsageLedger) Increment(ctx context.Context, id uuid.UUID) (*domain.UsageRecord, error) {
	const op = "ledger.increment"

	row, err := l.queries.IncrementUsageRecord(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "usage record", id.String())
		}
		return nil, domain.Internal(err, op, "failed to increment usage record")
	}
	return usageRecordToDomain(row), nil
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func usageRecordToDomain(r repository.UsageRecord) *domain.UsageRecord {
	return &domain.UsageRecord{
		ID:           r.ID,
		UserID:       r.UserID,
		Tier:         domain.Tier(r.Tier),
		PeriodStart:  r.PeriodStart,
		PeriodEnd:    r.PeriodEnd,
		CaptionsUsed: r.CaptionsUsed,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}
