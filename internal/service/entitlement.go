// Package service contains the business logic layer.
//
// This file implements the entitlement evaluator: the single place that
// decides whether a user may generate a caption right now, and that advances
// the usage counter afterwards. The same rules used to live inline, copied
// with small variations, across the page handlers.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/captionmyart/captiond/internal/domain"
	"github.com/google/uuid"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementService evaluates caption-generation entitlements.
type EntitlementService interface {
	// CheckGenerate decides whether the user may generate a caption at now,
	// targeting the requested number of platforms. Quota and platform-cap
	// denials come back as Evaluation states, not errors; only an unknown
	// tier or an unavailable ledger is an error.
	CheckGenerate(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time, requestedPlatforms int) (*domain.Evaluation, error)

	// RecordGeneration consumes one unit of quota against the record
	// resolved by a prior CheckGenerate. Call it exactly once per successful
	// generation, after the generation call itself succeeds; failed
	// generations must not consume quota.
	RecordGeneration(ctx context.Context, record *domain.UsageRecord) (*domain.UsageRecord, error)

	// GetUsage returns the user's current-period consumption for display.
	GetUsage(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time) (*domain.UsageSummary, error)
}

// =============================================================================
// Implementation
// =============================================================================

type entitlementService struct {
	ledger UsageLedger
	logger *slog.Logger
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(ledger UsageLedger, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		ledger: ledger,
		logger: logger,
	}
}

func (s *entitlementService) CheckGenerate(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time, requestedPlatforms int) (*domain.Evaluation, error) {
	const op = "entitlement.check"

	policy, err := domain.PolicyFor(tier)
	if err != nil {
		return nil, err
	}

	record, err := s.resolveRecord(ctx, userID, tier, now, policy.PeriodKind)
	if err != nil {
		return nil, err
	}

	if !policy.AllowsPlatformCount(requestedPlatforms) {
		s.logger.Info("Platform cap exceeded",
			"user_id", userID,
			"tier", tier,
			"requested", requestedPlatforms,
			"max", policy.MaxPlatforms,
		)
		return &domain.Evaluation{
			State:  domain.EvaluationDeniedPlatformCount,
			Record: record,
		}, nil
	}

	if policy.UnlimitedCaptions {
		return &domain.Evaluation{
			State:     domain.EvaluationAllowed,
			Record:    record,
			Unlimited: true,
		}, nil
	}

	limit := int64(policy.CaptionQuota)
	if record.CaptionsUsed >= limit {
		s.logger.Info("Caption quota exceeded",
			"user_id", userID,
			"tier", tier,
			"used", record.CaptionsUsed,
			"limit", limit,
		)
		return &domain.Evaluation{
			State:  domain.EvaluationDeniedQuota,
			Record: record,
		}, nil
	}

	return &domain.Evaluation{
		State:     domain.EvaluationAllowed,
		Record:    record,
		Remaining: limit - record.CaptionsUsed,
	}, nil
}

func (s *entitlementService) RecordGeneration(ctx context.Context, record *domain.UsageRecord) (*domain.UsageRecord, error) {
	const op = "entitlement.record"

	updated, err := s.ledger.Increment(ctx, record.ID)
	if err == nil {
		return updated, nil
	}
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		return nil, err
	}

	// The record vanished between check and increment, which means the
	// period rolled over mid-request. The generation already happened, so
	// the consumed unit belongs to the new period: resolve it and seed the
	// fresh record at one instead of surfacing the failure.
	policy, perr := domain.PolicyFor(record.Tier)
	if perr != nil {
		return nil, perr
	}

	now := time.Now()
	fresh, err := s.resolveRecord(ctx, record.UserID, record.Tier, now, policy.PeriodKind)
	if err != nil {
		return nil, err
	}

	s.logger.Warn("Usage record rolled over mid-request, re-recording in new period",
		"user_id", record.UserID,
		"tier", record.Tier,
		"old_record_id", record.ID,
		"new_record_id", fresh.ID,
	)
	return s.ledger.Increment(ctx, fresh.ID)
}

func (s *entitlementService) GetUsage(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time) (*domain.UsageSummary, error) {
	policy, err := domain.PolicyFor(tier)
	if err != nil {
		return nil, err
	}

	record, err := s.resolveRecord(ctx, userID, tier, now, policy.PeriodKind)
	if err != nil {
		return nil, err
	}

	summary := &domain.UsageSummary{
		Tier:        tier,
		PeriodKind:  policy.PeriodKind,
		PeriodStart: record.PeriodStart,
		PeriodEnd:   record.PeriodEnd,
		Used:        record.CaptionsUsed,
		Unlimited:   policy.UnlimitedCaptions,
	}
	if !policy.UnlimitedCaptions {
		summary.Limit = int64(policy.CaptionQuota)
		summary.Remaining = summary.Limit - record.CaptionsUsed
		if summary.Remaining < 0 {
			summary.Remaining = 0
		}
	}
	return summary, nil
}

// resolveRecord returns the current-period record, creating it lazily on
// first access. A concurrent creator winning the insert race is recovered by
// re-finding; only a second consecutive miss surfaces as an error.
func (s *entitlementService) resolveRecord(ctx context.Context, userID uuid.UUID, tier domain.Tier, now time.Time, kind domain.PeriodKind) (*domain.UsageRecord, error) {
	record, err := s.ledger.Find(ctx, userID, tier, now)
	if err == nil {
		return record, nil
	}
	if domain.ErrorCode(err) != domain.ENOTFOUND {
		return nil, err
	}

	period := domain.ComputePeriod(now, kind)
	record, err = s.ledger.Create(ctx, userID, tier, period)
	if err == nil {
		return record, nil
	}
	if domain.ErrorCode(err) != domain.ECONFLICT {
		return nil, err
	}

	// Lost the creation race; the winner's record is the current one.
	return s.ledger.Find(ctx, userID, tier, now)
}
