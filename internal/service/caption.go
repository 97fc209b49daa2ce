// Package service contains the business logic layer.
//
// This file implements the caption service: the orchestration of one caption
// request from entitlement check through AI generation to usage recording.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/captionmyart/captiond/internal/ai"
	"github.com/captionmyart/captiond/internal/domain"
	"github.com/captionmyart/captiond/internal/email"
	"github.com/captionmyart/captiond/internal/metrics"
	"github.com/captionmyart/captiond/internal/repository"
	"github.com/sqlc-dev/pqtype"
)

// QuotaWarningThreshold is the remaining-caption count at which the user is
// warned that they are approaching their limit.
const QuotaWarningThreshold = 1

// =============================================================================
// Interface Definition
// =============================================================================

// CaptionService defines the interface for caption generation.
type CaptionService interface {
	// Generate runs one caption request for the user: entitlement check,
	// AI call, usage recording, and audit logging.
	// Returns domain.EPAYMENT when the caption quota is exhausted.
	// Returns domain.EFORBIDDEN when more platforms were requested than the
	// plan allows.
	Generate(ctx context.Context, user *domain.User, req domain.CaptionRequest) (*domain.CaptionResult, error)
}

// =============================================================================
// Implementation
// =============================================================================

type captionService struct {
	entitlements EntitlementService
	provider     ai.CaptionProvider
	queries      *repository.Queries
	email        email.EmailService
	logger       *slog.Logger
}

// NewCaptionService creates a new CaptionService.
func NewCaptionService(
	entitlements EntitlementService,
	provider ai.CaptionProvider,
	queries *repository.Queries,
	emailService email.EmailService,
	logger *slog.Logger,
) CaptionService {
	return &captionService{
		entitlements: entitlements,
		provider:     provider,
		queries:      queries,
		email:        emailService,
		logger:       logger,
	}
}

func (s *captionService) Generate(ctx context.Context, user *domain.User, req domain.CaptionRequest) (*domain.CaptionResult, error) {
	const op = "caption.generate"

	tier := user.EffectiveTier()
	now := time.Now()

	eval, err := s.entitlements.CheckGenerate(ctx, user.ID, tier, now, len(req.Platforms))
	if err != nil {
		return nil, err
	}
	if denied := deniedError(op, eval, tier, len(req.Platforms)); denied != nil {
		switch eval.State {
		case domain.EvaluationDeniedQuota:
			metrics.CaptionDenials.WithLabelValues("quota").Inc()
		case domain.EvaluationDeniedPlatformCount:
			metrics.CaptionDenials.WithLabelValues("platform_count").Inc()
		}
		return nil, denied
	}

	result, err := s.provider.GenerateCaption(ctx, ai.GenerateParams{
		ImageData:   req.ImageData,
		ContentType: req.ContentType,
		Platforms:   req.Platforms,
		Details:     req.Details,
		Options:     req.Options,
		UserID:      user.ID,
	})
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return nil, translateAIError(op, err)
	}

	metrics.AIAPICalls.WithLabelValues("success").Inc()
	metrics.AITokensTotal.WithLabelValues("input").Add(float64(result.Usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues("output").Add(float64(result.Usage.OutputTokens))
	metrics.AICostCentsTotal.Add(float64(result.Usage.CostCents))
	metrics.CaptionsGenerated.WithLabelValues(string(tier)).Inc()

	// Quota is consumed only after a successful generation.
	record, err := s.entitlements.RecordGeneration(ctx, eval.Record)
	if err != nil {
		// The caption exists; surfacing an error here would make the user
		// pay twice for one result. Log and return the caption.
		s.logger.Error("Failed to record caption usage",
			"user_id", user.ID,
			"record_id", eval.Record.ID,
			"error", err,
		)
		record = eval.Record
	}

	s.auditGeneration(ctx, user, req, result)

	remaining := int64(0)
	if !eval.Unlimited {
		policy, _ := domain.PolicyFor(tier)
		remaining = int64(policy.CaptionQuota) - record.CaptionsUsed
		if remaining < 0 {
			remaining = 0
		}
		if remaining == QuotaWarningThreshold {
			s.sendQuotaWarning(ctx, user, remaining, int64(policy.CaptionQuota))
		}
	}

	return &domain.CaptionResult{
		Caption:   result.Caption,
		Platforms: req.Platforms,
		Model:     result.Usage.Model,
		Remaining: remaining,
		Unlimited: eval.Unlimited,
	}, nil
}

// deniedError converts a denied evaluation into the matching domain error.
func deniedError(op string, eval *domain.Evaluation, tier domain.Tier, requested int) error {
	switch eval.State {
	case domain.EvaluationAllowed:
		return nil
	case domain.EvaluationDeniedPlatformCount:
		policy, err := domain.PolicyFor(tier)
		if err != nil {
			return err
		}
		return domain.PlatformLimit(op, requested, policy.MaxPlatforms)
	case domain.EvaluationDeniedQuota:
		policy, err := domain.PolicyFor(tier)
		if err != nil {
			return err
		}
		return domain.QuotaExceeded(op, eval.Record.CaptionsUsed, int64(policy.CaptionQuota))
	default:
		return domain.Internal(nil, op, "unrecognized entitlement state")
	}
}

// translateAIError maps provider failures to domain error codes.
func translateAIError(op string, err error) error {
	switch {
	case errors.Is(err, ai.EAIRateLimit):
		return domain.RateLimit(op)
	case errors.Is(err, ai.EAIInvalidImage):
		return domain.Invalid(op, "The uploaded image could not be processed. Use a JPEG, PNG, GIF, or WebP under 10MB.")
	case errors.Is(err, ai.EAIContentPolicy):
		return domain.Forbidden(op, "The uploaded image was rejected by the content policy.")
	default:
		return domain.Internal(err, op, "caption generation failed")
	}
}

// auditGeneration stores the generation row for cost tracking. Best effort.
func (s *captionService) auditGeneration(ctx context.Context, user *domain.User, req domain.CaptionRequest, result *ai.CaptionResult) {
	platformsJSON, err := json.Marshal(req.Platforms)
	if err != nil {
		platformsJSON = nil
	}
	optionsJSON, err := json.Marshal(req.Options)
	if err != nil {
		optionsJSON = nil
	}

	_, err = s.queries.CreateGeneration(ctx, repository.CreateGenerationParams{
		UserID:       user.ID,
		Platforms:    pqtype.NullRawMessage{RawMessage: platformsJSON, Valid: platformsJSON != nil},
		Options:      pqtype.NullRawMessage{RawMessage: optionsJSON, Valid: optionsJSON != nil},
		Model:        result.Usage.Model,
		InputTokens:  int32(result.Usage.InputTokens),
		OutputTokens: int32(result.Usage.OutputTokens),
		CostCents:    int32(result.Usage.CostCents),
	})
	if err != nil {
		s.logger.Error("Failed to store generation record",
			"user_id", user.ID,
			"error", err,
		)
	}
}

// sendQuotaWarning emails the user when they are close to their limit.
// Best effort, never fails the request.
func (s *captionService) sendQuotaWarning(ctx context.Context, user *domain.User, remaining, limit int64) {
	if s.email == nil {
		return
	}
	if err := s.email.SendQuotaWarningEmail(ctx, user.Email, remaining, limit); err != nil {
		s.logger.Error("Failed to send quota warning email",
			"user_id", user.ID,
			"error", err,
		)
	}
}
