package mock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/captionmyart/captiond/internal/ai"
)

// Provider is a mock caption provider for testing and development
type Provider struct {
	logger *slog.Logger

	// Configurable responses for testing
	GenerateCaptionResponse *ai.CaptionResult
	GenerateCaptionError    error

	// Call tracking for testing
	GenerateCaptionCalls int
	LastParams           ai.GenerateParams
}

// New creates a new mock caption provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// GenerateCaption returns a canned caption built from the request details
func (p *Provider) GenerateCaption(ctx context.Context, params ai.GenerateParams) (*ai.CaptionResult, error) {
	p.GenerateCaptionCalls++
	p.LastParams = params

	// If a custom response or error is set, use it
	if p.GenerateCaptionError != nil {
		return nil, p.GenerateCaptionError
	}
	if p.GenerateCaptionResponse != nil {
		return p.GenerateCaptionResponse, nil
	}

	platforms := make([]string, 0, len(params.Platforms))
	for _, platform := range params.Platforms {
		platforms = append(platforms, string(platform))
	}

	caption := fmt.Sprintf(
		"Layered light over a restless sea, worked in %s. Every pass of the brush chased the moment the storm broke.",
		orDefault(params.Details.Medium, "mixed media"),
	)
	if params.Options.IncludeHashtags {
		caption += "\n\n#artistsoninstagram #seascape #originalart"
	}
	if params.Options.IncludeCTA {
		caption += "\n\nPrints available, link in bio."
	}
	caption += fmt.Sprintf("\n\n[written for %s]", strings.Join(platforms, ", "))

	return &ai.CaptionResult{
		Caption: caption,
		Usage: ai.UsageInfo{
			Model:        "mock-ai-v1",
			InputTokens:  1250,
			OutputTokens: 180,
			CostCents:    1,
			Duration:     250 * time.Millisecond,
		},
	}, nil
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.GenerateCaptionCalls = 0
	p.GenerateCaptionResponse = nil
	p.GenerateCaptionError = nil
	p.LastParams = ai.GenerateParams{}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
