package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/captionmyart/captiond/internal/domain"
	"github.com/google/uuid"
)

// CaptionProvider defines the interface for AI-powered caption generation
type CaptionProvider interface {
	// GenerateCaption writes a caption for an artwork image
	GenerateCaption(ctx context.Context, params GenerateParams) (*CaptionResult, error)
}

// GenerateParams contains parameters for caption generation
type GenerateParams struct {
	ImageData   []byte                // Raw image bytes
	ContentType string                // MIME type (e.g., "image/jpeg")
	Platforms   []domain.Platform     // Target platforms
	Details     domain.ArtworkDetails // Artist-supplied description
	Options     domain.CaptionOptions // Caption feature toggles
	UserID      uuid.UUID             // User ID for usage tracking
}

// CaptionResult contains the generated caption
type CaptionResult struct {
	Caption string    // The caption text
	Usage   UsageInfo // Token usage and cost information
}

// UsageInfo tracks API usage for billing and monitoring
type UsageInfo struct {
	Model        string        // AI model used
	InputTokens  int           // Tokens in the request
	OutputTokens int           // Tokens in the response
	CostCents    int           // Estimated cost in cents
	Duration     time.Duration // Request duration
}

// ProviderConfig contains common configuration for AI providers
type ProviderConfig struct {
	MaxRetries     int           // Maximum retry attempts for transient errors
	RetryBaseDelay time.Duration // Base delay for exponential backoff
	RequestTimeout time.Duration // Timeout for individual requests
}

// Error codes for AI provider operations
var (
	// EAIRateLimit indicates the API rate limit has been exceeded
	EAIRateLimit = errors.New("ai provider rate limit exceeded")

	// EAIInvalidImage indicates the image format or content is invalid
	EAIInvalidImage = errors.New("invalid image format or content")

	// EAIContentPolicy indicates the image violates content policy
	EAIContentPolicy = errors.New("image violates content policy")

	// EAITimeout indicates the request timed out
	EAITimeout = errors.New("ai request timed out")

	// EAIUnavailable indicates the AI service is temporarily unavailable
	EAIUnavailable = errors.New("ai service temporarily unavailable")

	// EAIUnauthorized indicates invalid API credentials
	EAIUnauthorized = errors.New("ai provider authentication failed")
)

// IsRetryable returns true if the error is a transient error that can be retried
func IsRetryable(err error) bool {
	return errors.Is(err, EAIRateLimit) ||
		errors.Is(err, EAITimeout) ||
		errors.Is(err, EAIUnavailable)
}

// WrapError wraps an error with context about the AI operation
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
