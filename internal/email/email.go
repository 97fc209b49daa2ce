// Package email provides email sending functionality.
//
// This package defines an EmailService interface with an SMTP implementation
// that works with Mailhog in development and any authenticated SMTP relay in
// production.
package email

import (
	"context"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EmailService defines the interface for sending transactional emails.
//
// All methods are context-aware for timeout and cancellation support.
type EmailService interface {
	// SendWelcomeEmail greets a newly provisioned user.
	// Parameters:
	// - to: Recipient email address
	SendWelcomeEmail(ctx context.Context, to string) error

	// SendQuotaWarningEmail notifies a user that they are close to their
	// caption limit for the current period.
	// Parameters:
	// - to: Recipient email address
	// - remaining: Captions left in the current period
	// - limit: The period's caption quota
	SendQuotaWarningEmail(ctx context.Context, to string, remaining, limit int64) error

	// SendSubscriptionChangedEmail confirms a plan change after a billing
	// event.
	// Parameters:
	// - to: Recipient email address
	// - tier: The plan the user is now on
	SendSubscriptionChangedEmail(ctx context.Context, to, tier string) error
}

// =============================================================================
// Email Data Types
// =============================================================================

// Email represents a single email message.
type Email struct {
	To       string // Recipient email address
	Subject  string // Email subject line
	TextBody string // Plain text content
}

// =============================================================================
// Configuration Types
// =============================================================================

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string // SMTP server hostname (e.g., "localhost" for Mailhog)
	Port     int    // SMTP server port (e.g., 1025 for Mailhog)
	Username string // SMTP authentication username (empty for Mailhog)
	Password string // SMTP authentication password (empty for Mailhog)
	From     string // Default sender email address
	FromName string // Default sender display name
}

// =============================================================================
// Common Constants
// =============================================================================

const (
	// DefaultFromEmail is the default sender email for transactional emails.
	DefaultFromEmail = "noreply@captionmy.art"

	// DefaultFromName is the default sender display name.
	DefaultFromName = "CaptionMy.Art"
)
