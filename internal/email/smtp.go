package email

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// =============================================================================
// SMTP Email Service Implementation
// =============================================================================

// SMTPEmailService sends emails via SMTP.
//
// This implementation works with:
// - Mailhog (development): No authentication required
// - Any standard authenticated SMTP relay (production)
type SMTPEmailService struct {
	config  SMTPConfig
	baseURL string
	logger  *slog.Logger
}

// NewSMTPEmailService creates a new SMTP-based email service.
//
// Parameters:
// - config: SMTP server configuration
// - baseURL: Application base URL for constructing links (e.g., "http://localhost:8080")
// - logger: Structured logger for error reporting
func NewSMTPEmailService(config SMTPConfig, baseURL string, logger *slog.Logger) *SMTPEmailService {
	// Set defaults
	if config.From == "" {
		config.From = DefaultFromEmail
	}
	if config.FromName == "" {
		config.FromName = DefaultFromName
	}

	return &SMTPEmailService{
		config:  config,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		logger:  logger,
	}
}

// =============================================================================
// EmailService Interface Implementation
// =============================================================================

// SendWelcomeEmail greets a newly provisioned user.
func (s *SMTPEmailService) SendWelcomeEmail(ctx context.Context, to string) error {
	textBody := fmt.Sprintf(`Hi,

Welcome to CaptionMy.Art! Upload a piece, pick your platforms, and we'll write
a caption that actually sounds like you.

Get started: %s

Thanks,
The CaptionMy.Art Team
`, s.baseURL)

	return s.send(ctx, Email{
		To:       to,
		Subject:  "Welcome to CaptionMy.Art",
		TextBody: textBody,
	})
}

// SendQuotaWarningEmail notifies a user that they are close to their caption
// limit for the current period.
func (s *SMTPEmailService) SendQuotaWarningEmail(ctx context.Context, to string, remaining, limit int64) error {
	textBody := fmt.Sprintf(`Hi,

Heads up: you have %d of %d captions left in your current period.

If you need more, you can upgrade your plan here:

%s/pricing

Thanks,
The CaptionMy.Art Team
`, remaining, limit, s.baseURL)

	return s.send(ctx, Email{
		To:       to,
		Subject:  "You're almost out of captions",
		TextBody: textBody,
	})
}

// SendSubscriptionChangedEmail confirms a plan change after a billing event.
func (s *SMTPEmailService) SendSubscriptionChangedEmail(ctx context.Context, to, tier string) error {
	textBody := fmt.Sprintf(`Hi,

Your CaptionMy.Art plan is now: %s.

You can review your subscription any time:

%s/pricing

Thanks,
The CaptionMy.Art Team
`, tier, s.baseURL)

	return s.send(ctx, Email{
		To:       to,
		Subject:  "Your plan has changed",
		TextBody: textBody,
	})
}

// =============================================================================
// Internal Methods
// =============================================================================

// send sends an email via SMTP.
func (s *SMTPEmailService) send(ctx context.Context, email Email) error {
	msg := s.buildMessage(email)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	// Create auth if credentials are provided (not needed for Mailhog)
	var auth smtp.Auth
	if s.config.Username != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
	}

	err := smtp.SendMail(addr, auth, s.config.From, []string{email.To}, msg)
	if err != nil {
		s.logger.Error("failed to send email",
			"to", email.To,
			"subject", email.Subject,
			"error", err,
		)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("email sent",
		"to", email.To,
		"subject", email.Subject,
	)

	return nil
}

// buildMessage constructs the raw email message with headers.
func (s *SMTPEmailService) buildMessage(email Email) []byte {
	var buf bytes.Buffer

	fromHeader := fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)

	buf.WriteString(fmt.Sprintf("From: %s\r\n", fromHeader))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", email.To))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", email.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(email.TextBody)
	buf.WriteString("\r\n")

	return buf.Bytes()
}

// =============================================================================
// Compile-time interface check
// =============================================================================

var _ EmailService = (*SMTPEmailService)(nil)
