package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/captionmyart/captiond/internal"
	"github.com/captionmyart/captiond/internal/ai"
	"github.com/captionmyart/captiond/internal/ai/anthropic"
	"github.com/captionmyart/captiond/internal/ai/mock"
	"github.com/captionmyart/captiond/internal/auth"
	"github.com/captionmyart/captiond/internal/billing"
	"github.com/captionmyart/captiond/internal/email"
	"github.com/captionmyart/captiond/internal/handler"
	"github.com/captionmyart/captiond/internal/metrics"
	"github.com/captionmyart/captiond/internal/middleware"
	"github.com/captionmyart/captiond/internal/repository"
	"github.com/captionmyart/captiond/internal/service"
	"github.com/captionmyart/captiond/internal/storage"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	queries := repository.New(db)

	// Initialize storage
	var store storage.Storage
	switch cfg.StorageProvider {
	case "r2":
		store, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		store, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Initialize AI provider
	var provider ai.CaptionProvider
	switch cfg.AIProvider {
	case "anthropic":
		provider, err = anthropic.New(anthropic.Config{
			APIKey: cfg.AnthropicAPIKey,
			Model:  cfg.AnthropicModel,
			ProviderConfig: ai.ProviderConfig{
				MaxRetries:     cfg.AIMaxRetries,
				RetryBaseDelay: cfg.AIRetryBaseDelay,
				RequestTimeout: cfg.AIRequestTimeout,
			},
		}, logger)
		if err != nil {
			return fmt.Errorf("AI provider initialization failed: %w", err)
		}
	default:
		provider = mock.New(logger)
		logger.Warn("Using mock AI provider; captions are canned")
	}

	// Initialize email service
	emailService := email.NewSMTPEmailService(email.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, cfg.BaseURL, logger)

	// Initialize billing (optional in development)
	var billingService billing.Service
	if cfg.StripeSecretKey != "" {
		billingService = billing.NewStripeService(
			cfg.StripeSecretKey,
			cfg.StripeWebhookSecret,
			cfg.BaseURL,
			billing.PriceConfig{
				ProMonthlyPriceID:      cfg.StripeProMonthlyPriceID,
				ProYearlyPriceID:       cfg.StripeProYearlyPriceID,
				PremiumMonthlyPriceID:  cfg.StripePremiumMonthlyPriceID,
				PremiumYearlyPriceID:   cfg.StripePremiumYearlyPriceID,
				PlatinumMonthlyPriceID: cfg.StripePlatinumMonthlyPriceID,
				PlatinumYearlyPriceID:  cfg.StripePlatinumYearlyPriceID,
			},
		)
		logger.Info("Stripe billing enabled")
	} else {
		logger.Warn("Stripe billing disabled; STRIPE_SECRET_KEY not set")
	}

	// Initialize services
	userService := service.NewUserService(queries, logger)
	ledger := service.NewUsageLedger(queries)
	entitlementService := service.NewEntitlementService(ledger, logger)
	captionService := service.NewCaptionService(entitlementService, provider, queries, emailService, logger)
	galleryService := service.NewGalleryService(queries, store, service.NewImagingProcessor(), logger)

	// Initialize auth
	verifier, err := auth.NewSupabaseVerifier(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	if err != nil {
		return fmt.Errorf("auth initialization failed: %w", err)
	}

	// Initialize middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(verifier, userService, logger)
	requireUser := middleware.Stack(authMw.RequireUser)

	rateLimiter := middleware.NewRateLimiter(120, time.Minute, logger)
	rateLimitMw := middleware.NewRateLimitMiddleware(rateLimiter, logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health checks (public)
	handler.NewHealthHandler(db).RegisterRoutes(mux)

	// Stripe webhooks (public; authenticated by signature)
	handler.NewWebhookHandler(billingService, userService, logger).RegisterRoutes(mux)

	// Authenticated API
	handler.NewCaptionHandler(captionService, logger).RegisterRoutes(mux, requireUser)
	handler.NewUsageHandler(entitlementService, logger).RegisterRoutes(mux, requireUser)
	handler.NewGalleryHandler(galleryService, logger).RegisterRoutes(mux, requireUser)
	handler.NewBillingHandler(billingService, cfg.BaseURL, logger).RegisterRoutes(mux, requireUser)

	// Prometheus metrics (basic auth)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Local storage files (development)
	if cfg.StorageProvider == "local" {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	// Start the metrics worker
	metricsWorker := metrics.NewWorker(queries, logger)
	go metricsWorker.Run(ctx)

	// ==========================================================================
	// Start server
	// ==========================================================================

	chain := securityMw.Handler(
		loggingMw.Handler(
			metrics.Middleware(
				rateLimitMw.Limit(mux))))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: chain,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")
	cancel()

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
