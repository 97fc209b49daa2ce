// Package handler contains HTTP handlers for the captiond API.
//
// This file implements the usage endpoint.
//
// Route:
//   - GET /api/usage -> GetUsage
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/captionmyart/captiond/internal/auth"
	"github.com/captionmyart/captiond/internal/service"
)

// UsageHandler serves the current-period usage summary.
type UsageHandler struct {
	entitlements service.EntitlementService
	logger       *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(entitlements service.EntitlementService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		entitlements: entitlements,
		logger:       logger,
	}
}

// RegisterRoutes registers usage routes on the provided mux.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /api/usage", requireUser(http.HandlerFunc(h.GetUsage)))
}

// usageResponse is the JSON shape of the usage summary.
type usageResponse struct {
	Tier        string    `json:"tier"`
	Period      string    `json:"period"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	Used        int64     `json:"used"`
	Limit       int64     `json:"limit,omitempty"`
	Remaining   int64     `json:"remaining"`
	Unlimited   bool      `json:"unlimited"`
}

// GetUsage returns the authenticated user's consumption for the current
// period. Reading usage never consumes quota.
func (h *UsageHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	summary, err := h.entitlements.GetUsage(r.Context(), user.ID, user.EffectiveTier(), time.Now())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, usageResponse{
		Tier:        string(summary.Tier),
		Period:      string(summary.PeriodKind),
		PeriodStart: summary.PeriodStart,
		PeriodEnd:   summary.PeriodEnd,
		Used:        summary.Used,
		Limit:       summary.Limit,
		Remaining:   summary.Remaining,
		Unlimited:   summary.Unlimited,
	})
}
