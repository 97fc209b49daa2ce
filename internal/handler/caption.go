// Package handler contains HTTP handlers for the captiond API.
//
// This file implements the caption generation endpoint.
//
// Route:
//   - POST /api/captions -> GenerateCaption
//
// The request is multipart/form-data: the artwork image plus the artwork
// details and caption options as form fields. Platforms are submitted as
// repeated "platforms" fields or one comma-separated value.
package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/captionmyart/captiond/internal/auth"
	"github.com/captionmyart/captiond/internal/domain"
	"github.com/captionmyart/captiond/internal/service"
	"github.com/go-playground/validator/v10"
)

// maxCaptionFormMemory bounds the in-memory portion of multipart parsing.
const maxCaptionFormMemory = 1 << 20 // 1MB; the image part spills to disk

// CaptionHandler handles caption generation HTTP requests.
type CaptionHandler struct {
	captions service.CaptionService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewCaptionHandler creates a new CaptionHandler.
func NewCaptionHandler(captions service.CaptionService, logger *slog.Logger) *CaptionHandler {
	return &CaptionHandler{
		captions: captions,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers caption routes on the provided mux.
func (h *CaptionHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/captions", requireUser(http.HandlerFunc(h.GenerateCaption)))
}

// captionForm is the validated shape of a caption generation request.
type captionForm struct {
	Platforms     []string `validate:"required,min=1,dive,oneof=instagram tiktok twitter reddit artstation deviantart"`
	Medium        string   `validate:"required,max=100"`
	ArtStyle      string   `validate:"max=100"`
	Tone          string   `validate:"max=100"`
	Mood          string   `validate:"max=100"`
	Audience      string   `validate:"max=100"`
	Subject       string   `validate:"max=200"`
	CustomContext string   `validate:"max=1000"`
}

// captionResponse is the JSON body returned for a successful generation.
type captionResponse struct {
	Caption   string   `json:"caption"`
	Platforms []string `json:"platforms"`
	Model     string   `json:"model"`
	Remaining int64    `json:"remaining"`
	Unlimited bool     `json:"unlimited"`
}

// GenerateCaption runs one caption generation for the authenticated user.
func (h *CaptionHandler) GenerateCaption(w http.ResponseWriter, r *http.Request) {
	const op = "handler.generate_caption"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	// Reject oversized uploads before buffering the body.
	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxArtworkSize+maxCaptionFormMemory)
	if err := r.ParseMultipartForm(maxCaptionFormMemory); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Request must be multipart/form-data with an image file."))
		return
	}

	form := captionForm{
		Platforms:     splitPlatforms(r.Form["platforms"]),
		Medium:        strings.TrimSpace(r.FormValue("medium")),
		ArtStyle:      strings.TrimSpace(r.FormValue("art_style")),
		Tone:          strings.TrimSpace(r.FormValue("tone")),
		Mood:          strings.TrimSpace(r.FormValue("mood")),
		Audience:      strings.TrimSpace(r.FormValue("audience")),
		Subject:       strings.TrimSpace(r.FormValue("subject")),
		CustomContext: strings.TrimSpace(r.FormValue("custom_context")),
	}
	if err := h.validate.Struct(form); err != nil {
		ValidationErrorResponse(w, r, h.logger, validationToDomain(op, err))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "An image file is required."))
		return
	}
	defer file.Close()

	if err := domain.ValidateArtworkSize(header.Size); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	imageData, err := io.ReadAll(file)
	if err != nil {
		InternalErrorResponse(w, r, h.logger, err)
		return
	}

	contentType := http.DetectContentType(imageData)
	if !domain.IsValidImageContentType(contentType) {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Unsupported image type. Only JPEG, PNG, GIF, and WebP are supported."))
		return
	}

	platforms := make([]domain.Platform, 0, len(form.Platforms))
	for _, p := range form.Platforms {
		platforms = append(platforms, domain.Platform(p))
	}

	result, err := h.captions.Generate(r.Context(), user, domain.CaptionRequest{
		UserID:      user.ID,
		ImageData:   imageData,
		ContentType: contentType,
		Platforms:   platforms,
		Details: domain.ArtworkDetails{
			Medium:        form.Medium,
			ArtStyle:      form.ArtStyle,
			Tone:          form.Tone,
			Mood:          form.Mood,
			Audience:      form.Audience,
			Subject:       form.Subject,
			CustomContext: form.CustomContext,
		},
		Options: domain.CaptionOptions{
			IncludeProcess:  formBool(r, "include_process"),
			IncludeHashtags: formBool(r, "include_hashtags"),
			IncludeCTA:      formBool(r, "include_cta"),
			IncludeEmoji:    formBool(r, "include_emoji"),
			SEOOptimized:    formBool(r, "seo_optimized"),
		},
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, captionResponse{
		Caption:   result.Caption,
		Platforms: form.Platforms,
		Model:     result.Model,
		Remaining: result.Remaining,
		Unlimited: result.Unlimited,
	})
}

// splitPlatforms flattens repeated and comma-separated platform values.
func splitPlatforms(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// formBool interprets a form value as a boolean toggle.
func formBool(r *http.Request, name string) bool {
	switch strings.ToLower(r.FormValue(name)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

// validationToDomain converts validator errors into field-level domain errors.
func validationToDomain(op string, err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return domain.Invalid(op, "Validation failed")
	}
	ve := &domain.ValidationError{Op: op, Fields: make(map[string]string)}
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required", "min":
			ve.Fields[field] = "This field is required."
		case "max":
			ve.Fields[field] = "This value is too long."
		case "oneof":
			ve.Fields[field] = "Unsupported value."
		default:
			ve.Fields[field] = "Invalid value."
		}
	}
	return ve
}
