// Package handler contains HTTP handlers for the captiond API.
//
// This file implements the gallery endpoints for the plans with artwork
// storage.
//
// Routes:
//   - POST   /api/gallery      -> UploadArtwork
//   - GET    /api/gallery      -> ListArtworks
//   - DELETE /api/gallery/{id} -> DeleteArtwork
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/captionmyart/captiond/internal/auth"
	"github.com/captionmyart/captiond/internal/domain"
	"github.com/captionmyart/captiond/internal/service"
	"github.com/google/uuid"
)

// GalleryHandler handles gallery HTTP requests.
type GalleryHandler struct {
	gallery service.GalleryService
	logger  *slog.Logger
}

// NewGalleryHandler creates a new GalleryHandler.
func NewGalleryHandler(gallery service.GalleryService, logger *slog.Logger) *GalleryHandler {
	return &GalleryHandler{
		gallery: gallery,
		logger:  logger,
	}
}

// RegisterRoutes registers gallery routes on the provided mux.
func (h *GalleryHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /api/gallery", requireUser(http.HandlerFunc(h.UploadArtwork)))
	mux.Handle("GET /api/gallery", requireUser(http.HandlerFunc(h.ListArtworks)))
	mux.Handle("DELETE /api/gallery/{id}", requireUser(http.HandlerFunc(h.DeleteArtwork)))
}

// artworkResponse is the JSON shape of one gallery artwork.
type artworkResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	ContentType  string    `json:"content_type"`
	SizeBytes    int64     `json:"size_bytes"`
	Width        int32     `json:"width"`
	Height       int32     `json:"height"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	OriginalURL  string    `json:"original_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// UploadArtwork stores an artwork image for the authenticated user.
func (h *GalleryHandler) UploadArtwork(w http.ResponseWriter, r *http.Request) {
	const op = "handler.upload_artwork"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, domain.MaxArtworkSize+maxCaptionFormMemory)
	if err := r.ParseMultipartForm(maxCaptionFormMemory); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Request must be multipart/form-data with an image file."))
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "An image file is required."))
		return
	}
	defer file.Close()

	artwork, err := h.gallery.Upload(r.Context(), user, file, header, r.FormValue("title"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, artworkToResponse(artwork))
}

// ListArtworks returns the authenticated user's artworks, newest first.
func (h *GalleryHandler) ListArtworks(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	artworks, err := h.gallery.List(r.Context(), user)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	items := make([]artworkResponse, 0, len(artworks))
	for i := range artworks {
		items = append(items, artworkToResponse(&artworks[i]))
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"artworks": items})
}

// DeleteArtwork removes one of the authenticated user's artworks.
func (h *GalleryHandler) DeleteArtwork(w http.ResponseWriter, r *http.Request) {
	const op = "handler.delete_artwork"

	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	artworkID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Invalid artwork ID."))
		return
	}

	if err := h.gallery.Delete(r.Context(), user, artworkID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// artworkToResponse converts a domain artwork to its JSON shape.
func artworkToResponse(a *domain.Artwork) artworkResponse {
	return artworkResponse{
		ID:           a.ID.String(),
		Title:        a.Title,
		ContentType:  a.ContentType,
		SizeBytes:    a.SizeBytes,
		Width:        a.Width,
		Height:       a.Height,
		ThumbnailURL: a.ThumbnailURL,
		OriginalURL:  a.OriginalURL,
		CreatedAt:    a.CreatedAt,
	}
}
