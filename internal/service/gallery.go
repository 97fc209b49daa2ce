// Package service contains the business logic layer.
//
// This file implements the gallery service for storing artwork images on the
// plans that include gallery storage.
package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/captionmyart/captiond/internal/domain"
	"github.com/captionmyart/captiond/internal/metrics"
	"github.com/captionmyart/captiond/internal/repository"
	"github.com/captionmyart/captiond/internal/storage"
	"github.com/google/uuid"
)

// galleryURLTTL is how long presigned artwork URLs stay valid.
const galleryURLTTL = 15 * time.Minute

// =============================================================================
// Interface Definition
// =============================================================================

// GalleryService defines the interface for gallery operations.
type GalleryService interface {
	// Upload stores an artwork image and its thumbnail and creates the
	// database record.
	// Returns domain.EFORBIDDEN if the user's plan has no gallery.
	// Returns domain.EPAYMENT if the plan's image cap is reached.
	// Returns domain.EINVALID / domain.ETOOLARGE for bad uploads.
	Upload(ctx context.Context, user *domain.User, file multipart.File, header *multipart.FileHeader, title string) (*domain.Artwork, error)

	// List returns the user's artworks, newest first, with thumbnail URLs
	// populated.
	List(ctx context.Context, user *domain.User) ([]domain.Artwork, error)

	// Delete removes an artwork and its stored files.
	// Returns domain.ENOTFOUND if the artwork doesn't exist or belongs to
	// someone else.
	Delete(ctx context.Context, user *domain.User, artworkID uuid.UUID) error
}

// =============================================================================
// Implementation
// =============================================================================

type galleryService struct {
	queries            *repository.Queries
	storage            storage.Storage
	thumbnailProcessor ThumbnailProcessor
	logger             *slog.Logger
}

// NewGalleryService creates a new GalleryService.
func NewGalleryService(
	queries *repository.Queries,
	store storage.Storage,
	thumbnailProcessor ThumbnailProcessor,
	logger *slog.Logger,
) GalleryService {
	return &galleryService{
		queries:            queries,
		storage:            store,
		thumbnailProcessor: thumbnailProcessor,
		logger:             logger,
	}
}

// =============================================================================
// Upload
// =============================================================================

func (s *galleryService) Upload(ctx context.Context, user *domain.User, file multipart.File, header *multipart.FileHeader, title string) (*domain.Artwork, error) {
	const op = "gallery.upload"

	policy, err := s.galleryPolicy(op, user)
	if err != nil {
		return nil, err
	}

	// Enforce the plan's image cap the same way the caption quota works.
	if !policy.UnlimitedGallery {
		count, err := s.queries.CountArtworksByUser(ctx, user.ID)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to count artworks")
		}
		if count >= int64(policy.GalleryCap) {
			return nil, domain.QuotaExceeded(op, count, int64(policy.GalleryCap))
		}
	}

	// Validate file size
	if err := domain.ValidateArtworkSize(header.Size); err != nil {
		return nil, err
	}

	// Detect content type from file header (read first 512 bytes)
	headerBytes := make([]byte, 512)
	n, err := file.Read(headerBytes)
	if err != nil && err != io.EOF {
		return nil, domain.Internal(err, op, "failed to read file header")
	}
	contentType := http.DetectContentType(headerBytes[:n])

	if !domain.IsValidImageContentType(contentType) {
		return nil, domain.Invalid(op, fmt.Sprintf("Unsupported image type: %s. Only JPEG, PNG, GIF, and WebP are supported.", contentType))
	}

	// Reset file pointer to beginning after reading header
	if seeker, ok := file.(io.Seeker); ok {
		if _, err := seeker.Seek(0, 0); err != nil {
			return nil, domain.Internal(err, op, "failed to reset file pointer")
		}
	}

	// Read entire file into memory for processing
	fileData, err := io.ReadAll(file)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read file data")
	}

	// Generate thumbnail
	thumbnailBytes, width, height, err := s.thumbnailProcessor.GenerateThumbnail(
		bytes.NewReader(fileData),
		domain.ThumbnailMaxWidth,
		domain.ThumbnailMaxHeight,
	)
	if err != nil {
		return nil, domain.Invalid(op, "The uploaded file is not a readable image.")
	}

	storageKey := storage.ArtworkKey(user.ID, header.Filename)
	thumbnailKey := storage.ThumbnailKey(user.ID)

	// Upload original to storage
	if err := s.storage.Put(ctx, storageKey, bytes.NewReader(fileData), storage.PutOptions{
		ContentType: contentType,
		MaxSize:     domain.MaxArtworkSize,
		Overwrite:   false,
		Public:      false,
	}); err != nil {
		return nil, domain.Internal(err, op, "failed to upload artwork")
	}

	// Upload thumbnail to storage
	if err := s.storage.Put(ctx, thumbnailKey, bytes.NewReader(thumbnailBytes), storage.PutOptions{
		ContentType: "image/jpeg",
		MaxSize:     0, // No limit for thumbnails
		Overwrite:   false,
		Public:      false,
	}); err != nil {
		// Clean up original image on thumbnail upload failure
		_ = s.storage.Delete(ctx, storageKey)
		return nil, domain.Internal(err, op, "failed to upload thumbnail")
	}

	if title == "" {
		title = header.Filename
	}

	row, err := s.queries.CreateArtwork(ctx, repository.CreateArtworkParams{
		UserID:       user.ID,
		Title:        title,
		StorageKey:   storageKey,
		ThumbnailKey: thumbnailKey,
		ContentType:  contentType,
		SizeBytes:    header.Size,
		Width:        int32(width),
		Height:       int32(height),
	})
	if err != nil {
		// Clean up storage on database error
		_ = s.storage.Delete(ctx, storageKey)
		_ = s.storage.Delete(ctx, thumbnailKey)
		return nil, domain.Internal(err, op, "failed to create artwork record")
	}

	metrics.ArtworksUploaded.Inc()

	artwork := artworkToDomain(row)
	s.populateURLs(ctx, artwork)
	return artwork, nil
}

// =============================================================================
// List
// =============================================================================

func (s *galleryService) List(ctx context.Context, user *domain.User) ([]domain.Artwork, error) {
	const op = "gallery.list"

	if _, err := s.galleryPolicy(op, user); err != nil {
		return nil, err
	}

	rows, err := s.queries.ListArtworksByUser(ctx, user.ID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list artworks")
	}

	artworks := make([]domain.Artwork, 0, len(rows))
	for _, row := range rows {
		artwork := artworkToDomain(row)
		s.populateURLs(ctx, artwork)
		artworks = append(artworks, *artwork)
	}
	return artworks, nil
}

// =============================================================================
// Delete
// =============================================================================

func (s *galleryService) Delete(ctx context.Context, user *domain.User, artworkID uuid.UUID) error {
	const op = "gallery.delete"

	row, err := s.queries.GetArtwork(ctx, artworkID, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "artwork", artworkID.String())
		}
		return domain.Internal(err, op, "failed to fetch artwork")
	}

	affected, err := s.queries.DeleteArtwork(ctx, artworkID, user.ID)
	if err != nil {
		return domain.Internal(err, op, "failed to delete artwork record")
	}
	if affected == 0 {
		return domain.NotFound(op, "artwork", artworkID.String())
	}

	// Storage cleanup is best effort; orphaned objects are harmless.
	if err := s.storage.Delete(ctx, row.StorageKey); err != nil {
		s.logger.Error("Failed to delete artwork object", "key", row.StorageKey, "error", err)
	}
	if err := s.storage.Delete(ctx, row.ThumbnailKey); err != nil {
		s.logger.Error("Failed to delete thumbnail object", "key", row.ThumbnailKey, "error", err)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// galleryPolicy returns the user's tier policy, rejecting plans without
// gallery storage.
func (s *galleryService) galleryPolicy(op string, user *domain.User) (domain.TierPolicy, error) {
	policy, err := domain.PolicyFor(user.EffectiveTier())
	if err != nil {
		return domain.TierPolicy{}, err
	}
	if !policy.HasGallery {
		return domain.TierPolicy{}, domain.Forbidden(op, "Your plan does not include gallery storage. Upgrade to Premium or Platinum.")
	}
	return policy, nil
}

// populateURLs fills the presigned URL fields. URL failures are logged and
// leave the fields empty rather than failing the request.
func (s *galleryService) populateURLs(ctx context.Context, artwork *domain.Artwork) {
	thumbURL, err := s.storage.URL(ctx, artwork.ThumbnailKey, galleryURLTTL)
	if err != nil {
		s.logger.Error("Failed to presign thumbnail URL", "key", artwork.ThumbnailKey, "error", err)
	} else {
		artwork.ThumbnailURL = thumbURL
	}

	origURL, err := s.storage.URL(ctx, artwork.StorageKey, galleryURLTTL)
	if err != nil {
		s.logger.Error("Failed to presign artwork URL", "key", artwork.StorageKey, "error", err)
	} else {
		artwork.OriginalURL = origURL
	}
}

// artworkToDomain converts a repository artwork row to the domain type.
func artworkToDomain(row repository.Artwork) *domain.Artwork {
	return &domain.Artwork{
		ID:           row.ID,
		UserID:       row.UserID,
		Title:        row.Title,
		StorageKey:   row.StorageKey,
		ThumbnailKey: row.ThumbnailKey,
		ContentType:  row.ContentType,
		SizeBytes:    row.SizeBytes,
		Width:        row.Width,
		Height:       row.Height,
		CreatedAt:    row.CreatedAt,
	}
}
