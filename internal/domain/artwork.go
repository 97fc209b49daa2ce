// Package domain contains core business types and interfaces.
//
// This file defines the Artwork domain type for the gallery of stored pieces
// available on the premium and platinum plans.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Artwork Constants
// =============================================================================

// SupportedImageTypes maps MIME types to their human-readable names.
var SupportedImageTypes = map[string]string{
	"image/jpeg": "JPEG",
	"image/png":  "PNG",
	"image/gif":  "GIF",
	"image/webp": "WebP",
}

const (
	// MaxArtworkSize is the maximum allowed size for uploaded artworks (10MB).
	MaxArtworkSize = 10 * 1024 * 1024 // 10MB in bytes

	// ThumbnailMaxWidth is the maximum width for generated thumbnails.
	ThumbnailMaxWidth = 400

	// ThumbnailMaxHeight is the maximum height for generated thumbnails.
	ThumbnailMaxHeight = 400

	// ThumbnailJPEGQuality is the JPEG quality for thumbnail generation (0-100).
	ThumbnailJPEGQuality = 85
)

// =============================================================================
// Artwork Domain Type
// =============================================================================

// Artwork represents one stored gallery piece.
type Artwork struct {
	ID           uuid.UUID // Unique identifier
	UserID       uuid.UUID // Owner
	Title        string    // Artist-supplied title
	StorageKey   string    // Key/path in storage service for the original
	ThumbnailKey string    // Key/path in storage service for the thumbnail
	ContentType  string    // MIME type (e.g., "image/jpeg")
	SizeBytes    int64     // File size in bytes
	Width        int32     // Image width in pixels
	Height       int32     // Image height in pixels
	CreatedAt    time.Time // When the artwork was uploaded

	// Computed fields (not stored in database, populated by services)
	ThumbnailURL string // Presigned/public URL for thumbnail
	OriginalURL  string // Presigned/public URL for original image
}

// AspectRatio returns the aspect ratio of the artwork (width/height).
func (a *Artwork) AspectRatio() float64 {
	if a.Height == 0 {
		return 0
	}
	return float64(a.Width) / float64(a.Height)
}

// SizeMB returns the file size in megabytes.
func (a *Artwork) SizeMB() float64 {
	return float64(a.SizeBytes) / (1024 * 1024)
}

// =============================================================================
// Validation Helpers
// =============================================================================

// IsValidImageContentType checks if the content type is supported.
func IsValidImageContentType(contentType string) bool {
	_, ok := SupportedImageTypes[contentType]
	return ok
}

// ValidateArtworkSize checks if the file size is within limits.
func ValidateArtworkSize(size int64) error {
	if size > MaxArtworkSize {
		return Errorf(ETOOLARGE, "artwork.validate", "Image size %d bytes exceeds maximum of %d bytes (%.1fMB)", size, MaxArtworkSize, float64(MaxArtworkSize)/(1024*1024))
	}
	if size == 0 {
		return Invalid("artwork.validate", "Image file is empty")
	}
	return nil
}
