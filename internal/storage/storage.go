// Package storage persists gallery artwork files.
//
// Two backends implement the Storage interface: LocalStorage keeps files on
// disk for development, R2Storage talks to Cloudflare R2 for production.
package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Storage is the file store used by the gallery service. Reads go through
// URL: local files are served over HTTP, R2 objects via presigned URLs.
type Storage interface {
	// Put stores data at key. Returns ErrKeyExists when the key is taken
	// and opts.Overwrite is false, ErrTooLarge when opts.MaxSize is exceeded.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Delete removes the object at key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// URL returns a URL under which the object can be fetched for at least
	// the given duration.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is the MIME type to store with the object. When empty it
	// is guessed from the key's extension.
	ContentType string

	// MaxSize rejects writes larger than this many bytes. Zero means no
	// limit.
	MaxSize int64

	// Overwrite allows replacing an existing object at the same key.
	Overwrite bool

	// Public marks the object world readable where the backend supports it.
	Public bool
}

// LocalConfig configures filesystem storage.
type LocalConfig struct {
	BasePath string // root directory, e.g. /var/lib/captiond/files
	BaseURL  string // URL prefix the files are served under
}

// R2Config configures Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// PublicURL is the bucket's custom domain, if any. When set, unexpiring
	// URLs are built from it instead of presigning.
	PublicURL string

	// Region defaults to "auto", which is what R2 expects.
	Region string
}

// ArtworkKey builds the storage key for an uploaded original.
// Layout: artworks/{userID}/originals/{uuid}{ext}
func ArtworkKey(userID uuid.UUID, filename string) string {
	return fmt.Sprintf("artworks/%s/originals/%s%s", userID, uuid.New(), filepath.Ext(filename))
}

// ThumbnailKey builds the storage key for an artwork thumbnail. Thumbnails
// are always JPEG regardless of the original format.
func ThumbnailKey(userID uuid.UUID) string {
	return fmt.Sprintf("artworks/%s/thumbnails/%s.jpg", userID, uuid.New())
}
