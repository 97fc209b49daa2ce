package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Artwork is one stored gallery image with its thumbnail.
type Artwork struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Title        string
	StorageKey   string
	ThumbnailKey string
	ContentType  string
	SizeBytes    int64
	Width        int32
	Height       int32
	CreatedAt    time.Time
}

type CreateArtworkParams struct {
	UserID       uuid.UUID
	Title        string
	StorageKey   string
	ThumbnailKey string
	ContentType  string
	SizeBytes    int64
	Width        int32
	Height       int32
}

const createArtwork = `
INSERT INTO artworks (id, user_id, title, storage_key, thumbnail_key, content_type, size_bytes, width, height)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, user_id, title, storage_key, thumbnail_key, content_type, size_bytes, width, height, created_at
`

func (q *Queries) CreateArtwork(ctx context.Context, arg CreateArtworkParams) (Artwork, error) {
	row := q.db.QueryRowContext(ctx, createArtwork,
		uuid.New(), arg.UserID, arg.Title, arg.StorageKey, arg.ThumbnailKey,
		arg.ContentType, arg.SizeBytes, arg.Width, arg.Height)
	var a Artwork
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.StorageKey, &a.ThumbnailKey,
		&a.ContentType, &a.SizeBytes, &a.Width, &a.Height, &a.CreatedAt)
	return a, err
}

const getArtwork = `
SELECT id, user_id, title, storage_key, thumbnail_key, content_type, size_bytes, width, height, created_at
FROM artworks
WHERE id = $1 AND user_id = $2
`

func (q *Queries) GetArtwork(ctx context.Context, id, userID uuid.UUID) (Artwork, error) {
	row := q.db.QueryRowContext(ctx, getArtwork, id, userID)
	var a Artwork
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.StorageKey, &a.ThumbnailKey,
		&a.ContentType, &a.SizeBytes, &a.Width, &a.Height, &a.CreatedAt)
	return a, err
}

const listArtworksByUser = `
SELECT id, user_id, title, storage_key, thumbnail_key, content_type, size_bytes, width, height, created_at
FROM artworks
WHERE user_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListArtworksByUser(ctx context.Context, userID uuid.UUID) ([]Artwork, error) {
	rows, err := q.db.QueryContext(ctx, listArtworksByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Artwork
	for rows.Next() {
		var a Artwork
		if err := rows.Scan(&a.ID, &a.UserID, &a.Title, &a.StorageKey, &a.ThumbnailKey,
			&a.ContentType, &a.SizeBytes, &a.Width, &a.Height, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

const countArtworksByUser = `
SELECT count(*) FROM artworks WHERE user_id = $1
`

func (q *Queries) CountArtworksByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countArtworksByUser, userID).Scan(&n)
	return n, err
}

const deleteArtwork = `
DELETE FROM artworks WHERE id = $1 AND user_id = $2
`

func (q *Queries) DeleteArtwork(ctx context.Context, id, userID uuid.UUID) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteArtwork, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
