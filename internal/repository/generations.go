package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

// Generation records one successful caption generation for audit and cost
// tracking. Platforms and the request options are stored as JSONB.
type Generation struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Platforms    pqtype.NullRawMessage
	Options      pqtype.NullRawMessage
	Model        string
	InputTokens  int32
	OutputTokens int32
	CostCents    int32
	CreatedAt    time.Time
}

type CreateGenerationParams struct {
	UserID       uuid.UUID
	Platforms    pqtype.NullRawMessage
	Options      pqtype.NullRawMessage
	Model        string
	InputTokens  int32
	OutputTokens int32
	CostCents    int32
}

const createGeneration = `
INSERT INTO generations (id, user_id, platforms, options, model, input_tokens, output_tokens, cost_cents)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, user_id, platforms, options, model, input_tokens, output_tokens, cost_cents, created_at
`

func (q *Queries) CreateGeneration(ctx context.Context, arg CreateGenerationParams) (Generation, error) {
	row := q.db.QueryRowContext(ctx, createGeneration,
		uuid.New(), arg.UserID, arg.Platforms, arg.Options,
		arg.Model, arg.InputTokens, arg.OutputTokens, arg.CostCents)
	var g Generation
	err := row.Scan(&g.ID, &g.UserID, &g.Platforms, &g.Options, &g.Model,
		&g.InputTokens, &g.OutputTokens, &g.CostCents, &g.CreatedAt)
	return g, err
}

const countGenerationsSince = `
SELECT count(*) FROM generations WHERE created_at >= $1
`

func (q *Queries) CountGenerationsSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countGenerationsSince, since).Scan(&n)
	return n, err
}
