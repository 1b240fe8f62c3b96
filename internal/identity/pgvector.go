package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/saturnino-fabrica-de-software/ponto/internal/domain"
)

// DB is the subset of pgxpool.Pool the matcher needs (pgxmock-compatible).
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
}

// PgVectorMatcher is the default Matcher: embeddings live in Postgres and
// the nearest face is found with a pgvector cosine-distance scan.
type PgVectorMatcher struct {
	db        DB
	embedder  Embedder
	threshold float64
}

func NewPgVectorMatcher(db DB, embedder Embedder, threshold float64) *PgVectorMatcher {
	return &PgVectorMatcher{
		db:        db,
		embedder:  embedder,
		threshold: threshold,
	}
}

func (m *PgVectorMatcher) Resolve(ctx context.Context, frame string) (*Match, error) {
	embedding, err := m.embedder.Embed(ctx, frame)
	if err != nil {
		return nil, err
	}

	floats := make([]float32, len(embedding))
	for i, v := range embedding {
		floats[i] = float32(v)
	}
	vec := pgvector.NewVector(floats)

	query := `
		SELECT e.id, e.full_name, 1 - (fe.embedding <=> $1) AS similarity
		FROM face_embeddings fe
		INNER JOIN employees e ON e.id = fe.employee_id
		WHERE e.is_active = true
		ORDER BY fe.embedding <=> $1
		LIMIT 1
	`

	var match Match
	err = m.db.QueryRow(ctx, query, vec).Scan(&match.EmployeeID, &match.EmployeeName, &match.Confidence)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("match embedding: %w", err)
	}

	if match.Confidence < m.threshold {
		return nil, domain.ErrEmployeeNotFound
	}

	return &match, nil
}
