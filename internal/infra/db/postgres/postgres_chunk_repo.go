package postgres

import (
	"context"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4/pgxpool"

	"startup-analysis-pipeline/internal/domain/model"
	"startup-analysis-pipeline/internal/domain/ports/repository"
)

var _ repository.ContextChunkRepository = (*chunkRepo)(nil)

// chunkRepo persists session chunks. Embeddings are stored as real[] and
// scored in-process; at the documented scale a similarity-ranked sequential
// scan is cheaper than maintaining an ANN index.
//
// Expected schema:
//
//	CREATE TABLE context_chunks (
//	    id         TEXT PRIMARY KEY,
//	    session_id TEXT NOT NULL,
//	    seq        INT NOT NULL,
//	    text       TEXT NOT NULL,
//	    source_url TEXT NOT NULL DEFAULT '',
//	    embedding  REAL[] NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX context_chunks_session ON context_chunks (session_id, seq);
type chunkRepo struct {
	pool *pgxpool.Pool
}

func NewChunkRepo(pool *pgxpool.Pool) *chunkRepo {
	return &chunkRepo{pool: pool}
}

func (r *chunkRepo) Append(ctx context.Context, sessionID string, chunks []model.ContextChunk) error {
	const q = `
INSERT INTO context_chunks (id, session_id, seq, text, source_url, embedding)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO NOTHING;`
	for _, c := range chunks {
		var emb pgtype.Float4Array
		if err := emb.Set(c.Embedding); err != nil {
			return err
		}
		if _, err := execSQL(ctx, r.pool, nil, q, c.ID, sessionID, c.Seq, c.Text, c.SourceURL, &emb); err != nil {
			return err
		}
	}
	return nil
}

func (r *chunkRepo) ListBySession(ctx context.Context, sessionID string) ([]model.ContextChunk, error) {
	const q = `
SELECT id, session_id, seq, text, source_url, embedding
FROM context_chunks
WHERE session_id = $1
ORDER BY seq;`
	rows, err := queryRows(ctx, r.pool, nil, q, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ContextChunk
	for rows.Next() {
		var (
			c   model.ContextChunk
			emb pgtype.Float4Array
		)
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Seq, &c.Text, &c.SourceURL, &emb); err != nil {
			return nil, translateErr(err)
		}
		if err := emb.AssignTo(&c.Embedding); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *chunkRepo) CountBySession(ctx context.Context, sessionID string) (int, error) {
	row, err := pickRow(ctx, r.pool, nil, `SELECT count(*) FROM context_chunks WHERE session_id = $1;`, sessionID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, translateErr(err)
	}
	return n, nil
}
