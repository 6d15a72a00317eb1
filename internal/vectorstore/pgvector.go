package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"
)

// PG is a Postgres+pgvector backed Index. One table holds every collection;
// rows are partitioned by document_id. Distances use the cosine operator so
// 1-distance is a usable similarity proxy.
type PG struct {
	pool *pgxpool.Pool
}

var _ Index = (*PG)(nil)

// NewPG connects and ensures the schema exists. dimension fixes the vector
// column width and must match the embedding provider.
func NewPG(ctx context.Context, databaseURL string, dimension int) (*PG, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}

	pg := &PG{pool: pool}
	if err := pg.ensureSchema(ctx, dimension); err != nil {
		pool.Close()
		return nil, err
	}
	return pg, nil
}

func (pg *PG) ensureSchema(ctx context.Context, dimension int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_index INT NOT NULL,
			filename TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			chunk_length INT NOT NULL,
			embedding vector(%d)
		)`, dimension),
		`CREATE INDEX IF NOT EXISTS document_chunks_document_id_idx ON document_chunks (document_id)`,
	}
	for _, stmt := range stmts {
		if _, err := pg.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "ensure vector schema")
		}
	}
	return nil
}

func (pg *PG) Upsert(ctx context.Context, documentID string, items []Item) error {
	for _, item := range items {
		_, err := pg.pool.Exec(ctx,
			`INSERT INTO document_chunks (id, document_id, chunk_index, filename, content, chunk_length, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (id) DO UPDATE SET
			   chunk_index = EXCLUDED.chunk_index,
			   filename = EXCLUDED.filename,
			   content = EXCLUDED.content,
			   chunk_length = EXCLUDED.chunk_length,
			   embedding = EXCLUDED.embedding`,
			item.ID, documentID, item.Metadata.ChunkIndex, item.Metadata.Filename,
			item.Content, item.Metadata.ChunkLength, pgvector.NewVector(item.Vector))
		if err != nil {
			return errors.Wrapf(err, "upsert chunk %s", item.ID)
		}
	}
	return nil
}

func (pg *PG) Query(ctx context.Context, documentID string, vector []float32, k int) ([]Match, error) {
	rows, err := pg.pool.Query(ctx,
		`SELECT id, content, document_id, chunk_index, filename, chunk_length,
		        embedding <=> $1 AS distance
		 FROM document_chunks
		 WHERE document_id = $2
		 ORDER BY distance
		 LIMIT $3`,
		pgvector.NewVector(vector), documentID, k)
	if err != nil {
		return nil, errors.Wrapf(err, "query document %s", documentID)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Content, &m.Metadata.DocumentID, &m.Metadata.ChunkIndex,
			&m.Metadata.Filename, &m.Metadata.ChunkLength, &m.Distance); err != nil {
			return nil, errors.Wrap(err, "scan match")
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrCollectionNotFound
	}
	return matches, nil
}

func (pg *PG) DeleteCollection(ctx context.Context, documentID string) error {
	_, err := pg.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	return errors.Wrapf(err, "delete collection %s", documentID)
}

// Close releases the connection pool.
func (pg *PG) Close() {
	pg.pool.Close()
}
