package repository

import (
	"context"
	"database/sql"
	"encoding/binary"
	"math"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS chunks (
	id          TEXT PRIMARY KEY,
	document_id TEXT NOT NULL,
	idx         INTEGER NOT NULL,
	content     TEXT NOT NULL,
	embedding   BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, idx);
`

// SQLite stores chunks in a SQLite database and scores them in process.
// With the default ":memory:" DSN the index is gone when it is closed.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens dsn with the modernc driver. An empty dsn means ":memory:".
func NewSQLite(ctx context.Context, dsn string) (*SQLite, error) {
	if dsn == "" {
		dsn = ":memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("dsn", dsn))
	}

	// Every connection to ":memory:" is a separate database, so keep exactly one
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to initialize sqlite schema", goerr.V("dsn", dsn))
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) PutChunks(ctx context.Context, chunks []*model.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (id, document_id, idx, content, embedding) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return goerr.Wrap(err, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return goerr.New("chunk has no embedding", goerr.V("chunk_id", c.ID))
		}
		if _, err := stmt.ExecContext(ctx, string(c.ID), string(c.DocumentID), c.Index, c.Content, encodeVector(c.Embedding)); err != nil {
			return goerr.Wrap(err, "failed to insert chunk", goerr.V("chunk_id", c.ID))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit chunks", goerr.V("count", len(chunks)))
	}
	return nil
}

func (s *SQLite) SearchChunks(ctx context.Context, embedding []float32, limit int) ([]*model.ScoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, document_id, idx, content, embedding FROM chunks`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query chunks")
	}
	defer rows.Close()

	var hits []*model.ScoredChunk
	for rows.Next() {
		var (
			c       model.Chunk
			id, doc string
			blob    []byte
		)
		if err := rows.Scan(&id, &doc, &c.Index, &c.Content, &blob); err != nil {
			return nil, goerr.Wrap(err, "failed to scan chunk")
		}
		c.ID = model.ChunkID(id)
		c.DocumentID = model.DocumentID(doc)
		c.Embedding = decodeVector(blob)

		hits = append(hits, &model.ScoredChunk{
			Chunk:    &c,
			Distance: cosineDistance(embedding, c.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate chunks")
	}

	return rank(hits, limit), nil
}

func (s *SQLite) Close(ctx context.Context) error {
	if err := s.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close sqlite")
	}
	return nil
}

// Vectors are stored as little-endian float32 arrays
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
