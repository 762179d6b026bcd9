package repository

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
)

// Memory is an in-process vector index with exhaustive cosine search
type Memory struct {
	mu     sync.RWMutex
	chunks []*model.Chunk
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) PutChunks(ctx context.Context, chunks []*model.Chunk) error {
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return goerr.New("chunk has no embedding", goerr.V("chunk_id", c.ID))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		copied := *c
		m.chunks = append(m.chunks, &copied)
	}
	return nil
}

func (m *Memory) SearchChunks(ctx context.Context, embedding []float32, limit int) ([]*model.ScoredChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]*model.ScoredChunk, 0, len(m.chunks))
	for _, c := range m.chunks {
		hits = append(hits, &model.ScoredChunk{
			Chunk:    c,
			Distance: cosineDistance(embedding, c.Embedding),
		})
	}

	return rank(hits, limit), nil
}

func (m *Memory) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = nil
	return nil
}
