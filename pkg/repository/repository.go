package repository

import (
	"context"
	"math"
	"sort"

	"github.com/m-mizutani/tempo/pkg/model"
)

// Repository is the vector index holding document chunks for one run
type Repository interface {
	// PutChunks stores chunks together with their embeddings
	PutChunks(ctx context.Context, chunks []*model.Chunk) error

	// SearchChunks returns up to limit chunks closest to embedding, nearest first
	SearchChunks(ctx context.Context, embedding []float32, limit int) ([]*model.ScoredChunk, error)

	// Close releases the index. Chunks do not outlive it.
	Close(ctx context.Context) error
}

// cosineDistance returns 1 - cosine similarity. Zero or mismatched vectors are at distance 1.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 1
	}

	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// rank sorts hits by distance, ties broken by document order, and keeps the first limit
func rank(hits []*model.ScoredChunk, limit int) []*model.ScoredChunk {
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Chunk.Index < hits[j].Chunk.Index
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}
