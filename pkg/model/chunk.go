package model

import (
	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

type DocumentID string

// NewDocumentID generates a new unique DocumentID
func NewDocumentID() DocumentID {
	return DocumentID(uuid.New().String())
}

// Document is a source text loaded for question answering
type Document struct {
	ID      DocumentID
	Name    string
	Content string
}

type ChunkID string

// NewChunkID generates a new unique ChunkID
func NewChunkID() ChunkID {
	return ChunkID(uuid.New().String())
}

// Chunk is a fragment of a document plus its vector embedding
type Chunk struct {
	ID         ChunkID
	DocumentID DocumentID
	Index      int
	Content    string
	Embedding  firestore.Vector32
}

// ScoredChunk is a search hit. Distance is the cosine distance to the query; smaller is closer.
type ScoredChunk struct {
	Chunk    *Chunk
	Distance float64
}
