package repository

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/utils/logging"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultChunkCollection = "chunks"
	distanceField          = "vector_distance"
)

// Firestore keeps chunks in a collection using Firestore vector search.
// Chunks are tagged with a run ID so concurrent runs sharing a database do
// not see each other, and they are deleted on Close.
type Firestore struct {
	client     *firestore.Client
	collection string
	runID      string
}

type FirestoreOption func(*Firestore)

func WithCollection(name string) FirestoreOption {
	return func(f *Firestore) {
		f.collection = name
	}
}

type chunkDoc struct {
	RunID      string             `firestore:"run_id"`
	DocumentID string             `firestore:"document_id"`
	Index      int                `firestore:"index"`
	Content    string             `firestore:"content"`
	Embedding  firestore.Vector32 `firestore:"embedding"`
	CreatedAt  time.Time          `firestore:"created_at"`
}

func NewFirestore(ctx context.Context, projectID, databaseID string, opts ...FirestoreOption) (*Firestore, error) {
	if projectID == "" {
		return nil, goerr.Wrap(model.ErrConfiguration, "firestore project is not set")
	}
	if databaseID == "" {
		databaseID = firestore.DefaultDatabaseID
	}

	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("project_id", projectID),
			goerr.V("database_id", databaseID))
	}

	f := &Firestore{
		client:     client,
		collection: defaultChunkCollection,
		runID:      uuid.NewString(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

func (f *Firestore) PutChunks(ctx context.Context, chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	bw := f.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(chunks))
	now := time.Now()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			bw.End()
			return goerr.New("chunk has no embedding", goerr.V("chunk_id", c.ID))
		}

		job, err := bw.Set(f.client.Collection(f.collection).Doc(string(c.ID)), &chunkDoc{
			RunID:      f.runID,
			DocumentID: string(c.DocumentID),
			Index:      c.Index,
			Content:    c.Content,
			Embedding:  c.Embedding,
			CreatedAt:  now,
		})
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue chunk", goerr.V("chunk_id", c.ID))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to write chunk", goerr.V("chunk_id", chunks[i].ID))
		}
	}
	return nil
}

func (f *Firestore) SearchChunks(ctx context.Context, embedding []float32, limit int) ([]*model.ScoredChunk, error) {
	if limit <= 0 {
		limit = 4
	}

	q := f.client.Collection(f.collection).
		Where("run_id", "==", f.runID).
		FindNearest("embedding", firestore.Vector32(embedding), limit, firestore.DistanceMeasureCosine,
			&firestore.FindNearestOptions{DistanceResultField: distanceField})

	iter := q.Documents(ctx)
	defer iter.Stop()

	var hits []*model.ScoredChunk
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			if status.Code(err) == codes.FailedPrecondition {
				return nil, goerr.Wrap(err, "vector index is missing; create a composite index on (run_id, embedding)",
					goerr.V("collection", f.collection),
					goerr.V("dimensions", len(embedding)))
			}
			return nil, goerr.Wrap(err, "failed to search chunks", goerr.V("collection", f.collection))
		}

		var doc chunkDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, goerr.Wrap(err, "failed to decode chunk", goerr.V("chunk_id", snap.Ref.ID))
		}

		distance, _ := snap.Data()[distanceField].(float64)
		hits = append(hits, &model.ScoredChunk{
			Chunk: &model.Chunk{
				ID:         model.ChunkID(snap.Ref.ID),
				DocumentID: model.DocumentID(doc.DocumentID),
				Index:      doc.Index,
				Content:    doc.Content,
				Embedding:  doc.Embedding,
			},
			Distance: distance,
		})
	}

	return rank(hits, limit), nil
}

// Close deletes the chunks written by this run and closes the client
func (f *Firestore) Close(ctx context.Context) error {
	defer f.client.Close()

	iter := f.client.Collection(f.collection).Where("run_id", "==", f.runID).Documents(ctx)
	defer iter.Stop()

	bw := f.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to list chunks for cleanup", goerr.V("run_id", f.runID))
		}

		job, err := bw.Delete(snap.Ref)
		if err != nil {
			bw.End()
			return goerr.Wrap(err, "failed to enqueue chunk deletion", goerr.V("chunk_id", snap.Ref.ID))
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return goerr.Wrap(err, "failed to delete chunk", goerr.V("run_id", f.runID))
		}
	}

	logging.From(ctx).Debug("firestore chunks removed", "run_id", f.runID, "count", len(jobs))
	return nil
}
