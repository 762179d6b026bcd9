package repository_test

import (
	"context"
	"os"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/repository"
)

func newChunk(doc model.DocumentID, idx int, content string, emb ...float32) *model.Chunk {
	return &model.Chunk{
		ID:         model.NewChunkID(),
		DocumentID: doc,
		Index:      idx,
		Content:    content,
		Embedding:  emb,
	}
}

// testRepository runs the common contract against any backend
func testRepository(t *testing.T, repo repository.Repository) {
	ctx := context.Background()
	doc := model.NewDocumentID()

	chunks := []*model.Chunk{
		newChunk(doc, 0, "drums", 1, 0, 0),
		newChunk(doc, 1, "bass", 0, 1, 0),
		newChunk(doc, 2, "mostly drums", 0.9, 0.1, 0),
		newChunk(doc, 3, "keys", 0, 0, 1),
	}
	gt.NoError(t, repo.PutChunks(ctx, chunks))

	t.Run("nearest first", func(t *testing.T) {
		hits, err := repo.SearchChunks(ctx, []float32{1, 0, 0}, 2)
		gt.NoError(t, err)
		gt.A(t, hits).Length(2)
		gt.Equal(t, hits[0].Chunk.Content, "drums")
		gt.Equal(t, hits[1].Chunk.Content, "mostly drums")
		gt.True(t, hits[0].Distance <= hits[1].Distance)
		gt.True(t, hits[0].Distance < 1e-6)
	})

	t.Run("limit larger than index", func(t *testing.T) {
		hits, err := repo.SearchChunks(ctx, []float32{0, 0, 1}, 10)
		gt.NoError(t, err)
		gt.A(t, hits).Length(4)
		gt.Equal(t, hits[0].Chunk.Content, "keys")
	})

	t.Run("chunk fields survive", func(t *testing.T) {
		hits, err := repo.SearchChunks(ctx, []float32{0, 1, 0}, 1)
		gt.NoError(t, err)
		gt.A(t, hits).Length(1)
		got := hits[0].Chunk
		gt.Equal(t, got.ID, chunks[1].ID)
		gt.Equal(t, got.DocumentID, doc)
		gt.Equal(t, got.Index, 1)
		gt.A(t, got.Embedding).Length(3)
	})

	t.Run("missing embedding is rejected", func(t *testing.T) {
		err := repo.PutChunks(ctx, []*model.Chunk{newChunk(doc, 9, "empty")})
		gt.Error(t, err)
	})
}

func TestMemory(t *testing.T) {
	repo := repository.NewMemory()
	testRepository(t, repo)
	gt.NoError(t, repo.Close(context.Background()))

	hits, err := repo.SearchChunks(context.Background(), []float32{1, 0, 0}, 4)
	gt.NoError(t, err)
	gt.A(t, hits).Length(0)
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	repo, err := repository.NewSQLite(ctx, "")
	gt.NoError(t, err)
	defer repo.Close(ctx)

	testRepository(t, repo)
}

func TestSQLiteFile(t *testing.T) {
	ctx := context.Background()
	dsn := t.TempDir() + "/chunks.db"

	repo, err := repository.NewSQLite(ctx, dsn)
	gt.NoError(t, err)
	gt.NoError(t, repo.PutChunks(ctx, []*model.Chunk{newChunk(model.NewDocumentID(), 0, "pad", 0.5, 0.5)}))
	gt.NoError(t, repo.Close(ctx))

	reopened, err := repository.NewSQLite(ctx, dsn)
	gt.NoError(t, err)
	defer reopened.Close(ctx)

	hits, err := reopened.SearchChunks(ctx, []float32{0.5, 0.5}, 4)
	gt.NoError(t, err)
	gt.A(t, hits).Length(1)
	gt.Equal(t, hits[0].Chunk.Content, "pad")
}

func TestFirestore(t *testing.T) {
	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if projectID == "" || databaseID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID and TEST_FIRESTORE_DATABASE_ID must be set to run Firestore tests")
	}

	ctx := context.Background()
	repo, err := repository.NewFirestore(ctx, projectID, databaseID,
		repository.WithCollection("tempo_test_chunks"))
	gt.NoError(t, err)
	defer func() {
		gt.NoError(t, repo.Close(ctx))
	}()

	testRepository(t, repo)
}

func TestNewFirestoreWithoutProject(t *testing.T) {
	_, err := repository.NewFirestore(context.Background(), "", "")
	gt.Error(t, err)
}
