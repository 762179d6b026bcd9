package qa

import (
	"context"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/adapter"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/repository"
	"github.com/m-mizutani/tempo/pkg/utils/logging"
	"github.com/m-mizutani/tempo/pkg/utils/textsplit"
)

const DefaultTopK = 4

// Exchanger is the single-call contract used to answer questions
type Exchanger interface {
	Exchange(ctx context.Context, prompt string, history model.History, docs []string) (string, error)
}

// Service answers questions from chunks of ingested documents
type Service struct {
	gemini    adapter.Gemini
	exchanger Exchanger
	repo      repository.Repository
	splitter  *textsplit.Splitter
	topK      int
}

// Answer is the model reply and the chunks it was given
type Answer struct {
	Question string
	Text     string
	Sources  []*model.ScoredChunk
}

type Option func(*Service)

func WithTopK(k int) Option {
	return func(s *Service) {
		s.topK = k
	}
}

func WithSplitter(splitter *textsplit.Splitter) Option {
	return func(s *Service) {
		s.splitter = splitter
	}
}

// New creates a Service. gemini is used for embeddings, exchanger for answers.
func New(gemini adapter.Gemini, exchanger Exchanger, repo repository.Repository, opts ...Option) (*Service, error) {
	if gemini == nil || exchanger == nil || repo == nil {
		return nil, goerr.Wrap(model.ErrConfiguration, "gemini, exchanger and repository are required")
	}

	s := &Service{
		gemini:    gemini,
		exchanger: exchanger,
		repo:      repo,
		topK:      DefaultTopK,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.splitter == nil {
		splitter, err := textsplit.New()
		if err != nil {
			return nil, err
		}
		s.splitter = splitter
	}
	if s.topK <= 0 {
		s.topK = DefaultTopK
	}

	return s, nil
}

// Ingest splits doc, embeds every chunk and stores them. It returns the number of chunks.
func (s *Service) Ingest(ctx context.Context, doc *model.Document) (int, error) {
	texts := s.splitter.Split(doc.Content)
	if len(texts) == 0 {
		return 0, goerr.Wrap(model.ErrInvalidInput, "document has no content", goerr.V("document", doc.Name))
	}

	start := time.Now()
	chunks := make([]*model.Chunk, 0, len(texts))
	for i, text := range texts {
		embedding, err := s.gemini.Embedding(ctx, text)
		if err != nil {
			return 0, goerr.Wrap(model.Classify(model.ErrEndpoint, err), "failed to embed chunk",
				goerr.V("document", doc.Name),
				goerr.V("index", i))
		}

		chunks = append(chunks, &model.Chunk{
			ID:         model.NewChunkID(),
			DocumentID: doc.ID,
			Index:      i,
			Content:    text,
			Embedding:  embedding,
		})
	}

	if err := s.repo.PutChunks(ctx, chunks); err != nil {
		return 0, goerr.Wrap(err, "failed to store chunks", goerr.V("document", doc.Name))
	}

	logging.From(ctx).Info("document ingested",
		"document", doc.Name,
		"chunks", len(chunks),
		"elapsed", time.Since(start),
	)
	return len(chunks), nil
}

// Ask retrieves the closest chunks to question and answers from them alone
func (s *Service) Ask(ctx context.Context, question string) (*Answer, error) {
	embedding, err := s.embedQuestion(ctx, question)
	if err != nil {
		return nil, err
	}

	hits, err := s.repo.SearchChunks(ctx, embedding, s.topK)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to search chunks", goerr.V("question", question))
	}

	docs := make([]string, len(hits))
	for i, hit := range hits {
		docs[i] = hit.Chunk.Content
	}
	logging.From(ctx).Debug("chunks retrieved", "question", question, "hits", len(hits))

	text, err := s.exchanger.Exchange(ctx, question, nil, docs)
	if err != nil {
		return nil, err
	}

	return &Answer{
		Question: question,
		Text:     text,
		Sources:  hits,
	}, nil
}

func (s *Service) embedQuestion(ctx context.Context, question string) ([]float32, error) {
	if strings.TrimSpace(question) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "question is empty")
	}

	embedding, err := s.gemini.Embedding(ctx, question)
	if err != nil {
		return nil, goerr.Wrap(model.Classify(model.ErrEndpoint, err), "failed to embed question",
			goerr.V("question", question))
	}
	return embedding, nil
}
