package adapter

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
	"google.golang.org/genai"
)

// PlaceholderAPIKey is the value shipped in sample env files. It is treated as unset.
const PlaceholderAPIKey = "your_google_api_key_here"

type Gemini interface {
	GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Embedding(ctx context.Context, text string) ([]float32, error)
}

type GeminiClient struct {
	client              *genai.Client
	generativeModel     string
	embeddingModel      string
	embeddingDimensions int
}

type GeminiOption func(*GeminiClient)

func WithGenerativeModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.generativeModel = model
	}
}

func WithEmbeddingModel(model string) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingModel = model
	}
}

// WithEmbeddingDimensions truncates embeddings to the given size. 0 keeps the model default.
func WithEmbeddingDimensions(n int) GeminiOption {
	return func(g *GeminiClient) {
		g.embeddingDimensions = n
	}
}

// NewGemini creates a client for the Gemini API backend authenticated by API key.
// No network call is made; a missing key fails with model.ErrConfiguration.
func NewGemini(ctx context.Context, apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" || apiKey == PlaceholderAPIKey {
		return nil, goerr.Wrap(model.ErrConfiguration, "gemini api key is not set")
	}

	return newGemini(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}, opts...)
}

// NewVertexGemini creates a client for the Vertex AI backend using application default credentials.
func NewVertexGemini(ctx context.Context, projectID, location string, opts ...GeminiOption) (*GeminiClient, error) {
	if projectID == "" {
		return nil, goerr.Wrap(model.ErrConfiguration, "gemini project is not set")
	}
	if location == "" {
		return nil, goerr.Wrap(model.ErrConfiguration, "gemini location is not set")
	}

	return newGemini(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	}, opts...)
}

func newGemini(ctx context.Context, cfg *genai.ClientConfig, opts ...GeminiOption) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, goerr.Wrap(model.Classify(model.ErrConfiguration, err), "failed to create genai client")
	}

	g := &GeminiClient{
		client:          client,
		generativeModel: "gemini-2.5-flash",
		embeddingModel:  "gemini-embedding-001",
	}

	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

func (g *GeminiClient) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.generativeModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content", goerr.V("model", g.generativeModel))
	}
	return resp, nil
}

func (g *GeminiClient) Embedding(ctx context.Context, text string) ([]float32, error) {
	config := &genai.EmbedContentConfig{}
	if g.embeddingDimensions > 0 {
		config.OutputDimensionality = genai.Ptr(int32(g.embeddingDimensions))
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.embeddingModel, genai.Text(text), config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed content", goerr.V("model", g.embeddingModel))
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, goerr.New("no embedding returned", goerr.V("model", g.embeddingModel))
	}

	return resp.Embeddings[0].Values, nil
}
