// Package geminitest provides a scripted adapter.Gemini for tests.
package geminitest

import (
	"context"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// Call records one GenerateContent invocation
type Call struct {
	Contents []*genai.Content
	Config   *genai.GenerateContentConfig
}

// Mock implements adapter.Gemini. Unset funcs fail loudly.
type Mock struct {
	GenerateContentFunc func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbeddingFunc       func(ctx context.Context, text string) ([]float32, error)

	mu            sync.Mutex
	calls         []Call
	embeddedTexts []string
}

func (m *Mock) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, Call{Contents: contents, Config: config})
	m.mu.Unlock()

	if m.GenerateContentFunc == nil {
		return nil, goerr.New("GenerateContentFunc is not set")
	}
	return m.GenerateContentFunc(ctx, contents, config)
}

func (m *Mock) Embedding(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.embeddedTexts = append(m.embeddedTexts, text)
	m.mu.Unlock()

	if m.EmbeddingFunc == nil {
		return nil, goerr.New("EmbeddingFunc is not set")
	}
	return m.EmbeddingFunc(ctx, text)
}

// Calls returns the recorded GenerateContent calls
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// EmbeddedTexts returns every text passed to Embedding
func (m *Mock) EmbeddedTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.embeddedTexts...)
}

// TextResponse builds a single-candidate model response
func TextResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: genai.NewContentFromText(text, genai.RoleModel)},
		},
	}
}

// FunctionCallResponse builds a response asking for the given function calls
func FunctionCallResponse(calls ...*genai.FunctionCall) *genai.GenerateContentResponse {
	content := &genai.Content{Role: genai.RoleModel}
	for _, fc := range calls {
		content.Parts = append(content.Parts, &genai.Part{FunctionCall: fc})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: content}},
	}
}

// Reply returns a GenerateContentFunc that always answers text
func Reply(text string) func(context.Context, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return func(context.Context, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return TextResponse(text), nil
	}
}

// Sequence returns a GenerateContentFunc that answers with resps in order, repeating the last
func Sequence(resps ...*genai.GenerateContentResponse) func(context.Context, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var mu sync.Mutex
	i := 0
	return func(context.Context, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(resps) == 0 {
			return nil, goerr.New("no response scripted")
		}
		r := resps[min(i, len(resps)-1)]
		i++
		return r, nil
	}
}
