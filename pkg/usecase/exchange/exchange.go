package exchange

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/adapter"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/context.md
var contextPromptRaw string

var contextPromptTmpl = template.Must(template.New("context").Parse(contextPromptRaw))

// Exchanger performs one prompt/response call against the model endpoint.
// It holds no conversation state; callers own the history.
type Exchanger struct {
	gemini       adapter.Gemini
	systemPrompt string
	temperature  *float32
}

type Option func(*Exchanger)

// WithSystemPrompt sets the system instruction sent with every call
func WithSystemPrompt(prompt string) Option {
	return func(x *Exchanger) {
		x.systemPrompt = prompt
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float32) Option {
	return func(x *Exchanger) {
		x.temperature = &t
	}
}

// New creates an Exchanger. A nil client is a configuration error.
func New(gemini adapter.Gemini, opts ...Option) (*Exchanger, error) {
	if gemini == nil {
		return nil, goerr.Wrap(model.ErrConfiguration, "gemini client is required")
	}

	x := &Exchanger{gemini: gemini}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// Exchange sends prompt with prior turns and optional context documents and
// returns the model's text. history is not modified.
func (x *Exchanger) Exchange(ctx context.Context, prompt string, history model.History, docs []string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", goerr.Wrap(model.ErrInvalidInput, "prompt is empty")
	}

	contents, err := buildContents(prompt, history, docs)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature: x.temperature,
	}
	if x.systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(x.systemPrompt, "")
	}

	logging.From(ctx).Debug("sending exchange",
		"turns", len(history),
		"context_docs", len(docs),
		"prompt_bytes", len(prompt),
	)

	resp, err := x.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(model.Classify(model.ErrEndpoint, err), "model call failed")
	}

	text := ResponseText(resp)
	if text == "" {
		return "", goerr.Wrap(model.ErrEndpoint, "model returned no text", goerr.V("finish_reason", finishReason(resp)))
	}

	return text, nil
}

// ResponseText joins the text parts of the first candidate
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}

	var sb strings.Builder
	for _, part := range content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

func finishReason(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return ""
	}
	return string(resp.Candidates[0].FinishReason)
}

// buildContents lays out history as user/model pairs followed by the new user message
func buildContents(prompt string, history model.History, docs []string) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(history)*2+1)
	for _, turn := range history {
		contents = append(contents,
			genai.NewContentFromText(turn.Prompt, genai.RoleUser),
			genai.NewContentFromText(turn.Response, genai.RoleModel),
		)
	}

	message := prompt
	if len(docs) > 0 {
		rendered, err := RenderContext(prompt, docs)
		if err != nil {
			return nil, err
		}
		message = rendered
	}

	return append(contents, genai.NewContentFromText(message, genai.RoleUser)), nil
}

// RenderContext places docs ahead of the question using the document Q&A template.
// Documents are used in the given order, without deduplication.
func RenderContext(question string, docs []string) (string, error) {
	var buf bytes.Buffer
	if err := contextPromptTmpl.Execute(&buf, map[string]any{
		"Context":  strings.Join(docs, "\n\n"),
		"Question": question,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute context prompt template")
	}
	return strings.TrimSpace(buf.String()), nil
}
