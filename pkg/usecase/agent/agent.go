package agent

import (
	"bytes"
	"context"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/adapter"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/tool"
	"github.com/m-mizutani/tempo/pkg/usecase/exchange"
	"github.com/m-mizutani/tempo/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/system.md
var systemPromptRaw string

var systemPromptTmpl = template.Must(template.New("system").Parse(systemPromptRaw))

const (
	// DefaultMaxIterations bounds tool call rounds per request
	DefaultMaxIterations = 8

	// DemoQuery is the request run by the demo mode
	DemoQuery = "What is the current session information in Ableton Live?"
)

// ToolCall records one executed function call
type ToolCall struct {
	Name     string
	Args     map[string]any
	Response map[string]any
	Err      error
	Elapsed  time.Duration
}

// Result is the final answer of one request
type Result struct {
	Text       string
	ToolCalls  []*ToolCall
	Iterations int
}

// Agent answers requests by letting the model call registry tools.
// Each Run is independent; no state is kept between requests.
type Agent struct {
	gemini        adapter.Gemini
	registry      *tool.Registry
	maxIterations int
	temperature   *float32
	onToolCall    func(*ToolCall)
}

type Option func(*Agent)

func WithMaxIterations(n int) Option {
	return func(a *Agent) {
		a.maxIterations = n
	}
}

func WithTemperature(t float32) Option {
	return func(a *Agent) {
		a.temperature = &t
	}
}

// WithToolCallHook is called after every tool execution
func WithToolCallHook(hook func(*ToolCall)) Option {
	return func(a *Agent) {
		a.onToolCall = hook
	}
}

func New(gemini adapter.Gemini, registry *tool.Registry, opts ...Option) (*Agent, error) {
	if gemini == nil {
		return nil, goerr.Wrap(model.ErrConfiguration, "gemini client is required")
	}
	if registry == nil {
		registry = tool.New()
	}

	a := &Agent{
		gemini:        gemini,
		registry:      registry,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxIterations <= 0 {
		a.maxIterations = DefaultMaxIterations
	}
	return a, nil
}

// SystemPrompt renders the instruction listing every available tool
func (a *Agent) SystemPrompt(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	if err := systemPromptTmpl.Execute(&buf, map[string]any{
		"Tools":         a.registry.Declarations(),
		"ToolPrompts":   a.registry.Prompts(ctx),
		"MaxIterations": a.maxIterations,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute system prompt template")
	}
	return buf.String(), nil
}

// Run sends query and executes tool calls until the model answers with text.
// After maxIterations rounds the model is asked once more without tools.
func (a *Agent) Run(ctx context.Context, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, goerr.Wrap(model.ErrInvalidInput, "query is empty")
	}

	systemPrompt, err := a.SystemPrompt(ctx)
	if err != nil {
		return nil, err
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, ""),
		Temperature:       a.temperature,
		Tools:             a.registry.Specs(),
	}

	contents := []*genai.Content{
		genai.NewContentFromText(query, genai.RoleUser),
	}
	result := &Result{}

	for i := 0; i < a.maxIterations; i++ {
		result.Iterations = i + 1

		resp, err := a.generate(ctx, contents, config)
		if err != nil {
			return nil, err
		}

		content := resp.Candidates[0].Content
		contents = append(contents, content)

		var functionResponses []*genai.Part
		for _, part := range content.Parts {
			if part.FunctionCall == nil {
				continue
			}

			call := a.execute(ctx, *part.FunctionCall)
			result.ToolCalls = append(result.ToolCalls, call)
			functionResponses = append(functionResponses, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       part.FunctionCall.ID,
					Name:     call.Name,
					Response: call.Response,
				},
			})
		}

		// No function call means the model has answered
		if len(functionResponses) == 0 {
			return a.finish(result, resp)
		}

		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: functionResponses,
		})
	}

	logging.From(ctx).Warn("tool call limit reached, asking for a final answer", "max_iterations", a.maxIterations)

	config.Tools = nil
	contents = append(contents, genai.NewContentFromText(
		"The tool call limit is reached. Answer with what you have found so far.", genai.RoleUser))

	resp, err := a.generate(ctx, contents, config)
	if err != nil {
		return nil, err
	}
	return a.finish(result, resp)
}

func (a *Agent) generate(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	resp, err := a.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(model.Classify(model.ErrEndpoint, err), "model call failed")
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, goerr.Wrap(model.ErrEndpoint, "model returned no candidates")
	}
	return resp, nil
}

func (a *Agent) finish(result *Result, resp *genai.GenerateContentResponse) (*Result, error) {
	text := exchange.ResponseText(resp)
	if text == "" {
		return nil, goerr.Wrap(model.ErrEndpoint, "model returned no text", goerr.V("iterations", result.Iterations))
	}
	result.Text = text
	return result, nil
}

// execute runs one function call. Failures are reported back to the model as {"error": ...}.
func (a *Agent) execute(ctx context.Context, fc genai.FunctionCall) *ToolCall {
	start := time.Now()
	call := &ToolCall{Name: fc.Name, Args: fc.Args}

	resp, err := a.registry.Execute(ctx, fc)
	call.Elapsed = time.Since(start)

	if err != nil {
		call.Err = err
		call.Response = map[string]any{"error": err.Error()}
		logging.From(ctx).Warn("tool call failed", "tool", fc.Name, "args", fc.Args, "error", err)
	} else {
		call.Response = map[string]any{}
		if resp != nil && resp.Response != nil {
			call.Response = resp.Response
		}
		logging.From(ctx).Debug("tool call done", "tool", fc.Name, "elapsed", call.Elapsed)
	}

	if a.onToolCall != nil {
		a.onToolCall(call)
	}
	return call
}
