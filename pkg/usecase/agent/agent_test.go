package agent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tempo/pkg/adapter/geminitest"
	"github.com/m-mizutani/tempo/pkg/adapter/livetest"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/tool"
	"github.com/m-mizutani/tempo/pkg/tool/live"
	"github.com/m-mizutani/tempo/pkg/usecase/agent"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

// counterTool counts calls and can be made to fail
type counterTool struct {
	calls int
	fail  bool
}

func (c *counterTool) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "count",
				Description: "Increment a counter",
				Parameters:  &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}},
			},
		},
	}
}

func (c *counterTool) Init(ctx context.Context, client *tool.Client) (bool, error) {
	return true, nil
}

func (c *counterTool) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	c.calls++
	if c.fail {
		return nil, goerr.New("counter is broken")
	}
	return &genai.FunctionResponse{Name: fc.Name, Response: map[string]any{"count": c.calls}}, nil
}

func (c *counterTool) Prompt(ctx context.Context) string {
	return "Use count to count."
}

func (c *counterTool) Flags() []cli.Flag {
	return nil
}

func TestRunSessionInfoThroughLive(t *testing.T) {
	srv := livetest.New(t, func(cmd model.LiveCommand) model.LiveResponse {
		return livetest.Success(map[string]any{"tempo": 120.0, "track_count": 4})
	})
	registry := tool.New(live.New(live.WithConfig(srv.Config())))

	mock := &geminitest.Mock{
		GenerateContentFunc: geminitest.Sequence(
			geminitest.FunctionCallResponse(&genai.FunctionCall{Name: "get_session_info"}),
			geminitest.TextResponse("The session runs at 120 BPM with 4 tracks."),
		),
	}

	a, err := agent.New(mock, registry, agent.WithTemperature(0.1))
	gt.NoError(t, err)

	result, err := a.Run(context.Background(), agent.DemoQuery)
	gt.NoError(t, err)
	gt.Equal(t, result.Text, "The session runs at 120 BPM with 4 tracks.")
	gt.Equal(t, result.Iterations, 2)
	gt.A(t, result.ToolCalls).Length(1)
	gt.Equal(t, result.ToolCalls[0].Name, "get_session_info")
	gt.NoError(t, result.ToolCalls[0].Err)

	cmds := srv.Commands()
	gt.A(t, cmds).Length(1)
	gt.Equal(t, cmds[0].Type, "get_session_info")

	calls := mock.Calls()
	gt.A(t, calls).Length(2)
	gt.A(t, calls[0].Config.Tools).Length(1)
	gt.S(t, calls[0].Config.SystemInstruction.Parts[0].Text).Contains("get_session_info")

	// Second request carries the model's call and the tool's answer
	second := calls[1].Contents
	gt.A(t, second).Length(3)
	resp := second[2].Parts[0].FunctionResponse
	gt.NotNil(t, resp)
	gt.Equal(t, resp.Name, "get_session_info")
	gt.Map(t, resp.Response).HasKey("result")
}

func TestRunReportsToolErrorsToModel(t *testing.T) {
	counter := &counterTool{fail: true}
	mock := &geminitest.Mock{
		GenerateContentFunc: geminitest.Sequence(
			geminitest.FunctionCallResponse(&genai.FunctionCall{Name: "count"}),
			geminitest.TextResponse("The counter failed."),
		),
	}

	var hooked []*agent.ToolCall
	a, err := agent.New(mock, tool.New(counter), agent.WithToolCallHook(func(c *agent.ToolCall) {
		hooked = append(hooked, c)
	}))
	gt.NoError(t, err)

	result, err := a.Run(context.Background(), "count once")
	gt.NoError(t, err)
	gt.Equal(t, result.Text, "The counter failed.")
	gt.A(t, hooked).Length(1)
	gt.Error(t, hooked[0].Err)

	resp := mock.Calls()[1].Contents[2].Parts[0].FunctionResponse
	gt.Map(t, resp.Response).HasKey("error")
}

func TestRunUnknownTool(t *testing.T) {
	mock := &geminitest.Mock{
		GenerateContentFunc: geminitest.Sequence(
			geminitest.FunctionCallResponse(&genai.FunctionCall{Name: "no_such_tool"}),
			geminitest.TextResponse("I could not do that."),
		),
	}
	a, err := agent.New(mock, tool.New(&counterTool{}))
	gt.NoError(t, err)

	result, err := a.Run(context.Background(), "do something")
	gt.NoError(t, err)
	gt.True(t, errors.Is(result.ToolCalls[0].Err, tool.ErrToolNotFound))
}

func TestRunIterationLimit(t *testing.T) {
	counter := &counterTool{}
	mock := &geminitest.Mock{}
	mock.GenerateContentFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		if len(config.Tools) == 0 {
			return geminitest.TextResponse("Counted three times."), nil
		}
		return geminitest.FunctionCallResponse(&genai.FunctionCall{Name: "count"}), nil
	}

	a, err := agent.New(mock, tool.New(counter), agent.WithMaxIterations(3))
	gt.NoError(t, err)

	result, err := a.Run(context.Background(), "count forever")
	gt.NoError(t, err)
	gt.Equal(t, result.Text, "Counted three times.")
	gt.Equal(t, counter.calls, 3)
	gt.Equal(t, result.Iterations, 3)
	gt.A(t, mock.Calls()).Length(4)
}

func TestRunMultipleCallsInOneTurn(t *testing.T) {
	counter := &counterTool{}
	mock := &geminitest.Mock{
		GenerateContentFunc: geminitest.Sequence(
			geminitest.FunctionCallResponse(
				&genai.FunctionCall{Name: "count"},
				&genai.FunctionCall{Name: "count"},
			),
			geminitest.TextResponse("Two."),
		),
	}
	a, err := agent.New(mock, tool.New(counter))
	gt.NoError(t, err)

	result, err := a.Run(context.Background(), "count twice")
	gt.NoError(t, err)
	gt.Equal(t, counter.calls, 2)
	gt.A(t, mock.Calls()[1].Contents[2].Parts).Length(2)
	gt.Equal(t, result.Iterations, 2)
}

func TestRunErrors(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		mock := &geminitest.Mock{}
		a, err := agent.New(mock, nil)
		gt.NoError(t, err)

		_, err = a.Run(context.Background(), " ")
		gt.True(t, errors.Is(err, model.ErrInvalidInput))
		gt.A(t, mock.Calls()).Length(0)
	})

	t.Run("model failure", func(t *testing.T) {
		mock := &geminitest.Mock{
			GenerateContentFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
				return nil, goerr.New("503")
			},
		}
		a, err := agent.New(mock, nil)
		gt.NoError(t, err)

		_, err = a.Run(context.Background(), agent.DemoQuery)
		gt.True(t, errors.Is(err, model.ErrEndpoint))
	})

	t.Run("no client", func(t *testing.T) {
		_, err := agent.New(nil, nil)
		gt.True(t, errors.Is(err, model.ErrConfiguration))
	})
}

func TestSystemPromptListsTools(t *testing.T) {
	a, err := agent.New(&geminitest.Mock{}, tool.New(&counterTool{}, live.New()))
	gt.NoError(t, err)

	prompt, err := a.SystemPrompt(context.Background())
	gt.NoError(t, err)
	gt.S(t, prompt).Contains("`count`: Increment a counter")
	gt.S(t, prompt).Contains("`fire_clip`")
	gt.S(t, prompt).Contains("Use count to count.")
	gt.S(t, prompt).Contains("at most 8 rounds")
}
