package exchange_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tempo/pkg/adapter"
	"github.com/m-mizutani/tempo/pkg/adapter/geminitest"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/usecase/exchange"
	"google.golang.org/genai"
)

func TestExchangeSayHello(t *testing.T) {
	mock := &geminitest.Mock{GenerateContentFunc: geminitest.Reply("Hello! How can I help you today?")}
	x, err := exchange.New(mock)
	gt.NoError(t, err)

	resp, err := x.Exchange(context.Background(), "Say hello", nil, nil)
	gt.NoError(t, err)
	gt.True(t, resp != "")

	calls := mock.Calls()
	gt.A(t, calls).Length(1)
	gt.A(t, calls[0].Contents).Length(1)
	gt.Equal(t, calls[0].Contents[0].Role, genai.RoleUser)
	gt.Equal(t, calls[0].Contents[0].Parts[0].Text, "Say hello")
}

func TestExchangeEmptyPrompt(t *testing.T) {
	mock := &geminitest.Mock{GenerateContentFunc: geminitest.Reply("unused")}
	x, err := exchange.New(mock)
	gt.NoError(t, err)

	for _, prompt := range []string{"", "   ", "\n\t"} {
		resp, err := x.Exchange(context.Background(), prompt, nil, nil)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrInvalidInput))
		gt.Equal(t, resp, "")
	}

	gt.A(t, mock.Calls()).Length(0)
}

func TestExchangeHistory(t *testing.T) {
	mock := &geminitest.Mock{GenerateContentFunc: geminitest.Reply("Your name is Alice.")}
	x, err := exchange.New(mock)
	gt.NoError(t, err)

	var history model.History
	history = history.Append("Hi, my name is Alice.", "Nice to meet you, Alice!")
	history = history.Append("I like jazz.", "Jazz is great.")
	before := append(model.History(nil), history...)

	resp, err := x.Exchange(context.Background(), "What is my name?", history, nil)
	gt.NoError(t, err)

	// history must be untouched by the call
	gt.A(t, history).Length(2)
	gt.Equal(t, history, before)

	next := history.Append("What is my name?", resp)
	gt.A(t, next).Length(3)
	for i := range history {
		gt.Equal(t, next[i], history[i])
	}
	gt.Equal(t, next[2].Index, 2)

	contents := mock.Calls()[0].Contents
	gt.A(t, contents).Length(5)
	want := []struct {
		role string
		text string
	}{
		{genai.RoleUser, "Hi, my name is Alice."},
		{genai.RoleModel, "Nice to meet you, Alice!"},
		{genai.RoleUser, "I like jazz."},
		{genai.RoleModel, "Jazz is great."},
		{genai.RoleUser, "What is my name?"},
	}
	for i, w := range want {
		gt.Equal(t, contents[i].Role, w.role)
		gt.Equal(t, contents[i].Parts[0].Text, w.text)
	}
}

func TestExchangeContext(t *testing.T) {
	mock := &geminitest.Mock{GenerateContentFunc: geminitest.Reply("LangChain is a framework.")}
	x, err := exchange.New(mock)
	gt.NoError(t, err)

	docs := []string{
		"LangChain is a framework for developing applications powered by language models.",
		"It enables data-aware applications.",
		"It enables data-aware applications.",
	}
	_, err = x.Exchange(context.Background(), "What is LangChain?", nil, docs)
	gt.NoError(t, err)

	contents := mock.Calls()[0].Contents
	gt.A(t, contents).Length(1)
	msg := contents[0].Parts[0].Text

	gt.S(t, msg).Contains("Use the following pieces of context")
	gt.S(t, msg).Contains("Question: What is LangChain?")
	gt.True(t, strings.HasSuffix(msg, "Answer:"))

	// Context precedes the question, in order and without deduplication
	first := strings.Index(msg, docs[0])
	question := strings.Index(msg, "Question:")
	gt.True(t, first >= 0)
	gt.True(t, first < question)
	gt.Equal(t, strings.Count(msg, docs[1]), 2)
}

func TestExchangeEndpointError(t *testing.T) {
	mock := &geminitest.Mock{
		GenerateContentFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, goerr.New("rpc error: unavailable")
		},
	}
	x, err := exchange.New(mock)
	gt.NoError(t, err)

	resp, err := x.Exchange(context.Background(), "Say hello", nil, nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrEndpoint))
	gt.Equal(t, resp, "")
	gt.A(t, mock.Calls()).Length(1)
}

func TestExchangeKeepsCause(t *testing.T) {
	apiErr := genai.APIError{Code: 503, Message: "overloaded"}
	mock := &geminitest.Mock{
		GenerateContentFunc: func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			return nil, apiErr
		},
	}
	x, err := exchange.New(mock)
	gt.NoError(t, err)

	_, err = x.Exchange(context.Background(), "Say hello", nil, nil)
	gt.True(t, errors.Is(err, model.ErrEndpoint))

	var got genai.APIError
	gt.True(t, errors.As(err, &got))
	gt.Equal(t, got.Code, 503)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock.GenerateContentFunc = func(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return nil, ctx.Err()
	}
	_, err = x.Exchange(ctx, "Say hello", nil, nil)
	gt.True(t, errors.Is(err, model.ErrEndpoint))
	gt.True(t, errors.Is(err, context.Canceled))
}

func TestExchangeEmptyResponse(t *testing.T) {
	testCases := []struct {
		name string
		resp *genai.GenerateContentResponse
	}{
		{"no candidates", &genai.GenerateContentResponse{}},
		{"nil content", &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}}},
		{"empty text", geminitest.TextResponse("")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &geminitest.Mock{GenerateContentFunc: geminitest.Sequence(tc.resp)}
			x, err := exchange.New(mock)
			gt.NoError(t, err)

			_, err = x.Exchange(context.Background(), "Say hello", nil, nil)
			gt.Error(t, err)
			gt.True(t, errors.Is(err, model.ErrEndpoint))
		})
	}
}

func TestExchangeOptions(t *testing.T) {
	mock := &geminitest.Mock{GenerateContentFunc: geminitest.Reply("ok")}
	x, err := exchange.New(mock,
		exchange.WithSystemPrompt("You are a music assistant."),
		exchange.WithTemperature(0.1),
	)
	gt.NoError(t, err)

	_, err = x.Exchange(context.Background(), "Say hello", nil, nil)
	gt.NoError(t, err)

	config := mock.Calls()[0].Config
	gt.NotNil(t, config)
	gt.NotNil(t, config.SystemInstruction)
	gt.Equal(t, config.SystemInstruction.Parts[0].Text, "You are a music assistant.")
	gt.NotNil(t, config.Temperature)
	gt.Equal(t, *config.Temperature, float32(0.1))
}

func TestNewWithoutClient(t *testing.T) {
	_, err := exchange.New(nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, model.ErrConfiguration))
}

func TestNewWithoutCredential(t *testing.T) {
	for _, key := range []string{"", adapter.PlaceholderAPIKey} {
		client, err := adapter.NewGemini(context.Background(), key)
		gt.Error(t, err)
		gt.True(t, errors.Is(err, model.ErrConfiguration))
		gt.True(t, client == nil)
	}
}

func TestResponseTextSkipsThoughts(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Role: genai.RoleModel,
				Parts: []*genai.Part{
					{Text: "thinking...", Thought: true},
					{Text: "Hello"},
					{Text: ", world"},
				},
			},
		}},
	}
	gt.Equal(t, exchange.ResponseText(resp), "Hello, world")
}
