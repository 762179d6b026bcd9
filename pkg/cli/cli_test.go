package cli

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tempo/pkg/adapter/livetest"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/usecase/conversation"
)

func clearCredentials(t *testing.T) {
	t.Helper()
	for _, key := range []string{"GOOGLE_API_KEY", "GEMINI_API_KEY", "GEMINI_PROJECT_ID"} {
		t.Setenv(key, "")
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand(&out)
	err := cmd.Run(context.Background(), append([]string{"tempo"}, args...))
	return out.String(), err
}

func liveArgs(srv *livetest.Server, args ...string) []string {
	cfg := srv.Config()
	return append([]string{
		"live",
		"--live-host", cfg.Host,
		"--live-tcp-port", strconv.Itoa(cfg.TCPPort),
		"--live-udp-port", strconv.Itoa(cfg.UDPPort),
	}, args...)
}

func TestMissingCredential(t *testing.T) {
	clearCredentials(t)

	for _, command := range []string{"ask", "chat", "qa", "agent"} {
		t.Run(command, func(t *testing.T) {
			_, err := runCLI(t, command)
			gt.True(t, errors.Is(err, model.ErrConfiguration))
		})
	}

	t.Run("placeholder key", func(t *testing.T) {
		_, err := runCLI(t, "ask", "--gemini-api-key", "your_google_api_key_here")
		gt.True(t, errors.Is(err, model.ErrConfiguration))
	})

	t.Run("exit code", func(t *testing.T) {
		cliErr := Run(context.Background(), []string{"tempo", "ask"})
		gt.V(t, cliErr).NotNil()
		gt.Equal(t, cliErr.Code, 1)
	})
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := runCLI(t, "--log-level", "loud", "live", "tools")
	gt.Error(t, err)
}

func TestLiveTools(t *testing.T) {
	out, err := runCLI(t, "live", "tools")
	gt.NoError(t, err)
	gt.S(t, out).Contains("set_tempo")
	gt.S(t, out).Contains("fire_clip")
}

func TestLiveSession(t *testing.T) {
	srv := livetest.New(t, func(cmd model.LiveCommand) model.LiveResponse {
		return livetest.Success(map[string]any{"tempo": 120.0, "track_count": 2})
	})

	out, err := runCLI(t, liveArgs(srv, "session")...)
	gt.NoError(t, err)
	gt.S(t, out).Contains(`"tempo": 120`)
	gt.S(t, out).Contains(`"track_count": 2`)

	cmds := srv.Commands()
	gt.A(t, cmds).Length(1)
	gt.Equal(t, cmds[0].Type, "get_session_info")
}

func TestLiveTempo(t *testing.T) {
	srv := livetest.New(t, nil)

	_, err := runCLI(t, liveArgs(srv, "tempo", "96.5")...)
	gt.NoError(t, err)
	cmds := srv.Commands()
	gt.A(t, cmds).Length(1)
	gt.Equal(t, cmds[0].Type, "set_tempo")
	gt.Equal(t, cmds[0].Params["tempo"], any(96.5))

	_, err = runCLI(t, liveArgs(srv, "tempo", "fast")...)
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestLiveCall(t *testing.T) {
	srv := livetest.New(t, nil)

	out, err := runCLI(t, liveArgs(srv, "call", "--args", `{"track_index": 1, "name": "Bass"}`, "set_track_name")...)
	gt.NoError(t, err)
	gt.S(t, out).Contains(`"name": "Bass"`)

	_, err = runCLI(t, liveArgs(srv, "call", "--args", `[1,2]`, "set_track_name")...)
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestLiveParamUsesUDP(t *testing.T) {
	srv := livetest.New(t, nil)

	out, err := runCLI(t, liveArgs(srv, "param", "--track", "0", "--device", "1", "--param", "2", "--value", "0.5")...)
	gt.NoError(t, err)
	gt.S(t, out).Contains("sent")

	got := srv.WaitUDP(1, 2*time.Second)
	gt.A(t, got).Length(1)
	gt.Equal(t, got[0].Type, "set_device_parameter")
	gt.Equal(t, got[0].Params["value"], any(0.5))

	_, err = runCLI(t, liveArgs(srv, "param", "--value", "1.5")...)
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
}

func TestLiveServerDown(t *testing.T) {
	_, err := runCLI(t, "live", "--live-host", "127.0.0.1", "--live-tcp-port", "1", "ping")
	gt.True(t, errors.Is(err, model.ErrEndpoint))
}

func TestLiveDemo(t *testing.T) {
	srv := livetest.New(t, func(cmd model.LiveCommand) model.LiveResponse {
		if cmd.Type == "create_midi_track" {
			return livetest.Success(map[string]any{"index": 3})
		}
		return livetest.Echo(cmd)
	})

	out, err := runCLI(t, liveArgs(srv, "demo")...)
	gt.NoError(t, err)
	gt.S(t, out).Contains("fire_clip")

	cmds := srv.Commands()
	gt.A(t, cmds).Length(4)
	gt.Equal(t, cmds[3].Type, "fire_clip")
}

type scriptedExchanger struct {
	errs []error
}

func (s *scriptedExchanger) Exchange(ctx context.Context, prompt string, history model.History, docs []string) (string, error) {
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return "", err
		}
	}
	return "reply to " + prompt, nil
}

func TestChatTurnSurvivesFailures(t *testing.T) {
	ex := &scriptedExchanger{errs: []error{
		goerr.New("unclassified failure"),
		goerr.Wrap(model.ErrEndpoint, "unavailable"),
	}}
	session, err := conversation.New(ex)
	gt.NoError(t, err)

	var out bytes.Buffer
	ctx := context.Background()
	gt.NoError(t, chatTurn(ctx, &out, session, "first"))
	gt.NoError(t, chatTurn(ctx, &out, session, "second"))
	gt.A(t, session.History()).Length(0)

	gt.NoError(t, chatTurn(ctx, &out, session, "third"))
	gt.S(t, out.String()).Contains("model> reply to third")
	gt.A(t, session.History()).Length(1)

	gt.NoError(t, chatTurn(ctx, &out, session, "/reset"))
	gt.A(t, session.History()).Length(0)
}

func TestChatTurnStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session, err := conversation.New(&scriptedExchanger{errs: []error{context.Canceled}})
	gt.NoError(t, err)

	var out bytes.Buffer
	err = chatTurn(ctx, &out, session, "hello")
	gt.True(t, errors.Is(err, context.Canceled))
}
