package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/tool/live"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

func liveCommand() *cli.Command {
	provider := live.New()

	return &cli.Command{
		Name:  "live",
		Usage: "Send remote-control commands to Ableton Live",
		Flags: provider.Flags(),
		Commands: []*cli.Command{
			{
				Name:  "ping",
				Usage: "Check that the control server answers",
				Action: func(ctx context.Context, c *cli.Command) error {
					start := time.Now()
					if _, err := callLive(ctx, provider, "get_session_info", nil); err != nil {
						return err
					}
					cfg := provider.Config()
					fmt.Fprintf(c.Root().Writer, "ok: %s:%d (%s)\n", cfg.Host, cfg.TCPPort, time.Since(start).Round(time.Millisecond))
					return nil
				},
			},
			{
				Name:  "session",
				Usage: "Print tempo, signature, tracks and playback state",
				Action: func(ctx context.Context, c *cli.Command) error {
					return printLive(ctx, c, provider, "get_session_info", nil)
				},
			},
			{
				Name:      "tempo",
				Usage:     "Set the song tempo",
				ArgsUsage: "<bpm>",
				Action: func(ctx context.Context, c *cli.Command) error {
					bpm, err := strconv.ParseFloat(c.Args().First(), 64)
					if err != nil {
						return goerr.Wrap(model.ErrInvalidInput, "tempo must be a number", goerr.V("arg", c.Args().First()))
					}
					return printLive(ctx, c, provider, "set_tempo", map[string]any{"tempo": bpm})
				},
			},
			{
				Name:  "play",
				Usage: "Start playback",
				Action: func(ctx context.Context, c *cli.Command) error {
					return printLive(ctx, c, provider, "start_playback", nil)
				},
			},
			{
				Name:  "stop",
				Usage: "Stop playback",
				Action: func(ctx context.Context, c *cli.Command) error {
					return printLive(ctx, c, provider, "stop_playback", nil)
				},
			},
			{
				Name:      "track",
				Usage:     "Print details of a track",
				ArgsUsage: "<index>",
				Action: func(ctx context.Context, c *cli.Command) error {
					idx, err := strconv.Atoi(c.Args().First())
					if err != nil {
						return goerr.Wrap(model.ErrInvalidInput, "track index must be an integer", goerr.V("arg", c.Args().First()))
					}
					return printLive(ctx, c, provider, "get_track_info", map[string]any{"track_index": idx})
				},
			},
			{
				Name:  "tools",
				Usage: "List every remote-control tool",
				Action: func(ctx context.Context, c *cli.Command) error {
					printTools(c.Root().Writer, provider.Spec().FunctionDeclarations)
					return nil
				},
			},
			liveCallCommand(provider),
			liveParamCommand(provider),
			{
				Name:  "demo",
				Usage: "Create a MIDI track with a C major arpeggio and play it",
				Action: func(ctx context.Context, c *cli.Command) error {
					w := c.Root().Writer
					steps, err := live.RunDemo(ctx, provider)
					for _, step := range steps {
						fmt.Fprintf(w, "%s: %s\n", step.Command.Type, step.Response.Result)
					}
					return err
				},
			},
		},
	}
}

func liveCallCommand(provider *live.Provider) *cli.Command {
	var args string

	return &cli.Command{
		Name:      "call",
		Usage:     "Run any tool by name",
		ArgsUsage: "<tool>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "args",
				Aliases:     []string{"a"},
				Usage:       "Tool arguments as a JSON object",
				Value:       "{}",
				Destination: &args,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			name := c.Args().First()
			if name == "" {
				return goerr.Wrap(model.ErrInvalidInput, "tool name is required")
			}

			var params map[string]any
			if err := json.Unmarshal([]byte(args), &params); err != nil {
				return goerr.Wrap(model.Classify(model.ErrInvalidInput, err), "args must be a JSON object",
					goerr.V("args", args))
			}

			resp, err := provider.Execute(ctx, genai.FunctionCall{Name: name, Args: params})
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, resp.Response["result"])
		},
	}
}

func liveParamCommand(provider *live.Provider) *cli.Command {
	var (
		track  int64
		device int64
		param  int64
		value  float64
	)

	return &cli.Command{
		Name:  "param",
		Usage: "Set a device parameter over UDP without waiting for a reply",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "track", Usage: "Track index", Destination: &track},
			&cli.IntFlag{Name: "device", Usage: "Device index on the track", Destination: &device},
			&cli.IntFlag{Name: "param", Usage: "Parameter index on the device", Destination: &param},
			&cli.FloatFlag{Name: "value", Usage: "Normalized value from 0.0 to 1.0", Destination: &value},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if value < 0 || value > 1 {
				return goerr.Wrap(model.ErrInvalidInput, "value must be between 0.0 and 1.0", goerr.V("value", value))
			}

			_, err := provider.Execute(ctx, genai.FunctionCall{
				Name: "set_device_parameter_udp",
				Args: map[string]any{
					"track_index":     track,
					"device_index":    device,
					"parameter_index": param,
					"value":           value,
				},
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(c.Root().Writer, "sent")
			return nil
		},
	}
}

func callLive(ctx context.Context, provider *live.Provider, name string, args map[string]any) (any, error) {
	resp, err := provider.Execute(ctx, genai.FunctionCall{Name: name, Args: args})
	if err != nil {
		return nil, err
	}
	return resp.Response["result"], nil
}

func printLive(ctx context.Context, c *cli.Command, provider *live.Provider, name string, args map[string]any) error {
	result, err := callLive(ctx, provider, name, args)
	if err != nil {
		return err
	}
	return printJSON(c.Root().Writer, result)
}

func printJSON(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal result")
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return goerr.Wrap(err, "failed to indent result")
	}
	fmt.Fprintln(w, buf.String())
	return nil
}

func printTools(w io.Writer, decls []*genai.FunctionDeclaration) {
	for _, decl := range decls {
		fmt.Fprintf(w, "%-34s %s\n", decl.Name, decl.Description)
	}
}
