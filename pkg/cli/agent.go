package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/m-mizutani/tempo/pkg/service/mcp"
	"github.com/m-mizutani/tempo/pkg/tool"
	"github.com/m-mizutani/tempo/pkg/tool/live"
	"github.com/m-mizutani/tempo/pkg/usecase/agent"
	"github.com/m-mizutani/tempo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func agentCommand() *cli.Command {
	var (
		cfg           config
		mcpConfig     string
		maxIterations int64
		demo          bool
		raw           bool
	)

	liveTools := live.New()

	flags := llmFlags(&cfg)
	flags = append(flags, liveTools.Flags()...)
	flags = append(flags,
		&cli.StringFlag{
			Name:        "mcp-config",
			Usage:       "YAML file listing external MCP servers whose tools are offered to the model",
			Sources:     cli.EnvVars("TEMPO_MCP_CONFIG"),
			Destination: &mcpConfig,
		},
		&cli.IntFlag{
			Name:        "max-iterations",
			Usage:       "Maximum rounds of tool calls per request",
			Value:       agent.DefaultMaxIterations,
			Destination: &maxIterations,
		},
		&cli.BoolFlag{
			Name:        "demo",
			Usage:       "Ask for the current Live session information and exit",
			Destination: &demo,
		},
		&cli.BoolFlag{
			Name:        "raw",
			Usage:       "Print answers without markdown rendering",
			Destination: &raw,
		},
	)

	return &cli.Command{
		Name:      "agent",
		Usage:     "Control Ableton Live in natural language through function calling",
		ArgsUsage: "[request]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}

			tools := []tool.Tool{liveTools}
			mcpTools, err := mcp.LoadAndConnect(ctx, mcpConfig)
			if err != nil {
				return err
			}
			if mcpTools != nil {
				defer mcpTools.Close()
				tools = append(tools, mcpTools)
			}

			registry := tool.New(tools...)
			if err := registry.Init(ctx, &tool.Client{Gemini: gemini}); err != nil {
				return err
			}

			w := c.Root().Writer
			opts := []agent.Option{
				agent.WithMaxIterations(int(maxIterations)),
				agent.WithToolCallHook(func(call *agent.ToolCall) {
					printToolCall(c.Root().ErrWriter, call)
				}),
			}
			if cfg.temperature >= 0 {
				opts = append(opts, agent.WithTemperature(float32(cfg.temperature)))
			}
			a, err := agent.New(gemini, registry, opts...)
			if err != nil {
				return err
			}

			run := func(query string) error {
				stop := startSpinner("working...")
				result, err := a.Run(ctx, query)
				stop()
				if err != nil {
					return err
				}
				logging.From(ctx).Debug("agent finished",
					"iterations", result.Iterations,
					"tool_calls", len(result.ToolCalls))
				if raw {
					fmt.Fprintln(w, result.Text)
				} else {
					fmt.Fprint(w, renderMarkdown(result.Text))
				}
				return nil
			}

			switch {
			case demo:
				fmt.Fprintf(w, "> %s\n", agent.DemoQuery)
				return run(agent.DemoQuery)
			case c.Args().Len() > 0:
				return run(strings.Join(c.Args().Slice(), " "))
			}

			in, err := newPrompter("live> ", w)
			if err != nil {
				return err
			}
			defer in.Close()

			fmt.Fprintln(w, "Describe what to do in Live. Type 'quit' to exit.")
			for {
				query, ok := in.next()
				if !ok {
					return nil
				}
				if err := run(query); err != nil {
					logging.From(ctx).Error("request failed", "error", err)
				}
			}
		},
	}
}

func printToolCall(w io.Writer, call *agent.ToolCall) {
	args, _ := json.Marshal(call.Args)
	if call.Err != nil {
		fmt.Fprintf(w, "  ✗ %s(%s): %v\n", call.Name, args, call.Err)
		return
	}
	fmt.Fprintf(w, "  → %s(%s) [%s]\n", call.Name, args, call.Elapsed.Round(time.Millisecond))
}
