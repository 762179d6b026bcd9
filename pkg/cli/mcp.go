package cli

import (
	"context"

	"github.com/m-mizutani/tempo/pkg/service/mcp"
	"github.com/m-mizutani/tempo/pkg/tool"
	"github.com/m-mizutani/tempo/pkg/tool/live"
	"github.com/m-mizutani/tempo/pkg/utils/logging"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
)

func mcpCommand() *cli.Command {
	liveTools := live.New()

	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the Live remote-control tools to MCP clients over stdio",
		Flags: liveTools.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			registry := tool.New(liveTools)
			if err := registry.Init(ctx, nil); err != nil {
				return err
			}

			server, err := mcp.NewServer(ctx, registry)
			if err != nil {
				return err
			}

			cfg := liveTools.Config()
			logging.From(ctx).Info("serving MCP over stdio",
				"tools", len(registry.Declarations()),
				"live_host", cfg.Host,
				"live_tcp_port", cfg.TCPPort)
			return server.Run(ctx, &mcpsdk.StdioTransport{})
		},
	}
}
