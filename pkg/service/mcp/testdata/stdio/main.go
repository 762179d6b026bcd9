// Command stdio serves the Live tools over MCP stdio for transport tests.
// No control server is needed as long as calls fail before dialing.
package main

import (
	"context"
	"log"

	"github.com/m-mizutani/tempo/pkg/service/mcp"
	"github.com/m-mizutani/tempo/pkg/tool"
	"github.com/m-mizutani/tempo/pkg/tool/live"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	ctx := context.Background()

	registry := tool.New(live.New())
	if err := registry.Init(ctx, nil); err != nil {
		log.Fatalf("failed to init tools: %v", err)
	}

	server, err := mcp.NewServer(ctx, registry)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
