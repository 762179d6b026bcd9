package mcp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/tool"
	"github.com/m-mizutani/tempo/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/genai"
)

// Server exposes the tools of a registry to MCP clients
type Server struct {
	registry *tool.Registry
	server   *mcp.Server
}

// NewServer builds an MCP server offering every function declared by the
// registry. The registry must already be initialized.
func NewServer(ctx context.Context, registry *tool.Registry) (*Server, error) {
	if registry == nil {
		return nil, goerr.Wrap(model.ErrConfiguration, "tool registry is required")
	}

	s := &Server{
		registry: registry,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    implementationName,
			Version: implementationVersion,
		}, &mcp.ServerOptions{
			Instructions: registry.Prompts(ctx),
			Logger:       logging.From(ctx),
		}),
	}

	for _, decl := range registry.Declarations() {
		schema, err := convertGenaiToJSONSchema(decl.Parameters)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert tool schema", goerr.V("tool", decl.Name))
		}
		if schema.Type != "object" {
			return nil, goerr.Wrap(model.ErrConfiguration, "tool parameters must be an object",
				goerr.V("tool", decl.Name),
				goerr.V("type", schema.Type))
		}

		s.server.AddTool(&mcp.Tool{
			Name:        decl.Name,
			Description: decl.Description,
			InputSchema: schema,
		}, s.handler(decl.Name))
	}

	return s, nil
}

// Run serves a single session on the transport until the client disconnects
// or ctx is cancelled.
func (s *Server) Run(ctx context.Context, transport mcp.Transport) error {
	if err := s.server.Run(ctx, transport); err != nil && !errors.Is(err, context.Canceled) {
		return goerr.Wrap(err, "MCP server stopped")
	}
	return nil
}

func (s *Server) handler(name string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := logging.From(ctx)

		var args map[string]any
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
				return errorResult(goerr.Wrap(model.Classify(model.ErrInvalidInput, err), "arguments must be a JSON object",
					goerr.V("tool", name))), nil
			}
		}

		logger.Debug("MCP tool call", "tool", name, "args", args)
		resp, err := s.registry.Execute(ctx, genai.FunctionCall{Name: name, Args: args})
		if err != nil {
			logger.Warn("MCP tool call failed", "tool", name, "error", err)
			return errorResult(err), nil
		}

		var payload map[string]any
		if resp != nil {
			payload = resp.Response
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal tool response", goerr.V("tool", name))
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
		}, nil
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}},
	}
}
