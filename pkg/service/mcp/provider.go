package mcp

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/tool"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

// Provider implements tool.Tool interface for tools served by external MCP servers
type Provider struct {
	client *Client
	tools  []*mcpTool
}

var _ tool.Tool = (*Provider)(nil)

type mcpTool struct {
	serverName string
	mcpTool    *mcp.Tool
	funcDecl   *genai.FunctionDeclaration
}

// NewProvider creates a new MCP tool provider
func NewProvider(client *Client) *Provider {
	return &Provider{
		client: client,
		tools:  make([]*mcpTool, 0),
	}
}

// Flags returns CLI flags for MCP provider
func (p *Provider) Flags() []cli.Flag {
	return nil // MCP config is loaded separately
}

// Init converts the tools of every connected server into function declarations
func (p *Provider) Init(ctx context.Context, _ *tool.Client) (bool, error) {
	if p == nil || p.client == nil {
		return false, nil
	}

	p.tools = p.tools[:0]
	seen := make(map[string]string)
	for _, serverName := range p.client.GetAllServers() {
		tools, err := p.client.GetTools(serverName)
		if err != nil {
			return false, goerr.Wrap(err, "failed to get tools from server",
				goerr.V("server", serverName))
		}

		for _, t := range tools {
			if prev, ok := seen[t.Name]; ok {
				return false, goerr.Wrap(model.ErrConfiguration, "tool name provided by multiple MCP servers",
					goerr.V("tool", t.Name),
					goerr.V("servers", []string{prev, serverName}))
			}
			seen[t.Name] = serverName

			funcDecl, err := convertToFunctionDeclaration(t)
			if err != nil {
				return false, goerr.Wrap(err, "failed to convert tool",
					goerr.V("server", serverName),
					goerr.V("tool", t.Name))
			}

			p.tools = append(p.tools, &mcpTool{
				serverName: serverName,
				mcpTool:    t,
				funcDecl:   funcDecl,
			})
		}
	}

	return len(p.tools) > 0, nil
}

func convertToFunctionDeclaration(t *mcp.Tool) (*genai.FunctionDeclaration, error) {
	funcDecl := &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: t.Description,
	}

	if t.InputSchema == nil {
		return funcDecl, nil
	}

	// InputSchema arrives as any, so round-trip it through JSON
	schemaJSON, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal input schema")
	}

	var jsSchema jsonschema.Schema
	if err := json.Unmarshal(schemaJSON, &jsSchema); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal input schema")
	}

	schema, err := convertJSONSchemaToGenai(&jsSchema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to convert input schema")
	}
	// Gemini rejects an object schema without properties
	if schema != nil && !(schema.Type == genai.TypeObject && len(schema.Properties) == 0) {
		funcDecl.Parameters = schema
	}

	return funcDecl, nil
}

// Spec returns the tool specification for Gemini
func (p *Provider) Spec() *genai.Tool {
	if p == nil || len(p.tools) == 0 {
		return nil
	}

	funcDecls := make([]*genai.FunctionDeclaration, len(p.tools))
	for i, t := range p.tools {
		funcDecls[i] = t.funcDecl
	}

	return &genai.Tool{
		FunctionDeclarations: funcDecls,
	}
}

// Prompt returns additional prompt information
func (p *Provider) Prompt(ctx context.Context) string {
	if p == nil || len(p.tools) == 0 {
		return ""
	}

	return "Some tools are served by external MCP servers: " +
		strings.Join(p.client.GetAllServers(), ", ") +
		". Prefer the Ableton Live tools for anything that changes the session."
}

// Execute calls the MCP tool that provides the function
func (p *Provider) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	var target *mcpTool
	for _, t := range p.tools {
		if t.funcDecl.Name == fc.Name {
			target = t
			break
		}
	}
	if target == nil {
		return nil, goerr.Wrap(tool.ErrToolNotFound, "MCP tool not found", goerr.V("name", fc.Name))
	}

	result, err := p.client.CallTool(ctx, target.serverName, target.mcpTool.Name, fc.Args)
	if err != nil {
		return nil, err
	}

	text := resultText(result)
	if result.IsError {
		return nil, goerr.Wrap(model.ErrEndpoint, "MCP tool returned an error",
			goerr.V("server", target.serverName),
			goerr.V("tool", fc.Name),
			goerr.V("message", text))
	}

	response := map[string]any{"result": text}
	if result.StructuredContent != nil {
		response["structured"] = result.StructuredContent
	}

	return &genai.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: response,
	}, nil
}

// Close disconnects from every MCP server
func (p *Provider) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// resultText joins text contents of a tool result. Non-text contents are
// rendered as JSON.
func resultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
			continue
		}
		raw, err := json.Marshal(c)
		if err != nil {
			continue
		}
		parts = append(parts, string(raw))
	}
	return strings.Join(parts, "\n")
}
