package mcp_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/service/mcp"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func newEchoServer() *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "test-http-server",
		Version: "1.0.0",
	}, nil)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "echo",
		Description: "Echo back the message",
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, params *struct {
		Message string `json:"message" jsonschema:"Message to echo"`
	}) (*mcpsdk.CallToolResult, any, error) {
		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{
				&mcpsdk.TextContent{Text: params.Message},
			},
		}, nil, nil
	})

	return server
}

func TestStdioTransport(t *testing.T) {
	ctx := context.Background()

	client := mcp.NewClient()
	err := client.Connect(ctx, mcp.ServerConfig{
		Name:      "test-stdio",
		Transport: "stdio",
		Command:   []string{"go", "run", "./testdata/stdio"},
	})
	gt.NoError(t, err)
	defer client.Close()

	servers := client.GetAllServers()
	gt.A(t, servers).Length(1)
	gt.Equal(t, servers[0], "test-stdio")

	tools, err := client.GetTools("test-stdio")
	gt.NoError(t, err)
	names := make(map[string]bool)
	for _, tl := range tools {
		names[tl.Name] = true
	}
	gt.True(t, names["get_session_info"])
	gt.True(t, names["set_tempo"])

	// Required argument is missing, so the call fails before dialing Live
	result, err := client.CallTool(ctx, "test-stdio", "set_tempo", map[string]any{})
	gt.NoError(t, err)
	gt.True(t, result.IsError)
	gt.A(t, result.Content).Length(1)
	text, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	gt.S(t, text.Text).Contains("tempo")
}

func TestHTTPStreamableTransport(t *testing.T) {
	ctx := context.Background()

	server := newEchoServer()
	handler := mcpsdk.NewStreamableHTTPHandler(func(r *http.Request) *mcpsdk.Server {
		return server
	}, nil)
	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	client := mcp.NewClient()
	err := client.Connect(ctx, mcp.ServerConfig{
		Name:      "test-http",
		Transport: "http",
		URL:       testServer.URL,
	})
	gt.NoError(t, err)
	defer client.Close()

	tools, err := client.GetTools("test-http")
	gt.NoError(t, err)
	gt.A(t, tools).Length(1)
	gt.Equal(t, tools[0].Name, "echo")

	result, err := client.CallTool(ctx, "test-http", "echo", map[string]any{
		"message": "Hello from HTTP!",
	})
	gt.NoError(t, err)
	gt.A(t, result.Content).Length(1)
	textContent, ok := result.Content[0].(*mcpsdk.TextContent)
	gt.True(t, ok)
	gt.Equal(t, textContent.Text, "Hello from HTTP!")
}

func TestConnectErrors(t *testing.T) {
	ctx := context.Background()
	client := mcp.NewClient()

	t.Run("unsupported transport", func(t *testing.T) {
		gt.Error(t, client.Connect(ctx, mcp.ServerConfig{Name: "x", Transport: "grpc"}))
	})

	t.Run("stdio without command", func(t *testing.T) {
		gt.Error(t, client.Connect(ctx, mcp.ServerConfig{Name: "x", Transport: "stdio"}))
	})

	t.Run("http without url", func(t *testing.T) {
		gt.Error(t, client.Connect(ctx, mcp.ServerConfig{Name: "x", Transport: "http"}))
	})

	t.Run("unknown server", func(t *testing.T) {
		_, err := client.GetTools("missing")
		gt.Error(t, err)
		_, err = client.CallTool(ctx, "missing", "echo", nil)
		gt.Error(t, err)
	})

	t.Run("duplicated name", func(t *testing.T) {
		ct, st := mcpsdk.NewInMemoryTransports()
		go func() {
			_ = newEchoServer().Run(ctx, st)
		}()
		gt.NoError(t, client.ConnectTransport(ctx, "echo", ct))
		defer client.Close()

		gt.Error(t, client.ConnectTransport(ctx, "echo", ct))
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		gt.NoError(t, os.WriteFile(path, []byte(body), 0600))
		return path
	}

	t.Run("valid", func(t *testing.T) {
		path := write("valid.yaml", `servers:
  - name: files
    transport: stdio
    command: ["mcp-files", "--root", "/tmp"]
    env:
      DEBUG: "1"
  - name: remote
    transport: http
    url: http://localhost:8080/mcp
`)
		cfg, err := mcp.LoadConfig(path)
		gt.NoError(t, err)
		gt.A(t, cfg.Servers).Length(2)
		gt.Equal(t, cfg.Servers[0].Command, []string{"mcp-files", "--root", "/tmp"})
		gt.Equal(t, cfg.Servers[0].Env["DEBUG"], "1")
		gt.Equal(t, cfg.Servers[1].URL, "http://localhost:8080/mcp")
	})

	t.Run("duplicated name", func(t *testing.T) {
		path := write("dup.yaml", `servers:
  - name: a
    transport: stdio
    command: ["x"]
  - name: a
    transport: stdio
    command: ["y"]
`)
		_, err := mcp.LoadConfig(path)
		gt.True(t, errors.Is(err, model.ErrConfiguration))
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := mcp.LoadConfig(filepath.Join(dir, "none.yaml"))
		gt.True(t, errors.Is(err, model.ErrConfiguration))
	})

	t.Run("no config", func(t *testing.T) {
		provider, err := mcp.LoadAndConnect(context.Background(), "")
		gt.NoError(t, err)
		gt.True(t, provider == nil)
	})

	t.Run("unreachable servers are skipped", func(t *testing.T) {
		path := write("unreachable.yaml", `servers:
  - name: bad
    transport: grpc
`)
		provider, err := mcp.LoadAndConnect(context.Background(), path)
		gt.NoError(t, err)
		gt.True(t, provider == nil)
	})
}
