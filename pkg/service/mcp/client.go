package mcp

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"gopkg.in/yaml.v3"
)

const (
	implementationName    = "tempo"
	implementationVersion = "0.1.0"
)

// Client manages connections to multiple MCP servers
type Client struct {
	servers map[string]*server
}

type server struct {
	name    string
	client  *mcp.Client
	session *mcp.ClientSession
	tools   []*mcp.Tool
}

// ServerConfig represents configuration for a single MCP server
type ServerConfig struct {
	Name      string            `yaml:"name"`
	Transport string            `yaml:"transport"` // "stdio" or "http"
	Command   []string          `yaml:"command"`
	URL       string            `yaml:"url"`
	Env       map[string]string `yaml:"env"`
}

// NewClient creates a new MCP client
func NewClient() *Client {
	return &Client{
		servers: make(map[string]*server),
	}
}

// Connect connects to an MCP server with the given configuration
func (c *Client) Connect(ctx context.Context, cfg ServerConfig) error {
	if _, exists := c.servers[cfg.Name]; exists {
		return goerr.New("server already connected", goerr.V("name", cfg.Name))
	}

	var transport mcp.Transport
	var err error

	switch cfg.Transport {
	case "stdio":
		transport, err = c.createStdioTransport(cfg)
	case "http":
		transport, err = c.createHTTPTransport(cfg)
	default:
		return goerr.New("unsupported transport",
			goerr.V("transport", cfg.Transport),
			goerr.V("supported", []string{"stdio", "http"}))
	}

	if err != nil {
		return goerr.Wrap(err, "failed to create transport",
			goerr.V("server", cfg.Name))
	}

	return c.ConnectTransport(ctx, cfg.Name, transport)
}

// ConnectTransport connects to an MCP server over an already built transport
// and caches its tool list.
func (c *Client) ConnectTransport(ctx context.Context, name string, transport mcp.Transport) error {
	if _, exists := c.servers[name]; exists {
		return goerr.New("server already connected", goerr.V("name", name))
	}

	mcpClient := mcp.NewClient(&mcp.Implementation{
		Name:    implementationName,
		Version: implementationVersion,
	}, nil)

	session, err := mcpClient.Connect(ctx, transport, nil)
	if err != nil {
		return goerr.Wrap(model.Classify(model.ErrEndpoint, err), "failed to connect to MCP server",
			goerr.V("server", name))
	}

	toolsResult, err := session.ListTools(ctx, nil)
	if err != nil {
		_ = session.Close()
		return goerr.Wrap(model.Classify(model.ErrEndpoint, err), "failed to list tools",
			goerr.V("server", name))
	}

	c.servers[name] = &server{
		name:    name,
		client:  mcpClient,
		session: session,
		tools:   toolsResult.Tools,
	}
	logging.From(ctx).Debug("MCP server connected", "server", name, "tools", len(toolsResult.Tools))

	return nil
}

// createStdioTransport creates a stdio transport for MCP
func (c *Client) createStdioTransport(cfg ServerConfig) (mcp.Transport, error) {
	if len(cfg.Command) == 0 {
		return nil, goerr.New("command is required for stdio transport")
	}

	cmd := exec.Command(cfg.Command[0], cfg.Command[1:]...)

	// Inherit the environment and add configured variables
	if len(cfg.Env) > 0 {
		env := os.Environ()
		for k, v := range cfg.Env {
			env = append(env, k+"="+v)
		}
		cmd.Env = env
	}

	return &mcp.CommandTransport{Command: cmd}, nil
}

// createHTTPTransport creates an HTTP transport for MCP
func (c *Client) createHTTPTransport(cfg ServerConfig) (mcp.Transport, error) {
	if cfg.URL == "" {
		return nil, goerr.New("url is required for http transport")
	}

	return &mcp.StreamableClientTransport{
		Endpoint: cfg.URL,
	}, nil
}

// GetTools returns all tools from a specific server
func (c *Client) GetTools(serverName string) ([]*mcp.Tool, error) {
	srv, exists := c.servers[serverName]
	if !exists {
		return nil, goerr.New("server not found", goerr.V("name", serverName))
	}
	return srv.tools, nil
}

// GetAllServers returns names of all connected servers in alphabetical order
func (c *Client) GetAllServers() []string {
	names := make([]string, 0, len(c.servers))
	for name := range c.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CallTool calls a tool on a specific server
func (c *Client) CallTool(ctx context.Context, serverName string, toolName string, arguments map[string]any) (*mcp.CallToolResult, error) {
	srv, exists := c.servers[serverName]
	if !exists {
		return nil, goerr.New("server not found", goerr.V("name", serverName))
	}

	result, err := srv.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      toolName,
		Arguments: arguments,
	})
	if err != nil {
		return nil, goerr.Wrap(model.Classify(model.ErrEndpoint, err), "failed to call tool",
			goerr.V("server", serverName),
			goerr.V("tool", toolName))
	}

	return result, nil
}

// Close closes all MCP server connections
func (c *Client) Close() error {
	for name, srv := range c.servers {
		if err := srv.session.Close(); err != nil {
			return goerr.Wrap(err, "failed to close session",
				goerr.V("server", name))
		}
	}
	c.servers = make(map[string]*server)
	return nil
}

// Config represents the MCP configuration file structure
type Config struct {
	Servers []ServerConfig `yaml:"servers"`
}

// LoadConfig reads an MCP configuration file
func LoadConfig(configPath string) (*Config, error) {
	absConfigPath, err := getAbsPath(configPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve config path",
			goerr.V("path", configPath))
	}

	data, err := os.ReadFile(absConfigPath)
	if err != nil {
		return nil, goerr.Wrap(model.Classify(model.ErrConfiguration, err), "failed to read MCP config file",
			goerr.V("path", absConfigPath))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(model.Classify(model.ErrConfiguration, err), "failed to parse MCP config file",
			goerr.V("path", absConfigPath))
	}

	seen := make(map[string]bool, len(cfg.Servers))
	for i, srv := range cfg.Servers {
		if srv.Name == "" {
			return nil, goerr.Wrap(model.ErrConfiguration, "MCP server name is required",
				goerr.V("path", absConfigPath), goerr.V("index", i))
		}
		if seen[srv.Name] {
			return nil, goerr.Wrap(model.ErrConfiguration, "duplicated MCP server name",
				goerr.V("path", absConfigPath), goerr.V("name", srv.Name))
		}
		seen[srv.Name] = true
	}

	return &cfg, nil
}

// LoadAndConnect loads MCP configuration from file and connects to all servers.
// It returns nil without error when no config is given or no server could be reached.
func LoadAndConnect(ctx context.Context, configPath string) (*Provider, error) {
	if configPath == "" {
		return nil, nil // MCP config not specified
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.From(ctx)
	if len(cfg.Servers) == 0 {
		logger.Info("no MCP servers configured", "path", configPath)
		return nil, nil
	}

	// Create client and connect to all servers
	client := NewClient()
	var connectedServers []string
	var failedServers []string

	for _, serverCfg := range cfg.Servers {
		if err := client.Connect(ctx, serverCfg); err != nil {
			logger.Warn("failed to connect to MCP server", "server", serverCfg.Name, "error", err)
			failedServers = append(failedServers, serverCfg.Name)
			continue
		}
		logger.Info("connected to MCP server", "server", serverCfg.Name)
		connectedServers = append(connectedServers, serverCfg.Name)
	}

	// Return provider if any server connected, otherwise just warn
	if len(connectedServers) == 0 {
		logger.Warn("no MCP servers connected", "failed", failedServers)
		return nil, nil // Don't fail, just skip MCP
	}

	return NewProvider(client), nil
}

// getAbsPath returns absolute path, resolving relative paths from current directory
func getAbsPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Abs(path)
}
