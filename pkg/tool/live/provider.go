package live

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/adapter"
	"github.com/m-mizutani/tempo/pkg/model"
	"github.com/m-mizutani/tempo/pkg/tool"
	"github.com/m-mizutani/tempo/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
)

// DialFunc opens a connection to the control server
type DialFunc func(ctx context.Context, cfg adapter.LiveConfig) (adapter.Live, error)

// Provider exposes the Live remote-control vocabulary as tools. Every call dials,
// sends one command and closes, so Live may be restarted between calls.
type Provider struct {
	host    string
	tcpPort int64
	udpPort int64
	timeout time.Duration

	dial   DialFunc
	byName map[string]*command
}

type Option func(*Provider)

// WithDialer replaces the network dialer
func WithDialer(dial DialFunc) Option {
	return func(p *Provider) {
		p.dial = dial
	}
}

// WithConfig sets the server address without going through flags
func WithConfig(cfg adapter.LiveConfig) Option {
	return func(p *Provider) {
		p.host = cfg.Host
		p.tcpPort = int64(cfg.TCPPort)
		p.udpPort = int64(cfg.UDPPort)
		p.timeout = cfg.Timeout
	}
}

var _ tool.Tool = (*Provider)(nil)

func New(opts ...Option) *Provider {
	def := adapter.DefaultLiveConfig()
	p := &Provider{
		host:    def.Host,
		tcpPort: int64(def.TCPPort),
		udpPort: int64(def.UDPPort),
		timeout: def.Timeout,
		dial:    adapter.DialLive,
		byName:  make(map[string]*command, len(commands)),
	}
	for i := range commands {
		p.byName[commands[i].name] = &commands[i]
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Flags returns CLI flags for the control server address
func (p *Provider) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "live-host",
			Sources:     cli.EnvVars("TEMPO_LIVE_HOST"),
			Usage:       "Host of the Ableton Live control server",
			Value:       p.host,
			Destination: &p.host,
		},
		&cli.IntFlag{
			Name:        "live-tcp-port",
			Sources:     cli.EnvVars("TEMPO_LIVE_TCP_PORT"),
			Usage:       "TCP port of the Ableton Live control server",
			Value:       p.tcpPort,
			Destination: &p.tcpPort,
		},
		&cli.IntFlag{
			Name:        "live-udp-port",
			Sources:     cli.EnvVars("TEMPO_LIVE_UDP_PORT"),
			Usage:       "UDP port for fire-and-forget parameter updates",
			Value:       p.udpPort,
			Destination: &p.udpPort,
		},
		&cli.DurationFlag{
			Name:        "live-timeout",
			Sources:     cli.EnvVars("TEMPO_LIVE_TIMEOUT"),
			Usage:       "Timeout of one remote-control request",
			Value:       p.timeout,
			Destination: &p.timeout,
		},
	}
}

// Config returns the control server address
func (p *Provider) Config() adapter.LiveConfig {
	return adapter.LiveConfig{
		Host:    p.host,
		TCPPort: int(p.tcpPort),
		UDPPort: int(p.udpPort),
		Timeout: p.timeout,
	}
}

// Init always enables the tools; the server is only contacted on calls
func (p *Provider) Init(ctx context.Context, client *tool.Client) (bool, error) {
	return true, nil
}

func (p *Provider) Prompt(ctx context.Context) string {
	return `You can control a running Ableton Live set with the Live tools. Track, clip, device and scene indices are zero-based. Call get_session_info or get_track_info before changing things you have not inspected. Device parameter values are normalized from 0.0 to 1.0.`
}

func (p *Provider) Spec() *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, len(commands))
	for i := range commands {
		decls[i] = commands[i].declaration()
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

// Names returns the tool names in alphabetical order
func (p *Provider) Names() []string {
	names := make([]string, 0, len(p.byName))
	for name := range p.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildCommand turns a tool call into a wire command. Missing optional
// arguments get their documented defaults; missing required ones are an error.
// The second value reports whether the command goes over UDP.
func (p *Provider) BuildCommand(name string, args map[string]any) (*model.LiveCommand, bool, error) {
	c, ok := p.byName[name]
	if !ok {
		return nil, false, goerr.Wrap(tool.ErrToolNotFound, "unknown Live command", goerr.V("name", name))
	}

	params := make(map[string]any, len(args)+len(c.params))
	for k, v := range args {
		params[k] = v
	}
	for _, prm := range c.params {
		if _, ok := params[prm.name]; ok {
			continue
		}
		if prm.required {
			return nil, false, goerr.Wrap(model.ErrInvalidInput, "missing required argument",
				goerr.V("command", name),
				goerr.V("argument", prm.name))
		}
		if prm.def != nil {
			params[prm.name] = prm.def
		}
	}

	cmd := &model.LiveCommand{Type: c.wireType()}
	if len(params) > 0 {
		cmd.Params = params
	}
	return cmd, c.udp, nil
}

// Execute runs a tool call against the control server
func (p *Provider) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	cmd, udp, err := p.BuildCommand(fc.Name, fc.Args)
	if err != nil {
		return nil, err
	}

	if udp {
		if err := p.Notify(ctx, cmd); err != nil {
			return nil, err
		}
		return &genai.FunctionResponse{
			Name:     fc.Name,
			Response: map[string]any{"result": "sent"},
		}, nil
	}

	resp, err := p.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}

	var result any
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			return nil, goerr.Wrap(model.Classify(model.ErrEndpoint, err), "failed to decode Live result",
				goerr.V("command", cmd.Type))
		}
	}

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"result": result},
	}, nil
}

// Send dials the server, sends cmd over TCP and returns the reply
func (p *Provider) Send(ctx context.Context, cmd *model.LiveCommand) (*model.LiveResponse, error) {
	client, err := p.dial(ctx, p.Config())
	if err != nil {
		return nil, err
	}
	defer client.Close()

	start := time.Now()
	resp, err := client.Send(ctx, cmd)
	if err != nil {
		return nil, err
	}
	logging.From(ctx).Debug("live command done", "type", cmd.Type, "elapsed", time.Since(start))
	return resp, nil
}

// Notify dials the server and sends cmd over UDP
func (p *Provider) Notify(ctx context.Context, cmd *model.LiveCommand) error {
	client, err := p.dial(ctx, p.Config())
	if err != nil {
		return err
	}
	defer client.Close()

	return client.Notify(ctx, cmd)
}
