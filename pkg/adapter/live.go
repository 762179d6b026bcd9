package adapter

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tempo/pkg/model"
)

// Live talks to the Ableton Live control server (the AbletonMCP remote script).
type Live interface {
	// Send delivers a command over TCP and waits for its reply
	Send(ctx context.Context, cmd *model.LiveCommand) (*model.LiveResponse, error)
	// Notify delivers a command over UDP without waiting for a reply
	Notify(ctx context.Context, cmd *model.LiveCommand) error
	Close() error
}

// LiveConfig is the address of the control server
type LiveConfig struct {
	Host    string
	TCPPort int
	UDPPort int
	// Timeout bounds each request when the context has no deadline. 0 means no limit.
	Timeout time.Duration
}

// DefaultLiveConfig returns the ports the remote script listens on by default
func DefaultLiveConfig() LiveConfig {
	return LiveConfig{
		Host:    "localhost",
		TCPPort: 9877,
		UDPPort: 9878,
		Timeout: 30 * time.Second,
	}
}

func (c LiveConfig) tcpAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.TCPPort))
}

func (c LiveConfig) udpAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.UDPPort))
}

type liveClient struct {
	cfg     LiveConfig
	tcp     net.Conn
	decoder *json.Decoder
	udp     net.Conn
}

// DialLive connects to the TCP endpoint of the control server. The UDP socket is opened on first Notify.
func DialLive(ctx context.Context, cfg LiveConfig) (Live, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", cfg.tcpAddr())
	if err != nil {
		return nil, goerr.Wrap(model.Classify(model.ErrEndpoint, err), "failed to connect to Live control server",
			goerr.V("addr", cfg.tcpAddr()))
	}

	return &liveClient{
		cfg:     cfg,
		tcp:     conn,
		decoder: json.NewDecoder(conn),
	}, nil
}

func (c *liveClient) deadline(ctx context.Context) time.Time {
	if d, ok := ctx.Deadline(); ok {
		return d
	}
	if c.cfg.Timeout > 0 {
		return time.Now().Add(c.cfg.Timeout)
	}
	return time.Time{}
}

func (c *liveClient) Send(ctx context.Context, cmd *model.LiveCommand) (*model.LiveResponse, error) {
	if err := c.tcp.SetDeadline(c.deadline(ctx)); err != nil {
		return nil, goerr.Wrap(err, "failed to set deadline")
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal command", goerr.V("type", cmd.Type))
	}
	if _, err := c.tcp.Write(data); err != nil {
		return nil, goerr.Wrap(model.Classify(model.ErrEndpoint, err), "failed to send command",
			goerr.V("type", cmd.Type))
	}

	// The server does not frame replies; a reply ends where its JSON object ends.
	var resp model.LiveResponse
	if err := c.decoder.Decode(&resp); err != nil {
		return nil, goerr.Wrap(model.Classify(model.ErrEndpoint, err), "failed to receive reply",
			goerr.V("type", cmd.Type))
	}

	if resp.Status == model.LiveStatusError {
		return nil, goerr.Wrap(model.ErrEndpoint, "Live control server returned an error",
			goerr.V("type", cmd.Type),
			goerr.V("message", resp.Message))
	}

	return &resp, nil
}

func (c *liveClient) Notify(ctx context.Context, cmd *model.LiveCommand) error {
	if c.udp == nil {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "udp", c.cfg.udpAddr())
		if err != nil {
			return goerr.Wrap(model.Classify(model.ErrEndpoint, err), "failed to open UDP socket",
				goerr.V("addr", c.cfg.udpAddr()))
		}
		c.udp = conn
	}

	data, err := json.Marshal(cmd)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal command", goerr.V("type", cmd.Type))
	}

	if _, err := c.udp.Write(data); err != nil {
		return goerr.Wrap(model.Classify(model.ErrEndpoint, err), "failed to send UDP command",
			goerr.V("type", cmd.Type))
	}
	return nil
}

func (c *liveClient) Close() error {
	var firstErr error
	if c.tcp != nil {
		if err := c.tcp.Close(); err != nil {
			firstErr = goerr.Wrap(err, "failed to close TCP connection")
		}
		c.tcp = nil
	}
	if c.udp != nil {
		if err := c.udp.Close(); err != nil && firstErr == nil {
			firstErr = goerr.Wrap(err, "failed to close UDP socket")
		}
		c.udp = nil
	}
	return firstErr
}
