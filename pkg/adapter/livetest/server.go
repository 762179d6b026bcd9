// Package livetest provides an in-process stand-in for the Live control server.
package livetest

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/tempo/pkg/adapter"
	"github.com/m-mizutani/tempo/pkg/model"
)

// Handler builds the reply for a command
type Handler func(cmd model.LiveCommand) model.LiveResponse

// Server accepts TCP commands and UDP notifications on loopback ports
type Server struct {
	tcp     net.Listener
	udp     net.PacketConn
	handler Handler

	mu          sync.Mutex
	commands    []model.LiveCommand
	udpCommands []model.LiveCommand
}

// Success replies with the given result encoded as JSON
func Success(result any) model.LiveResponse {
	data, _ := json.Marshal(result)
	return model.LiveResponse{Status: model.LiveStatusSuccess, Result: data}
}

// Echo replies with the command params as result
func Echo(cmd model.LiveCommand) model.LiveResponse {
	return Success(cmd.Params)
}

// New starts a server; it is stopped when the test ends. A nil handler echoes params back.
func New(t testing.TB, handler Handler) *Server {
	t.Helper()
	if handler == nil {
		handler = Echo
	}

	tcp, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal("failed to listen tcp", err)
	}
	udp, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal("failed to listen udp", err)
	}

	s := &Server{tcp: tcp, udp: udp, handler: handler}
	go s.acceptLoop()
	go s.udpLoop()

	t.Cleanup(func() {
		_ = tcp.Close()
		_ = udp.Close()
	})
	return s
}

// Config returns a client configuration pointing at this server
func (s *Server) Config() adapter.LiveConfig {
	return adapter.LiveConfig{
		Host:    "127.0.0.1",
		TCPPort: s.tcp.Addr().(*net.TCPAddr).Port,
		UDPPort: s.udp.LocalAddr().(*net.UDPAddr).Port,
		Timeout: 5 * time.Second,
	}
}

// Commands returns the TCP commands received so far
func (s *Server) Commands() []model.LiveCommand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.LiveCommand(nil), s.commands...)
}

// WaitUDP waits until n UDP commands arrived and returns them
func (s *Server) WaitUDP(n int, timeout time.Duration) []model.LiveCommand {
	deadline := time.Now().Add(timeout)
	for {
		s.mu.Lock()
		got := append([]model.LiveCommand(nil), s.udpCommands...)
		s.mu.Unlock()

		if len(got) >= n || time.Now().After(deadline) {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.tcp.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *Server) serve(conn net.Conn) {
	defer conn.Close()

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var cmd model.LiveCommand
		if err := dec.Decode(&cmd); err != nil {
			return
		}

		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		s.mu.Unlock()

		if err := enc.Encode(s.handler(cmd)); err != nil {
			return
		}
	}
}

func (s *Server) udpLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, _, err := s.udp.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}

		var cmd model.LiveCommand
		if err := json.Unmarshal(buf[:n], &cmd); err != nil {
			continue
		}

		s.mu.Lock()
		s.udpCommands = append(s.udpCommands, cmd)
		s.mu.Unlock()
	}
}
