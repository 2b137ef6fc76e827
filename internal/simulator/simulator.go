// Package simulator implements the device simulator: a WebSocket client
// that receives profile snapshots, validates them the way a real device
// does, and keeps a local copy on disk.
package simulator

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/lichlabs/confpush/internal/profile"
	"github.com/lichlabs/confpush/internal/protocol"
)

// Options configures a simulator run.
type Options struct {
	// URL is the WebSocket endpoint (ws://host:port/ws/app).
	URL string

	// Origin is sent in the handshake; the server does not check it.
	Origin string

	// Username and Password, when set, are sent as basic auth in the
	// handshake. The device endpoints do not require them.
	Username string
	Password string

	// StateFile, when set, receives every accepted snapshot as JSON.
	StateFile string

	// Out receives the per-snapshot validation report (default stdout).
	Out io.Writer
}

// Simulator is a single simulated device.
type Simulator struct {
	opts Options

	mu       sync.Mutex
	set      profile.Set
	received int
	rejected int
}

// New returns a simulator that is not yet connected.
func New(opts Options) *Simulator {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Origin == "" {
		opts.Origin = "http://localhost/"
	}
	return &Simulator{opts: opts}
}

// Counts returns how many snapshots were accepted and rejected.
func (s *Simulator) Counts() (received, rejected int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received, s.rejected
}

// Snapshot returns the last accepted profile set.
func (s *Simulator) Snapshot() profile.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set.Clone()
}

// Run connects and processes snapshots until the connection drops or ctx
// is cancelled.
func (s *Simulator) Run(ctx context.Context) error {
	cfg, err := websocket.NewConfig(s.opts.URL, s.opts.Origin)
	if err != nil {
		return fmt.Errorf("configuring websocket: %w", err)
	}
	if s.opts.Username != "" {
		cfg.Header = http.Header{}
		cfg.Header.Set("Authorization", "Basic "+
			base64.StdEncoding.EncodeToString([]byte(s.opts.Username+":"+s.opts.Password)))
	}

	ws, err := websocket.DialConfig(cfg)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", s.opts.URL, err)
	}
	defer ws.Close()
	log.Printf("connected to %s", s.opts.URL)

	go func() {
		<-ctx.Done()
		ws.Close()
	}()

	for {
		var payload string
		if err := websocket.Message.Receive(ws, &payload); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receiving: %w", err)
		}
		s.Handle([]byte(payload))
	}
}

// Handle processes one raw message from the server.
func (s *Simulator) Handle(payload []byte) {
	var envelope protocol.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.reject("undecodable message: %v", err)
		return
	}
	if envelope.Type != protocol.MessageUpdate {
		s.reject("unexpected message type %q", envelope.Type)
		return
	}

	set, err := protocol.DecodeSnapshot(envelope.Data)
	if err != nil {
		s.reject("bad snapshot: %v", err)
		return
	}

	s.mu.Lock()
	s.set = set
	s.received++
	received := s.received
	s.mu.Unlock()

	fmt.Fprintf(s.opts.Out, "update #%d at %s\n", received, envelope.Timestamp)
	s.report(set)

	if s.opts.StateFile != "" {
		if err := s.persist(envelope.Data); err != nil {
			log.Printf("persisting snapshot: %v", err)
		}
	}
}

func (s *Simulator) reject(format string, args ...any) {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
	log.Printf(format, args...)
}

// report prints one line per level, expanding issues and warnings the way
// a device's config check screen does.
func (s *Simulator) report(set profile.Set) {
	for _, level := range set.Levels() {
		r := profile.Validate(set[level])
		status := "ok"
		if !r.Valid() {
			status = "INVALID"
		}
		fmt.Fprintf(s.opts.Out, "  level %d: %s (draw=%d bonus=%d)\n", level, status, r.DrawTotal, r.BonusTotal)
		for _, issue := range r.Issues {
			fmt.Fprintf(s.opts.Out, "    issue: %s\n", issue)
		}
		for _, warn := range r.Warnings {
			fmt.Fprintf(s.opts.Out, "    warning: %s\n", warn)
		}
	}
}

func (s *Simulator) persist(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(s.opts.StateFile), 0o755); err != nil {
		return err
	}
	tmp := s.opts.StateFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.opts.StateFile)
}
