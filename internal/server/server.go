// Package server provides the confpushd HTTP and WebSocket API.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/websocket"

	"github.com/lichlabs/confpush/internal/config"
	"github.com/lichlabs/confpush/internal/hub"
	"github.com/lichlabs/confpush/internal/profile"
	"github.com/lichlabs/confpush/internal/protocol"
	"github.com/lichlabs/confpush/internal/server/templates"
	"github.com/lichlabs/confpush/internal/store"
)

// Server is the confpushd API server.
type Server struct {
	cfg    config.Config
	store  *store.Store
	hub    *hub.Hub
	mux    *http.ServeMux
	server *http.Server
}

// New creates a server over the given store. Connected devices are tracked
// in h; POST /send broadcasts through it.
func New(cfg config.Config, st *store.Store, h *hub.Hub) *Server {
	s := &Server{
		cfg:   cfg,
		store: st,
		hub:   h,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	s.server = &http.Server{Handler: s.mux}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.auth(s.handleEditorPage))
	s.mux.HandleFunc("GET /api/defaults", s.auth(s.handleDefaults))
	s.mux.HandleFunc("GET /api/config/{level}", s.auth(s.handleGetLevel))
	s.mux.HandleFunc("POST /send", s.auth(s.handleSend))
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.Handle("GET /ws/app", websocket.Handler(s.handleDevice))
	s.mux.Handle("GET /ws/lightweight", websocket.Handler(s.handleDevice))
}

// Serve starts the server on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.server.Serve(ln)
}

// Handler exposes the route mux.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// GetListener returns a listener based on environment.
// Supports systemd socket activation (LISTEN_FDS=1) or falls back to the given address.
func GetListener(defaultAddr string) (net.Listener, error) {
	if os.Getenv("LISTEN_FDS") == "1" {
		f := os.NewFile(3, "systemd-socket")
		ln, err := net.FileListener(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("socket activation: %w", err)
		}
		return ln, nil
	}
	return net.Listen("tcp", defaultAddr)
}

// auth wraps a handler with basic auth against the configured credentials.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.Password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="confpush"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// Handlers

func (s *Server) handleEditorPage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	templates.EditorPage(s.store.Snapshot(), s.hub.Count()).Render(r.Context(), w)
}

func (s *Server) handleDefaults(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, snapshotPayload(s.store.Snapshot()))
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	level, err := protocol.ParseLevelKey(r.PathValue("level"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	t, ok := s.store.Get(level)
	if !ok {
		http.Error(w, fmt.Sprintf("no such level: %d", level), http.StatusNotFound)
		return
	}
	writeJSON(w, t)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	updates, fieldErrs, err := protocol.DecodeUpdateRequest(body)
	if err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	updated, err := s.store.Apply(updates)
	if err != nil {
		log.Printf("persisting update: %v", err)
		http.Error(w, "persisting update: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Devices always get the full post-merge snapshot, not the delta.
	delivered := s.hub.Broadcast(protocol.NewUpdate(s.store.Snapshot(), time.Now()))
	log.Printf("applied update: %d levels, %d devices notified", updated, delivered)

	writeJSON(w, map[string]any{
		"status":  "ok",
		"updated": updated,
		"clients": delivered,
		"errors":  fieldErrs,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"clients":   s.hub.Count(),
	})
}

// handleDevice serves a device WebSocket: send the current snapshot, then
// keep the connection registered for broadcasts until the peer goes away.
func (s *Server) handleDevice(ws *websocket.Conn) {
	envelope := protocol.NewUpdate(s.store.Snapshot(), time.Now())
	payload, err := json.Marshal(envelope)
	if err != nil {
		ws.Close()
		return
	}
	if err := websocket.Message.Send(ws, string(payload)); err != nil {
		ws.Close()
		return
	}

	s.hub.Add(ws)
	defer s.hub.Remove(ws)
	log.Printf("device connected from %s (%d total)", ws.Request().RemoteAddr, s.hub.Count())

	// Devices never send application messages; the read loop exists to
	// notice the close.
	for {
		var discard string
		if err := websocket.Message.Receive(ws, &discard); err != nil {
			break
		}
	}
	log.Printf("device disconnected from %s", ws.Request().RemoteAddr)
}

// BroadcastSnapshot pushes the given set to all connected devices. Used by
// the state-file watcher when the snapshot changes out-of-band.
func (s *Server) BroadcastSnapshot(set profile.Set) {
	delivered := s.hub.Broadcast(protocol.NewUpdate(set, time.Now()))
	log.Printf("state file changed on disk, %d devices notified", delivered)
}

func snapshotPayload(set profile.Set) map[string]profile.Table {
	out := make(map[string]profile.Table, len(set))
	for level, t := range set {
		out[protocol.LevelKey(level)] = t
	}
	return out
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}
