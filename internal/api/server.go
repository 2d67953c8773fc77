// Package api provides an optional HTTP status API and WebSocket event stream
// for the MacroPad runtime.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"macropad/internal/config"
	"macropad/internal/profile"
	"macropad/internal/protocol"
	"macropad/internal/switcher"
)

// Device is the part of the switcher the API drives
type Device interface {
	Snapshot() switcher.Snapshot
	Registry() *profile.Registry
	PinApp(key profile.Key) error
	EnableAutoSwitch()
	HostCommand(cmd protocol.Command)
}

// Server provides the HTTP API
type Server struct {
	configMgr *config.Manager
	device    Device
	hub       *Hub

	hubOnce sync.Once

	mu    sync.RWMutex
	token string
}

// NewServer creates a new API server
func NewServer(configMgr *config.Manager, device Device) *Server {
	s := &Server{
		configMgr: configMgr,
		device:    device,
		token:     configMgr.Get().API.Token,
	}
	s.hub = newHub(s)
	configMgr.RegisterChangeCallback(s.reloadConfig)
	return s
}

// reloadConfig picks up a changed API token without restarting the listener.
func (s *Server) reloadConfig() {
	token := s.configMgr.Get().API.Token
	s.mu.Lock()
	changed := s.token != token
	s.token = token
	s.mu.Unlock()
	if changed {
		log.Printf("API: Token updated")
	}
}

func (s *Server) apiToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Handler returns the API routes with logging, recovery and auth applied.
// The first call starts the WebSocket hub.
func (s *Server) Handler() http.Handler {
	s.hubOnce.Do(func() { go s.hub.run() })

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/apps", s.handleApps)
	mux.HandleFunc("/api/app", s.handleApp)
	mux.HandleFunc("/api/host", s.handleHost)
	mux.HandleFunc("/ws", s.hub.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	return s.authMiddleware(s.recoverMiddleware(mux))
}

// Start serves the API on localhost until ctx is cancelled
func (s *Server) Start(ctx context.Context, port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("API: Failed to listen on %s: %v", addr, err)
		return err
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
		s.hub.stop()
	}()

	log.Printf("API: Listening on %s", addr)
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("API: Server stopped: %v", err)
		return err
	}
	return nil
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("API: Recovered panic: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the API token if configured. WebSocket clients may pass
// it as the token query parameter.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		token := s.apiToken()
		if r.URL.Path == "/health" || token == "" {
			next.ServeHTTP(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+token && r.URL.Query().Get("token") != token {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	Mode        string                 `json:"mode"`
	TargetMode  string                 `json:"target_mode"`
	AutoSwitch  bool                   `json:"auto_switch"`
	CurrentApp  string                 `json:"current_app,omitempty"`
	TargetApp   string                 `json:"target_app"`
	AppLabel    string                 `json:"app_label"`
	Pressed     []int                  `json:"pressed"`
	Focus       *protocol.FocusPayload `json:"focus,omitempty"`
	Browse      []string               `json:"browse"`
	BrowseIndex int                    `json:"browse_index"`
}

// AppInfo is one entry of GET /api/apps
type AppInfo struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Platform string `json:"platform"`
	App      string `json:"app"`
}

func (s *Server) status() StatusResponse {
	snap := s.device.Snapshot()
	reg := s.device.Registry()

	resp := StatusResponse{
		Mode:        snap.CurrentMode.String(),
		TargetMode:  snap.TargetMode.String(),
		AutoSwitch:  snap.AutoSwitch,
		TargetApp:   snap.TargetApp.String(),
		AppLabel:    snap.AppLabel,
		Pressed:     snap.PressedKeys(),
		BrowseIndex: snap.BrowseIndex,
	}
	if resp.Pressed == nil {
		resp.Pressed = []int{}
	}
	if snap.CurrentApp != nil {
		resp.CurrentApp = snap.CurrentApp.String()
	}
	if snap.Focus.ProcessName != "" {
		resp.Focus = &protocol.FocusPayload{Name: snap.Focus.ProcessName, Platform: string(snap.Focus.Platform)}
	}
	for _, e := range snap.Browse {
		resp.Browse = append(resp.Browse, reg.BrowseLabel(e))
	}
	return resp
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.status())
}

// handleApps handles GET /api/apps
func (s *Server) handleApps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	apps := []AppInfo{}
	for _, p := range s.device.Registry().Profiles() {
		apps = append(apps, AppInfo{
			Key:      p.Key.String(),
			Name:     p.Name,
			Platform: string(p.Key.Platform),
			App:      p.Key.App,
		})
	}
	writeJSON(w, http.StatusOK, apps)
}

// handleApp handles POST /api/app?key=<platform-App|auto>
func (s *Server) handleApp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	raw := r.URL.Query().Get("key")
	if raw == "" {
		http.Error(w, "Missing key parameter", http.StatusBadRequest)
		return
	}
	if raw == "auto" {
		log.Printf("API: Re-enabling auto switch (request from %s)", r.RemoteAddr)
		s.device.EnableAutoSwitch()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "key": "auto"})
		return
	}

	key, err := profile.ParseKey(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.device.PinApp(key); err != nil {
		log.Printf("API: Pin error: %v", err)
		status := http.StatusInternalServerError
		if errors.Is(err, switcher.ErrUnknownApp) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "key": key.String()})
}

// handleHost handles POST /api/host?command=sleep|wake
func (s *Server) handleHost(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cmd := protocol.Command(r.URL.Query().Get("command"))
	if cmd != protocol.CommandSleep && cmd != protocol.CommandWake {
		http.Error(w, "command must be sleep or wake", http.StatusBadRequest)
		return
	}
	s.device.HostCommand(cmd)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "command": string(cmd)})
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("API: Failed to encode response: %v", err)
	}
}

// ModeChanged broadcasts a mode transition
func (s *Server) ModeChanged(from, to switcher.Mode) {
	s.hub.Broadcast(protocol.Message{
		Type:    protocol.TypeModeChange,
		Payload: protocol.ModeChangePayload{From: from.String(), To: to.String()},
	})
}

// AppLoaded broadcasts a profile load
func (s *Server) AppLoaded(l switcher.AppLoad) {
	s.hub.Broadcast(protocol.Message{
		Type: protocol.TypeAppLoaded,
		Payload: protocol.AppLoadedPayload{
			Key:      l.Key.String(),
			Label:    l.Label,
			Fallback: l.Fallback,
			Labels:   l.Labels[:],
		},
	})
}

// FocusReported broadcasts a host focus report
func (s *Server) FocusReported(r protocol.FocusReport) {
	s.hub.Broadcast(protocol.Message{
		Type:    protocol.TypeFocus,
		Payload: protocol.FocusPayload{Name: r.ProcessName, Platform: string(r.Platform)},
	})
}
