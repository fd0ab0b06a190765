package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/ecg-monitor/backend/internal/config"
	"github.com/ecg-monitor/backend/internal/ecg"
	"github.com/ecg-monitor/backend/internal/report"
)

var upgrader = websocket.Upgrader{
	// The monitor serves a LAN dashboard; origin enforcement would only
	// lock out the bedside displays.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	cfg         *config.Config
	session     *ecg.Session
	broadcaster *Broadcaster
	sourceName  string

	metricsHandler http.Handler
	frontend       http.Handler
	shutdown       func()
}

func NewServer(cfg *config.Config, session *ecg.Session, broadcaster *Broadcaster, sourceName string) *Server {
	return &Server{
		cfg:         cfg,
		session:     session,
		broadcaster: broadcaster,
		sourceName:  sourceName,
	}
}

// SetMetricsHandler mounts the prometheus handler at /metrics.
// Must be called before SetupRoutes.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.metricsHandler = h
}

// SetFrontend mounts a handler for the dashboard at /.
// Must be called before SetupRoutes.
func (s *Server) SetFrontend(h http.Handler) {
	s.frontend = h
}

// SetShutdown registers the function invoked by an authorized
// POST /api/shutdown. Must be called before SetupRoutes.
func (s *Server) SetShutdown(fn func()) {
	s.shutdown = fn
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/data", s.handleData)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/api/reset", s.handleReset)
	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	if s.metricsHandler != nil {
		mux.Handle("/metrics", s.metricsHandler)
	}
	if s.frontend != nil {
		mux.Handle("/", s.frontend)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	log.Printf("WebSocket client connected: %s", r.RemoteAddr)
	c := s.broadcaster.AddClient(conn)

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BuildDataPayload(snap))
}

type healthResponse struct {
	OK            bool    `json:"ok"`
	Source        string  `json:"source"`
	BPM           int     `json:"bpm"`
	CPUPercent    float64 `json:"cpu_percent,omitempty"`
	MemoryPercent float64 `json:"memory_percent,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		OK:     true,
		Source: s.sourceName,
		BPM:    s.session.CurrentBPM(),
	}

	// Host pressure readings are best-effort; a probe failure is not a
	// health failure.
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		resp.CPUPercent = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemoryPercent = vm.UsedPercent
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

type eventsResponse struct {
	Active []string            `json:"active"`
	Counts map[string]uint64   `json:"counts"`
	Shares []report.EventShare `json:"shares"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()
	active := snap.ActiveEvents
	if active == nil {
		active = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(eventsResponse{
		Active: active,
		Counts: snap.EventCounts,
		Shares: report.Shares(snap.EventCounts),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.session.Reset()
	s.broadcaster.NotifyReset()
	log.Println("Session reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	data, err := report.Build(s.session.Snapshot())
	if err != nil {
		http.Error(w, fmt.Sprintf("building report: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="ecg_report_bundle.zip"`)
	w.Write(data)
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.authorize(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	log.Println("Shutdown requested via API")
	w.WriteHeader(http.StatusNoContent)
	if s.shutdown != nil {
		s.shutdown()
	}
}

// authorize checks the shutdown token. No configured token means the route
// is disabled outright, not open.
func (s *Server) authorize(r *http.Request) bool {
	token := s.cfg.Server.AuthToken
	if token == "" {
		return false
	}
	if r.Header.Get("X-ECG-Token") == token {
		return true
	}
	return r.URL.Query().Get("token") == token
}

// Run serves until ctx is cancelled, then drains with a 5 second grace
// period.
func (s *Server) Run(ctx context.Context, mux *http.ServeMux) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
