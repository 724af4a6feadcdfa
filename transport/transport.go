// Package transport exposes the tick engine over HTTP and WebSocket: a
// thin request layer mirroring the teacher's APINode handler shape (decode,
// validate, call the core, writeJSON) with chi for routing and
// gorilla/websocket for the spectator stream.
package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/adamant-labs/fragment/engine"
	"github.com/adamant-labs/fragment/fragconf"
	"github.com/adamant-labs/fragment/persistence"
	"github.com/adamant-labs/fragment/scheduler"
	"github.com/adamant-labs/fragment/shard"
)

// Server wires the tick engine, scheduler and persistence port to HTTP
// handlers.
type Server struct {
	conf  fragconf.Config
	eng   *engine.TickEngine
	sched *scheduler.Driver
	store persistence.Port
	log   *slog.Logger

	upgrader websocket.Upgrader
}

// New builds a Server. Call Handler to obtain the chi router to serve.
func New(conf fragconf.Config, eng *engine.TickEngine, sched *scheduler.Driver, store persistence.Port) *Server {
	return &Server{
		conf:  conf,
		eng:   eng,
		sched: sched,
		store: store,
		log:   conf.Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the full request router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Post("/join", s.handleJoin)
	r.Post("/command", s.handleCommand)
	r.Get("/view/{processID}", s.handleProcessView)
	r.Get("/spectate/{shardID}", s.handleSpectate)
	r.Get("/leaderboard", s.handleLeaderboard)
	r.Get("/replay/{shardID}", s.handleReplayTicks)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type joinResponse struct {
	Token     uuid.UUID `json:"token"`
	ProcessID uuid.UUID `json:"process_id"`
}

// handleJoin spawns a new process and returns its session token.
// CapacityExceeded is mapped to 503, per spec.md §7.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	token, processID, ok, err := s.eng.JoinProcess(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "process capacity exceeded", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusCreated, joinResponse{Token: token, ProcessID: processID})
}

type commandRequest struct {
	Token uuid.UUID `json:"token"`
	Kind  string    `json:"kind"`
	Arg   string    `json:"arg"`
}

// handleCommand resolves the caller's token and buffers a command. An
// unknown or expired token, or an invalid command kind/digit, is a silent
// no-op per spec.md §7 — the request still returns 202.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var req commandRequest
	if err := dec.Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	processID, ok := s.eng.ResolveToken(req.Token, int64(s.conf.TokenTTLSeconds))
	if !ok {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "ignored"})
		return
	}
	s.eng.BufferCommand(processID, shard.Command{Kind: shard.CommandKind(req.Kind), Arg: req.Arg})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "buffered"})
}

// handleProcessView renders and returns processID's local grid, draining
// its event queue.
func (s *Server) handleProcessView(w http.ResponseWriter, r *http.Request) {
	processID, err := uuid.Parse(chi.URLParam(r, "processID"))
	if err != nil {
		http.Error(w, "invalid process id", http.StatusBadRequest)
		return
	}
	view, ok := s.eng.RenderProcessView(processID)
	if !ok {
		writeJSON(w, http.StatusOK, engine.ProcessView{})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleSpectate upgrades to a WebSocket and subscribes the connection to
// shardID's spectator broadcaster until it disconnects or a send fails.
func (s *Server) handleSpectate(w http.ResponseWriter, r *http.Request) {
	shardID, err := uuid.Parse(chi.URLParam(r, "shardID"))
	if err != nil {
		http.Error(w, "invalid shard id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := &wsSubscriber{conn: conn}
	unsubscribe := s.sched.Subscribe(shardID, sub)
	defer unsubscribe()

	// Block on client reads; any read error (close, timeout) ends the
	// subscription. We don't expect messages from spectators.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// handleLeaderboard returns the survivals/deaths/ghosts standings.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Leaderboard(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleReplayTicks returns a page of recorded ticks for shardID, starting
// at ?start=N (default 0) and capped at ?limit=N (default 100).
func (s *Server) handleReplayTicks(w http.ResponseWriter, r *http.Request) {
	shardID, err := uuid.Parse(chi.URLParam(r, "shardID"))
	if err != nil {
		http.Error(w, "invalid shard id", http.StatusBadRequest)
		return
	}
	start := parseIntDefault(r.URL.Query().Get("start"), 0)
	limit := parseIntDefault(r.URL.Query().Get("limit"), 100)

	ticks, err := s.store.GetReplayTicks(r.Context(), shardID, int64(start), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ticks)
}

func parseIntDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// wsSubscriber adapts a gorilla/websocket connection to scheduler.Subscriber.
type wsSubscriber struct {
	conn *websocket.Conn
}

func (w *wsSubscriber) Send(ctx context.Context, view engine.SpectatorView) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(time.Second)
	}
	if err := w.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return w.conn.WriteJSON(view)
}
