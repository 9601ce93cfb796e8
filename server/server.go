package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/shahank42/hyper-typer/game"
	"github.com/shahank42/hyper-typer/logger"
	"github.com/shahank42/hyper-typer/monitor"
	"github.com/shahank42/hyper-typer/passages"
)

// GameServer hosts the REST mutation surface and the websocket live
// subscription over the game service.
type GameServer struct {
	addr     string
	service  *game.Service
	hub      *Hub
	monitor  *monitor.Monitor
	upgrader websocket.Upgrader
}

// NewGameServer wires the HTTP surface. The monitor may be nil (tests).
func NewGameServer(addr string, service *game.Service, mon *monitor.Monitor) *GameServer {
	return &GameServer{
		addr:    addr,
		service: service,
		hub:     NewHub(service),
		monitor: mon,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Router builds the route table. Exposed separately from Start for tests.
func (s *GameServer) Router() http.Handler {
	r := mux.NewRouter()

	r.Use(s.corsMiddleware)
	r.Use(s.metricsMiddleware)

	r.HandleFunc("/api/rooms", s.handleCreateRoom).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/rooms/{roomId}", s.handleGetRoom).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/rooms/{roomId}/join", s.handleJoin).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/rooms/{roomId}/start", s.handleStart).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/rooms/{roomId}/vote/replay", s.handleVoteReplay).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/rooms/{roomId}/vote/exit", s.handleVoteExit).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/games/{gameId}/progress", s.handleProgress).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/games/{gameId}/finish", s.handleFinish).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/ws/{roomId}", s.handleWebSocket)

	return r
}

// Start blocks serving HTTP on the configured address.
func (s *GameServer) Start() error {
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, s.Router())
}

// Shutdown stops the live-subscription watchers.
func (s *GameServer) Shutdown() {
	s.hub.Close()
}

func (s *GameServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")

		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *GameServer) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.monitor == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		next.ServeHTTP(w, r)
		s.monitor.IncRequests()
		s.monitor.ObserveRequestLatency(time.Since(start))
	})
}

type createRoomRequest struct {
	HostID  string `json:"hostId"`
	Passage string `json:"passage"`
}

func (s *GameServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.HostID == "" {
		writeBadRequest(w, "hostId is required")
		return
	}
	if req.Passage == "" {
		req.Passage = passages.PickRandom("")
	}

	roomID, err := s.service.Create(r.Context(), req.HostID, req.Passage)
	if err != nil {
		writeError(w, err)
		return
	}
	if s.monitor != nil {
		s.monitor.IncRoomsCreated()
	}
	writeJSON(w, http.StatusCreated, map[string]string{"roomId": roomID})
}

func (s *GameServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	snapshot, err := s.service.Get(r.Context(), roomID)
	if err != nil {
		writeError(w, err)
		return
	}
	if snapshot == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

type joinRequest struct {
	GuestID string `json:"guestId"`
	Name    string `json:"name"`
}

func (s *GameServer) handleJoin(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	var req joinRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.GuestID == "" || req.Name == "" {
		writeBadRequest(w, "guestId and name are required")
		return
	}

	playerID, err := s.service.Join(r.Context(), roomID, req.GuestID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"playerId": playerID})
}

type startRequest struct {
	GuestID string `json:"guestId"`
}

func (s *GameServer) handleStart(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	var req startRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.service.Start(r.Context(), roomID, req.GuestID); err != nil {
		writeError(w, err)
		return
	}
	if s.monitor != nil {
		s.monitor.IncRacesStarted()
	}
	w.WriteHeader(http.StatusNoContent)
}

type voteReplayRequest struct {
	GuestID string `json:"guestId"`
	Passage string `json:"passage"`
}

func (s *GameServer) handleVoteReplay(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	var req voteReplayRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Passage == "" {
		req.Passage = passages.PickRandom("")
	}

	if err := s.service.VoteReplay(r.Context(), roomID, req.GuestID, req.Passage); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type voteExitRequest struct {
	GuestID string `json:"guestId"`
}

func (s *GameServer) handleVoteExit(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	var req voteExitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.service.VoteExit(r.Context(), roomID, req.GuestID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type progressRequest struct {
	GuestID         string `json:"guestId"`
	TypedLength     int    `json:"typedLength"`
	TotalKeystrokes int    `json:"totalKeystrokes"`
	Errors          int    `json:"errors"`
}

func (s *GameServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameId"]

	var req progressRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.service.UpdateProgress(r.Context(), gameID, req.GuestID,
		req.TypedLength, req.TotalKeystrokes, req.Errors)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type finishRequest struct {
	GuestID string `json:"guestId"`
}

func (s *GameServer) handleFinish(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameId"]

	var req finishRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.service.FinishPlayer(r.Context(), gameID, req.GuestID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}

	s.hub.Subscribe(roomID, conn)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Errorf("Failed to encode response: %v", err)
	}
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": message})
}

// writeError maps coded game errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch game.CodeOf(err) {
	case game.CodeNotFound:
		status = http.StatusNotFound
	case game.CodeUnauthorized:
		status = http.StatusForbidden
	case game.CodeInvalidState, game.CodeFull, game.CodeDuplicate:
		status = http.StatusConflict
	}

	body := map[string]string{"error": err.Error()}
	if code := game.CodeOf(err); code != "" {
		body["code"] = string(code)
	}
	writeJSON(w, status, body)
}
