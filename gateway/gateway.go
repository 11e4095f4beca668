// Package gateway exposes the mesh over HTTP: a small JSON API for messages,
// operators and escalations, plus a websocket stream of workflow events for
// dashboards.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/hupe1980/supportmesh"
	"github.com/hupe1980/supportmesh/bus"
	"github.com/hupe1980/supportmesh/core"
	"github.com/hupe1980/supportmesh/logging"
)

// streamedEvents are the broker events forwarded on the websocket. Task
// events are internal plumbing and stay off the wire.
var streamedEvents = []core.EventType{
	core.EventNewUserMessage,
	core.EventSentimentRecognized,
	core.EventIntentRecognized,
	core.EventEscalationComplete,
	core.EventOperatorAssigned,
	core.EventEscalationResolvedResult,
	core.EventOperatorNotification,
	core.EventAgentResponse,
	core.EventAgentError,
	core.EventConversationEnd,
	core.EventTranscriptSaved,
}

// Options configures the gateway Handler.
type Options struct {
	Logger logging.Logger
}

// Handler serves the HTTP API for a Mesh.
type Handler struct {
	mesh     *supportmesh.Mesh
	logger   logging.Logger
	upgrader websocket.Upgrader
}

// New constructs the gateway handler.
func New(mesh *supportmesh.Mesh, optFns ...func(o *Options)) *Handler {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Handler{
		mesh:   mesh,
		logger: opts.Logger,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Router wires the API routes and returns the root handler.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Post("/messages", h.handleSubmitMessage)
		api.Get("/sessions/{sessionID}", h.handleGetSession)
		api.Post("/operators/available", h.handleOperatorAvailable)
		api.Post("/escalations/resolve", h.handleResolveEscalation)
		api.Get("/escalations", h.handleQueueStatus)
		api.Get("/stats", h.handleStats)
		api.Get("/events/ws", h.handleEventStream)
	})

	return r
}

func (h *Handler) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID     string `json:"session_id"`
		Text          string `json:"text"`
		CustomerEmail string `json:"customer_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.SessionID == "" {
		payload.SessionID = core.NewID()
	}
	if payload.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	h.mesh.SubmitMessage(payload.SessionID, payload.Text, payload.CustomerEmail)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"session_id": payload.SessionID,
		"status":     "queued",
	})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	snapshot, ok := h.mesh.Session(sessionID)
	if !ok {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleOperatorAvailable(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		OperatorID   string `json:"operator_id"`
		OperatorName string `json:"operator_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.OperatorID == "" {
		respondError(w, http.StatusBadRequest, "operator_id is required")
		return
	}

	h.mesh.OperatorAvailable(payload.OperatorID, payload.OperatorName)

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) handleResolveEscalation(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID       string `json:"session_id"`
		OperatorID      string `json:"operator_id"`
		ResolutionNotes string `json:"resolution_notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.SessionID == "" || payload.OperatorID == "" {
		respondError(w, http.StatusBadRequest, "session_id and operator_id are required")
		return
	}

	h.mesh.ResolveEscalation(payload.SessionID, payload.OperatorID, payload.ResolutionNotes)

	respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) handleQueueStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.mesh.Escalations().Status())
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.mesh.Stats())
}

// handleEventStream upgrades to a websocket and forwards workflow events
// until the client disconnects. Broker handlers must not block, so writes go
// through a buffered channel; a slow client gets dropped, not waited for.
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	stream := newEventStream(conn)
	subs := make([]*bus.Subscription, 0, len(streamedEvents))
	for _, eventType := range streamedEvents {
		subs = append(subs, h.mesh.Bus().Subscribe(eventType, stream.forward))
	}
	defer func() {
		for _, sub := range subs {
			h.mesh.Bus().Unsubscribe(sub)
		}
		stream.close()
	}()

	h.logger.Info("event stream opened", "remote", r.RemoteAddr)

	go stream.writeLoop()

	// Drain reads so close frames and pings are processed; exit on error.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.logger.Info("event stream closed", "remote", r.RemoteAddr)
			return
		}
	}
}

var errStreamFull = errors.New("event stream buffer full")

// eventStream decouples broker delivery from socket writes.
type eventStream struct {
	conn *websocket.Conn
	ch   chan core.Event
	once sync.Once
	done chan struct{}
}

func newEventStream(conn *websocket.Conn) *eventStream {
	return &eventStream{
		conn: conn,
		ch:   make(chan core.Event, 64),
		done: make(chan struct{}),
	}
}

func (s *eventStream) forward(event core.Event) error {
	select {
	case s.ch <- event:
		return nil
	case <-s.done:
		return nil
	default:
		return errStreamFull
	}
}

func (s *eventStream) writeLoop() {
	for {
		select {
		case event := <-s.ch:
			if err := s.conn.WriteJSON(event); err != nil {
				s.close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *eventStream) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
