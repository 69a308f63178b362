// Package handler is the HTTP transport: it resolves ids from the
// request, invokes exactly one core operation, and maps typed failures
// onto status codes. No business rules live here.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/domain"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/identity"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/leaderboard"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/postgres"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/progress"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/relationship"
	"github.com/martinlepro/Server-fusionn-e-donn-et-friend/internal/websocket"
)

// broadcastLimit caps the number of entries pushed over WebSocket after
// a score change.
const broadcastLimit = 10

// Handler provides HTTP handlers for the social and progress API
type Handler struct {
	registry  *identity.Registry
	relations *relationship.Manager
	progress  *progress.Store
	projector *leaderboard.Projector
	hub       *websocket.Hub
	audit     *postgres.AuditLog
	logger    *slog.Logger
}

// NewHandler creates a new HTTP handler. audit may be nil when the
// PostgreSQL sidecar is disabled.
func NewHandler(
	registry *identity.Registry,
	relations *relationship.Manager,
	progressStore *progress.Store,
	projector *leaderboard.Projector,
	hub *websocket.Hub,
	audit *postgres.AuditLog,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		registry:  registry,
		relations: relations,
		progress:  progressStore,
		projector: projector,
		hub:       hub,
		audit:     audit,
		logger:    logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Identities
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateIdentity)
			r.Post("/login", h.Login)
			r.Get("/", h.ListIdentities)

			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", h.GetIdentity)
				r.Put("/name", h.SetDisplayName)
				r.Put("/profile", h.SetProfile)

				// Friend requests and friendships
				r.Post("/requests", h.SendRequest)
				r.Get("/requests", h.ListReceivedRequests)
				r.Post("/requests/{requesterID}/accept", h.AcceptRequest)
				r.Post("/requests/{requesterID}/decline", h.DeclineRequest)
				r.Get("/friends", h.ListFriends)

				// Progress records
				r.Post("/progress", h.CreateProgressRecord)
				r.Get("/progress", h.ListProgressRecords)
			})
		})

		// Progress fields
		r.Route("/progress/{recordID}", func(r chi.Router) {
			r.Get("/", h.GetProgressRecord)
			r.Get("/fields/{field}", h.GetProgressField)
			r.Put("/fields/{field}", h.SetProgressField)
			r.Post("/fields/{field}/rename", h.RenameProgressField)
		})

		// Leaderboard
		r.Get("/leaderboard", h.GetLeaderboard)

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError maps a typed core failure onto a status code
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case domain.IsInvalidArgument(err):
		status = http.StatusBadRequest
	case domain.IsNotFound(err):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		h.logger.Error("request failed", "error", err)
		err = domain.ErrInternalError
	}
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// record appends an audit event, best-effort.
func (h *Handler) record(r *http.Request, event domain.AuditEvent) {
	if h.audit == nil {
		return
	}
	event.Timestamp = time.Now()
	if err := h.audit.RecordEvent(r.Context(), event); err != nil {
		h.logger.Warn("failed to record audit event", "kind", event.Kind, "error", err)
	}
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

type identityRequest struct {
	DisplayName string `json:"display_name"`
}

// CreateIdentity registers a new player
func (h *Handler) CreateIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	summary, err := h.registry.Create(r.Context(), req.DisplayName)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.record(r, domain.AuditEvent{Kind: domain.EventIdentityCreated, ActorID: summary.ID})
	h.writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: summary})
}

// Login resolves a display name to an identity, creating one on first use
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	summary, err := h.registry.FindOrCreate(r.Context(), req.DisplayName)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeSuccess(w, summary)
}

// ListIdentities returns all players
func (h *Handler) ListIdentities(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.registry.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, summaries)
}

// GetIdentity returns one player's full record
func (h *Handler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	ident, err := h.registry.Describe(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, ident)
}

// SetDisplayName renames a player
func (h *Handler) SetDisplayName(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	if err := h.registry.SetDisplayName(r.Context(), chi.URLParam(r, "userID"), req.DisplayName); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "updated"})
}

// SetProfile replaces a player's profile metadata
func (h *Handler) SetProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.Profile
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	if err := h.registry.SetProfile(r.Context(), chi.URLParam(r, "userID"), req); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "updated"})
}

type sendRequestBody struct {
	To string `json:"to"`
}

// SendRequest sends a friend request
func (h *Handler) SendRequest(w http.ResponseWriter, r *http.Request) {
	var req sendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	from := chi.URLParam(r, "userID")
	if err := h.relations.SendRequest(r.Context(), from, req.To); err != nil {
		h.writeError(w, err)
		return
	}

	h.record(r, domain.AuditEvent{Kind: domain.EventRequestSent, ActorID: from, SubjectID: req.To})
	h.writeSuccess(w, map[string]string{"status": "sent"})
}

// ListReceivedRequests returns the pending requests a player received
func (h *Handler) ListReceivedRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.relations.ListReceived(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, requests)
}

// AcceptRequest accepts a pending friend request
func (h *Handler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	requesterID := chi.URLParam(r, "requesterID")
	if err := h.relations.Accept(r.Context(), userID, requesterID); err != nil {
		h.writeError(w, err)
		return
	}

	h.record(r, domain.AuditEvent{Kind: domain.EventRequestAccepted, ActorID: userID, SubjectID: requesterID})
	h.writeSuccess(w, map[string]string{"status": "accepted"})
}

// DeclineRequest declines a pending friend request
func (h *Handler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	requesterID := chi.URLParam(r, "requesterID")
	if err := h.relations.Decline(r.Context(), userID, requesterID); err != nil {
		h.writeError(w, err)
		return
	}

	h.record(r, domain.AuditEvent{Kind: domain.EventRequestDeclined, ActorID: userID, SubjectID: requesterID})
	h.writeSuccess(w, map[string]string{"status": "declined"})
}

// ListFriends returns a player's friends
func (h *Handler) ListFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := h.relations.ListFriends(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, friends)
}

// CreateProgressRecord creates a new game profile for a player
func (h *Handler) CreateProgressRecord(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	ownerID := chi.URLParam(r, "userID")
	recordID, err := h.progress.CreateRecord(r.Context(), ownerID, req.DisplayName)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.record(r, domain.AuditEvent{Kind: domain.EventRecordCreated, ActorID: ownerID, SubjectID: recordID})
	h.writeJSON(w, http.StatusCreated, APIResponse{Success: true, Data: map[string]string{"record_id": recordID}})
}

// ListProgressRecords returns the ids and names of a player's records
func (h *Handler) ListProgressRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.progress.ListOwned(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, records)
}

// GetProgressRecord returns a record's whole field map
func (h *Handler) GetProgressRecord(w http.ResponseWriter, r *http.Request) {
	record, err := h.progress.GetRecord(r.Context(), chi.URLParam(r, "recordID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, record)
}

// GetProgressField returns one progress field
func (h *Handler) GetProgressField(w http.ResponseWriter, r *http.Request) {
	value, err := h.progress.GetField(r.Context(), chi.URLParam(r, "recordID"), chi.URLParam(r, "field"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, map[string]domain.Value{"value": value})
}

type setFieldBody struct {
	Value *domain.Value `json:"value"`
}

// SetProgressField writes one progress field
func (h *Handler) SetProgressField(w http.ResponseWriter, r *http.Request) {
	var req setFieldBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// A null or non-scalar value decodes to ErrInvalidFieldValue
		if errors.Is(err, domain.ErrInvalidFieldValue) {
			h.writeError(w, domain.ErrInvalidFieldValue)
			return
		}
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}
	if req.Value == nil {
		h.writeError(w, domain.ErrInvalidFieldValue)
		return
	}

	recordID := chi.URLParam(r, "recordID")
	field := chi.URLParam(r, "field")
	if err := h.progress.SetField(r.Context(), recordID, field, *req.Value); err != nil {
		h.writeError(w, err)
		return
	}

	h.record(r, domain.AuditEvent{
		Kind:    domain.EventFieldSet,
		ActorID: recordID,
		Field:   field,
		Payload: map[string]interface{}{"value": req.Value},
	})
	h.broadcastRanking(r, field, *req.Value)
	h.writeSuccess(w, map[string]string{"status": "updated"})
}

type renameFieldBody struct {
	NewName string `json:"new_name"`
}

// RenameProgressField moves a field's value to a new name
func (h *Handler) RenameProgressField(w http.ResponseWriter, r *http.Request) {
	var req renameFieldBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, domain.ErrInvalidRequest)
		return
	}

	recordID := chi.URLParam(r, "recordID")
	field := chi.URLParam(r, "field")
	if err := h.progress.RenameField(r.Context(), recordID, field, req.NewName); err != nil {
		h.writeError(w, err)
		return
	}

	h.record(r, domain.AuditEvent{
		Kind:    domain.EventFieldRenamed,
		ActorID: recordID,
		Field:   field,
		Payload: map[string]interface{}{"new_name": req.NewName},
	})
	h.writeSuccess(w, map[string]string{"status": "renamed"})
}

// GetLeaderboard returns the ranked view over progress records
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.projector.Top(r.Context(), field, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeSuccess(w, entries)
}

// broadcastRanking pushes the refreshed top of a field's ranking to
// WebSocket subscribers after a numeric write.
func (h *Handler) broadcastRanking(r *http.Request, field string, value domain.Value) {
	if h.hub == nil || value.Kind != domain.KindNumber {
		return
	}
	if h.hub.GetSubscriberCount(field) == 0 {
		return
	}
	entries, err := h.projector.Top(r.Context(), field, broadcastLimit)
	if err != nil {
		h.logger.Warn("failed to project leaderboard for broadcast", "field", field, "error", err)
		return
	}
	h.hub.BroadcastLeaderboardUpdate(field, entries)
}
