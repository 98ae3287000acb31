package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Jisangain/find-my-br-train/internal/metrics"
	"github.com/Jisangain/find-my-br-train/internal/publisher"
	"github.com/Jisangain/find-my-br-train/internal/tracker"
)

// ErrorResponse is the JSON error response structure
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// EventPublisher publishes accepted consensus updates to the event bus.
type EventPublisher interface {
	Publish(ev publisher.PositionEvent) error
}

// PositionHandler handles HTTP requests for train position reports and queries
type PositionHandler struct {
	store   tracker.Store
	metrics *metrics.Collector
	events  EventPublisher
}

// NewPositionHandler creates a new handler with the given store.
// metrics and events may be nil.
func NewPositionHandler(store tracker.Store, m *metrics.Collector, events EventPublisher) *PositionHandler {
	return &PositionHandler{store: store, metrics: m, events: events}
}

// UpdateRequest is the JSON body for POST /api/update.
// "id" is accepted as a legacy alias for "train_id".
type UpdateRequest struct {
	TrainID  string  `json:"train_id"`
	LegacyID string  `json:"id"`
	UserID   string  `json:"user_id"`
	Time     int64   `json:"time"`
	Position float64 `json:"position"`
}

// UpdateResponse is the JSON response for an accepted report
type UpdateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ReceiveUpdate handles POST /api/update
// Accepts a position report and runs it through bound validation
func (h *PositionHandler) ReceiveUpdate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	trainID := req.TrainID
	if trainID == "" {
		trainID = req.LegacyID
	}
	userID := req.UserID
	if userID == "" {
		userID = "unknown"
	}

	if trainID == "" || req.Time == 0 {
		writeError(w, http.StatusBadRequest, "Missing required fields", nil)
		return
	}
	if req.Position < 0 || req.Position > 150 {
		writeError(w, http.StatusBadRequest, "Invalid position value", nil)
		return
	}

	report := tracker.Report{
		TrainID:   trainID,
		UserID:    userID,
		Position:  req.Position,
		Timestamp: req.Time,
	}

	trusted := tracker.TrustedReporter(userID)
	accepted, message, err := h.store.Push(ctx, report)
	if err != nil {
		log.Printf("push failed: train=%s user=%s: %v", trainID, userID, err)
		writeError(w, http.StatusInternalServerError, "Failed to store position report", nil)
		return
	}
	if !accepted {
		if h.metrics != nil {
			h.metrics.ReportsRejected.WithLabelValues(rejectionReason(message)).Inc()
		}
		writeError(w, http.StatusBadRequest, "Position rejected: "+message, nil)
		return
	}

	if h.metrics != nil {
		source := "user"
		if trusted {
			source = "bot"
		}
		h.metrics.ReportsAccepted.WithLabelValues(source).Inc()
	}
	h.publishUpdate(ctx, trainID)

	writeJSON(w, http.StatusOK, UpdateResponse{Status: "success", Message: message})
}

// publishUpdate emits the current consensus for the train, if any
func (h *PositionHandler) publishUpdate(ctx context.Context, trainID string) {
	if h.events == nil {
		return
	}
	pos, err := h.store.Position(ctx, trainID)
	if err != nil || pos == nil {
		return
	}
	ev := publisher.PositionEvent{
		TrainID:    trainID,
		Position:   pos.Position,
		Timestamp:  pos.Timestamp,
		ActiveUser: pos.ActiveUsers,
		IsLive:     pos.Live,
	}
	if err := h.events.Publish(ev); err != nil {
		log.Printf("event publish failed: train=%s: %v", trainID, err)
	}
}

// GetPositions handles GET /api/positions?trains=a,b,c
// Returns the consensus position for each requested train that has one
func (h *PositionHandler) GetPositions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	raw := r.URL.Query().Get("trains")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Missing trains query parameter", nil)
		return
	}

	ids := make([]string, 0, 8)
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}

	positions, err := h.store.Positions(ctx, ids)
	if err != nil {
		log.Printf("positions lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get positions", nil)
		return
	}

	if h.metrics != nil {
		h.metrics.PositionsServed.Add(float64(len(positions)))
	}
	writeJSON(w, http.StatusOK, positions)
}

// BoundsResponse is the JSON response for GET /api/trains/{trainID}/bounds
type BoundsResponse struct {
	TrainID string          `json:"train_id"`
	Bounds  *tracker.Bounds `json:"bounds"`
	Message string          `json:"message,omitempty"`
}

// GetBounds handles GET /api/trains/{trainID}/bounds
func (h *PositionHandler) GetBounds(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	trainID := chi.URLParam(r, "trainID")

	bounds, err := h.store.Bounds(ctx, trainID)
	if err != nil {
		log.Printf("bounds lookup failed: train=%s: %v", trainID, err)
		writeError(w, http.StatusInternalServerError, "Failed to get bounds", nil)
		return
	}

	resp := BoundsResponse{TrainID: trainID, Bounds: bounds}
	if bounds == nil {
		resp.Message = "No bounds set"
	}
	writeJSON(w, http.StatusOK, resp)
}

// rejectionReason maps a rejection message onto a metric label
func rejectionReason(message string) string {
	if strings.Contains(message, "below lower bound") {
		return "lower_bound"
	}
	return "upper_bound"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, details map[string]interface{}) {
	writeJSON(w, status, ErrorResponse{Error: msg, Details: details})
}
