package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/Jisangain/find-my-br-train/internal/timetable"
	"github.com/Jisangain/find-my-br-train/internal/tracker"
)

// DataHandler handles dataset, live listing and health endpoints
type DataHandler struct {
	data    *timetable.Dataset
	store   tracker.Store
	backend string
}

// NewDataHandler creates a new handler over the loaded dataset and store
func NewDataHandler(data *timetable.Dataset, store tracker.Store, backend string) *DataHandler {
	return &DataHandler{data: data, store: store, backend: backend}
}

// GetRevision handles GET /api/revision
func (h *DataHandler) GetRevision(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"revision": h.data.Revision})
}

// GetData handles GET /api/data
// Serves the full dataset document as loaded from disk
func (h *DataHandler) GetData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(h.data.Raw)
}

// LiveTrain is one entry in the live trains listing
type LiveTrain struct {
	TrainID    string  `json:"train_id"`
	TrainName  string  `json:"train_name"`
	Position   float64 `json:"position"`
	Timestamp  int64   `json:"timestamp"`
	AgeSeconds int64   `json:"age_seconds"`
	Status     string  `json:"status"` // "confirmed" or "unconfirmed"
	ActiveUser int     `json:"active_user"`
}

// LiveTrainsResponse is the JSON response for GET /api/live
type LiveTrainsResponse struct {
	Total  int         `json:"total"`
	Trains []LiveTrain `json:"trains"`
}

// GetLiveTrains handles GET /api/live
// Lists trains with a recent consensus, freshest first
func (h *DataHandler) GetLiveTrains(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ids, err := h.store.TrainsWithHistory(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list live trains", nil)
		return
	}

	positions, err := h.store.Positions(ctx, ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list live trains", nil)
		return
	}

	now := time.Now().Unix()
	trains := make([]LiveTrain, 0, len(positions))
	for id, pos := range positions {
		if pos == nil {
			continue
		}
		// The headline sample matching the unconfirmed one means the
		// consensus was served from the unconfirmed tier.
		status := "confirmed"
		if pos.Unconfirmed != nil &&
			pos.Unconfirmed.Position == pos.Position &&
			pos.Unconfirmed.Timestamp == pos.Timestamp {
			status = "unconfirmed"
		}
		trains = append(trains, LiveTrain{
			TrainID:    id,
			TrainName:  h.data.TrainName(id),
			Position:   pos.Position,
			Timestamp:  pos.Timestamp,
			AgeSeconds: now - pos.Timestamp,
			Status:     status,
			ActiveUser: pos.ActiveUsers,
		})
	}
	sort.Slice(trains, func(i, j int) bool {
		if trains[i].Timestamp != trains[j].Timestamp {
			return trains[i].Timestamp > trains[j].Timestamp
		}
		return trains[i].TrainID < trains[j].TrainID
	})

	writeJSON(w, http.StatusOK, LiveTrainsResponse{Total: len(trains), Trains: trains})
}

// GetHealth handles GET /health
func (h *DataHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	if !h.store.Healthy(ctx) {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	activeTrains := 0
	if ids, err := h.store.ActiveTrains(ctx); err == nil {
		activeTrains = len(ids)
	}
	withHistory := 0
	if ids, err := h.store.TrainsWithHistory(ctx); err == nil {
		withHistory = len(ids)
	}

	writeJSON(w, code, map[string]interface{}{
		"status":              status,
		"backend":             h.backend,
		"timestamp":           time.Now().Unix(),
		"revision":            h.data.Revision,
		"active_trains":       activeTrains,
		"trains_with_history": withHistory,
	})
}
