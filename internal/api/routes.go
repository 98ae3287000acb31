package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Jisangain/find-my-br-train/internal/routes"
	"github.com/Jisangain/find-my-br-train/internal/timetable"
)

// RouteHandler handles HTTP requests for route discovery
type RouteHandler struct {
	data   *timetable.Dataset
	table  *routes.Table
	nearby *routes.NearbyFinder
}

// NewRouteHandler creates a new handler over the precomputed route table
func NewRouteHandler(data *timetable.Dataset, table *routes.Table, nearby *routes.NearbyFinder) *RouteHandler {
	return &RouteHandler{data: data, table: table, nearby: nearby}
}

// RouteOption is a name-expanded two-train route option
type RouteOption struct {
	Train1ID        string `json:"train1_id"`
	Train1Name      string `json:"train1_name"`
	Train2ID        string `json:"train2_id"`
	Train2Name      string `json:"train2_name"`
	InterchangeID   string `json:"interchange_station_id"`
	InterchangeName string `json:"interchange_station_name"`
}

// TwoTrainResponse is the JSON response for GET /api/routes/two-train
type TwoTrainResponse struct {
	FromStation string        `json:"from_station"`
	ToStation   string        `json:"to_station"`
	Routes      []RouteOption `json:"routes"`
}

// AllRoutesResponse is the JSON response for GET /api/routes/two-train/all
type AllRoutesResponse struct {
	TotalRoutes int                      `json:"total_routes"`
	Routes      map[string][]RouteOption `json:"routes"`
}

func (h *RouteHandler) expand(options []routes.Option) []RouteOption {
	out := make([]RouteOption, 0, len(options))
	for _, opt := range options {
		out = append(out, RouteOption{
			Train1ID:        opt.Train1,
			Train1Name:      h.data.TrainName(opt.Train1),
			Train2ID:        opt.Train2,
			Train2Name:      h.data.TrainName(opt.Train2),
			InterchangeID:   opt.Interchange,
			InterchangeName: h.data.StationName(opt.Interchange),
		})
	}
	return out
}

// GetTwoTrainRoutes handles GET /api/routes/two-train?from=&to=
// Returns an empty list when no interchange route exists for the pair
func (h *RouteHandler) GetTwoTrainRoutes(w http.ResponseWriter, r *http.Request) {
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))
	if from == "" || to == "" {
		writeError(w, http.StatusBadRequest, "Missing from or to query parameter", nil)
		return
	}

	resp := TwoTrainResponse{
		FromStation: from,
		ToStation:   to,
		Routes:      h.expand(h.table.Lookup(from, to)),
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAllTwoTrainRoutes handles GET /api/routes/two-train/all
func (h *RouteHandler) GetAllTwoTrainRoutes(w http.ResponseWriter, r *http.Request) {
	expanded := make(map[string][]RouteOption, len(h.table.Routes))
	for pair, options := range h.table.Routes {
		expanded[pair.From+"_"+pair.To] = h.expand(options)
	}

	writeJSON(w, http.StatusOK, AllRoutesResponse{
		TotalRoutes: len(h.table.Routes),
		Routes:      expanded,
	})
}

// NearbyRequest is the JSON body for POST /api/routes/nearby
type NearbyRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// FindNearbyRoutes handles POST /api/routes/nearby
// Finds alternative trains through stations near the requested pair
func (h *RouteHandler) FindNearbyRoutes(w http.ResponseWriter, r *http.Request) {
	var req NearbyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	result, err := h.nearby.Find(req.From, req.To)
	if err != nil {
		var unknown *routes.UnknownStationError
		switch {
		case errors.As(err, &unknown):
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("Station not found: %q", unknown.Input),
				map[string]interface{}{"suggestions": unknown.Suggestions})
		case errors.Is(err, routes.ErrNoCoordinates):
			writeError(w, http.StatusBadRequest, "Station coordinates not available", nil)
		case errors.Is(err, routes.ErrNoDistance):
			writeError(w, http.StatusBadRequest, "Could not calculate distance between stations", nil)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to find nearby routes", nil)
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}
