// Package api wires the HTTP surface of the tracker service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Handlers groups the handler set mounted by NewRouter.
type Handlers struct {
	Positions *PositionHandler
	Routes    *RouteHandler
	Reports   *ReportHandler
	Data      *DataHandler
}

// NewRouter builds the chi router with CORS and request logging.
func NewRouter(h Handlers, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Post("/api/update", h.Positions.ReceiveUpdate)
	r.Get("/api/positions", h.Positions.GetPositions)
	r.Get("/api/trains/{trainID}/bounds", h.Positions.GetBounds)

	r.Get("/api/routes/two-train", h.Routes.GetTwoTrainRoutes)
	r.Get("/api/routes/two-train/all", h.Routes.GetAllTwoTrainRoutes)
	r.Post("/api/routes/nearby", h.Routes.FindNearbyRoutes)

	r.Get("/api/live", h.Data.GetLiveTrains)
	r.Get("/api/revision", h.Data.GetRevision)
	r.Get("/api/data", h.Data.GetData)

	r.Post("/api/report-issue", h.Reports.SubmitReport)
	r.Get("/api/report-issue", h.Reports.ListReports)

	r.Get("/health", h.Data.GetHealth)

	// Legacy health check endpoint (kept for backwards compatibility)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
