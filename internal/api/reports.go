package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/Jisangain/find-my-br-train/internal/reports"
)

// ReportStore defines the interface for issue report persistence
type ReportStore interface {
	Insert(ctx context.Context, r reports.IssueReport) (string, error)
	List(ctx context.Context, limit int) ([]reports.IssueReport, error)
	Summarize(ctx context.Context) (reports.Summary, error)
}

// ReportHandler handles HTTP requests for user-submitted issue reports
type ReportHandler struct {
	store ReportStore
}

// NewReportHandler creates a new handler with the given store
func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// SubmitReport handles POST /api/report-issue
// All fields are optional; whatever the app sends is stored as-is
func (h *ReportHandler) SubmitReport(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var report reports.IssueReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	id, err := h.store.Insert(ctx, report)
	if err != nil {
		log.Printf("issue report insert failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to store issue report", nil)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Issue report received",
		"id":      id,
	})
}

// ListReportsResponse is the JSON response for GET /api/report-issue
type ListReportsResponse struct {
	Summary reports.Summary       `json:"summary"`
	Reports []reports.IssueReport `json:"reports"`
}

// ListReports handles GET /api/report-issue
// Query params: limit (optional, default 100)
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	list, err := h.store.List(ctx, limit)
	if err != nil {
		log.Printf("issue report list failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list issue reports", nil)
		return
	}

	summary, err := h.store.Summarize(ctx)
	if err != nil {
		log.Printf("issue report summary failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to summarize issue reports", nil)
		return
	}

	writeJSON(w, http.StatusOK, ListReportsResponse{Summary: summary, Reports: list})
}
