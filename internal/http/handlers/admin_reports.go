package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
	"github.com/Yardman-Mzansi/potholematic/internal/reports"
	"github.com/Yardman-Mzansi/potholematic/pkg/logging"
)

type reportReader interface {
	Get(ctx context.Context, id string) (conversation.Report, error)
	ListRecent(ctx context.Context, limit int) ([]conversation.Report, error)
}

// AdminReportsHandler exposes submitted pothole reports to the roads team.
type AdminReportsHandler struct {
	repo   reportReader
	logger *logging.Logger
}

// NewAdminReportsHandler creates a new admin reports handler.
func NewAdminReportsHandler(repo reportReader, logger *logging.Logger) *AdminReportsHandler {
	if repo == nil {
		panic("handlers: report repository cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminReportsHandler{repo: repo, logger: logger}
}

// ReportResponse is a report in API responses.
type ReportResponse struct {
	ID           string  `json:"id"`
	SenderID     string  `json:"sender_id"`
	Description  string  `json:"description"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ImageLocator string  `json:"image_locator"`
	CreatedAt    string  `json:"created_at"`
}

// ReportsListResponse is the body of GET /admin/reports.
type ReportsListResponse struct {
	Reports []ReportResponse `json:"reports"`
	Count   int              `json:"count"`
}

// ListReports handles GET /admin/reports?limit=N, newest first.
func (h *AdminReportsHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSONError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	items, err := h.repo.ListRecent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list reports", "error", err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := ReportsListResponse{Reports: make([]ReportResponse, 0, len(items))}
	for _, item := range items {
		resp.Reports = append(resp.Reports, toReportResponse(item))
	}
	resp.Count = len(resp.Reports)
	writeJSON(w, http.StatusOK, resp)
}

// GetReport handles GET /admin/reports/{reportID}.
func (h *AdminReportsHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	reportID := strings.TrimSpace(chi.URLParam(r, "reportID"))
	if reportID == "" {
		writeJSONError(w, "missing reportID", http.StatusBadRequest)
		return
	}

	report, err := h.repo.Get(r.Context(), reportID)
	if errors.Is(err, reports.ErrNotFound) {
		writeJSONError(w, "report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to get report", "report_id", reportID, "error", err)
		writeJSONError(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toReportResponse(report))
}

func toReportResponse(report conversation.Report) ReportResponse {
	return ReportResponse{
		ID:           report.ID,
		SenderID:     report.SenderID,
		Description:  report.Description,
		Latitude:     report.Location.Latitude,
		Longitude:    report.Location.Longitude,
		ImageLocator: report.ImageLocator,
		CreatedAt:    report.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
