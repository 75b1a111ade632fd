package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/umarkhanovv/roadwatch/internal/logging"
	"github.com/umarkhanovv/roadwatch/internal/models"
	"github.com/umarkhanovv/roadwatch/internal/reports"
	"github.com/umarkhanovv/roadwatch/internal/uploads"
)

// ReportService is the report lifecycle as seen by the HTTP layer.
type ReportService interface {
	Submit(ctx context.Context, params models.NewReportParams) (models.Report, error)
	GetReport(ctx context.Context, id int64) (models.Report, error)
	ListReports(ctx context.Context) ([]models.Report, error)
	ListDetections(ctx context.Context) ([]models.Detection, error)
}

const (
	queuedMessage = "Queued for analysis"

	// multipartMemory is how much of a form is held in memory before parts
	// spill to temporary files.
	multipartMemory = 32 << 20
	// formOverhead accounts for the non-file form fields and boundaries.
	formOverhead = 1 << 20
)

// ReportAPI handles report and detection HTTP endpoints
type ReportAPI struct {
	service ReportService
	uploads *uploads.Store
	logger  *logging.Logger
}

// NewReportAPI creates a new report API handler
func NewReportAPI(service ReportService, uploadStore *uploads.Store, logger *logging.Logger) *ReportAPI {
	return &ReportAPI{
		service: service,
		uploads: uploadStore,
		logger:  logger,
	}
}

// RegisterRoutes registers report routes on the given mux
func (api *ReportAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/reports", corsMiddleware(api.handleReports))
	mux.HandleFunc("/api/reports/", corsMiddleware(api.handleReportByID))
	mux.HandleFunc("/api/detections", corsMiddleware(api.handleListDetections))
}

// handleReports handles POST and GET /api/reports
func (api *ReportAPI) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		api.handleSubmit(w, r)
	case http.MethodGet:
		api.handleListReports(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (api *ReportAPI) handleSubmit(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, api.uploads.MaxBytes()+formOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "upload exceeds the size limit")
			return
		}
		api.writeError(w, http.StatusBadRequest, "invalid_form", "expected a multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	latitude, err := parseCoordinate(r.FormValue("latitude"))
	if err != nil {
		api.writeError(w, http.StatusBadRequest, "invalid_input", "latitude is required and must be a number")
		return
	}
	longitude, err := parseCoordinate(r.FormValue("longitude"))
	if err != nil {
		api.writeError(w, http.StatusBadRequest, "invalid_input", "longitude is required and must be a number")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		api.writeError(w, http.StatusBadRequest, "missing_file", "file is required")
		return
	}
	defer file.Close()

	saved, err := api.uploads.Save(header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, uploads.ErrUnsupportedExtension):
			api.writeError(w, http.StatusBadRequest, "unsupported_file_type", err.Error())
		case errors.Is(err, uploads.ErrTooLarge):
			api.writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", err.Error())
		default:
			api.logger.Error("Failed to store upload", logging.WithField("error", err.Error()))
			api.writeError(w, http.StatusInternalServerError, "internal_error", "failed to store upload")
		}
		return
	}

	report, err := api.service.Submit(r.Context(), models.NewReportParams{
		Description: r.FormValue("description"),
		Latitude:    latitude,
		Longitude:   longitude,
		Filename:    saved.Name,
		FilePath:    saved.Path,
		Kind:        saved.Kind,
		Size:        saved.Size,
	})
	if err != nil {
		api.uploads.Remove(saved.Path)
		if errors.Is(err, models.ErrValidation) {
			api.writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
		api.logger.Error("Failed to submit report", logging.WithField("error", err.Error()))
		api.writeError(w, http.StatusInternalServerError, "internal_error", "failed to submit report")
		return
	}

	api.writeJSON(w, http.StatusOK, models.SubmitResponse{
		ReportID: report.ID,
		Status:   report.Status,
		Message:  queuedMessage,
	})
}

func (api *ReportAPI) handleListReports(w http.ResponseWriter, r *http.Request) {
	list, err := api.service.ListReports(r.Context())
	if err != nil {
		api.logger.Error("Failed to list reports", logging.WithField("error", err.Error()))
		api.writeError(w, http.StatusInternalServerError, "internal_error", "failed to list reports")
		return
	}
	api.writeJSON(w, http.StatusOK, list)
}

// handleReportByID handles GET /api/reports/{id}
func (api *ReportAPI) handleReportByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	idStr := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/reports/"), "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		api.writeError(w, http.StatusBadRequest, "invalid_id", "report id must be a positive integer")
		return
	}

	report, err := api.service.GetReport(r.Context(), id)
	if errors.Is(err, reports.ErrReportNotFound) {
		api.writeError(w, http.StatusNotFound, "not_found", "report not found")
		return
	}
	if err != nil {
		api.logger.Error("Failed to get report", logging.WithFields(map[string]interface{}{
			"report_id": id,
			"error":     err.Error(),
		}))
		api.writeError(w, http.StatusInternalServerError, "internal_error", "failed to get report")
		return
	}
	api.writeJSON(w, http.StatusOK, report)
}

// handleListDetections handles GET /api/detections
func (api *ReportAPI) handleListDetections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list, err := api.service.ListDetections(r.Context())
	if err != nil {
		api.logger.Error("Failed to list detections", logging.WithField("error", err.Error()))
		api.writeError(w, http.StatusInternalServerError, "internal_error", "failed to list detections")
		return
	}
	api.writeJSON(w, http.StatusOK, list)
}

func parseCoordinate(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("missing")
	}
	return strconv.ParseFloat(raw, 64)
}

func (api *ReportAPI) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, data)
}

func (api *ReportAPI) writeError(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, code, message)
}
