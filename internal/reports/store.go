// Package reports owns the report lifecycle: submission, background
// processing, status transitions and notification.
package reports

import (
	"context"
	"errors"

	"github.com/umarkhanovv/roadwatch/internal/models"
)

var (
	// ErrReportNotFound is returned when no report has the requested id.
	ErrReportNotFound = errors.New("report not found")
	// ErrInvalidTransition is returned when a status change would leave a terminal state.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store persists reports and their detections.
type Store interface {
	// CreateReport inserts a validated pending report and returns it with its
	// generated id and timestamp.
	CreateReport(ctx context.Context, report models.Report) (models.Report, error)
	// RecordDetections inserts detections for reportID as one batch.
	RecordDetections(ctx context.Context, reportID int64, detections []models.Detection) ([]models.Detection, error)
	// SetStatus moves a pending report to a terminal status.
	SetStatus(ctx context.Context, reportID int64, status models.ReportStatus) error
	GetReport(ctx context.Context, reportID int64) (models.Report, error)
	// ListReports returns every report newest first with nested detections.
	ListReports(ctx context.Context) ([]models.Report, error)
	// ListDetections returns every detection newest first.
	ListDetections(ctx context.Context) ([]models.Detection, error)
}
