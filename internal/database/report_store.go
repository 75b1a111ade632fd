package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/umarkhanovv/roadwatch/internal/models"
	"github.com/umarkhanovv/roadwatch/internal/reports"
)

// ReportStore handles report and detection database operations
type ReportStore struct {
	db *DB
}

// NewReportStore creates a new report store
func NewReportStore(db *DB) *ReportStore {
	return &ReportStore{db: db}
}

const reportColumns = `id, created_at, description, latitude, longitude, filename, file_path, file_type, file_size, status`

const detectionColumns = `id, report_id, defect_type, confidence, latitude, longitude, bbox, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// CreateReport inserts a pending report
func (s *ReportStore) CreateReport(ctx context.Context, report models.Report) (models.Report, error) {
	query := `
		INSERT INTO reports (description, latitude, longitude, filename, file_path, file_type, file_size, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + reportColumns

	var description sql.NullString
	if report.Description != nil {
		description = sql.NullString{String: *report.Description, Valid: true}
	}

	saved, err := scanReport(s.db.QueryRowContext(ctx, query,
		description, report.Latitude, report.Longitude, report.Filename,
		report.FilePath, string(report.FileType), report.FileSize, string(models.ReportStatusPending),
	))
	if err != nil {
		return models.Report{}, fmt.Errorf("failed to create report: %w", err)
	}
	saved.Detections = []models.Detection{}
	return saved, nil
}

// RecordDetections inserts all detections for a report in one transaction
func (s *ReportStore) RecordDetections(ctx context.Context, reportID int64, detections []models.Detection) ([]models.Detection, error) {
	if len(detections) == 0 {
		return []models.Detection{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO detections (report_id, defect_type, confidence, latitude, longitude, bbox)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + detectionColumns

	saved := make([]models.Detection, 0, len(detections))
	for _, d := range detections {
		row := tx.QueryRowContext(ctx, query,
			reportID, d.DefectType, d.Confidence, d.Latitude, d.Longitude, bboxValue(d.BBox),
		)
		det, err := scanDetection(row)
		if err != nil {
			if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
				return nil, reports.ErrReportNotFound
			}
			return nil, fmt.Errorf("failed to insert detection: %w", err)
		}
		saved = append(saved, det)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit detections: %w", err)
	}
	return saved, nil
}

// SetStatus moves a pending report to a terminal status
func (s *ReportStore) SetStatus(ctx context.Context, reportID int64, status models.ReportStatus) error {
	if !status.IsTerminal() {
		return fmt.Errorf("%w: -> %s", reports.ErrInvalidTransition, status)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = $2 WHERE id = $1 AND status = 'pending'`,
		reportID, string(status),
	)
	if err != nil {
		return fmt.Errorf("failed to update report status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 1 {
		return nil
	}

	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM reports WHERE id = $1`, reportID).Scan(&current)
	if err == sql.ErrNoRows {
		return reports.ErrReportNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read report status: %w", err)
	}
	return fmt.Errorf("%w: %s -> %s", reports.ErrInvalidTransition, current, status)
}

// GetReport retrieves a report with its detections
func (s *ReportStore) GetReport(ctx context.Context, reportID int64) (models.Report, error) {
	report, err := scanReport(s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1`, reportID,
	))
	if err == sql.ErrNoRows {
		return models.Report{}, reports.ErrReportNotFound
	}
	if err != nil {
		return models.Report{}, fmt.Errorf("failed to get report: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+detectionColumns+` FROM detections WHERE report_id = $1 ORDER BY id`, reportID,
	)
	if err != nil {
		return models.Report{}, fmt.Errorf("failed to get detections: %w", err)
	}
	defer rows.Close()

	report.Detections, err = collectDetections(rows)
	if err != nil {
		return models.Report{}, err
	}
	return report, nil
}

// ListReports returns all reports newest first, each with its detections
func (s *ReportStore) ListReports(ctx context.Context) ([]models.Report, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reportColumns+` FROM reports ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	out := []models.Report{}
	index := make(map[int64]int)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		r.Detections = []models.Detection{}
		index[r.ID] = len(out)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	if len(out) == 0 {
		return out, nil
	}

	detections, err := s.ListDetections(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range detections {
		if i, ok := index[d.ReportID]; ok {
			out[i].Detections = append(out[i].Detections, d)
		}
	}
	return out, nil
}

// ListDetections returns all detections newest first
func (s *ReportStore) ListDetections(ctx context.Context) ([]models.Detection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+detectionColumns+` FROM detections ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list detections: %w", err)
	}
	defer rows.Close()

	return collectDetections(rows)
}

func collectDetections(rows *sql.Rows) ([]models.Detection, error) {
	out := []models.Detection{}
	for rows.Next() {
		d, err := scanDetection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate detections: %w", err)
	}
	return out, nil
}

func scanReport(row rowScanner) (models.Report, error) {
	var (
		r           models.Report
		description sql.NullString
		fileType    string
		status      string
	)
	err := row.Scan(
		&r.ID, &r.CreatedAt, &description, &r.Latitude, &r.Longitude,
		&r.Filename, &r.FilePath, &fileType, &r.FileSize, &status,
	)
	if err != nil {
		return models.Report{}, err
	}
	if description.Valid {
		r.Description = &description.String
	}
	r.FileType = models.MediaKind(fileType)
	r.Status = models.ReportStatus(status)
	return r, nil
}

func scanDetection(row rowScanner) (models.Detection, error) {
	var (
		d    models.Detection
		bbox pq.Float64Array
	)
	err := row.Scan(
		&d.ID, &d.ReportID, &d.DefectType, &d.Confidence,
		&d.Latitude, &d.Longitude, &bbox, &d.CreatedAt,
	)
	if err != nil {
		return models.Detection{}, err
	}
	if len(bbox) == 4 {
		box := models.BBox{bbox[0], bbox[1], bbox[2], bbox[3]}
		d.BBox = &box
	}
	return d, nil
}

func bboxValue(b *models.BBox) interface{} {
	if b == nil {
		return nil
	}
	return pq.Float64Array(b[:])
}

var _ reports.Store = (*ReportStore)(nil)
