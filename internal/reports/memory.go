package reports

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/umarkhanovv/roadwatch/internal/logging"
	"github.com/umarkhanovv/roadwatch/internal/models"
)

// MemoryStore is an in-memory Store for development and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	reports    map[int64]models.Report
	detections []models.Detection
	nextReport int64
	nextDetect int64
	now        func() time.Time
	logger     *logging.Logger
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(logger *logging.Logger) *MemoryStore {
	return &MemoryStore{
		reports: make(map[int64]models.Report),
		now:     func() time.Time { return time.Now().UTC() },
		logger:  logger,
	}
}

func (s *MemoryStore) CreateReport(ctx context.Context, report models.Report) (models.Report, error) {
	if report.Status != models.ReportStatusPending {
		return models.Report{}, fmt.Errorf("new report must be pending, got %q", report.Status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextReport++
	report.ID = s.nextReport
	report.CreatedAt = s.now()
	report.Detections = []models.Detection{}
	s.reports[report.ID] = report

	if s.logger != nil {
		s.logger.Debug("Created report (in-memory)", logging.WithField("report_id", report.ID))
	}
	return report, nil
}

func (s *MemoryStore) RecordDetections(ctx context.Context, reportID int64, detections []models.Detection) ([]models.Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.reports[reportID]; !ok {
		return nil, ErrReportNotFound
	}

	saved := make([]models.Detection, 0, len(detections))
	now := s.now()
	for _, d := range detections {
		s.nextDetect++
		d.ID = s.nextDetect
		d.ReportID = reportID
		d.CreatedAt = now
		saved = append(saved, d)
	}
	s.detections = append(s.detections, saved...)
	return saved, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, reportID int64, status models.ReportStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	report, ok := s.reports[reportID]
	if !ok {
		return ErrReportNotFound
	}
	if !report.Status.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, report.Status, status)
	}
	report.Status = status
	s.reports[reportID] = report
	return nil
}

func (s *MemoryStore) GetReport(ctx context.Context, reportID int64) (models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, ok := s.reports[reportID]
	if !ok {
		return models.Report{}, ErrReportNotFound
	}
	report.Detections = s.detectionsFor(reportID)
	return report, nil
}

func (s *MemoryStore) ListReports(ctx context.Context) ([]models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Report, 0, len(s.reports))
	for id, r := range s.reports {
		r.Detections = s.detectionsFor(id)
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) ListDetections(ctx context.Context) ([]models.Detection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Detection, len(s.detections))
	copy(out, s.detections)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// detectionsFor must be called with mu held.
func (s *MemoryStore) detectionsFor(reportID int64) []models.Detection {
	out := []models.Detection{}
	for _, d := range s.detections {
		if d.ReportID == reportID {
			out = append(out, d)
		}
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
