package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/umarkhanovv/roadwatch/internal/cache"
	"github.com/umarkhanovv/roadwatch/internal/logging"
	"github.com/umarkhanovv/roadwatch/internal/metrics"
	"github.com/umarkhanovv/roadwatch/internal/models"
)

// Analyzer produces findings for a stored upload. Implementations never fail;
// they fall back to synthetic output instead.
type Analyzer interface {
	Analyze(ctx context.Context, path string, kind models.MediaKind) []models.Finding
}

// Notifier fans an event out to live subscribers.
type Notifier interface {
	Broadcast(event interface{}) error
}

// Service handles report submission and background processing.
type Service struct {
	store    Store
	analyzer Analyzer
	notifier Notifier
	runner   TaskRunner
	cache    cache.Cache
	logger   *logging.Logger

	// List cache keys embed instance and generation. instance is fresh per
	// Service so a shared cache never hands back another process's entries;
	// generation is bumped on every write.
	instance   string
	generation atomic.Int64
}

// Options holds the collaborators of a Service. Notifier and Cache may be nil.
type Options struct {
	Store    Store
	Analyzer Analyzer
	Notifier Notifier
	Runner   TaskRunner
	Cache    cache.Cache
	Logger   *logging.Logger
}

// NewService creates a report service.
func NewService(opts Options) *Service {
	runner := opts.Runner
	if runner == nil {
		runner = NewGoroutineRunner(opts.Logger)
	}
	return &Service{
		store:    opts.Store,
		analyzer: opts.Analyzer,
		notifier: opts.Notifier,
		runner:   runner,
		cache:    opts.Cache,
		logger:   opts.Logger,
		instance: strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
}

// Submit validates and persists a pending report, then schedules its
// processing in the background. It returns as soon as the row is committed.
func (s *Service) Submit(ctx context.Context, params models.NewReportParams) (models.Report, error) {
	report, err := models.NewReport(params)
	if err != nil {
		return models.Report{}, err
	}

	saved, err := s.store.CreateReport(ctx, report)
	if err != nil {
		s.logger.Error("Failed to create report", logging.WithField("error", err.Error()))
		return models.Report{}, fmt.Errorf("create report: %w", err)
	}
	s.invalidate()
	metrics.ReportsSubmitted.Inc()

	s.logger.Info("Report submitted", logging.WithFields(map[string]interface{}{
		"report_id": saved.ID,
		"file_type": saved.FileType,
		"file_size": saved.FileSize,
	}))

	s.runner.Go("process_report", func(ctx context.Context) {
		s.Process(ctx, saved)
	})

	return saved, nil
}

// Process runs inference for report and moves it to its terminal status.
// Any error or panic on the way marks the report failed. The final state is
// always broadcast.
func (s *Service) Process(ctx context.Context, report models.Report) {
	start := time.Now()
	var detections []models.Detection

	defer func() {
		if rec := recover(); rec != nil {
			detections = nil
			report.Status = s.fail(ctx, report.ID, fmt.Errorf("panic: %v", rec))
		}

		metrics.ReportsProcessed.WithLabelValues(string(report.Status)).Inc()
		metrics.ProcessingDurationSeconds.Observe(time.Since(start).Seconds())
		s.invalidate()
		s.notify(report, detections)
	}()

	status, saved, err := s.run(ctx, report)
	if err != nil {
		report.Status = s.fail(ctx, report.ID, err)
		return
	}
	report.Status = status
	detections = saved

	s.logger.Info("Report processed", logging.WithFields(map[string]interface{}{
		"report_id":  report.ID,
		"status":     status,
		"detections": len(saved),
		"duration":   time.Since(start).String(),
	}))
}

func (s *Service) run(ctx context.Context, report models.Report) (models.ReportStatus, []models.Detection, error) {
	findings := s.analyzer.Analyze(ctx, report.FilePath, report.FileType)

	if len(findings) == 0 {
		if err := s.store.SetStatus(ctx, report.ID, models.ReportStatusNoDefects); err != nil {
			return "", nil, fmt.Errorf("set status: %w", err)
		}
		return models.ReportStatusNoDefects, []models.Detection{}, nil
	}

	detections := make([]models.Detection, 0, len(findings))
	for _, f := range findings {
		d, err := models.NewDetection(report, f)
		if err != nil {
			s.logger.Warn("Skipping invalid finding", logging.WithFields(map[string]interface{}{
				"report_id":   report.ID,
				"defect_type": f.DefectType,
				"error":       err.Error(),
			}))
			continue
		}
		detections = append(detections, d)
	}
	if len(detections) == 0 {
		if err := s.store.SetStatus(ctx, report.ID, models.ReportStatusNoDefects); err != nil {
			return "", nil, fmt.Errorf("set status: %w", err)
		}
		return models.ReportStatusNoDefects, []models.Detection{}, nil
	}

	saved, err := s.store.RecordDetections(ctx, report.ID, detections)
	if err != nil {
		return "", nil, fmt.Errorf("record detections: %w", err)
	}
	if err := s.store.SetStatus(ctx, report.ID, models.ReportStatusProcessed); err != nil {
		return "", nil, fmt.Errorf("set status: %w", err)
	}
	return models.ReportStatusProcessed, saved, nil
}

// fail logs err and marks the report failed, returning the status to announce.
func (s *Service) fail(ctx context.Context, reportID int64, cause error) models.ReportStatus {
	s.logger.Error("Report processing failed", logging.WithFields(map[string]interface{}{
		"report_id": reportID,
		"error":     cause.Error(),
	}))

	if err := s.store.SetStatus(ctx, reportID, models.ReportStatusFailed); err != nil {
		s.logger.Error("Failed to mark report failed", logging.WithFields(map[string]interface{}{
			"report_id": reportID,
			"error":     err.Error(),
		}))
	}
	return models.ReportStatusFailed
}

func (s *Service) notify(report models.Report, detections []models.Detection) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Broadcast(models.NewReportEvent(report, detections)); err != nil {
		s.logger.Warn("Failed to broadcast report event", logging.WithFields(map[string]interface{}{
			"report_id": report.ID,
			"error":     err.Error(),
		}))
	}
}

// GetReport returns one report with its detections.
func (s *Service) GetReport(ctx context.Context, id int64) (models.Report, error) {
	return s.store.GetReport(ctx, id)
}

// ListReports returns every report newest first.
func (s *Service) ListReports(ctx context.Context) ([]models.Report, error) {
	var out []models.Report
	err := s.cached("reports", &out, func() (interface{}, error) {
		return s.store.ListReports(ctx)
	})
	return out, err
}

// ListDetections returns every detection newest first.
func (s *Service) ListDetections(ctx context.Context) ([]models.Detection, error) {
	var out []models.Detection
	err := s.cached("detections", &out, func() (interface{}, error) {
		return s.store.ListDetections(ctx)
	})
	return out, err
}

// cached decodes the cached body for name into dst, or loads, stores and
// decodes a fresh one.
func (s *Service) cached(name string, dst interface{}, load func() (interface{}, error)) error {
	key := s.cacheKey(name)
	if s.cache != nil {
		if body, ok := s.cache.Get(key); ok {
			if err := json.Unmarshal(body, dst); err == nil {
				return nil
			}
			s.cache.Delete(key)
		}
	}

	v, err := load()
	if err != nil {
		return err
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if s.cache != nil {
		s.cache.Set(key, body)
	}
	return json.Unmarshal(body, dst)
}

func (s *Service) cacheKey(name string) string {
	return name + ":" + s.instance + ":v" + strconv.FormatInt(s.generation.Load(), 10)
}

// invalidate retires the current list keys. Readers that raced the write
// store under the old generation and are never read again.
func (s *Service) invalidate() {
	if s.cache == nil {
		return
	}
	old := s.generation.Add(1) - 1
	suffix := ":" + s.instance + ":v" + strconv.FormatInt(old, 10)
	s.cache.Delete("reports"+suffix, "detections"+suffix)
}
