// Package detection turns raw output from an external defect-detection model
// into normalized, confidence-filtered findings.
package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/umarkhanovv/roadwatch/internal/logging"
	"github.com/umarkhanovv/roadwatch/internal/metrics"
	"github.com/umarkhanovv/roadwatch/internal/models"
)

const (
	// DefaultConfidenceThreshold drops predictions scoring below it.
	DefaultConfidenceThreshold = 0.40
	// DefaultTimeout bounds a single backend call.
	DefaultTimeout = 30 * time.Second
)

// ErrUnavailable is returned by backends that cannot serve requests at all.
var ErrUnavailable = errors.New("detection backend unavailable")

// Prediction is one raw center-form box from a backend.
type Prediction struct {
	ClassLabel string
	Confidence float64
	X          float64
	Y          float64
	Width      float64
	Height     float64
}

// Detector is the low-level provider abstraction around the external model.
type Detector interface {
	Name() string
	Detect(ctx context.Context, image []byte, threshold float64) ([]Prediction, error)
}

// Adapter calls a Detector with a bounded timeout and normalizes its output.
type Adapter struct {
	detector  Detector
	threshold float64
	timeout   time.Duration
	logger    *logging.Logger
}

// NewAdapter creates an adapter; non-positive threshold or timeout use the defaults.
func NewAdapter(detector Detector, threshold float64, timeout time.Duration, logger *logging.Logger) *Adapter {
	if threshold <= 0 {
		threshold = DefaultConfidenceThreshold
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{
		detector:  detector,
		threshold: threshold,
		timeout:   timeout,
		logger:    logger,
	}
}

// Threshold returns the inclusive minimum confidence kept.
func (a *Adapter) Threshold() float64 {
	return a.threshold
}

// Detect runs the model on one still image. Errors are returned to the caller,
// which decides whether to skip the frame or fall back to the placeholder.
func (a *Adapter) Detect(ctx context.Context, image []byte) ([]models.Finding, error) {
	if a.detector == nil {
		return nil, ErrUnavailable
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("image bytes are required")
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	predictions, err := a.detector.Detect(callCtx, image, a.threshold)
	if err != nil {
		metrics.DetectorCalls.WithLabelValues(a.detector.Name(), "error").Inc()
		return nil, fmt.Errorf("%s detect: %w", a.detector.Name(), err)
	}
	metrics.DetectorCalls.WithLabelValues(a.detector.Name(), "ok").Inc()

	findings, malformed := normalize(predictions, a.threshold)
	if malformed > 0 {
		a.logger.Warn("Dropped malformed predictions", logging.WithFields(map[string]interface{}{
			"backend": a.detector.Name(),
			"dropped": malformed,
		}))
	}
	return findings, nil
}

// Fallback returns the deterministic placeholder findings for filename.
func (a *Adapter) Fallback(filename string) []models.Finding {
	metrics.FallbackDetections.Inc()
	if a.logger != nil {
		a.logger.Warn("Using placeholder detector", logging.WithField("file", filename))
	}
	return Placeholder(filename)
}
