package detection

import (
	"context"
	"sync"
)

// OfflineDetector is used when no model is configured; every call reports
// ErrUnavailable so callers fall back to the placeholder.
type OfflineDetector struct{}

// Name identifies the backend in logs and metrics.
func (OfflineDetector) Name() string { return "placeholder" }

// Detect always fails with ErrUnavailable.
func (OfflineDetector) Detect(ctx context.Context, image []byte, threshold float64) ([]Prediction, error) {
	return nil, ErrUnavailable
}

// MockDetector is a simple mock implementation for tests.
type MockDetector struct {
	Predictions []Prediction
	Err         error
	// DetectFunc, when set, overrides Predictions/Err.
	DetectFunc func(ctx context.Context, image []byte) ([]Prediction, error)

	mu    sync.Mutex
	calls int
}

// Name identifies the backend in logs and metrics.
func (m *MockDetector) Name() string { return "mock" }

// Detect returns the configured predictions/error.
func (m *MockDetector) Detect(ctx context.Context, image []byte, threshold float64) ([]Prediction, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, image)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Predictions, nil
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var (
	_ Detector = OfflineDetector{}
	_ Detector = (*MockDetector)(nil)
)
