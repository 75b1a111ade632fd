package detection

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAdapterDetectNormalizes(t *testing.T) {
	mock := &MockDetector{Predictions: []Prediction{
		{ClassLabel: "0", Confidence: 0.9, X: 20, Y: 20, Width: 10, Height: 10},
		{ClassLabel: "crack", Confidence: 0.2},
	}}
	adapter := NewAdapter(mock, 0, 0, nil)

	if adapter.Threshold() != DefaultConfidenceThreshold {
		t.Fatalf("threshold = %v, want default", adapter.Threshold())
	}

	findings, err := adapter.Detect(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(findings) != 1 || findings[0].DefectType != "pothole" {
		t.Fatalf("findings = %+v", findings)
	}
	if mock.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", mock.Calls())
	}
}

func TestAdapterTimeout(t *testing.T) {
	mock := &MockDetector{DetectFunc: func(ctx context.Context, image []byte) ([]Prediction, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	adapter := NewAdapter(mock, 0.4, 20*time.Millisecond, nil)

	start := time.Now()
	_, err := adapter.Detect(context.Background(), []byte("img"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout took %s", elapsed)
	}
}

func TestAdapterErrors(t *testing.T) {
	if _, err := NewAdapter(nil, 0.4, time.Second, nil).Detect(context.Background(), []byte("x")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("nil detector err = %v, want ErrUnavailable", err)
	}

	offline := NewAdapter(OfflineDetector{}, 0.4, time.Second, nil)
	if _, err := offline.Detect(context.Background(), []byte("x")); !errors.Is(err, ErrUnavailable) {
		t.Errorf("offline err = %v, want ErrUnavailable", err)
	}

	mock := &MockDetector{}
	if _, err := NewAdapter(mock, 0.4, time.Second, nil).Detect(context.Background(), nil); err == nil {
		t.Error("expected error for empty image")
	}
	if mock.Calls() != 0 {
		t.Errorf("backend should not be called for empty image")
	}
}

func TestAdapterFallbackMatchesPlaceholder(t *testing.T) {
	adapter := NewAdapter(OfflineDetector{}, 0, 0, nil)
	got := adapter.Fallback("uploads/a.jpg")
	want := Placeholder("a.jpg")
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i].DefectType != want[i].DefectType || got[i].Confidence != want[i].Confidence || *got[i].BBox != *want[i].BBox {
			t.Fatalf("finding %d differs: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestAdapterDetectDropsMalformed(t *testing.T) {
	mock := &MockDetector{Predictions: []Prediction{
		{ClassLabel: "crack", Confidence: 1.7, X: 20, Y: 20, Width: 10, Height: 10},
		{ClassLabel: "rutting", Confidence: 0.9, X: 20, Y: 20, Width: -10, Height: 10},
		{ClassLabel: "pothole", Confidence: 0.9, X: 20, Y: 20, Width: 10, Height: 10},
	}}
	adapter := NewAdapter(mock, 0.4, time.Second, nil)

	findings, err := adapter.Detect(context.Background(), []byte("img"))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(findings) != 1 || findings[0].DefectType != "pothole" {
		t.Fatalf("findings = %+v", findings)
	}
}
