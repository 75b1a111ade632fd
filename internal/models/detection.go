package models

import (
	"math"
	"strings"
	"time"
)

// BBox is a corner-form box [x1, y1, x2, y2] in source-media pixels.
type BBox [4]float64

// X1 .. Y2 name the corners.
func (b BBox) X1() float64 { return b[0] }
func (b BBox) Y1() float64 { return b[1] }
func (b BBox) X2() float64 { return b[2] }
func (b BBox) Y2() float64 { return b[3] }

// Valid requires finite coordinates with x1<=x2 and y1<=y2.
func (b BBox) Valid() bool {
	for _, v := range b {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b[0] <= b[2] && b[1] <= b[3]
}

// Finding is one normalized detector result, not yet tied to a report.
type Finding struct {
	DefectType string  `json:"defect_type"`
	Confidence float64 `json:"confidence"`
	BBox       *BBox   `json:"bbox"`
}

// Detection is a persisted finding attached to a report.
type Detection struct {
	ID         int64     `json:"id"`
	ReportID   int64     `json:"report_id"`
	DefectType string    `json:"defect_type"`
	Confidence float64   `json:"confidence"`
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	BBox       *BBox     `json:"bbox"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewDetection validates a finding against its owning report and returns an
// unsaved detection located at the report's coordinates.
func NewDetection(report Report, f Finding) (Detection, error) {
	if report.ID <= 0 {
		return Detection{}, &ValidationError{Field: "report_id", Message: "is required"}
	}
	if strings.TrimSpace(f.DefectType) == "" {
		return Detection{}, &ValidationError{Field: "defect_type", Message: "is required"}
	}
	if math.IsNaN(f.Confidence) || f.Confidence < 0 || f.Confidence > 1 {
		return Detection{}, &ValidationError{Field: "confidence", Message: "must be within [0,1]"}
	}
	if f.BBox != nil && !f.BBox.Valid() {
		return Detection{}, &ValidationError{Field: "bbox", Message: "must satisfy x1<=x2 and y1<=y2"}
	}

	var bbox *BBox
	if f.BBox != nil {
		b := *f.BBox
		bbox = &b
	}

	return Detection{
		ReportID:   report.ID,
		DefectType: f.DefectType,
		Confidence: f.Confidence,
		Latitude:   report.Latitude,
		Longitude:  report.Longitude,
		BBox:       bbox,
	}, nil
}
