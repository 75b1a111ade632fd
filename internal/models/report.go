package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang/geo/s2"
)

// ErrValidation is wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError reports a single invalid field on a record.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ReportStatus is the lifecycle state of a report.
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusProcessed ReportStatus = "processed"
	ReportStatusNoDefects ReportStatus = "no_defects"
	ReportStatusFailed    ReportStatus = "failed"
)

// IsValid reports whether s is one of the four known states.
func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportStatusPending, ReportStatusProcessed, ReportStatusNoDefects, ReportStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s ReportStatus) IsTerminal() bool {
	return s == ReportStatusProcessed || s == ReportStatusNoDefects || s == ReportStatusFailed
}

// CanTransitionTo allows only pending -> terminal.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	return s == ReportStatusPending && next.IsTerminal()
}

// MediaKind distinguishes still images from videos.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

var extensionKinds = map[string]MediaKind{
	".jpg":  MediaKindImage,
	".jpeg": MediaKindImage,
	".png":  MediaKindImage,
	".mp4":  MediaKindVideo,
	".mov":  MediaKindVideo,
	".avi":  MediaKindVideo,
}

// MediaKindForExtension maps a file extension (with dot, any case) to its kind.
func MediaKindForExtension(ext string) (MediaKind, bool) {
	kind, ok := extensionKinds[strings.ToLower(strings.TrimSpace(ext))]
	return kind, ok
}

// AllowedExtensions lists the accepted upload extensions.
func AllowedExtensions() []string {
	return []string{".jpg", ".jpeg", ".png", ".mp4", ".mov", ".avi"}
}

// Report is one user submission.
type Report struct {
	ID          int64        `json:"id"`
	CreatedAt   time.Time    `json:"created_at"`
	Description *string      `json:"description"`
	Latitude    float64      `json:"latitude"`
	Longitude   float64      `json:"longitude"`
	Filename    string       `json:"filename"`
	FilePath    string       `json:"file_path"`
	FileType    MediaKind    `json:"file_type"`
	FileSize    int64        `json:"file_size"`
	Status      ReportStatus `json:"status"`
	Detections  []Detection  `json:"detections"`
}

// NewReportParams carries the submission fields used to build a Report.
type NewReportParams struct {
	Description string
	Latitude    float64
	Longitude   float64
	Filename    string
	FilePath    string
	Kind        MediaKind
	Size        int64
}

// NewReport validates params and returns an unsaved pending report.
func NewReport(p NewReportParams) (Report, error) {
	if err := ValidateCoordinates(p.Latitude, p.Longitude); err != nil {
		return Report{}, err
	}
	if strings.TrimSpace(p.Filename) == "" {
		return Report{}, &ValidationError{Field: "filename", Message: "is required"}
	}
	if strings.TrimSpace(p.FilePath) == "" {
		return Report{}, &ValidationError{Field: "file_path", Message: "is required"}
	}
	if p.Kind != MediaKindImage && p.Kind != MediaKindVideo {
		return Report{}, &ValidationError{Field: "file_type", Message: "must be image or video"}
	}
	if p.Size < 0 {
		return Report{}, &ValidationError{Field: "file_size", Message: "must not be negative"}
	}

	var description *string
	if d := strings.TrimSpace(p.Description); d != "" {
		description = &d
	}

	return Report{
		Description: description,
		Latitude:    p.Latitude,
		Longitude:   p.Longitude,
		Filename:    p.Filename,
		FilePath:    p.FilePath,
		FileType:    p.Kind,
		FileSize:    p.Size,
		Status:      ReportStatusPending,
		Detections:  []Detection{},
	}, nil
}

// ValidateCoordinates rejects latitudes outside [-90,90] and longitudes outside [-180,180].
func ValidateCoordinates(lat, lon float64) error {
	if !s2.LatLngFromDegrees(lat, lon).IsValid() {
		return &ValidationError{Field: "latitude/longitude", Message: "out of range"}
	}
	return nil
}
