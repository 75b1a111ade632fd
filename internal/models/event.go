package models

import "time"

// EventNewReport is sent whenever a report reaches a terminal status.
const EventNewReport = "new_report"

// ReportEvent is the payload pushed to live subscribers.
type ReportEvent struct {
	Event  string        `json:"event"`
	Report ReportSummary `json:"report"`
}

// ReportSummary is the subset of a report carried by a ReportEvent.
type ReportSummary struct {
	ID         int64        `json:"id"`
	Latitude   float64      `json:"latitude"`
	Longitude  float64      `json:"longitude"`
	Status     ReportStatus `json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	Detections []Detection  `json:"detections"`
}

// NewReportEvent builds the new_report event for r with its persisted detections.
func NewReportEvent(r Report, detections []Detection) ReportEvent {
	if detections == nil {
		detections = []Detection{}
	}
	return ReportEvent{
		Event: EventNewReport,
		Report: ReportSummary{
			ID:         r.ID,
			Latitude:   r.Latitude,
			Longitude:  r.Longitude,
			Status:     r.Status,
			CreatedAt:  r.CreatedAt,
			Detections: detections,
		},
	}
}

// SubmitResponse is returned synchronously by the upload endpoint.
type SubmitResponse struct {
	ReportID int64        `json:"report_id"`
	Status   ReportStatus `json:"status"`
	Message  string       `json:"message"`
}
