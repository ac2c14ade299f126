package events

import (
	"time"

	"github.com/Yardman-Mzansi/potholematic/internal/conversation"
)

// EventTypeReportCreated names the ReportCreatedV1 payload on the wire.
const EventTypeReportCreated = "pothole.report.created.v1"

// ReportCreatedV1 is published once per committed report.
type ReportCreatedV1 struct {
	EventID      string    `json:"event_id"`
	ReportID     string    `json:"report_id"`
	SenderID     string    `json:"sender_id"`
	Description  string    `json:"description"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	ImageLocator string    `json:"image_locator"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewReportCreated builds the event for report. The event id equals the
// report id so consumers can deduplicate redeliveries.
func NewReportCreated(report conversation.Report) ReportCreatedV1 {
	return ReportCreatedV1{
		EventID:      report.ID,
		ReportID:     report.ID,
		SenderID:     report.SenderID,
		Description:  report.Description,
		Latitude:     report.Location.Latitude,
		Longitude:    report.Location.Longitude,
		ImageLocator: report.ImageLocator,
		CreatedAt:    report.CreatedAt.UTC(),
	}
}
