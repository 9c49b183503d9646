package model

import (
	"time"

	"github.com/google/uuid"
)

// Report event types pushed to websocket subscribers.
const (
	EventReportCreated  = "report_created"
	EventReportApproved = "report_approved"
	EventReportDeleted  = "report_deleted"
	EventReportImages   = "report_images"
)

type ReportEvent struct {
	Type               string    `json:"type"`
	ReportID           uuid.UUID `json:"report_id"`
	UserID             uuid.UUID `json:"user_id,omitempty"`
	Status             string    `json:"status,omitempty"`
	ProcessedImageURLs []string  `json:"processed_image_urls,omitempty"`
	At                 time.Time `json:"at"`
}
