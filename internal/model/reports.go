package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Category values. Anything else is stored as "other".
const (
	CategoryTraffic  = "traffic"
	CategoryCrime    = "crime"
	CategoryDisaster = "disaster"
	CategoryOther    = "other"
)

var Categories = []string{CategoryTraffic, CategoryCrime, CategoryDisaster, CategoryOther}

// Report status. Deletion removes the row, so there is no "deleted" value.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
)

const (
	MinSeverity = 1
	MaxSeverity = 5
)

type Report struct {
	ID                 uuid.UUID `json:"id"`
	UserID             uuid.UUID `json:"user_id"`
	Title              string    `json:"title"`
	Description        *string   `json:"description,omitempty"`
	Category           string    `json:"category"`
	Severity           int       `json:"severity"`
	Latitude           float64   `json:"latitude"`
	Longitude          float64   `json:"longitude"`
	Status             string    `json:"status"`
	ImageURL           *string   `json:"image_url,omitempty"`
	ProcessedImageURLs []string  `json:"processed_image_urls"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Point returns the report position as lon/lat.
func (r Report) Point() orb.Point {
	return orb.Point{r.Longitude, r.Latitude}
}

func (r Report) IsPending() bool {
	return r.Status == StatusPending
}

type CreateReportRequest struct {
	UserID             uuid.UUID `json:"-"`
	Title              string    `json:"title" validate:"required,max=200"`
	Description        *string   `json:"description,omitempty" validate:"omitempty,max=2000"`
	Category           string    `json:"category" validate:"required,category"`
	Severity           int       `json:"severity" validate:"required,min=1,max=5"`
	Latitude           float64   `json:"latitude" validate:"latitude"`
	Longitude          float64   `json:"longitude" validate:"longitude"`
	Status             string    `json:"status,omitempty"`
	ImageURL           *string   `json:"image_url,omitempty" validate:"omitempty,url"`
	ProcessedImageURLs []string  `json:"processed_image_urls,omitempty" validate:"omitempty,dive,url"`
}

type AppendImagesRequest struct {
	URLs []string `json:"urls" validate:"required,min=1,dive,url"`
}

// ReportQuery holds the optional predicates of a report listing. Set
// fields are combined with AND.
type ReportQuery struct {
	Status   string
	Category string
	Severity int
	Since    *time.Time
	UserID   *uuid.UUID
}
