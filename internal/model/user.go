package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	Username  *string   `json:"username,omitempty"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const RoleAdmin = "admin"

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// AwardPointsRequest credits the owner of a report. Regular users must
// name the report; each caller earns a reward once per report.
type AwardPointsRequest struct {
	UserID   uuid.UUID  `json:"user_id" validate:"required"`
	ReportID *uuid.UUID `json:"report_id,omitempty"`
	Delta    int        `json:"delta" validate:"required"`
}

const (
	AwardReasonSubmit = "submit"
	AwardReasonView   = "view"
)
