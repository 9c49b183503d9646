package mapview

import (
	"errors"
	"fmt"

	"github.com/bwise1/hazard_map/internal/model"
	"github.com/google/uuid"
)

// ErrInvalidTransition is returned when an action has no row in the mode
// table for the current mode. The surface state is left untouched.
var ErrInvalidTransition = errors.New("invalid interaction mode transition")

type ValidationReason string

const (
	ReasonMissingLocation ValidationReason = "missing_location"
	ReasonMissingTitle    ValidationReason = "missing_title"
	ReasonInvalidImage    ValidationReason = "invalid_image"
	ReasonInvalidCategory ValidationReason = "invalid_category"
	ReasonInvalidSeverity ValidationReason = "invalid_severity"
)

// ValidationError blocks a submission before any network call is made.
type ValidationError struct {
	Reason ValidationReason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Reason, e.Detail)
}

// UploadError is a per-file failure. The file is left out of the report.
type UploadError struct {
	Name string
	Kind model.ImageKind
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s image %q: %v", e.Kind, e.Name, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// PersistenceError means the report record was not created.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("create report: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AnalysisError is reported after the report already exists.
type AnalysisError struct {
	ReportID uuid.UUID
	Err      error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyse report %s: %v", e.ReportID, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// PermissionError is returned for administrative actions by non-admins.
type PermissionError struct {
	Action string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: %s requires administrator", e.Action)
}

// ReasonOf returns the validation reason carried by err, if any.
func ReasonOf(err error) (ValidationReason, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason, true
	}
	return "", false
}
