package mapview

import (
	"context"

	"github.com/bwise1/hazard_map/internal/model"
	"github.com/google/uuid"
)

// ReportAPI is the data API the map reads from and writes to.
type ReportAPI interface {
	ListReports(ctx context.Context, q model.ReportQuery) ([]model.Report, error)
	CreateReport(ctx context.Context, req model.CreateReportRequest) (model.Report, error)
	DeleteReport(ctx context.Context, id uuid.UUID) error
}

type ImageUploader interface {
	UploadImage(ctx context.Context, img model.Image, kind model.ImageKind) (string, error)
}

type Analyzer interface {
	AnalyzeReportImage(ctx context.Context, reportID uuid.UUID, img model.Image) (model.AnalysisResult, error)
}

type PointAwarder interface {
	// AwardPoints credits the owner of reportID.
	AwardPoints(ctx context.Context, userID, reportID uuid.UUID, delta int) error
}

// Session is the signed-in user as seen by the map. It is passed in
// explicitly so the controller never looks it up on its own.
type Session struct {
	UserID  uuid.UUID
	IsAdmin bool
}

func (s Session) SignedIn() bool {
	return s.UserID != uuid.Nil
}
