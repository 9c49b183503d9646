package rest

import (
	"context"
	"errors"

	"github.com/bwise1/hazard_map/internal/mapview"
	"github.com/bwise1/hazard_map/internal/metrics"
	"github.com/bwise1/hazard_map/internal/model"
	"github.com/bwise1/hazard_map/util/values"
	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
)

func (api *API) ListReportsHelper(ctx context.Context, q model.ReportQuery) ([]model.Report, string, string, error) {
	reports, err := api.ListReportsRepo(ctx, q)
	if err != nil {
		return nil, values.Error, "Failed to fetch reports", err
	}
	return reports, values.Success, "Reports fetched successfully", nil
}

// MarkerFeaturesHelper renders approved reports as the GeoJSON the map
// layer draws.
func (api *API) MarkerFeaturesHelper(ctx context.Context, q model.ReportQuery) (*geojson.FeatureCollection, string, string, error) {
	q.Status = model.StatusApproved
	q.UserID = nil
	reports, err := api.ListReportsRepo(ctx, q)
	if err != nil {
		return nil, values.Error, "Failed to fetch markers", err
	}
	markers := mapview.BuildMarkers(reports, nil, false)
	return mapview.FeatureCollection(markers), values.Success, "Markers fetched successfully", nil
}

// GetReportByIDHelper hides pending reports from everyone but their owner
// and administrators.
func (api *API) GetReportByIDHelper(ctx context.Context, id uuid.UUID, caller uuid.UUID, isAdmin bool) (model.Report, string, string, error) {
	report, err := api.GetReportByIDRepo(ctx, id)
	if errors.Is(err, ErrReportNotFound) {
		return model.Report{}, values.NotFound, "Report not found", err
	}
	if err != nil {
		return model.Report{}, values.Error, "Failed to fetch report", err
	}
	if report.IsPending() && !isAdmin && report.UserID != caller {
		return model.Report{}, values.NotFound, "Report not found", ErrReportNotFound
	}
	return report, values.Success, "Report fetched successfully", nil
}

func (api *API) CreateReportHelper(ctx context.Context, req model.CreateReportRequest) (model.Report, string, string, error) {
	report, err := api.CreateReportRepo(ctx, req)
	if err != nil {
		return model.Report{}, values.Error, "Failed to create report", err
	}

	if api.Metrics != nil {
		api.Metrics.ReportsCreated.WithLabelValues(report.Category).Inc()
	}
	api.publish(model.ReportEvent{
		Type:     model.EventReportCreated,
		ReportID: report.ID,
		UserID:   report.UserID,
		Status:   report.Status,
	})
	return report, values.Created, "Report created successfully", nil
}

// DeleteReportHelper is idempotent: deleting a missing report succeeds.
func (api *API) DeleteReportHelper(ctx context.Context, id uuid.UUID) (string, string, error) {
	owner, status, err := api.DeleteReportRepo(ctx, id)
	if errors.Is(err, ErrReportNotFound) {
		return values.Success, "Report already deleted", nil
	}
	if err != nil {
		return values.Error, "Failed to delete report", err
	}

	api.reportDeleted(id, owner, status)
	return values.Success, "Report deleted successfully", nil
}

// reportDeleted carries the owner and last status so deletions of pending
// reports stay private to the owner and administrators.
func (api *API) reportDeleted(id, owner uuid.UUID, status string) {
	if api.Metrics != nil {
		api.Metrics.ReportsDeleted.Inc()
	}
	api.publish(model.ReportEvent{
		Type:     model.EventReportDeleted,
		ReportID: id,
		UserID:   owner,
		Status:   status,
	})
}

func (api *API) ApproveReportHelper(ctx context.Context, id uuid.UUID) (model.Report, string, string, error) {
	report, err := api.ApproveReportRepo(ctx, id)
	switch {
	case errors.Is(err, ErrReportNotFound):
		return model.Report{}, values.NotFound, "Report not found", err
	case errors.Is(err, ErrReportAlreadyActive):
		return model.Report{}, values.Conflict, "Report is already approved", err
	case err != nil:
		return model.Report{}, values.Error, "Failed to approve report", err
	}

	if api.Metrics != nil {
		api.Metrics.ReportsApproved.Inc()
	}
	api.publish(model.ReportEvent{
		Type:     model.EventReportApproved,
		ReportID: report.ID,
		UserID:   report.UserID,
		Status:   report.Status,
	})
	return report, values.Success, "Report approved", nil
}

// authorizeReportWrite loads the report and checks that the caller owns it
// or is an administrator.
func (api *API) authorizeReportWrite(ctx context.Context, id, caller uuid.UUID, isAdmin bool) (model.Report, string, string, error) {
	report, status, message, err := api.GetReportByIDHelper(ctx, id, caller, isAdmin)
	if err != nil {
		return model.Report{}, status, message, err
	}
	if !isAdmin && report.UserID != caller {
		return model.Report{}, values.NotAllowed, "Only the reporter can change this report", errors.New("caller does not own report")
	}
	return report, values.Success, "", nil
}

func (api *API) AppendProcessedImagesHelper(ctx context.Context, id uuid.UUID, urls []string) (model.Report, string, string, error) {
	report, err := api.AppendProcessedImagesRepo(ctx, id, urls)
	if errors.Is(err, ErrReportNotFound) {
		return model.Report{}, values.NotFound, "Report not found", err
	}
	if err != nil {
		return model.Report{}, values.Error, "Failed to update processed images", err
	}

	api.publish(model.ReportEvent{
		Type:               model.EventReportImages,
		ReportID:           report.ID,
		UserID:             report.UserID,
		Status:             report.Status,
		ProcessedImageURLs: report.ProcessedImageURLs,
	})
	return report, values.Success, "Processed images updated", nil
}

// AnalyzeReportHelper runs the risk analysis for the report image and
// stores any processed images the analysis produced.
func (api *API) AnalyzeReportHelper(ctx context.Context, report model.Report, img model.Image) (model.AnalysisResult, string, string, error) {
	if api.Deps == nil || api.Deps.Analysis == nil {
		return model.AnalysisResult{}, values.Error, "Analysis is not configured", errors.New("analysis client missing")
	}

	result, err := api.Deps.Analysis.AnalyzeImage(ctx, report.ID, img)
	if api.Metrics != nil {
		api.Metrics.AnalysisRequests.WithLabelValues(metrics.Result(err)).Inc()
	}
	if err != nil {
		return model.AnalysisResult{}, values.Error, "Image analysis failed", err
	}

	if len(result.ProcessedImageURLs) > 0 {
		updated, status, message, err := api.AppendProcessedImagesHelper(ctx, report.ID, result.ProcessedImageURLs)
		if err != nil {
			return model.AnalysisResult{}, status, message, err
		}
		result.ProcessedImageURLs = updated.ProcessedImageURLs
	} else {
		result.ProcessedImageURLs = report.ProcessedImageURLs
	}
	return result, values.Success, "Image analysed", nil
}
