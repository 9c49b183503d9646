package rest

import (
	"context"
	"errors"

	"github.com/bwise1/hazard_map/internal/model"
	"github.com/bwise1/hazard_map/util/values"
	"github.com/google/uuid"
)

// awardReason maps a reward amount to its ledger reason. Regular users may
// only award the submission and view rewards.
func (api *API) awardReason(delta int) (string, bool) {
	switch delta {
	case api.Config.SubmitPoints:
		return model.AwardReasonSubmit, true
	case api.Config.ViewPoints:
		return model.AwardReasonView, true
	default:
		return "", false
	}
}

// AwardPointsHelper credits req.UserID. Administrators may award any amount.
// Everyone else earns each reward once per report, only for its owner, and
// only the owner can claim the submission reward.
func (api *API) AwardPointsHelper(ctx context.Context, caller uuid.UUID, isAdmin bool, req model.AwardPointsRequest) (int, string, string, error) {
	if isAdmin {
		points, err := api.AwardPointsRepo(ctx, req.UserID, req.Delta)
		return api.awardResult(points, req.Delta, err)
	}

	reason, ok := api.awardReason(req.Delta)
	if !ok {
		return 0, values.NotAllowed, "points delta not allowed", errors.New("delta not allowed")
	}
	if req.ReportID == nil {
		return 0, values.BadRequestBody, "report_id is required", errors.New("missing report id")
	}

	report, err := api.GetReportByIDRepo(ctx, *req.ReportID)
	if errors.Is(err, ErrReportNotFound) {
		return 0, values.NotFound, "Report not found", err
	}
	if err != nil {
		return 0, values.Error, "Failed to load report", err
	}
	if report.Status == model.StatusPending && caller != report.UserID {
		return 0, values.NotFound, "Report not found", ErrReportNotFound
	}
	if report.UserID != req.UserID {
		return 0, values.NotAllowed, "points go to the report owner", errors.New("award target is not the report owner")
	}
	if reason == model.AwardReasonSubmit && caller != report.UserID {
		return 0, values.NotAllowed, "only the reporter earns submission points", errors.New("submission award by non-owner")
	}

	points, err := api.AwardReportPointsRepo(ctx, caller, req, reason)
	if errors.Is(err, ErrPointsAlreadyAwarded) {
		return 0, values.Conflict, "Points already awarded for this report", err
	}
	return api.awardResult(points, req.Delta, err)
}

func (api *API) awardResult(points, delta int, err error) (int, string, string, error) {
	if errors.Is(err, ErrUserNotFound) {
		return 0, values.NotFound, "User not found", err
	}
	if err != nil {
		return 0, values.Error, "Failed to award points", err
	}
	if api.Metrics != nil {
		api.Metrics.PointsAwarded.Add(float64(delta))
	}
	return points, values.Success, "Points awarded", nil
}
