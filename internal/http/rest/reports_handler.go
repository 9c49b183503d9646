package rest

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bwise1/hazard_map/internal/model"
	"github.com/bwise1/hazard_map/util"
	"github.com/bwise1/hazard_map/util/tracing"
	"github.com/bwise1/hazard_map/util/values"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var errPendingNeedsLogin = errors.New("pending reports require login")

func (api *API) ReportRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.OptionalLogin)
		r.Method(http.MethodGet, "/", Handler(api.ListReports))
		r.Method(http.MethodGet, "/markers", Handler(api.GetReportMarkers))
		r.Method(http.MethodGet, "/{reportID}", Handler(api.GetReportByID))
	})

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Method(http.MethodPost, "/", Handler(api.CreateReport))
		r.Method(http.MethodPost, "/{reportID}/processed-images", Handler(api.AppendProcessedImages))
		r.Method(http.MethodPost, "/{reportID}/analysis", Handler(api.AnalyzeReport))

		r.Group(func(r chi.Router) {
			r.Use(api.RequireAdmin)
			r.Method(http.MethodDelete, "/{reportID}", Handler(api.DeleteReport))
			r.Method(http.MethodPut, "/{reportID}/approve", Handler(api.ApproveReport))
		})
	})

	return mux
}

// parseReportQuery reads the listing filters from the query string.
func parseReportQuery(v url.Values) (model.ReportQuery, error) {
	var q model.ReportQuery

	switch status := v.Get("status"); status {
	case "", model.StatusPending, model.StatusApproved:
		q.Status = status
	default:
		return q, fmt.Errorf("invalid status %q", status)
	}

	if category := v.Get("category"); category != "" && category != "all" {
		valid := false
		for _, c := range model.Categories {
			valid = valid || c == category
		}
		if !valid {
			return q, fmt.Errorf("invalid category %q", category)
		}
		q.Category = category
	}

	if s := v.Get("severity"); s != "" && s != "all" {
		severity, err := strconv.Atoi(s)
		if err != nil || severity < model.MinSeverity || severity > model.MaxSeverity {
			return q, fmt.Errorf("invalid severity %q", s)
		}
		q.Severity = severity
	}

	if s := v.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, fmt.Errorf("invalid since: %w", err)
		}
		q.Since = &since
	}

	if s := v.Get("user_id"); s != "" {
		id, err := util.StringToUUID(s)
		if err != nil {
			return q, fmt.Errorf("invalid user_id: %w", err)
		}
		q.UserID = &id
	}
	return q, nil
}

// scopeReportQuery limits what a caller may list. Anonymous callers and
// regular users see approved reports, plus their own pending ones when
// they ask for them. Administrators see everything.
func scopeReportQuery(q model.ReportQuery, caller uuid.UUID, isAdmin bool) (model.ReportQuery, error) {
	if isAdmin {
		return q, nil
	}
	switch q.Status {
	case model.StatusPending:
		if caller == uuid.Nil {
			return q, errPendingNeedsLogin
		}
		q.UserID = &caller
	default:
		q.Status = model.StatusApproved
	}
	return q, nil
}

func callerFromContext(r *http.Request) (uuid.UUID, bool) {
	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		userID = uuid.Nil
	}
	return userID, util.IsAdminFromContext(r.Context())
}

func reportIDParam(r *http.Request) (uuid.UUID, error) {
	return util.StringToUUID(chi.URLParam(r, "reportID"))
}

func (api *API) ListReports(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	q, err := parseReportQuery(r.URL.Query())
	if err != nil {
		return respondWithError(err, err.Error(), values.BadRequestBody, &tc)
	}

	caller, isAdmin := callerFromContext(r)
	q, err = scopeReportQuery(q, caller, isAdmin)
	if err != nil {
		return respondWithError(err, "login required to list pending reports", values.NotAuthorised, &tc)
	}

	reports, status, message, err := api.ListReportsHelper(r.Context(), q)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       reports,
	}
}

func (api *API) GetReportMarkers(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	q, err := parseReportQuery(r.URL.Query())
	if err != nil {
		return respondWithError(err, err.Error(), values.BadRequestBody, &tc)
	}

	fc, status, message, err := api.MarkerFeaturesHelper(r.Context(), q)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       fc,
	}
}

func (api *API) GetReportByID(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	reportID, err := reportIDParam(r)
	if err != nil {
		return respondWithError(err, "invalid report ID", values.BadRequestBody, &tc)
	}

	caller, isAdmin := callerFromContext(r)
	report, status, message, err := api.GetReportByIDHelper(r.Context(), reportID, caller, isAdmin)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       report,
	}
}

// normalizeCreateRequest fills the defaults a reporter may leave out and
// forces the initial status.
func normalizeCreateRequest(req *model.CreateReportRequest) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Category == "" {
		req.Category = model.CategoryOther
	}
	if req.Severity == 0 {
		req.Severity = model.MinSeverity
	}
	req.Status = model.StatusPending
}

func (api *API) CreateReport(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	var req model.CreateReportRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}

	userId, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	normalizeCreateRequest(&req)
	req.UserID = userId
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, "validation failed: "+err.Error(), values.BadRequestBody, &tc)
	}

	report, status, message, err := api.CreateReportHelper(r.Context(), req)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       report,
	}
}

func (api *API) DeleteReport(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	reportID, err := reportIDParam(r)
	if err != nil {
		return respondWithError(err, "invalid report ID", values.BadRequestBody, &tc)
	}

	status, message, err := api.DeleteReportHelper(r.Context(), reportID)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
	}
}

func (api *API) ApproveReport(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	reportID, err := reportIDParam(r)
	if err != nil {
		return respondWithError(err, "invalid report ID", values.BadRequestBody, &tc)
	}

	report, status, message, err := api.ApproveReportHelper(r.Context(), reportID)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       report,
	}
}

func (api *API) AppendProcessedImages(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	reportID, err := reportIDParam(r)
	if err != nil {
		return respondWithError(err, "invalid report ID", values.BadRequestBody, &tc)
	}

	var req model.AppendImagesRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, "validation failed: "+err.Error(), values.BadRequestBody, &tc)
	}

	caller, isAdmin := callerFromContext(r)
	if _, status, message, err := api.authorizeReportWrite(r.Context(), reportID, caller, isAdmin); err != nil {
		return respondWithError(err, message, status, &tc)
	}

	report, status, message, err := api.AppendProcessedImagesHelper(r.Context(), reportID, req.URLs)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       report,
	}
}

func (api *API) AnalyzeReport(w http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	reportID, err := reportIDParam(r)
	if err != nil {
		return respondWithError(err, "invalid report ID", values.BadRequestBody, &tc)
	}

	img, status, message, err := api.readImageForm(w, r, "file")
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	caller, isAdmin := callerFromContext(r)
	report, status, message, err := api.authorizeReportWrite(r.Context(), reportID, caller, isAdmin)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	result, status, message, err := api.AnalyzeReportHelper(r.Context(), report, img)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       result,
	}
}
