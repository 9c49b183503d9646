package rest

import (
	"net/http"

	"github.com/bwise1/hazard_map/internal/model"
	"github.com/bwise1/hazard_map/util"
	"github.com/bwise1/hazard_map/util/tracing"
	"github.com/bwise1/hazard_map/util/values"
	"github.com/go-chi/chi/v5"
)

func (api *API) PointRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Group(func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Method(http.MethodPost, "/", Handler(api.AwardPoints))
	})

	return mux
}

func (api *API) AwardPoints(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	var req model.AwardPointsRequest
	if decodeErr := util.DecodeJSONBody(&tc, r.Body, &req); decodeErr != nil {
		return respondWithError(decodeErr, "unable to decode request", values.BadRequestBody, &tc)
	}
	if err := util.ValidateStruct(req); err != nil {
		return respondWithError(err, "validation failed: "+err.Error(), values.BadRequestBody, &tc)
	}

	caller, isAdmin := callerFromContext(r)
	points, status, message, err := api.AwardPointsHelper(r.Context(), caller, isAdmin, req)
	if err != nil {
		return respondWithError(err, message, status, &tc)
	}

	return &ServerResponse{
		Message:    message,
		Status:     status,
		StatusCode: util.StatusCode(status),
		Data:       map[string]int{"points": points},
	}
}
