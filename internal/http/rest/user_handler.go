package rest

import (
	"errors"
	"net/http"

	"github.com/bwise1/hazard_map/util"
	"github.com/bwise1/hazard_map/util/tracing"
	"github.com/bwise1/hazard_map/util/values"
	"github.com/go-chi/chi/v5"
)

func (api *API) UserRoutes() chi.Router {
	mux := chi.NewRouter()

	mux.Route("/", func(r chi.Router) {
		r.Use(api.RequireLogin)
		r.Method(http.MethodGet, "/profile", Handler(api.GetProfile))
	})

	return mux
}

// GetProfile returns the caller with their point balance.
func (api *API) GetProfile(_ http.ResponseWriter, r *http.Request) *ServerResponse {
	tc := r.Context().Value(values.ContextTracingKey).(tracing.Context)

	userID, err := util.GetUserIDFromContext(r.Context())
	if err != nil {
		return respondWithError(err, "unable to get user ID from context", values.NotAuthorised, &tc)
	}

	user, err := api.GetUserByIDRepo(r.Context(), userID)
	if errors.Is(err, ErrUserNotFound) {
		return respondWithError(err, "User not found", values.NotFound, &tc)
	}
	if err != nil {
		return respondWithError(err, "failed to get user profile", values.Error, &tc)
	}

	return &ServerResponse{
		Message:    "User profile retrieved successfully",
		Status:     values.Success,
		StatusCode: util.StatusCode(values.Success),
		Data:       user,
	}
}
