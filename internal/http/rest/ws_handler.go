package rest

import (
	"errors"
	"net/http"

	"github.com/bwise1/hazard_map/util"
	"github.com/bwise1/hazard_map/util/values"
)

// ServeWebSocket subscribes the caller to report events. Anonymous viewers
// only receive events about approved reports.
func (api *API) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	if api.Deps == nil || api.Deps.WebSocket == nil {
		writeErrorResponse(w, errors.New("websocket hub missing"), values.Error, "live updates are not available")
		return
	}

	userID := ""
	if id, err := util.GetUserIDFromContext(r.Context()); err == nil {
		userID = id.String()
	}
	api.Deps.WebSocket.HandleConnections(w, r, userID, util.IsAdminFromContext(r.Context()))
}
