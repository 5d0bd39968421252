package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mjenner/nodegate/internal/pkg/haapi"
	"github.com/mjenner/nodegate/internal/pkg/logging"
)

type StateHandler struct {
	ha haapi.HomeAssistant
}

// NewStateHandler builds the GET /api/state/{entity_id} passthrough.
func NewStateHandler(ha haapi.HomeAssistant) StateHandler {
	return StateHandler{ha: ha}
}

func (h *StateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entity_id"]

	st, err := h.ha.State(entityID)
	if err != nil {
		sendErrorResponse(w, r, http.StatusInternalServerError, "failed", err.Error())
		return
	}

	// Forward the upstream body untouched
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(st.Raw); err != nil {
		logging.Logger(r.Context()).WithError(err).Error("writing state response")
	}
}
