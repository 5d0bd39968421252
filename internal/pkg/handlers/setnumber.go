package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mjenner/nodegate/internal/pkg/haapi"
	"github.com/mjenner/nodegate/internal/pkg/logging"
	"github.com/mjenner/nodegate/internal/pkg/nodemap"
)

type setNumberRequest struct {
	Node  string      `json:"node" validate:"required"`
	Value interface{} `json:"value"`
}

type setNumberResponse struct {
	Status string          `json:"status"`
	Entity string          `json:"entity"`
	Value  float64         `json:"value"`
	Result json.RawMessage `json:"result"`
}

type SetNumberHandler struct {
	ha       haapi.HomeAssistant
	states   haapi.StatesLister
	domains  map[string]bool
	validate *validator.Validate
}

// NewSetNumberHandler builds the POST /api/set_number handler, which
// writes a value to the representative number entity of a node.
func NewSetNumberHandler(ha haapi.HomeAssistant, states haapi.StatesLister, domains map[string]bool) SetNumberHandler {
	if domains == nil {
		domains = nodemap.DefaultDomains
	}

	return SetNumberHandler{
		ha:       ha,
		states:   states,
		domains:  domains,
		validate: validator.New(),
	}
}

func (h *SetNumberHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req setNumberRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		logging.Logger(r.Context()).WithError(err).Debug("decoding set_number request")
		req = setNumberRequest{}
	}

	if err := h.validate.Struct(req); err != nil {
		sendErrorResponse(w, r, http.StatusBadRequest, "no_node", "")
		return
	}

	value, ok := toFloat(req.Value)
	if !ok {
		sendErrorResponse(w, r, http.StatusBadRequest, "invalid_value", "")
		return
	}

	states, err := h.states.States()
	if err != nil {
		logging.Logger(r.Context()).WithError(err).Error("fetching state snapshot")
		sendErrorResponse(w, r, http.StatusInternalServerError, "discover_failed", err.Error())
		return
	}

	node, ok := nodemap.Build(states, h.domains)[req.Node]
	if !ok {
		sendErrorResponse(w, r, http.StatusNotFound, "node_not_found", "")
		return
	}

	eid, ok := node.Repr["number"]
	if !ok {
		sendErrorResponse(w, r, http.StatusBadRequest, "no_number_for_node", "")
		return
	}

	result, err := h.ha.CallService("number", "set_value", map[string]interface{}{
		"entity_id": eid,
		"value":     value,
	})
	if err != nil {
		logging.Logger(r.Context()).WithError(err).Error("number service call failed")
		sendErrorResponse(w, r, http.StatusInternalServerError, "service_failed", err.Error())
		return
	}

	sendJSONResponse(w, r, setNumberResponse{
		Status: "ok",
		Entity: eid,
		Value:  value,
		Result: result,
	})
}

// toFloat accepts JSON numbers and numeric strings, matching what the
// web UI sends from form inputs.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
