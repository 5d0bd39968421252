package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/mjenner/nodegate/internal/pkg/haapi"
	"github.com/mjenner/nodegate/internal/pkg/logging"
	"github.com/mjenner/nodegate/internal/pkg/nodemap"
)

type actionRequest struct {
	Node   string `json:"node" validate:"required"`
	Action string `json:"action" validate:"omitempty,oneof=on off toggle"`
}

var serviceForAction = map[string]string{
	"on":     "turn_on",
	"off":    "turn_off",
	"toggle": "toggle",
}

type actionResponse struct {
	Status string          `json:"status"`
	Entity string          `json:"entity"`
	Action string          `json:"action"`
	Result json.RawMessage `json:"result"`
}

type ActionHandler struct {
	ha       haapi.HomeAssistant
	states   haapi.StatesLister
	domains  map[string]bool
	validate *validator.Validate
}

// NewActionHandler builds the POST /api/action handler, which drives
// the representative switch entity of a node.
func NewActionHandler(ha haapi.HomeAssistant, states haapi.StatesLister, domains map[string]bool) ActionHandler {
	if domains == nil {
		domains = nodemap.DefaultDomains
	}

	return ActionHandler{
		ha:       ha,
		states:   states,
		domains:  domains,
		validate: validator.New(),
	}
}

func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		// An unreadable body validates the same as an empty one
		logging.Logger(r.Context()).WithError(err).Debug("decoding action request")
		req = actionRequest{}
	}
	req.Action = strings.ToLower(req.Action)

	if err := h.validate.Struct(req); err != nil {
		code := "no_node"
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 && errs[0].Field() == "Action" {
			code = "invalid_action"
		}
		sendErrorResponse(w, r, http.StatusBadRequest, code, "")
		return
	}

	if req.Action == "" {
		req.Action = "toggle"
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

	eid, ok := node.Repr["switch"]
	if !ok {
		sendErrorResponse(w, r, http.StatusBadRequest, "no_switch_for_node", "")
		return
	}

	// The representative may live in another switch-like domain
	// (e.g. light); the service is invoked on its own domain.
	domain := eid[:strings.Index(eid, ".")]

	result, err := h.ha.CallService(domain, serviceForAction[req.Action], map[string]interface{}{
		"entity_id": eid,
	})
	if err != nil {
		logging.Logger(r.Context()).WithError(err).Error("service call failed")
		sendErrorResponse(w, r, http.StatusInternalServerError, "service_failed", err.Error())
		return
	}

	sendJSONResponse(w, r, actionResponse{
		Status: "ok",
		Entity: eid,
		Action: req.Action,
		Result: result,
	})
}
