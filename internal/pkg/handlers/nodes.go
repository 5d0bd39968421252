package handlers

import (
	"context"
	"net/http"

	"github.com/korovkin/limiter"

	"github.com/mjenner/nodegate/internal/pkg/haapi"
	"github.com/mjenner/nodegate/internal/pkg/logging"
	"github.com/mjenner/nodegate/internal/pkg/nodemap"
)

const defaultEnrichConcurrency = 8

// nodeSummary is one row of the /api/nodes response. Absent fields
// are emitted as explicit nulls - the web UI renders every column.
type nodeSummary struct {
	Node        string                 `json:"node"`
	Switch      *string                `json:"switch"`
	Sensor      *string                `json:"sensor"`
	Number      *string                `json:"number"`
	Light       *string                `json:"light"`
	SwitchName  *string                `json:"switch_name"`
	SwitchState *string                `json:"switch_state"`
	NumberName  *string                `json:"number_name"`
	NumberState *string                `json:"number_state"`
	NumberAttrs map[string]interface{} `json:"number_attrs"`
	SensorName  *string                `json:"sensor_name"`
	SensorState *string                `json:"sensor_state"`
}

type NodesHandler struct {
	ha            haapi.HomeAssistant
	states        haapi.StatesLister
	domains       map[string]bool
	maxConcurrent int
}

// NewNodesHandler builds the GET /api/nodes handler. Bulk snapshots
// come from states (normally the TTL cache); the per-entity
// enrichment reads go straight to ha for live values.
func NewNodesHandler(ha haapi.HomeAssistant, states haapi.StatesLister, domains map[string]bool) NodesHandler {
	if domains == nil {
		domains = nodemap.DefaultDomains
	}

	return NodesHandler{
		ha:            ha,
		states:        states,
		domains:       domains,
		maxConcurrent: defaultEnrichConcurrency,
	}
}

func (h *NodesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	states, err := h.states.States()
	if err != nil {
		logging.Logger(r.Context()).WithError(err).Error("fetching state snapshot")
		sendErrorResponse(w, r, http.StatusInternalServerError, "discover_failed", err.Error())
		return
	}

	nodes := nodemap.Build(states, h.domains)
	tokens := nodemap.Tokens(nodes)

	// Each goroutine fills its own slot, so the aggregate stays in
	// token order without further coordination.
	items := make([]nodeSummary, len(tokens))

	limit := limiter.NewConcurrencyLimiter(h.maxConcurrent)
	for i, token := range tokens {
		i, node := i, nodes[token]
		limit.Execute(func() {
			items[i] = h.summarise(r.Context(), node)
		})
	}
	limit.Wait()

	sendJSONResponse(w, r, items)
}

// summarise resolves the live state of a node's representative
// entities. A failed read leaves that entity's fields null; one bad
// entity never fails the whole listing.
func (h *NodesHandler) summarise(ctx context.Context, node *nodemap.Node) nodeSummary {
	item := nodeSummary{
		Node:   node.Token,
		Switch: reprPtr(node, "switch"),
		Sensor: reprPtr(node, "sensor"),
		Number: reprPtr(node, "number"),
		Light:  reprPtr(node, "light"),
	}

	for _, domain := range []string{"switch", "number", "sensor"} {
		eid, ok := node.Repr[domain]
		if !ok {
			continue
		}

		st, err := h.ha.State(eid)
		if err != nil {
			logging.Logger(ctx).WithError(err).Errorf("fetching state for %s", eid)
			continue
		}

		name := st.FriendlyName()
		state := st.State

		switch domain {
		case "switch":
			item.SwitchName = &name
			item.SwitchState = &state
		case "number":
			item.NumberName = &name
			item.NumberState = &state
			item.NumberAttrs = st.Attributes
		case "sensor":
			item.SensorName = &name
			item.SensorState = &state
		}
	}

	return item
}

func reprPtr(node *nodemap.Node, domain string) *string {
	if eid, ok := node.Repr[domain]; ok {
		return &eid
	}

	return nil
}
