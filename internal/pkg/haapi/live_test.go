package haapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveStates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/states", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"entity_id":"switch.pump_1","state":"on","attributes":{"friendly_name":"Pump"}},
			{"entity_id":"sensor.pump_temp","state":"21.5","attributes":{}}
		]`))
	}))
	defer ts.Close()

	ha := NewLiveClient(ts.URL).WithToken("test-token").WithTimeout(time.Second)

	states, err := ha.States()
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Equal(t, "switch.pump_1", states[0].EntityID)
	assert.Equal(t, "on", states[0].State)
	assert.Equal(t, "Pump", states[0].FriendlyName())
	assert.Equal(t, "sensor.pump_temp", states[1].FriendlyName())
}

func TestLiveStatesUpstreamFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no you don't", http.StatusUnauthorized)
	}))
	defer ts.Close()

	ha := NewLiveClient(ts.URL).WithToken("bad-token")

	_, err := ha.States()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestLiveStateKeepsRawBody(t *testing.T) {
	body := `{"entity_id":"switch.pump_1","state":"off","attributes":{"friendly_name":"Pump"},"custom_field":42}`

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/states/switch.pump_1", r.URL.Path)
		_, _ = w.Write([]byte(body))
	}))
	defer ts.Close()

	ha := NewLiveClient(ts.URL).WithToken("test-token")

	st, err := ha.State("switch.pump_1")
	require.NoError(t, err)
	assert.Equal(t, "off", st.State)

	// Raw carries fields the struct doesn't model
	assert.JSONEq(t, body, string(st.Raw))
}

func TestLiveCallService(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/services/switch/turn_on", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		_, _ = w.Write([]byte(`[{"entity_id":"switch.pump_1","state":"on"}]`))
	}))
	defer ts.Close()

	ha := NewLiveClient(ts.URL).WithToken("test-token")

	result, err := ha.CallService("switch", "turn_on", map[string]interface{}{"entity_id": "switch.pump_1"})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"entity_id":"switch.pump_1","state":"on"}]`, string(result))
}

func TestLiveCallServiceEmptyBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	ha := NewLiveClient(ts.URL).WithToken("test-token")

	result, err := ha.CallService("number", "set_value", map[string]interface{}{
		"entity_id": "number.pump_speed",
		"value":     21.5,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status_code":200}`, string(result))
}

func TestLiveCallServiceUpstreamFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer ts.Close()

	ha := NewLiveClient(ts.URL).WithToken("test-token")

	_, err := ha.CallService("switch", "toggle", map[string]interface{}{"entity_id": "switch.pump_1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "switch/toggle")
}
