package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjenner/nodegate/internal/pkg/haapi"
)

func numberStates() []haapi.EntityState {
	return []haapi.EntityState{
		{EntityID: "number.pump_speed"},
		{EntityID: "switch.pump_1"},
		{EntityID: "binary_sensor.door_open"},
	}
}

func TestSetNumberValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing node",
			body:       `{"value":1}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "no_node",
		},
		{
			name:       "non-numeric string value",
			body:       `{"node":"pump","value":"abc"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_value",
		},
		{
			name:       "missing value",
			body:       `{"node":"pump"}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_value",
		},
		{
			name:       "boolean value",
			body:       `{"node":"pump","value":true}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid_value",
		},
		{
			name:       "unknown node",
			body:       `{"node":"nothere","value":1}`,
			wantStatus: http.StatusNotFound,
			wantError:  "node_not_found",
		},
		{
			name:       "node without number entity",
			body:       `{"node":"door","value":1}`,
			wantStatus: http.StatusBadRequest,
			wantError:  "no_number_for_node",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha := newFakeHA(numberStates()...)
			h := NewSetNumberHandler(ha, ha, nil)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, newJSONRequest(t, http.MethodPost, "/api/set_number", tt.body))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantError, decodeError(t, w).Error)
			assert.Empty(t, ha.calls)
		})
	}
}

func TestSetNumberInvokesService(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float64
	}{
		{
			name: "json number",
			body: `{"node":"pump","value":21.5}`,
			want: 21.5,
		},
		{
			name: "numeric string",
			body: `{"node":"pump","value":"42"}`,
			want: 42,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha := newFakeHA(numberStates()...)
			h := NewSetNumberHandler(ha, ha, nil)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, newJSONRequest(t, http.MethodPost, "/api/set_number", tt.body))

			require.Equal(t, http.StatusOK, w.Code)

			require.Len(t, ha.calls, 1)
			assert.Equal(t, "number", ha.calls[0].domain)
			assert.Equal(t, "set_value", ha.calls[0].service)
			assert.Equal(t, "number.pump_speed", ha.calls[0].payload["entity_id"])
			assert.Equal(t, tt.want, ha.calls[0].payload["value"])

			var resp setNumberResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "ok", resp.Status)
			assert.Equal(t, "number.pump_speed", resp.Entity)
			assert.Equal(t, tt.want, resp.Value)
		})
	}
}

func TestSetNumberServiceFailure(t *testing.T) {
	ha := newFakeHA(numberStates()...)
	ha.serviceErr = errors.New("upstream said no")
	h := NewSetNumberHandler(ha, ha, nil)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, newJSONRequest(t, http.MethodPost, "/api/set_number", `{"node":"pump","value":1}`))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "service_failed", resp.Error)
	assert.Contains(t, resp.Message, "upstream said no")
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in     interface{}
		want   float64
		wantOK bool
	}{
		{float64(3.5), 3.5, true},
		{"3.5", 3.5, true},
		{" 7 ", 7, true},
		{"abc", 0, false},
		{true, 0, false},
		{nil, 0, false},
		{[]interface{}{1.0}, 0, false},
	}

	for _, tt := range tests {
		got, ok := toFloat(tt.in)
		assert.Equal(t, tt.wantOK, ok, "input %v", tt.in)
		if tt.wantOK {
			assert.Equal(t, tt.want, got, "input %v", tt.in)
		}
	}
}
