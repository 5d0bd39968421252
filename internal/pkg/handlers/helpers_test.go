package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Node string `json:"node"`
	}

	t.Run("accepts a single json object", func(t *testing.T) {
		r := newJSONRequest(t, http.MethodPost, "/", `{"node":"pump"}`)

		var p payload
		require.NoError(t, decodeJSONBody(httptest.NewRecorder(), r, &p))
		assert.Equal(t, "pump", p.Node)
	})

	t.Run("rejects non-json content type", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"node":"pump"}`))
		r.Header.Set("Content-Type", "text/plain")

		var p payload
		assert.Error(t, decodeJSONBody(httptest.NewRecorder(), r, &p))
	})

	t.Run("rejects trailing data", func(t *testing.T) {
		r := newJSONRequest(t, http.MethodPost, "/", `{"node":"pump"}{"node":"again"}`)

		var p payload
		assert.Error(t, decodeJSONBody(httptest.NewRecorder(), r, &p))
	})
}
