package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-openapi/runtime/middleware/header"

	"github.com/mjenner/nodegate/internal/pkg/logging"
)

// errorResponse is the JSON body returned for every failed request.
// The Error field carries a stable machine-readable code; Message is
// optional human-readable detail.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func sendJSONResponse(w http.ResponseWriter, r *http.Request, d interface{}) {
	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	if err := enc.Encode(d); err != nil {
		logging.Logger(r.Context()).WithError(err).Error("sending json response")
	}
}

func sendErrorResponse(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	if err := enc.Encode(errorResponse{Error: code, Message: message}); err != nil {
		logging.Logger(r.Context()).WithError(err).Error("sending json error response")
	}
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Header.Get("Content-Type") != "" {
		value, _ := header.ParseValueAndParams(r.Header, "Content-Type")
		if value != "application/json" {
			return fmt.Errorf("expected JSON request, got %s", value)
		}
	}

	// 100kb max body
	reader := http.MaxBytesReader(w, r.Body, 100*1024)
	dec := json.NewDecoder(reader)

	if err := dec.Decode(&dst); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must only contain a single JSON object")
	}

	return nil
}
