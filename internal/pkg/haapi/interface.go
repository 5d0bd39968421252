package haapi

import (
	"encoding/json"
	"time"
)

// EntityState is one record from the Home Assistant /api/states
// endpoint. Attributes are schema-less upstream so we keep them as a
// generic map. Raw holds the undecoded response body when the record
// was fetched individually, for handlers that pass it through as-is.
type EntityState struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged string                 `json:"last_changed"`
	LastUpdated string                 `json:"last_updated"`

	Raw json.RawMessage `json:"-"`
}

// FriendlyName returns the display name of the entity, falling back
// to the entity ID when the attribute is missing or not a string.
func (s *EntityState) FriendlyName() string {
	if v, ok := s.Attributes["friendly_name"]; ok {
		if name, ok := v.(string); ok && name != "" {
			return name
		}
	}

	return s.EntityID
}

// StatesLister is the subset of the upstream API needed to take a
// bulk state snapshot.
type StatesLister interface {
	States() ([]EntityState, error)
}

type HomeAssistant interface {
	StatesLister

	WithToken(token string) HomeAssistant
	WithTimeout(d time.Duration) HomeAssistant
	State(entityID string) (*EntityState, error)
	CallService(domain string, service string, payload map[string]interface{}) (json.RawMessage, error)
}
