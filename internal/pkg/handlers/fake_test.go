package handlers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/mjenner/nodegate/internal/pkg/haapi"
)

// fakeHA is an in-memory HomeAssistant used by the handler tests. It
// also serves as the snapshot source, standing in for the TTL cache.
type fakeHA struct {
	states    []haapi.EntityState
	statesErr error

	stateByID map[string]*haapi.EntityState
	stateErr  map[string]error

	serviceResult json.RawMessage
	serviceErr    error
	calls         []serviceCall
}

type serviceCall struct {
	domain  string
	service string
	payload map[string]interface{}
}

func newFakeHA(states ...haapi.EntityState) *fakeHA {
	return &fakeHA{
		states:        states,
		stateByID:     map[string]*haapi.EntityState{},
		stateErr:      map[string]error{},
		serviceResult: json.RawMessage(`{"status_code":200}`),
	}
}

func (f *fakeHA) WithToken(string) haapi.HomeAssistant          { return f }
func (f *fakeHA) WithTimeout(time.Duration) haapi.HomeAssistant { return f }

func (f *fakeHA) States() ([]haapi.EntityState, error) {
	if f.statesErr != nil {
		return nil, f.statesErr
	}

	return f.states, nil
}

func (f *fakeHA) State(entityID string) (*haapi.EntityState, error) {
	if err := f.stateErr[entityID]; err != nil {
		return nil, err
	}

	st, ok := f.stateByID[entityID]
	if !ok {
		return nil, errors.New("entity not found")
	}

	return st, nil
}

func (f *fakeHA) CallService(domain string, service string, payload map[string]interface{}) (json.RawMessage, error) {
	f.calls = append(f.calls, serviceCall{domain: domain, service: service, payload: payload})

	if f.serviceErr != nil {
		return nil, f.serviceErr
	}

	return f.serviceResult, nil
}
