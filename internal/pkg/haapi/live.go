package haapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const maxErrorBodyExcerpt = 512

// Live talks to a real Home Assistant core REST API using a static
// bearer token (the supervisor proxy token in the add-on case).
type Live struct {
	baseURL string
	token   string
	timeout time.Duration
	client  *http.Client
}

func NewLiveClient(baseURL string) *Live {
	return &Live{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
}

func (c *Live) WithToken(token string) HomeAssistant {
	nc := *c
	nc.token = token
	return &nc
}

func (c *Live) WithTimeout(d time.Duration) HomeAssistant {
	nc := *c
	nc.timeout = d
	return &nc
}

// WithHTTPClient replaces the underlying HTTP client, mostly for tests.
func (c *Live) WithHTTPClient(hc *http.Client) *Live {
	nc := *c
	nc.client = hc
	return &nc
}

func (c *Live) MakeContext() (context.Context, context.CancelFunc) {
	var ctx = context.Background()
	var cancel context.CancelFunc = func() {}
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.timeout)
	}

	return ctx, cancel
}

func (c *Live) get(path string) ([]byte, error) {
	ctx, cancel := c.MakeContext()
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building upstream request")
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "calling GET %s", path)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	if err := checkStatus(resp, body); err != nil {
		return nil, errors.Wrapf(err, "calling GET %s", path)
	}

	return body, nil
}

func (c *Live) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}

func checkStatus(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	excerpt := body
	if len(excerpt) > maxErrorBodyExcerpt {
		excerpt = excerpt[:maxErrorBodyExcerpt]
	}

	return fmt.Errorf("upstream returned %d (%s): %s", resp.StatusCode, resp.Status, excerpt)
}

func (c *Live) States() ([]EntityState, error) {
	body, err := c.get("/states")
	if err != nil {
		return nil, errors.Wrap(err, "listing entity states")
	}

	var states []EntityState
	if err := json.Unmarshal(body, &states); err != nil {
		return nil, errors.Wrap(err, "decoding entity state list")
	}

	return states, nil
}

func (c *Live) State(entityID string) (*EntityState, error) {
	body, err := c.get("/states/" + entityID)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching state of %s", entityID)
	}

	var state EntityState
	if err := json.Unmarshal(body, &state); err != nil {
		return nil, errors.Wrapf(err, "decoding state of %s", entityID)
	}
	state.Raw = body

	return &state, nil
}

func (c *Live) CallService(domain string, service string, payload map[string]interface{}) (json.RawMessage, error) {
	ctx, cancel := c.MakeContext()
	defer cancel()

	path := "/services/" + domain + "/" + service

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "encoding service payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, errors.Wrap(err, "building upstream request")
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "calling service %s/%s", domain, service)
	}
	defer resp.Body.Close()

	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading service response body")
	}

	if err := checkStatus(resp, body); err != nil {
		return nil, errors.Wrapf(err, "calling service %s/%s", domain, service)
	}

	// Some services return an empty or non-JSON body on success; report
	// the status code instead so callers always get valid JSON back.
	if !json.Valid(body) || len(bytes.TrimSpace(body)) == 0 {
		return json.Marshal(map[string]int{"status_code": resp.StatusCode})
	}

	return body, nil
}
