package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"git.home.luguber.info/inful/mobilecore/internal/foundation/errors"
	"git.home.luguber.info/inful/mobilecore/internal/network"
)

// Client talks to a running admin API.
type Client struct {
	base  string
	token string
	net   network.Service
}

// NewClient returns a client for the API at base, which may be a bare
// listen address such as ":8089".
func NewClient(base, token string, net network.Service) *Client {
	if strings.HasPrefix(base, ":") {
		base = "127.0.0.1" + base
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{base: strings.TrimRight(base, "/"), token: token, net: net}
}

// Dispatch submits an event and returns the numbered event as a map.
func (c *Client) Dispatch(ctx context.Context, req DispatchRequest) (map[string]any, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "failed to encode event").Build()
	}
	var out map[string]any
	err = c.call(ctx, http.MethodPost, "/v1/events", body, &out)
	return out, err
}

// Queues lists the daemon's hit queues.
func (c *Client) Queues(ctx context.Context) ([]QueueDTO, error) {
	var out []QueueDTO
	err := c.call(ctx, http.MethodGet, "/v1/queues", nil, &out)
	return out, err
}

// Purge deletes every hit in table.
func (c *Client) Purge(ctx context.Context, table string) (PurgeResponse, error) {
	var out PurgeResponse
	err := c.call(ctx, http.MethodDelete, "/v1/queues/"+url.PathEscape(table), nil, &out)
	return out, err
}

func (c *Client) call(ctx context.Context, method, path string, body []byte, into any) error {
	req := network.Request{
		URL:     c.base + path,
		Method:  method,
		Body:    body,
		Headers: map[string]string{"Accept": "application/json"},
	}
	if body != nil {
		req.Headers["Content-Type"] = "application/json"
	}
	if c.token != "" {
		req.Headers["Authorization"] = "Bearer " + c.token
	}
	resp, err := c.net.Connect(ctx, req)
	if err != nil {
		return err
	}

	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	_ = json.Unmarshal(resp.Body, &envelope)
	if resp.StatusCode >= http.StatusBadRequest {
		msg := envelope.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return errors.NewError(categoryForStatus(resp.StatusCode), msg).
			WithContext("status", resp.StatusCode).
			WithContext("path", path).
			Build()
	}
	if into == nil || len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, into); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "unexpected admin API response").
			WithContext("path", path).
			Build()
	}
	return nil
}

func categoryForStatus(code int) errors.ErrorCategory {
	switch code {
	case http.StatusBadRequest:
		return errors.CategoryValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.CategoryAuth
	case http.StatusNotFound:
		return errors.CategoryNotFound
	default:
		return errors.CategoryNetwork
	}
}
