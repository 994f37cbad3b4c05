// Package client is a Go client for the resmatch HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sdkerrors "cosmossdk.io/errors"

	"github.com/calctra/resmatch/api"
	"github.com/calctra/resmatch/x/matching/types"
)

const defaultTimeout = 30 * time.Second

// Client provides methods to interact with a resmatch API server
type Client struct {
	baseURL string
	token   string
	httpCli *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpCli = c }
}

// WithToken sets the bearer token sent on every request
func WithToken(token string) Option {
	return func(cl *Client) { cl.token = token }
}

// New creates a client for the server at baseURL, e.g. http://127.0.0.1:8080
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https, got %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCli: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// APIError is a non-2xx response. It unwraps to the registered matching
// error named by the response's codespace and code, so errors.Is works
// against the types.Err* values.
type APIError struct {
	StatusCode int
	Response   api.ErrorResponse
	kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("resmatch api: %d %s", e.StatusCode, e.Response.Error)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(body, &apiErr.Response); err != nil || apiErr.Response.Error == "" {
		apiErr.Response.Error = strings.TrimSpace(string(body))
	}
	if apiErr.Response.Codespace != "" && apiErr.Response.ABCICode != 0 {
		apiErr.kind = sdkerrors.ABCIError(apiErr.Response.Codespace, apiErr.Response.ABCICode, apiErr.Response.Error)
	}
	return apiErr
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		bz, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(bz)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// Resources

func (c *Client) RegisterResource(ctx context.Context, req api.RegisterResourceRequest) (uint64, error) {
	var resp types.MsgRegisterResourceResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/resources", req, &resp); err != nil {
		return 0, err
	}
	return resp.ResourceId, nil
}

func (c *Client) SetResourceActive(ctx context.Context, id uint64, active bool) error {
	path := fmt.Sprintf("/api/v1/resources/%d/active", id)
	return c.do(ctx, http.MethodPut, path, api.SetResourceActiveRequest{Active: active}, nil)
}

func (c *Client) UpdateResourcePrice(ctx context.Context, id, price uint64) error {
	path := fmt.Sprintf("/api/v1/resources/%d/price", id)
	return c.do(ctx, http.MethodPut, path, api.UpdateResourcePriceRequest{PricePerUnit: price}, nil)
}

func (c *Client) GetResource(ctx context.Context, id uint64) (types.Resource, error) {
	var res types.Resource
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/resources/%d", id), nil, &res)
	return res, err
}

// ListResourcesByProvider returns every resource registered by provider
func (c *Client) ListResourcesByProvider(ctx context.Context, provider types.Identity) ([]types.Resource, error) {
	var resp struct {
		Resources []types.Resource `json:"resources"`
	}
	path := "/api/v1/resources?provider=" + url.QueryEscape(provider.String())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Resources, nil
}

// Requests

func (c *Client) SubmitRequest(ctx context.Context, req api.SubmitRequestRequest) (uint64, error) {
	var resp types.MsgSubmitRequestResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/requests", req, &resp); err != nil {
		return 0, err
	}
	return resp.RequestId, nil
}

func (c *Client) GetRequest(ctx context.Context, id uint64) (types.Request, error) {
	var req types.Request
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/requests/%d", id), nil, &req)
	return req, err
}

// ListRequestsByStatus returns every request currently in status
func (c *Client) ListRequestsByStatus(ctx context.Context, status types.RequestStatus) ([]types.Request, error) {
	var resp struct {
		Requests []types.Request `json:"requests"`
	}
	path := "/api/v1/requests?status=" + url.QueryEscape(status.String())
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Requests, nil
}

// Candidates returns the eligible resources for a pending request, best first
func (c *Client) Candidates(ctx context.Context, requestID uint64) ([]types.Resource, error) {
	var resp struct {
		Candidates []types.Resource `json:"candidates"`
	}
	path := fmt.Sprintf("/api/v1/requests/%d/candidates", requestID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Candidates, nil
}

func (c *Client) Match(ctx context.Context, requestID, resourceID uint64) (types.MsgMatchRequestResponse, error) {
	var resp types.MsgMatchRequestResponse
	path := fmt.Sprintf("/api/v1/requests/%d/match", requestID)
	err := c.do(ctx, http.MethodPost, path, api.MatchRequestRequest{ResourceID: resourceID}, &resp)
	return resp, err
}

func (c *Client) AutoMatch(ctx context.Context, requestID uint64) (types.MsgMatchRequestResponse, error) {
	var resp types.MsgMatchRequestResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/auto-match", requestID), nil, &resp)
	return resp, err
}

func (c *Client) Start(ctx context.Context, requestID uint64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/start", requestID), nil, nil)
}

func (c *Client) Complete(ctx context.Context, requestID uint64, req api.CompleteRequest) (types.MsgCompleteComputationResponse, error) {
	var resp types.MsgCompleteComputationResponse
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/complete", requestID), req, &resp)
	return resp, err
}

func (c *Client) Cancel(ctx context.Context, requestID uint64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/cancel", requestID), nil, nil)
}

// Module

func (c *Client) State(ctx context.Context) (types.SystemState, error) {
	var state types.SystemState
	err := c.do(ctx, http.MethodGet, "/api/v1/state", nil, &state)
	return state, err
}

func (c *Client) Params(ctx context.Context) (types.Params, error) {
	var params types.Params
	err := c.do(ctx, http.MethodGet, "/api/v1/params", nil, &params)
	return params, err
}
