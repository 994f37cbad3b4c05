package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/calctra/resmatch/app/health"
	keepertest "github.com/calctra/resmatch/testutil/keeper"
	"github.com/calctra/resmatch/testutil/sample"
	"github.com/calctra/resmatch/x/matching/keeper"
	"github.com/calctra/resmatch/x/matching/types"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type ServerTestSuite struct {
	suite.Suite

	server *Server
	keeper *keeper.Keeper
	events *types.EventBuffer

	provider  types.Identity
	requester types.Identity
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}

func (s *ServerTestSuite) SetupTest() {
	s.events = types.NewEventBuffer(64)
	k, db := keepertest.MatchingKeeperWithDB(s.T(), keeper.WithEventSink(s.events))
	s.keeper = k

	checker, err := health.NewChecker(log.NewNopLogger(), health.DefaultConfig(), k, db)
	s.Require().NoError(err)

	cfg := DefaultConfig()
	cfg.JWTSecret = testSecret
	cfg.RateLimitRPS = 0
	s.server, err = NewServer(log.NewNopLogger(), cfg, k, s.events, checker)
	s.Require().NoError(err)

	s.provider = sample.Identity("provider")
	s.requester = sample.Identity("requester")
}

func (s *ServerTestSuite) token(id types.Identity) string {
	tok, err := s.server.Auth().GenerateToken(id)
	s.Require().NoError(err)
	return tok
}

func (s *ServerTestSuite) do(method, path string, as types.Identity, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		bz, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(bz)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if !as.Empty() {
		req.Header.Set("Authorization", "Bearer "+s.token(as))
	}
	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) decode(rec *httptest.ResponseRecorder, v interface{}) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func (s *ServerTestSuite) registerResource(price uint64) uint64 {
	rec := s.do(http.MethodPost, "/api/v1/resources", s.provider, RegisterResourceRequest{
		ResourceType: "cpu",
		Spec:         sample.Spec(8, 16),
		PricePerUnit: price,
		Location:     "US",
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var resp types.MsgRegisterResourceResponse
	s.decode(rec, &resp)
	return resp.ResourceId
}

func (s *ServerTestSuite) submitRequest(maxPrice uint64) uint64 {
	rec := s.do(http.MethodPost, "/api/v1/requests", s.requester, SubmitRequestRequest{
		ComputationType: "batch",
		Spec:            sample.Spec(4, 8),
		MaxPricePerUnit: maxPrice,
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var resp types.MsgSubmitRequestResponse
	s.decode(rec, &resp)
	return resp.RequestId
}

func (s *ServerTestSuite) TestLifecycleOverHTTP() {
	resourceID := s.registerResource(4)
	requestID := s.submitRequest(10)

	rec := s.do(http.MethodGet, fmt.Sprintf("/api/v1/requests/%d/candidates", requestID), "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var candidates struct {
		Candidates []types.Resource `json:"candidates"`
	}
	s.decode(rec, &candidates)
	s.Require().Len(candidates.Candidates, 1)

	rec = s.do(http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/match", requestID), s.requester,
		MatchRequestRequest{ResourceID: resourceID})
	s.Require().Equal(http.StatusForbidden, rec.Code)
	var errResp ErrorResponse
	s.decode(rec, &errResp)
	s.Require().Equal(types.ModuleName, errResp.Codespace)
	s.Require().Equal(types.ErrUnauthorizedMatcher.ABCICode(), errResp.ABCICode)
	s.Require().NotEmpty(errResp.Suggestion)
	s.Require().NotEmpty(errResp.RequestID)

	rec = s.do(http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/match", requestID), keepertest.TestAuthority,
		MatchRequestRequest{ResourceID: resourceID})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var matched types.MsgMatchRequestResponse
	s.decode(rec, &matched)
	s.Require().Equal(uint64(1), matched.ActiveMatches)

	rec = s.do(http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/start", requestID), s.provider, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/complete", requestID), s.requester,
		CompleteRequest{ResourceID: resourceID, ActualDuration: 3, Success: true})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var completed struct {
		Status        string `json:"status"`
		Reputation    int64  `json:"reputation"`
		SettledAmount string `json:"settled_amount"`
	}
	s.decode(rec, &completed)
	s.Require().Equal("COMPLETED", completed.Status)
	s.Require().Equal(int64(1), completed.Reputation)
	s.Require().Equal("12", completed.SettledAmount)

	rec = s.do(http.MethodGet, "/api/v1/state", "", nil)
	var state types.SystemState
	s.decode(rec, &state)
	s.Require().Equal(uint64(0), state.ActiveMatches)
	s.Require().Equal(uint64(1), state.RequestCount)

	rec = s.do(http.MethodGet, "/api/v1/requests?status=completed", "", nil)
	var listed struct {
		Requests []types.Request `json:"requests"`
		Total    int             `json:"total"`
	}
	s.decode(rec, &listed)
	s.Require().Equal(1, listed.Total)
	s.Require().Equal(requestID, listed.Requests[0].Id)

	rec = s.do(http.MethodGet, "/api/v1/events?limit=500", "", nil)
	var recent struct {
		Events []types.Event `json:"events"`
	}
	s.decode(rec, &recent)
	var kinds []string
	for _, ev := range recent.Events {
		kinds = append(kinds, ev.Type)
	}
	s.Require().Contains(kinds, types.EventTypeRequestMatched)
	s.Require().Contains(kinds, types.EventTypeRequestCompleted)
}

func (s *ServerTestSuite) TestAutoMatchAndCancel() {
	s.registerResource(2)
	requestID := s.submitRequest(5)

	rec := s.do(http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/auto-match", requestID), keepertest.TestAuthority, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/cancel", requestID), s.requester, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	// Cancelled is final.
	rec = s.do(http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/cancel", requestID), s.requester, nil)
	s.Require().Equal(http.StatusConflict, rec.Code)
}

func (s *ServerTestSuite) TestResourceManagement() {
	resourceID := s.registerResource(2)
	path := fmt.Sprintf("/api/v1/resources/%d", resourceID)

	stranger := sample.Identity("stranger")
	rec := s.do(http.MethodPut, path+"/price", stranger, UpdateResourcePriceRequest{PricePerUnit: 9})
	s.Require().Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPut, path+"/price", s.provider, UpdateResourcePriceRequest{PricePerUnit: 9})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPut, path+"/active", s.provider, SetResourceActiveRequest{Active: false})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, path, "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var res types.Resource
	s.decode(rec, &res)
	s.Require().Equal(uint64(9), res.PricePerUnit)
	s.Require().False(res.Active)

	rec = s.do(http.MethodGet, "/api/v1/resources?active=true", "", nil)
	var active struct {
		Total int `json:"total"`
	}
	s.decode(rec, &active)
	s.Require().Zero(active.Total)

	rec = s.do(http.MethodGet, "/api/v1/resources?provider="+s.provider.String(), "", nil)
	var owned struct {
		Total int `json:"total"`
	}
	s.decode(rec, &owned)
	s.Require().Equal(1, owned.Total)
}

func (s *ServerTestSuite) TestUpdateParamsRequiresAuthority() {
	params := types.DefaultParams()
	params.MaxMatchesPerResource = 3

	rec := s.do(http.MethodPut, "/api/v1/params", s.provider, UpdateParamsRequest{Params: params})
	s.Require().Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPut, "/api/v1/params", keepertest.TestAuthority, UpdateParamsRequest{Params: params})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/params", "", nil)
	var got types.Params
	s.decode(rec, &got)
	s.Require().Equal(uint32(3), got.MaxMatchesPerResource)
}

func (s *ServerTestSuite) TestAuthentication() {
	rec := s.do(http.MethodPost, "/api/v1/requests", "", SubmitRequestRequest{})
	s.Require().Equal(http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)
	s.Require().Equal(http.StatusUnauthorized, rec.Code)

	other := NewAuthService([]byte("another-secret-another-secret-xx"), DefaultConfig().TokenTTL)
	forged, err := other.GenerateToken(s.requester)
	s.Require().NoError(err)
	req = httptest.NewRequest(http.MethodPost, "/api/v1/requests", strings.NewReader("{}"))
	req.Header.Set("Authorization", "Bearer "+forged)
	rec = httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)
	s.Require().Equal(http.StatusUnauthorized, rec.Code)
}

func (s *ServerTestSuite) TestBadInput() {
	rec := s.do(http.MethodGet, "/api/v1/requests/0", "", nil)
	s.Require().Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/requests/42", "", nil)
	s.Require().Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/requests?status=bogus", "", nil)
	s.Require().Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/events?limit=-1", "", nil)
	s.Require().Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/requests", s.requester, map[string]interface{}{"surprise": true})
	s.Require().Equal(http.StatusBadRequest, rec.Code)

	// Invalid requirements are rejected by message validation.
	rec = s.do(http.MethodPost, "/api/v1/requests", s.requester, SubmitRequestRequest{
		Spec:           sample.Spec(1, 1),
		StrictLocation: true,
	})
	s.Require().Equal(http.StatusBadRequest, rec.Code)
}

func (s *ServerTestSuite) TestRequestIDAndHeaders() {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/state", nil)
	req.Header.Set(RequestIDHeader, "trace-me")
	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)

	s.Require().Equal("trace-me", rec.Header().Get(RequestIDHeader))
	s.Require().Equal("nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = s.do(http.MethodGet, "/api/v1/state", "", nil)
	s.Require().NotEmpty(rec.Header().Get(RequestIDHeader))
}

func (s *ServerTestSuite) TestCORSPreflight() {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/requests", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.server.Handler().ServeHTTP(rec, req)

	s.Require().Equal(http.StatusNoContent, rec.Code)
	s.Require().Equal("http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func (s *ServerTestSuite) TestHealthAndGenesisRoutes() {
	rec := s.do(http.MethodGet, "/health", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	s.registerResource(1)
	rec = s.do(http.MethodGet, "/api/v1/genesis", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var gs types.GenesisState
	s.decode(rec, &gs)
	s.Require().NoError(gs.Validate())
	s.Require().Len(gs.Resources, 1)
}

func TestRateLimit(t *testing.T) {
	k, _ := keepertest.MatchingKeeper(t)
	cfg := DefaultConfig()
	cfg.JWTSecret = testSecret
	cfg.RateLimitRPS = 1
	cfg.RateLimitBurst = 1
	server, err := NewServer(log.NewNopLogger(), cfg, k, nil, nil)
	require.NoError(t, err)
	t.Cleanup(server.limiter.Close)

	get := func() int {
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/state", nil))
		return rec.Code
	}
	require.Equal(t, http.StatusOK, get())
	require.Equal(t, http.StatusTooManyRequests, get())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "missing address", mutate: func(c *Config) { c.Address = "" }, wantErr: "address is required"},
		{name: "address without port", mutate: func(c *Config) { c.Address = "localhost" }, wantErr: "invalid api address"},
		{name: "short secret", mutate: func(c *Config) { c.JWTSecret = "short" }, wantErr: "jwt secret"},
		{name: "zero ttl", mutate: func(c *Config) { c.TokenTTL = 0 }, wantErr: "token ttl"},
		{name: "negative rps", mutate: func(c *Config) { c.RateLimitRPS = -1 }, wantErr: "rate limits"},
		{name: "rps without burst", mutate: func(c *Config) { c.RateLimitBurst = 0 }, wantErr: "burst"},
		{name: "zero body limit", mutate: func(c *Config) { c.MaxRequestBytes = 0 }, wantErr: "max request bytes"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{types.ErrRequestNotFound.Wrap("request 9"), http.StatusNotFound},
		{types.ErrUnauthorizedCompletion, http.StatusForbidden},
		{types.ErrPriceTooHigh.Wrapf("price %d", 5), http.StatusUnprocessableEntity},
		{types.ErrNoEligibleResource, http.StatusUnprocessableEntity},
		{types.ErrSettlementFailed, http.StatusBadGateway},
		{types.JoinErrors(types.ErrRequestNotPending, types.ErrInvalidStateTransition), http.StatusConflict},
		{types.ErrCounterUnderflow, http.StatusInternalServerError},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		require.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(types.ErrResourceEngaged.Wrap("resource 3"))
	require.Equal(t, "MATCHING_ERROR", resp.Code)
	require.Equal(t, types.ModuleName, resp.Codespace)
	require.Equal(t, types.ErrResourceEngaged.ABCICode(), resp.ABCICode)
	require.Contains(t, resp.Error, "resource 3")

	joined := NewErrorResponse(types.JoinErrors(types.ErrInvalidStateTransition.Wrap("COMPLETED -> COMPLETED"), types.ErrRequestNotMatched.Wrap("request 4 is COMPLETED")))
	require.Equal(t, types.ErrInvalidStateTransition.ABCICode(), joined.ABCICode)
	require.NotContains(t, joined.Error, "[")
	require.Equal(t, "COMPLETED -> COMPLETED: invalid request state transition: request 4 is COMPLETED: request is not matched", joined.Error)

	plain := NewErrorResponse(fmt.Errorf("boom"))
	require.Equal(t, "INTERNAL_ERROR", plain.Code)
	require.Zero(t, plain.ABCICode)
}
