package api

import "net/http"

// registerRoutes registers all API routes. Reads are public, every state
// change needs a bearer token.
func (s *Server) registerRoutes() {
	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	// Resource routes
	v1.Handle("/resources", s.protected(s.handleRegisterResource)).Methods(http.MethodPost)
	v1.Handle("/resources", s.public(s.handleListResources)).Methods(http.MethodGet)
	v1.Handle("/resources/{id:[0-9]+}", s.public(s.handleGetResource)).Methods(http.MethodGet)
	v1.Handle("/resources/{id:[0-9]+}/active", s.protected(s.handleSetResourceActive)).Methods(http.MethodPut)
	v1.Handle("/resources/{id:[0-9]+}/price", s.protected(s.handleUpdateResourcePrice)).Methods(http.MethodPut)

	// Request routes
	v1.Handle("/requests", s.protected(s.handleSubmitRequest)).Methods(http.MethodPost)
	v1.Handle("/requests", s.public(s.handleListRequests)).Methods(http.MethodGet)
	v1.Handle("/requests/{id:[0-9]+}", s.public(s.handleGetRequest)).Methods(http.MethodGet)
	v1.Handle("/requests/{id:[0-9]+}/candidates", s.public(s.handleRankCandidates)).Methods(http.MethodGet)
	v1.Handle("/requests/{id:[0-9]+}/match", s.protected(s.handleMatch)).Methods(http.MethodPost)
	v1.Handle("/requests/{id:[0-9]+}/auto-match", s.protected(s.handleAutoMatch)).Methods(http.MethodPost)
	v1.Handle("/requests/{id:[0-9]+}/start", s.protected(s.handleStart)).Methods(http.MethodPost)
	v1.Handle("/requests/{id:[0-9]+}/complete", s.protected(s.handleComplete)).Methods(http.MethodPost)
	v1.Handle("/requests/{id:[0-9]+}/cancel", s.protected(s.handleCancel)).Methods(http.MethodPost)

	// Module routes
	v1.Handle("/params", s.public(s.handleGetParams)).Methods(http.MethodGet)
	v1.Handle("/params", s.protected(s.handleUpdateParams)).Methods(http.MethodPut)
	v1.Handle("/state", s.public(s.handleGetState)).Methods(http.MethodGet)
	v1.Handle("/events", s.public(s.handleRecentEvents)).Methods(http.MethodGet)
	v1.Handle("/genesis", s.public(s.handleExportGenesis)).Methods(http.MethodGet)
}

func (s *Server) public(h http.HandlerFunc) http.Handler {
	return s.RateLimitMiddleware(h)
}

func (s *Server) protected(h http.HandlerFunc) http.Handler {
	return s.AuthMiddleware(s.RateLimitMiddleware(h))
}
