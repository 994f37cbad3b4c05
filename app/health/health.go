// Package health provides health check functionality for the resmatch daemon.
//
// The checker reports on:
// - Backing database reachability and latency
// - Matching state counters
// - Matching invariants (detailed checks only)
//
// The health check system supports multiple endpoints:
// - /health - Basic liveness check
// - /health/ready - Readiness check for load balancers
// - /health/detailed - Comprehensive status including invariants
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"cosmossdk.io/log"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/gorilla/mux"

	"github.com/calctra/resmatch/x/matching/keeper"
)

// Status represents the health status of a component
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// ComponentHealth represents the health status of a single component
type ComponentHealth struct {
	Status    Status                 `json:"status"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metrics   map[string]interface{} `json:"metrics,omitempty"`
}

// HealthCheck represents the overall health check response
type HealthCheck struct {
	Status     Status                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

// Checker performs health checks on the store and the matching state
type Checker struct {
	logger  log.Logger
	keeper  *keeper.Keeper
	db      dbm.DB
	version string

	maxResponseTime time.Duration

	mu            sync.RWMutex
	lastCheck     time.Time
	cachedHealth  *HealthCheck
	cacheDuration time.Duration
}

// Config holds configuration for the health checker
type Config struct {
	// MaxResponseTime is the store latency above which the store is degraded
	MaxResponseTime time.Duration

	// CacheDuration is how long to cache health check results
	CacheDuration time.Duration

	// Version is reported in every health response
	Version string
}

// DefaultConfig returns the default health check configuration
func DefaultConfig() Config {
	return Config{
		MaxResponseTime: time.Second,
		CacheDuration:   5 * time.Second,
	}
}

// NewChecker creates a new health checker
func NewChecker(logger log.Logger, cfg Config, k *keeper.Keeper, db dbm.DB) (*Checker, error) {
	if k == nil {
		return nil, fmt.Errorf("matching keeper is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	return &Checker{
		logger:          logger,
		keeper:          k,
		db:              db,
		version:         cfg.Version,
		maxResponseTime: cfg.MaxResponseTime,
		cacheDuration:   cfg.CacheDuration,
	}, nil
}

type componentCheck struct {
	name string
	fn   func(context.Context) ComponentHealth
}

// Check performs a health check. Detailed checks also run the matching
// invariants and are never served from cache.
func (c *Checker) Check(ctx context.Context, detailed bool) (*HealthCheck, error) {
	if !detailed && c.shouldUseCached() {
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.cachedHealth, nil
	}

	health := &HealthCheck{
		Timestamp:  time.Now(),
		Version:    c.version,
		Components: make(map[string]ComponentHealth),
	}

	checks := []componentCheck{
		{"store", c.checkStore},
		{"matching", c.checkMatching},
	}
	if detailed {
		checks = append(checks, componentCheck{"invariants", c.checkInvariants})
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, check := range checks {
		wg.Add(1)
		go func(name string, fn func(context.Context) ComponentHealth) {
			defer wg.Done()
			result := fn(ctx)
			mu.Lock()
			health.Components[name] = result
			mu.Unlock()
		}(check.name, check.fn)
	}
	wg.Wait()

	health.Status = c.calculateOverallStatus(health.Components)

	if !detailed {
		c.mu.Lock()
		c.lastCheck = time.Now()
		c.cachedHealth = health
		c.mu.Unlock()
	}

	return health, nil
}

// checkStore verifies the backing database answers reads in time
func (c *Checker) checkStore(ctx context.Context) ComponentHealth {
	start := time.Now()
	_, err := c.db.Has(keeper.SystemStateKey)
	duration := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:    StatusUnhealthy,
			Message:   fmt.Sprintf("Database read failed: %v", err),
			Timestamp: time.Now(),
		}
	}

	metrics := map[string]interface{}{
		"query_time_ms": duration.Milliseconds(),
	}
	for k, v := range c.db.Stats() {
		metrics[k] = v
	}

	componentStatus := StatusHealthy
	message := "Database is responsive"
	if c.maxResponseTime > 0 && duration > c.maxResponseTime {
		componentStatus = StatusDegraded
		message = "Database response time is degraded"
	}

	return ComponentHealth{
		Status:    componentStatus,
		Message:   message,
		Timestamp: time.Now(),
		Metrics:   metrics,
	}
}

// checkMatching reports the matching counters
func (c *Checker) checkMatching(ctx context.Context) ComponentHealth {
	state, err := c.keeper.GetSystemState(ctx)
	if err != nil {
		return ComponentHealth{
			Status:    StatusUnhealthy,
			Message:   fmt.Sprintf("Failed to load matching state: %v", err),
			Timestamp: time.Now(),
		}
	}

	active, err := c.keeper.GetActiveResources(ctx)
	if err != nil {
		return ComponentHealth{
			Status:    StatusUnhealthy,
			Message:   fmt.Sprintf("Failed to list active resources: %v", err),
			Timestamp: time.Now(),
		}
	}

	metrics := map[string]interface{}{
		"resources":        state.ResourceCount,
		"requests":         state.RequestCount,
		"active_matches":   state.ActiveMatches,
		"active_resources": len(active),
	}

	componentStatus := StatusHealthy
	message := "Matching is operational"
	if len(active) == 0 {
		componentStatus = StatusDegraded
		message = "No active resources registered"
	}

	return ComponentHealth{
		Status:    componentStatus,
		Message:   message,
		Timestamp: time.Now(),
		Metrics:   metrics,
	}
}

// checkInvariants runs every matching invariant against the stored state
func (c *Checker) checkInvariants(ctx context.Context) ComponentHealth {
	msg, broken := keeper.AllInvariants(c.keeper)(ctx)
	if broken {
		c.logger.Error("matching invariant broken", "detail", msg)
		return ComponentHealth{
			Status:    StatusUnhealthy,
			Message:   msg,
			Timestamp: time.Now(),
		}
	}

	return ComponentHealth{
		Status:    StatusHealthy,
		Message:   "All invariants hold",
		Timestamp: time.Now(),
	}
}

// calculateOverallStatus determines the overall health status based on component statuses
func (c *Checker) calculateOverallStatus(components map[string]ComponentHealth) Status {
	hasUnhealthy := false
	hasDegraded := false

	for _, component := range components {
		switch component.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		return StatusUnhealthy
	}
	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// shouldUseCached determines if cached health check results should be used
func (c *Checker) shouldUseCached() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.cachedHealth == nil {
		return false
	}

	return time.Since(c.lastCheck) < c.cacheDuration
}

// RegisterRoutes registers health check endpoints on router
func (c *Checker) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", c.handleHealth).Methods("GET")
	router.HandleFunc("/health/ready", c.handleHealthReady).Methods("GET")
	router.HandleFunc("/health/detailed", c.handleHealthDetailed).Methods("GET")
}

// handleHealth handles the basic liveness check endpoint
func (c *Checker) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, response)
}

// handleHealthReady handles the readiness check endpoint
func (c *Checker) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, false)
}

// handleHealthDetailed handles the detailed health check endpoint
func (c *Checker) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, true)
}

func (c *Checker) respond(w http.ResponseWriter, r *http.Request, detailed bool) {
	health, err := c.Check(r.Context(), detailed)
	if err != nil {
		c.logger.Error("Health check failed", "error", err, "detailed", detailed)
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	// Degraded is still ready.
	statusCode := http.StatusOK
	if health.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, health)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
