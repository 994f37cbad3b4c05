package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"

	"github.com/calctra/resmatch/api"
	"github.com/calctra/resmatch/x/matching/types"
)

// Worker runs the computation for a request that has just been started on
// one of the agent's resources.
type Worker func(ctx context.Context, req types.Request) error

// ProviderConfig holds provider agent configuration
type ProviderConfig struct {
	Provider     types.Identity
	Resource     api.RegisterResourceRequest
	PollInterval time.Duration
}

// ProviderAgent registers a resource and starts every computation matched
// to it.
type ProviderAgent struct {
	config ProviderConfig
	client *Client
	worker Worker
	logger log.Logger

	resourceID uint64

	mu       sync.Mutex
	inFlight map[uint64]struct{}
	wg       sync.WaitGroup
}

// NewProviderAgent creates a provider agent. c must carry a token issued
// for cfg.Provider.
func NewProviderAgent(cfg ProviderConfig, c *Client, worker Worker, logger log.Logger) (*ProviderAgent, error) {
	if err := cfg.Provider.Validate("provider"); err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive")
	}
	if worker == nil {
		return nil, fmt.Errorf("worker is required")
	}
	return &ProviderAgent{
		config:   cfg,
		client:   c,
		worker:   worker,
		logger:   logger.With("module", "provider", "provider", cfg.Provider.String()),
		inFlight: make(map[uint64]struct{}),
	}, nil
}

// ResourceID returns the id assigned by Register
func (p *ProviderAgent) ResourceID() uint64 {
	return p.resourceID
}

// Register registers the agent's resource with the matching service
func (p *ProviderAgent) Register(ctx context.Context) error {
	id, err := p.client.RegisterResource(ctx, p.config.Resource)
	if err != nil {
		return fmt.Errorf("failed to register resource: %w", err)
	}
	p.resourceID = id
	p.logger.Info("resource registered", "resource_id", id)
	return nil
}

// Run polls for matched requests until ctx is cancelled, then waits for
// running workers to return.
func (p *ProviderAgent) Run(ctx context.Context) error {
	if p.resourceID == 0 {
		return fmt.Errorf("resource not registered")
	}
	p.logger.Info("starting job polling", "interval", p.config.PollInterval.String())

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()
	defer p.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("job polling stopped")
			return nil
		case <-ticker.C:
			if err := p.CheckForJobs(ctx); err != nil {
				p.logger.Error("error checking for jobs", "error", err)
			}
		}
	}
}

// CheckForJobs starts every matched request bound to the agent's resource
// and hands it to the worker.
func (p *ProviderAgent) CheckForJobs(ctx context.Context) error {
	matched, err := p.client.ListRequestsByStatus(ctx, types.RequestStatusMatched)
	if err != nil {
		return fmt.Errorf("failed to query requests: %w", err)
	}

	for _, req := range matched {
		if req.MatchedResourceID() != p.resourceID || !p.claim(req.Id) {
			continue
		}

		if err := p.client.Start(ctx, req.Id); err != nil {
			p.release(req.Id)
			// Cancelled or finished between the listing and the start. A
			// cancel also unbinds the resource, which surfaces as ErrUnauthorized.
			if errors.Is(err, types.ErrUnauthorized) || errors.Is(err, types.ErrInvalidStateTransition) {
				p.logger.Debug("request no longer startable", "request_id", req.Id, "error", err)
				continue
			}
			return fmt.Errorf("failed to start request %d: %w", req.Id, err)
		}
		req.Status = types.RequestStatusInProgress
		p.logger.Info("computation started", "request_id", req.Id, "requester", req.Requester)

		p.wg.Add(1)
		go func(req types.Request) {
			defer p.wg.Done()
			defer p.release(req.Id)
			if err := p.worker(ctx, req); err != nil {
				p.logger.Error("computation failed", "request_id", req.Id, "error", err)
				return
			}
			p.logger.Info("computation finished", "request_id", req.Id)
		}(req)
	}
	return nil
}

// Wait blocks until every started worker has returned
func (p *ProviderAgent) Wait() {
	p.wg.Wait()
}

func (p *ProviderAgent) claim(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[id]; busy {
		return false
	}
	p.inFlight[id] = struct{}{}
	return true
}

func (p *ProviderAgent) release(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.inFlight, id)
}
