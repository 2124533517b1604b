package health

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// Config configures the health service
type Config struct {
	// AsyncMode runs checks in the background and serves cached results
	AsyncMode     bool
	CheckInterval time.Duration
	// Timeout bounds each provider check
	Timeout  time.Duration
	Strategy Strategy
	Critical []string
}

// DefaultConfig returns synchronous checks with a 5s timeout
func DefaultConfig() Config {
	return Config{
		CheckInterval: 30 * time.Second,
		Timeout:       5 * time.Second,
		Strategy:      StrategyAll,
	}
}

// Service aggregates provider checks
type Service struct {
	cfg   Config
	clock clockwork.Clock

	mu        sync.RWMutex
	providers []Provider
	cached    []CheckResult
	status    Status

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewService creates a health service. In async mode Start launches the
// background loop and Stop ends it.
func NewService(cfg Config) *Service {
	return newService(cfg, clockwork.NewRealClock())
}

func newService(cfg Config, clock clockwork.Clock) *Service {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Strategy == "" {
		cfg.Strategy = def.Strategy
	}

	return &Service{
		cfg:    cfg,
		clock:  clock,
		status: StatusDown,
		stopCh: make(chan struct{}),
	}
}

// Start runs the first check and launches the background loop. It is a no-op
// unless the service is async.
func (s *Service) Start() {
	if !s.cfg.AsyncMode {
		return
	}
	s.startOnce.Do(func() {
		s.Check(context.Background())
		s.wg.Add(1)
		go s.run()
	})
}

// Register adds a provider
func (s *Service) Register(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append(s.providers, p)
}

// Providers returns the names of the registered providers
func (s *Service) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// Check runs every provider concurrently. With no providers the service
// reports DOWN.
func (s *Service) Check(ctx context.Context) ([]CheckResult, Status) {
	s.mu.RLock()
	providers := append([]Provider(nil), s.providers...)
	s.mu.RUnlock()

	results := make([]CheckResult, len(providers))
	var g errgroup.Group
	for i, p := range providers {
		i, p := i, p
		g.Go(func() error {
			results[i] = s.checkOne(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	status := s.aggregate(results)
	if s.cfg.AsyncMode {
		s.mu.Lock()
		s.cached, s.status = results, status
		s.mu.Unlock()
	}
	return results, status
}

func (s *Service) checkOne(ctx context.Context, p Provider) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	done := make(chan CheckResult, 1)
	go func() { done <- p.Check(ctx) }()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return CheckResult{
			Name:      p.Name(),
			Status:    StatusDown,
			CheckedAt: s.clock.Now(),
			Error:     "health check timeout",
		}
	}
}

// Cached returns the last background results, or runs a check when the
// service is synchronous.
func (s *Service) Cached(ctx context.Context) ([]CheckResult, Status) {
	if !s.cfg.AsyncMode {
		return s.Check(ctx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]CheckResult(nil), s.cached...), s.status
}

// Response builds the readiness body
func (s *Service) Response(ctx context.Context) Response {
	results, status := s.Cached(ctx)
	return Response{
		Status:    status,
		Timestamp: s.clock.Now(),
		Checks:    results,
		Details: map[string]any{
			"total_checks": len(results),
			"strategy":     s.cfg.Strategy,
		},
	}
}

func (s *Service) aggregate(results []CheckResult) Status {
	if len(results) == 0 {
		return StatusDown
	}

	critical := make(map[string]bool, len(s.cfg.Critical))
	for _, name := range s.cfg.Critical {
		critical[name] = true
	}

	overall := StatusUp
	for _, r := range results {
		switch r.Status {
		case StatusUp:
		case StatusDegraded:
			overall = StatusDegraded
		default:
			if s.cfg.Strategy == StrategyCritical && !critical[r.Name] {
				overall = StatusDegraded
				continue
			}
			return StatusDown
		}
	}
	return overall
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			s.Check(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Stop ends the background loop. It is safe to call more than once.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
