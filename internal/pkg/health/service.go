package health

import (
	"context"
	"sync"
	"time"
)

// ServiceConfig configures the health service
type ServiceConfig struct {
	// AsyncMode runs checks on a ticker and serves cached results
	AsyncMode     bool                `mapstructure:"async_mode"`
	CheckInterval time.Duration       `mapstructure:"check_interval"`
	CheckTimeout  time.Duration       `mapstructure:"check_timeout"`
	Strategy      AggregationStrategy `mapstructure:"strategy"`
	// CriticalProviders must be UP for an overall UP under StrategyCritical
	CriticalProviders []string `mapstructure:"critical_providers"`
}

// DefaultServiceConfig returns default configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		CheckInterval: 30 * time.Second,
		CheckTimeout:  5 * time.Second,
		Strategy:      StrategyAll,
	}
}

// Service runs registered providers and aggregates their results
type Service struct {
	config    ServiceConfig
	mu        sync.RWMutex
	providers []HealthProvider

	cachedResults []HealthCheckResult
	cachedStatus  HealthStatus

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewService creates a health service. In async mode call Start to begin checking.
func NewService(config ServiceConfig) *Service {
	def := DefaultServiceConfig()
	if config.CheckInterval <= 0 {
		config.CheckInterval = def.CheckInterval
	}
	if config.CheckTimeout <= 0 {
		config.CheckTimeout = def.CheckTimeout
	}
	if config.Strategy == "" {
		config.Strategy = def.Strategy
	}
	return &Service{
		config:       config,
		cachedStatus: StatusDown,
		stopCh:       make(chan struct{}),
	}
}

// RegisterProvider adds a provider to every subsequent check
func (s *Service) RegisterProvider(p HealthProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append(s.providers, p)
}

// Check runs all providers in parallel, each bounded by CheckTimeout
func (s *Service) Check(ctx context.Context) ([]HealthCheckResult, HealthStatus) {
	s.mu.RLock()
	providers := append([]HealthProvider(nil), s.providers...)
	s.mu.RUnlock()

	if len(providers) == 0 {
		return []HealthCheckResult{}, StatusDown
	}

	results := make([]HealthCheckResult, len(providers))
	var wg sync.WaitGroup
	for i, p := range providers {
		wg.Add(1)
		go func(idx int, p HealthProvider) {
			defer wg.Done()
			results[idx] = s.checkOne(ctx, p)
		}(i, p)
	}
	wg.Wait()

	status := s.aggregate(results)
	if s.config.AsyncMode {
		s.mu.Lock()
		s.cachedResults = results
		s.cachedStatus = status
		s.mu.Unlock()
	}
	return results, status
}

func (s *Service) checkOne(ctx context.Context, p HealthProvider) HealthCheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, s.config.CheckTimeout)
	defer cancel()

	resultCh := make(chan HealthCheckResult, 1)
	go func() {
		resultCh <- p.Check(checkCtx)
	}()

	select {
	case r := <-resultCh:
		return r
	case <-checkCtx.Done():
		return HealthCheckResult{
			Name:      p.Name(),
			Status:    StatusDown,
			CheckedAt: time.Now(),
			Error:     "health check timeout",
		}
	}
}

// Results returns the cached results in async mode and runs a check otherwise
func (s *Service) Results(ctx context.Context) ([]HealthCheckResult, HealthStatus) {
	if !s.config.AsyncMode {
		return s.Check(ctx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]HealthCheckResult, len(s.cachedResults))
	copy(out, s.cachedResults)
	return out, s.cachedStatus
}

func (s *Service) aggregate(results []HealthCheckResult) HealthStatus {
	critical := make(map[string]bool, len(s.config.CriticalProviders))
	for _, name := range s.config.CriticalProviders {
		critical[name] = true
	}

	overall := StatusUp
	for _, r := range results {
		switch r.Status {
		case StatusDown:
			if s.config.Strategy == StrategyCritical && !critical[r.Name] {
				overall = worse(overall, StatusDegraded)
			} else {
				overall = StatusDown
			}
		case StatusDegraded:
			overall = worse(overall, StatusDegraded)
		}
	}
	return overall
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{StatusUp: 0, StatusDegraded: 1, StatusDown: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// Start begins background checking in async mode; otherwise it does nothing
func (s *Service) Start() {
	if !s.config.AsyncMode {
		return
	}
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()

			ticker := time.NewTicker(s.config.CheckInterval)
			defer ticker.Stop()

			s.Check(context.Background())
			for {
				select {
				case <-ticker.C:
					s.Check(context.Background())
				case <-s.stopCh:
					return
				}
			}
		}()
	})
}

// Stop ends background checking
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
	})
}

// GetHealthResponse returns a formatted health response
func (s *Service) GetHealthResponse(ctx context.Context) HealthResponse {
	results, status := s.Results(ctx)
	return HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    results,
		Details: map[string]interface{}{
			"total_checks": len(results),
			"strategy":     s.config.Strategy,
		},
	}
}
