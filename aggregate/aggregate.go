package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate/internal/cache"
	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate/internal/fetchlog"
)

// Service runs the fallback chain for registered modules against one
// shared process-wide cache. Construct it once at startup and inject it;
// there are no package-level singletons.
type Service struct {
	cache   *cache.Store[[]ContentItem]
	config  *Config
	logger  *slog.Logger
	now     func() time.Time
	flog    *fetchlog.Log
	modules map[string]SourceStrategy
	order   []string
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithClock overrides the clock. Tests use this to cross TTL boundaries.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithFetchLog attaches the diagnostics log. Optional; log failures are
// warned and swallowed, never surfaced to callers.
func WithFetchLog(l *fetchlog.Log) ServiceOption {
	return func(s *Service) { s.flog = l }
}

// New creates a Service.
func New(cfg *Config, logger *slog.Logger, opts ...ServiceOption) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		config:  cfg,
		logger:  logger,
		now:     time.Now,
		modules: make(map[string]SourceStrategy),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = cache.New(cache.WithNow[[]ContentItem](s.now))
	return s
}

// Register adds a module strategy. Call during startup, before serving;
// registration is not synchronized against Get.
func (s *Service) Register(strat SourceStrategy) error {
	name := strat.Module()
	if name == "" {
		return fmt.Errorf("aggregate: strategy has empty module name")
	}
	if _, exists := s.modules[name]; exists {
		return fmt.Errorf("aggregate: module %q already registered", name)
	}
	if len(strat.BuiltinSeed()) < s.config.moduleConfig(name).MinimumItems {
		return fmt.Errorf("aggregate: module %q built-in seed smaller than minimum", name)
	}
	s.modules[name] = strat
	s.order = append(s.order, name)
	return nil
}

// Modules returns registered module names in registration order.
func (s *Service) Modules() []string {
	return append([]string(nil), s.order...)
}

// Get runs the fallback chain for one module. The only error it returns
// is ErrUnknownModule: upstream trouble is expressed through the
// payload's provenance and status, and a programming error inside the
// chain degrades to a well-formed "unavailable" payload.
func (s *Service) Get(ctx context.Context, module string, opts GetOptions) (payload *ModulePayload, err error) {
	strat, ok := s.modules[module]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, module)
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("module run panicked", "module", module, "panic", r)
			payload = &ModulePayload{
				Provenance: ProvenanceSeed,
				Status:     StatusUnavailable,
				FetchedAt:  s.now(),
				Items:      []ContentItem{},
				Note:       "internal error",
			}
			err = nil
		}
	}()

	return s.run(ctx, strat, opts), nil
}

// GetAll runs every registered module concurrently (each module's own
// chain stays sequential) and returns the per-module payloads plus a
// worst-of aggregate status.
func (s *Service) GetAll(ctx context.Context, opts GetOptions) (map[string]*ModulePayload, Status) {
	results := make(map[string]*ModulePayload, len(s.order))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, name := range s.order {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			p, err := s.Get(ctx, name, opts)
			if err != nil {
				return
			}
			mu.Lock()
			results[name] = p
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	return results, aggregateStatus(results)
}

// aggregateStatus folds module statuses: ok only if everything is ok,
// failed only if nothing is healthy, degraded otherwise.
func aggregateStatus(results map[string]*ModulePayload) Status {
	if len(results) == 0 {
		return StatusUnavailable
	}
	allOK := true
	anyOK := false
	for _, p := range results {
		switch p.Status {
		case StatusOK:
			anyOK = true
		case StatusDegraded:
			allOK = false
			anyOK = true
		default:
			allOK = false
		}
	}
	switch {
	case allOK:
		return StatusOK
	case anyOK:
		return StatusDegraded
	default:
		return StatusFailed
	}
}

// OpenFetchLog opens (creating if needed) the SQLite fetch diagnostics
// log at path. Pass the result to WithFetchLog; callers outside this
// package use the returned value opaquely.
func OpenFetchLog(path string) (*fetchlog.Log, error) {
	return fetchlog.Open(path)
}

// RecentFetchAttempts returns the newest fetch log entries, optionally
// filtered by module. Without an attached fetch log it returns nothing.
func (s *Service) RecentFetchAttempts(ctx context.Context, module string, limit int) ([]*fetchlog.Entry, error) {
	if s.flog == nil {
		return nil, nil
	}
	return s.flog.Recent(ctx, module, limit)
}

// CleanupFetchLog drops fetch log entries older than retention.
func (s *Service) CleanupFetchLog(ctx context.Context, retention time.Duration) error {
	if s.flog == nil {
		return nil
	}
	return s.flog.Cleanup(ctx, retention)
}

// CacheKeys exposes the cache key space for the debug endpoint.
func (s *Service) CacheKeys() []string {
	keys := s.cache.Keys()
	sort.Strings(keys)
	return keys
}

// CacheSnapshot returns the stale view of one cache key for the debug
// endpoint: items, write time, presence.
func (s *Service) CacheSnapshot(key string) ([]ContentItem, time.Time, bool) {
	return s.cache.GetStale(key)
}
