package aggregate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// stubStrategy is a hand-wired SourceStrategy for chain tests.
type stubStrategy struct {
	module  string
	kind    SourceKind
	primary FetchFunc
	alts    []FetchFunc
	seed    []ContentItem
}

func (s *stubStrategy) Module() string   { return s.module }
func (s *stubStrategy) Kind() SourceKind { return s.kind }
func (s *stubStrategy) Primary(ctx context.Context) ([]ContentItem, error) {
	return s.primary(ctx)
}
func (s *stubStrategy) Alternates() []FetchFunc    { return s.alts }
func (s *stubStrategy) BuiltinSeed() []ContentItem { return s.seed }

// fakeClock is a mutable clock shared between the test and the service.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newsItem(n int) ContentItem {
	return ContentItem{
		Title:       fmt.Sprintf("Example market story number %d", n),
		URL:         fmt.Sprintf("https://example.com/articles/market-story-%d", n),
		SourceLabel: "example",
	}
}

func newsItems(ns ...int) []ContentItem {
	out := make([]ContentItem, 0, len(ns))
	for _, n := range ns {
		out = append(out, newsItem(n))
	}
	return out
}

func staticFetch(items []ContentItem) FetchFunc {
	return func(context.Context) ([]ContentItem, error) { return items, nil }
}

func failingFetch(err error) FetchFunc {
	return func(context.Context) ([]ContentItem, error) { return nil, err }
}

func builtinSeed() []ContentItem {
	return newsItems(901, 902, 903, 904, 905)
}

// newTestService wires a Service with a fake clock and a 3-item minimum.
func newTestService(t *testing.T, clock *fakeClock, strat SourceStrategy) *Service {
	t.Helper()
	cfg := &Config{Defaults: ModuleConfig{
		MinimumItems:     3,
		CacheTTL:         10 * time.Minute,
		WarmSeedTTL:      7 * 24 * time.Hour,
		WarmSeedCapacity: 20,
		FetchTimeout:     2 * time.Second,
	}}
	svc := New(cfg, slog.New(slog.DiscardHandler), WithClock(clock.Now))
	if err := svc.Register(strat); err != nil {
		t.Fatalf("Register: %v", err)
	}
	return svc
}

func mustGet(t *testing.T, svc *Service, module string, opts GetOptions) *ModulePayload {
	t.Helper()
	p, err := svc.Get(context.Background(), module, opts)
	if err != nil {
		t.Fatalf("Get(%s): %v", module, err)
	}
	return p
}

// WHAT: a healthy primary source satisfies the request on its own.
// WHY: the happy path must report live provenance and populate both the
// fresh cache and the warm seed for later outages.
func TestGetLivePrimary(t *testing.T) {
	clock := newFakeClock()
	strat := &stubStrategy{
		module:  "marketnews",
		kind:    KindNews,
		primary: staticFetch(newsItems(1, 2, 3, 4)),
		seed:    builtinSeed(),
	}
	svc := newTestService(t, clock, strat)

	p := mustGet(t, svc, "marketnews", GetOptions{})
	if p.Provenance != ProvenanceLive || p.Status != StatusOK {
		t.Fatalf("got %s/%s, want live/ok", p.Provenance, p.Status)
	}
	if len(p.Items) != 4 {
		t.Fatalf("got %d items, want 4", len(p.Items))
	}
	if _, _, ok := svc.CacheSnapshot("marketnews"); !ok {
		t.Error("fresh cache not written after live success")
	}
	if _, _, ok := svc.CacheSnapshot("warm:marketnews"); !ok {
		t.Error("warm seed not written after primary success")
	}
}

// WHAT: a dead primary falls through to the first alternate.
// WHY: alternates must be tried in order and still count as live, but
// they are not canonical so the warm seed must stay untouched.
func TestGetAlternateFallback(t *testing.T) {
	clock := newFakeClock()
	strat := &stubStrategy{
		module:  "marketnews",
		kind:    KindNews,
		primary: failingFetch(errors.New("connection refused")),
		alts: []FetchFunc{
			staticFetch(newsItems(10, 11, 12)),
		},
		seed: builtinSeed(),
	}
	svc := newTestService(t, clock, strat)

	p := mustGet(t, svc, "marketnews", GetOptions{})
	if p.Provenance != ProvenanceLive || p.Status != StatusOK {
		t.Fatalf("got %s/%s, want live/ok", p.Provenance, p.Status)
	}
	if _, _, ok := svc.CacheSnapshot("marketnews"); !ok {
		t.Error("fresh cache not written after alternate success")
	}
	if _, _, ok := svc.CacheSnapshot("warm:marketnews"); ok {
		t.Error("warm seed written from an alternate source")
	}
}

// WHAT: within the TTL an outage is served from the fresh cache as ok.
// WHY: callers should not see degradation while the cached snapshot is
// still considered current.
func TestGetFreshCache(t *testing.T) {
	clock := newFakeClock()
	var live bool = true
	strat := &stubStrategy{
		module: "marketnews",
		kind:   KindNews,
		primary: func(context.Context) ([]ContentItem, error) {
			if live {
				return newsItems(1, 2, 3), nil
			}
			return nil, errors.New("upstream down")
		},
		seed: builtinSeed(),
	}
	svc := newTestService(t, clock, strat)

	mustGet(t, svc, "marketnews", GetOptions{})
	live = false
	clock.Advance(5 * time.Minute)

	p := mustGet(t, svc, "marketnews", GetOptions{})
	if p.Provenance != ProvenanceCache || p.Status != StatusOK {
		t.Fatalf("got %s/%s, want cache/ok", p.Provenance, p.Status)
	}
	if p.CacheAgeSeconds != int64((5 * time.Minute).Seconds()) {
		t.Errorf("CacheAgeSeconds = %d, want 300", p.CacheAgeSeconds)
	}
}

// WHAT: past the TTL the same snapshot is still served, but degraded.
// WHY: stale data beats no data; the status tells the caller which it is.
func TestGetStaleCacheDegraded(t *testing.T) {
	clock := newFakeClock()
	live := true
	strat := &stubStrategy{
		module: "marketnews",
		kind:   KindNews,
		primary: func(context.Context) ([]ContentItem, error) {
			if live {
				return newsItems(1, 2, 3), nil
			}
			return nil, errors.New("upstream down")
		},
		seed: builtinSeed(),
	}
	svc := newTestService(t, clock, strat)

	mustGet(t, svc, "marketnews", GetOptions{})
	live = false
	clock.Advance(3 * time.Hour)

	p := mustGet(t, svc, "marketnews", GetOptions{})
	if p.Provenance != ProvenanceCache || p.Status != StatusDegraded {
		t.Fatalf("got %s/%s, want cache/degraded", p.Provenance, p.Status)
	}
	if p.Note == "" {
		t.Error("degraded payload missing note")
	}
}

// WHAT: a short live harvest is topped up from the stale cache.
// WHY: partial live results must not be thrown away; the blend takes
// cache provenance because the cache was needed to reach the minimum.
func TestGetBlendsLiveWithStaleCache(t *testing.T) {
	clock := newFakeClock()
	fetches := 0
	strat := &stubStrategy{
		module: "marketnews",
		kind:   KindNews,
		primary: func(context.Context) ([]ContentItem, error) {
			fetches++
			if fetches == 1 {
				return newsItems(1, 2, 3), nil
			}
			return newsItems(50, 51), nil
		},
		seed: builtinSeed(),
	}
	svc := newTestService(t, clock, strat)

	mustGet(t, svc, "marketnews", GetOptions{})
	clock.Advance(3 * time.Hour)

	p := mustGet(t, svc, "marketnews", GetOptions{})
	if p.Provenance != ProvenanceCache || p.Status != StatusDegraded {
		t.Fatalf("got %s/%s, want cache/degraded", p.Provenance, p.Status)
	}
	if len(p.Items) < 3 {
		t.Fatalf("got %d items, want at least 3", len(p.Items))
	}
	// Live items come first in the blend.
	if p.Items[0].URL != newsItem(50).URL || p.Items[1].URL != newsItem(51).URL {
		t.Errorf("live items not ordered first: %q, %q", p.Items[0].URL, p.Items[1].URL)
	}
}

// WHAT: nocache skips both cache read states and lands on the warm seed.
// WHY: manual refresh must bypass snapshots but still prefer previously
// seen real content over the built-in fallback.
func TestGetNoCacheUsesWarmSeed(t *testing.T) {
	clock := newFakeClock()
	live := true
	strat := &stubStrategy{
		module: "marketnews",
		kind:   KindNews,
		primary: func(context.Context) ([]ContentItem, error) {
			if live {
				return newsItems(1, 2, 3), nil
			}
			return nil, errors.New("upstream down")
		},
		seed: builtinSeed(),
	}
	svc := newTestService(t, clock, strat)

	mustGet(t, svc, "marketnews", GetOptions{})
	live = false

	p := mustGet(t, svc, "marketnews", GetOptions{NoCache: true})
	if p.Provenance != ProvenanceSeed || p.Status != StatusDegraded {
		t.Fatalf("got %s/%s, want seed/degraded", p.Provenance, p.Status)
	}
	if p.Items[0].URL != newsItem(1).URL {
		t.Errorf("warm seed lost live items: first is %q", p.Items[0].URL)
	}
}

// WHAT: with nothing else available the built-in seed fills the response
// to exactly the module minimum.
// WHY: the floor of the whole design; an empty module response is never
// acceptable, and the seed is not padded beyond the minimum.
func TestGetBuiltinSeedFloor(t *testing.T) {
	clock := newFakeClock()
	strat := &stubStrategy{
		module:  "marketnews",
		kind:    KindNews,
		primary: failingFetch(errors.New("upstream down")),
		alts:    []FetchFunc{failingFetch(errors.New("also down"))},
		seed:    builtinSeed(),
	}
	svc := newTestService(t, clock, strat)

	p := mustGet(t, svc, "marketnews", GetOptions{})
	if p.Provenance != ProvenanceSeed || p.Status != StatusFailed {
		t.Fatalf("got %s/%s, want seed/failed", p.Provenance, p.Status)
	}
	if len(p.Items) != 3 {
		t.Fatalf("got %d items, want exactly the minimum of 3", len(p.Items))
	}
}

// WHAT: a below-minimum live result does not refresh the cache or the
// warm seed.
// WHY: writing a 1-item snapshot would poison later fallbacks with a
// result worse than the seed.
func TestGetWriteGate(t *testing.T) {
	clock := newFakeClock()
	strat := &stubStrategy{
		module:  "marketnews",
		kind:    KindNews,
		primary: staticFetch(newsItems(1)),
		seed:    builtinSeed(),
	}
	svc := newTestService(t, clock, strat)

	p := mustGet(t, svc, "marketnews", GetOptions{})
	if p.Provenance != ProvenanceSeed || p.Status != StatusFailed {
		t.Fatalf("got %s/%s, want seed/failed", p.Provenance, p.Status)
	}
	if _, _, ok := svc.CacheSnapshot("marketnews"); ok {
		t.Error("fresh cache written from a below-minimum live result")
	}
	if _, _, ok := svc.CacheSnapshot("warm:marketnews"); ok {
		t.Error("warm seed written from a below-minimum live result")
	}
}

// WHAT: invalid URLs and junk titles are rejected before counting.
// WHY: a listing page full of pagination links must not be mistaken for
// a healthy harvest.
func TestGetRejectsInvalidItems(t *testing.T) {
	clock := newFakeClock()
	junk := []ContentItem{
		{Title: "更多", URL: "https://example.com/articles/one-two-three"},
		{Title: "A perfectly fine headline", URL: "https://example.com/tag/markets"},
		{Title: "Another fine headline", URL: "https://example.com/articles/real-story-here"},
	}
	strat := &stubStrategy{
		module:  "marketnews",
		kind:    KindNews,
		primary: staticFetch(junk),
		seed:    builtinSeed(),
	}
	svc := newTestService(t, clock, strat)

	p := mustGet(t, svc, "marketnews", GetOptions{Debug: true})
	if p.Status != StatusFailed {
		t.Fatalf("got status %s, want failed", p.Status)
	}
	if p.Debug == nil || len(p.Debug.States) == 0 {
		t.Fatal("debug info missing")
	}
	first := p.Debug.States[0]
	if first.State != "live_primary" || first.RawCount != 3 || first.KeptCount != 1 {
		t.Errorf("primary attempt = %+v, want raw 3 kept 1", first)
	}
	if len(p.Debug.RejectedSamples) == 0 {
		t.Error("rejected samples missing")
	}
}

// WHAT: a panicking strategy yields a well-formed unavailable payload.
// WHY: one broken scraper must never take down the whole response.
func TestGetRecoverPanic(t *testing.T) {
	clock := newFakeClock()
	strat := &stubStrategy{
		module:  "marketnews",
		kind:    KindNews,
		primary: func(context.Context) ([]ContentItem, error) { panic("boom") },
		seed:    builtinSeed(),
	}
	svc := newTestService(t, clock, strat)

	p := mustGet(t, svc, "marketnews", GetOptions{})
	if p.Status != StatusUnavailable {
		t.Fatalf("got status %s, want unavailable", p.Status)
	}
	if p.Items == nil {
		t.Error("items must be non-nil even when unavailable")
	}
}

func TestGetUnknownModule(t *testing.T) {
	clock := newFakeClock()
	strat := &stubStrategy{
		module:  "marketnews",
		kind:    KindNews,
		primary: staticFetch(newsItems(1, 2, 3)),
		seed:    builtinSeed(),
	}
	svc := newTestService(t, clock, strat)

	_, err := svc.Get(context.Background(), "nope", GetOptions{})
	if !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("got %v, want ErrUnknownModule", err)
	}
}

func TestRegisterRejectsSmallSeed(t *testing.T) {
	clock := newFakeClock()
	svc := newTestService(t, clock, &stubStrategy{
		module:  "marketnews",
		kind:    KindNews,
		primary: staticFetch(nil),
		seed:    builtinSeed(),
	})
	err := svc.Register(&stubStrategy{
		module:  "tiny",
		kind:    KindNews,
		primary: staticFetch(nil),
		seed:    newsItems(1),
	})
	if err == nil {
		t.Fatal("expected error registering a seed smaller than the minimum")
	}
}

// WHAT: GetAll folds module statuses into a worst-of aggregate.
// WHY: the dashboard endpoint reports one health value for the page.
func TestGetAllAggregateStatus(t *testing.T) {
	clock := newFakeClock()
	healthy := &stubStrategy{
		module:  "marketnews",
		kind:    KindNews,
		primary: staticFetch(newsItems(1, 2, 3)),
		seed:    builtinSeed(),
	}
	broken := &stubStrategy{
		module:  "ainews",
		kind:    KindNews,
		primary: failingFetch(errors.New("down")),
		seed:    builtinSeed(),
	}
	svc := newTestService(t, clock, healthy)
	if err := svc.Register(broken); err != nil {
		t.Fatalf("Register: %v", err)
	}

	results, status := svc.GetAll(context.Background(), GetOptions{})
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if status != StatusDegraded {
		t.Errorf("aggregate status = %s, want degraded", status)
	}
	if results["marketnews"].Status != StatusOK {
		t.Errorf("marketnews status = %s, want ok", results["marketnews"].Status)
	}
	if results["ainews"].Status != StatusFailed {
		t.Errorf("ainews status = %s, want failed", results["ainews"].Status)
	}
}
