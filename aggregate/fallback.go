package aggregate

import (
	"context"
	"errors"
	"time"

	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate/internal/fetch"
	"github.com/yingxuan/bayarea-dashboard-sub001/aggregate/internal/fetchlog"
)

// Chain states, in attempt order. Each state may add items to the
// accumulated set; the chain stops at the first state after which the
// set reaches the module minimum.
const (
	stateLivePrimary   = "live_primary"
	stateLiveAlternate = "live_alternate"
	stateFreshCache    = "fresh_cache"
	stateStaleCache    = "stale_cache"
	stateWarmSeed      = "warm_seed"
	stateBuiltinSeed   = "builtin_seed"
)

const maxRejectedSamples = 5

// runCtx carries the per-request chain state so helpers don't need
// six positional arguments each.
type runCtx struct {
	module   string
	cfg      ModuleConfig
	rules    *RuleSet
	rewrites []RewriteRule
	acc      []ContentItem
	debug    *DebugInfo
}

func (s *Service) run(ctx context.Context, strat SourceStrategy, opts GetOptions) *ModulePayload {
	rc := &runCtx{
		module: strat.Module(),
		cfg:    s.config.moduleConfig(strat.Module()),
		rules:  RulesFor(strat.Kind()),
	}
	if vp, ok := strat.(ValidatorProvider); ok {
		rc.rules = vp.ValidationRules()
	}
	// The default mirror rewrites apply inside NormalizeItemURL already;
	// rc.rewrites carries only the strategy's own extras.
	if rp, ok := strat.(RewriteProvider); ok {
		rc.rewrites = rp.Rewrites()
	}
	if opts.Debug {
		rc.debug = &DebugInfo{}
	}

	// Live primary. Also the only state allowed to refresh the warm seed:
	// alternates are not canonical enough to age into it.
	kept := s.liveState(ctx, rc, stateLivePrimary, strat.Primary)
	if kept >= rc.cfg.MinimumItems {
		s.writeThrough(rc)
		s.mergeWarmSeed(rc)
	}
	if len(rc.acc) >= rc.cfg.MinimumItems {
		return s.payload(rc, ProvenanceLive, StatusOK, "", 0)
	}

	for _, alt := range strat.Alternates() {
		kept = s.liveState(ctx, rc, stateLiveAlternate, alt)
		if kept >= rc.cfg.MinimumItems {
			s.writeThrough(rc)
		}
		if len(rc.acc) >= rc.cfg.MinimumItems {
			return s.payload(rc, ProvenanceLive, StatusOK, "", 0)
		}
	}

	if !opts.NoCache {
		if items, ok := s.cache.GetFresh(rc.module, rc.cfg.CacheTTL); ok {
			s.recordState(rc, stateFreshCache, items, nil, 0)
			if len(rc.acc) >= rc.cfg.MinimumItems {
				return s.payload(rc, ProvenanceCache, StatusOK, "", s.cacheAge(rc.module))
			}
		}

		if items, _, ok := s.cache.GetStale(rc.module); ok {
			s.recordState(rc, stateStaleCache, items, nil, 0)
			if len(rc.acc) >= rc.cfg.MinimumItems {
				return s.payload(rc, ProvenanceCache, StatusDegraded, "live sources unavailable; serving cached items", s.cacheAge(rc.module))
			}
		}
	}

	if items, ok := s.cache.GetFresh(warmKey(rc.module), rc.cfg.WarmSeedTTL); ok {
		s.recordState(rc, stateWarmSeed, items, nil, 0)
		if len(rc.acc) >= rc.cfg.MinimumItems {
			return s.payload(rc, ProvenanceSeed, StatusDegraded, "live sources unavailable; serving recently seen items", 0)
		}
	}

	s.padFromSeed(rc, strat.BuiltinSeed())
	return s.payload(rc, ProvenanceSeed, StatusFailed, "all sources unavailable; serving built-in fallback", 0)
}

// liveState runs one live fetch with the module timeout, validates and
// merges its items, and records the attempt. It returns the number of
// items the state itself contributed before merging, which gates the
// cache and warm-seed side effects.
func (s *Service) liveState(ctx context.Context, rc *runCtx, state string, fn FetchFunc) int {
	fctx, cancel := context.WithTimeout(ctx, rc.cfg.FetchTimeout)
	defer cancel()

	start := s.now()
	items, err := fn(fctx)
	elapsed := s.now().Sub(start)

	kept := s.recordState(rc, state, items, err, elapsed)
	s.logAttempt(rc.module, state, len(items), kept, err, elapsed)
	return kept
}

// recordState validates raw items against the module rules, merges the
// survivors into the accumulated set, and appends debug info. It returns
// how many of this state's items survived validation.
func (s *Service) recordState(rc *runCtx, state string, raw []ContentItem, err error, elapsed time.Duration) int {
	valid := make([]ContentItem, 0, len(raw))
	for _, it := range raw {
		if !rc.rules.IsDetailURL(it.URL) || IsJunkTitle(it.Title) {
			if rc.debug != nil && len(rc.debug.RejectedSamples) < maxRejectedSamples {
				rc.debug.RejectedSamples = append(rc.debug.RejectedSamples, it.URL)
			}
			continue
		}
		valid = append(valid, it)
	}
	valid = Dedupe(valid, rc.rewrites)
	if rejected := len(raw) - len(valid); rejected > 0 {
		s.logger.Debug("items rejected by validation",
			"module", rc.module, "state", state, "rejected", rejected, "kept", len(valid))
	}

	before := len(rc.acc)
	rc.acc = Dedupe(append(rc.acc, valid...), rc.rewrites)
	merged := len(rc.acc) - before

	if rc.debug != nil {
		attempt := StateAttempt{
			State:      state,
			RawCount:   len(raw),
			KeptCount:  merged,
			DurationMs: elapsed.Milliseconds(),
		}
		if err != nil {
			attempt.Error = err.Error()
		}
		rc.debug.States = append(rc.debug.States, attempt)
	}
	return len(valid)
}

// writeThrough refreshes the fresh cache with the current accumulated
// set. Runs even under nocache: skipping reads must not starve the
// cache for later requests.
func (s *Service) writeThrough(rc *runCtx) {
	s.cache.Set(rc.module, append([]ContentItem(nil), rc.acc...))
}

// mergeWarmSeed folds the current set into the long-TTL warm seed,
// newest first, capped at the module's warm seed capacity.
func (s *Service) mergeWarmSeed(rc *runCtx) {
	existing, _, _ := s.cache.GetStale(warmKey(rc.module))
	merged := Dedupe(append(append([]ContentItem(nil), rc.acc...), existing...), rc.rewrites)
	if len(merged) > rc.cfg.WarmSeedCapacity {
		merged = merged[:rc.cfg.WarmSeedCapacity]
	}
	s.cache.Set(warmKey(rc.module), merged)
}

// padFromSeed tops the accumulated set up to exactly the module minimum
// from the built-in seed. Seed entries duplicating accumulated items are
// skipped first; if dedup leaves the set short the remaining seed
// entries fill it regardless, so the minimum always holds.
func (s *Service) padFromSeed(rc *runCtx, seed []ContentItem) {
	before := len(rc.acc)
	var skipped []ContentItem
	for _, it := range seed {
		if len(rc.acc) >= rc.cfg.MinimumItems {
			break
		}
		next := Dedupe(append(rc.acc, it), rc.rewrites)
		if len(next) == len(rc.acc) {
			skipped = append(skipped, it)
			continue
		}
		rc.acc = next
	}
	for _, it := range skipped {
		if len(rc.acc) >= rc.cfg.MinimumItems {
			break
		}
		rc.acc = append(rc.acc, it)
	}
	if rc.debug != nil {
		rc.debug.States = append(rc.debug.States, StateAttempt{
			State:     stateBuiltinSeed,
			RawCount:  len(seed),
			KeptCount: len(rc.acc) - before,
		})
	}
}

func (s *Service) payload(rc *runCtx, prov Provenance, status Status, note string, ageSeconds int64) *ModulePayload {
	items := rc.acc
	if items == nil {
		items = []ContentItem{}
	}
	return &ModulePayload{
		Provenance:      prov,
		Status:          status,
		FetchedAt:       s.now(),
		TTLSeconds:      int(rc.cfg.CacheTTL.Seconds()),
		CacheAgeSeconds: ageSeconds,
		Note:            note,
		Items:           items,
		Debug:           rc.debug,
	}
}

func (s *Service) cacheAge(module string) int64 {
	age, ok := s.cache.Age(module)
	if !ok {
		return 0
	}
	return int64(age.Seconds())
}

// logAttempt writes one live attempt to the structured log and, when
// attached, the fetch log. Diagnostics failures never surface.
func (s *Service) logAttempt(module, state string, raw, kept int, err error, elapsed time.Duration) {
	status := classifyAttempt(err)
	s.logger.Info("live fetch attempt",
		"module", module,
		"state", state,
		"status", status,
		"raw", raw,
		"kept", kept,
		"duration_ms", elapsed.Milliseconds(),
		"error", errString(err),
	)
	if s.flog == nil {
		return
	}
	e := &fetchlog.Entry{
		Module:     module,
		State:      state,
		Status:     status,
		Items:      kept,
		Error:      errString(err),
		DurationMs: elapsed.Milliseconds(),
		CreatedAt:  s.now().Unix(),
	}
	if lerr := s.flog.Insert(context.Background(), e); lerr != nil {
		s.logger.Warn("fetch log insert failed", "module", module, "error", lerr)
	}
}

func classifyAttempt(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrFetchTimeout):
		return "timeout"
	case errors.Is(err, fetch.ErrBlocked) || errors.Is(err, ErrBlocked):
		return "blocked"
	default:
		return "error"
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func warmKey(module string) string { return "warm:" + module }
