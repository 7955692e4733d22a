package aggregate

import "context"

// FetchFunc is one live fetch attempt: a primary source or an alternate
// mirror. It returns raw candidate items; validation and dedup happen in
// the orchestrator.
type FetchFunc func(ctx context.Context) ([]ContentItem, error)

// SourceStrategy defines one content feed. The fallback chain, caching,
// and warm-seed lifecycle are shared; a strategy contributes only its
// live fetches, its validation kind, and its last-resort seed.
type SourceStrategy interface {
	// Module is the stable feed name, used for cache keys and routing.
	Module() string
	// Kind selects the URL validation rules for items this feed yields.
	Kind() SourceKind
	// Primary fetches the module's canonical live source. Only primary
	// results are eligible to refresh the warm seed.
	Primary(ctx context.Context) ([]ContentItem, error)
	// Alternates are tried in order, each only if everything before it
	// left the module short. May be empty.
	Alternates() []FetchFunc
	// BuiltinSeed is the version-controlled hard-coded item list, the
	// guaranteed-non-empty floor of the fallback chain. Its size must be
	// at least the module's minimum.
	BuiltinSeed() []ContentItem
}

// RewriteProvider is implemented by strategies whose sources are reached
// through mirror domains; the rules feed URL dedup normalization.
type RewriteProvider interface {
	Rewrites() []RewriteRule
}

// ValidatorProvider is implemented by strategies that need a custom rule
// set instead of the built-in one for their Kind.
type ValidatorProvider interface {
	ValidationRules() *RuleSet
}
