// Package aggregate assembles short-lived external content (search APIs,
// RSS feeds, scraped forum and blog pages) into small, stable item lists
// for the dashboard.
//
// Every upstream can be slow, blocked, rate-limited, malformed, or empty.
// The package guarantees availability over freshness: each registered
// module always yields at least its configured minimum number of items,
// falling back from live fetches through cached snapshots down to a
// built-in seed.
package aggregate

import "time"

// Provenance identifies which fallback tier supplied the returned items.
type Provenance string

const (
	ProvenanceLive  Provenance = "live"
	ProvenanceCache Provenance = "cache"
	ProvenanceSeed  Provenance = "seed"
)

// Status summarizes the health of a module response.
type Status string

const (
	StatusOK          Status = "ok"
	StatusDegraded    Status = "degraded"
	StatusFailed      Status = "failed"
	StatusUnavailable Status = "unavailable"
)

// ContentItem is one link-worthy piece of content: a thread, post, or article.
type ContentItem struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	SourceLabel string    `json:"source_label"`
	PublishedAt time.Time `json:"published_at,omitzero"`
}

// ModulePayload is the uniform response shape for one module.
type ModulePayload struct {
	Provenance      Provenance    `json:"provenance"`
	Status          Status        `json:"status"`
	FetchedAt       time.Time     `json:"fetched_at"`
	TTLSeconds      int           `json:"ttl_seconds"`
	CacheAgeSeconds int64         `json:"cache_age_seconds,omitempty"`
	Note            string        `json:"note,omitempty"`
	Items           []ContentItem `json:"items"`

	// Debug is populated only when explicitly requested.
	Debug *DebugInfo `json:"debug,omitempty"`
}

// DebugInfo carries per-request diagnostics. Additive and optional; never
// included unless the caller asks for it.
type DebugInfo struct {
	States          []StateAttempt `json:"states"`
	RejectedSamples []string       `json:"rejected_samples,omitempty"`
}

// StateAttempt records the outcome of one fallback state.
type StateAttempt struct {
	State      string `json:"state"`
	RawCount   int    `json:"raw_count"`
	KeptCount  int    `json:"kept_count"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// GetOptions modify a single module request.
type GetOptions struct {
	// NoCache skips the fresh/stale cache read states. Successful live
	// fetches still write through. Used for manual refresh.
	NoCache bool
	// Debug includes DebugInfo in the payload.
	Debug bool
}
