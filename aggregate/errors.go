package aggregate

import "errors"

// ErrFetchTimeout is returned when a live fetch exceeded its deadline.
var ErrFetchTimeout = errors.New("aggregate: fetch timed out")

// ErrFetchFailure is returned for non-2xx responses and malformed payloads.
var ErrFetchFailure = errors.New("aggregate: fetch failed")

// ErrBlocked is returned when a source served an anti-bot challenge. The
// orchestrator skips straight to the next fallback state instead of
// retrying the same source.
var ErrBlocked = errors.New("aggregate: blocked by source")

// ErrInsufficientItems signals that a state produced fewer validated items
// than the module minimum. Not a hard error: it is the normal trigger to
// advance the fallback chain.
var ErrInsufficientItems = errors.New("aggregate: insufficient items")

// ErrUnknownModule is returned when a request names an unregistered module.
var ErrUnknownModule = errors.New("aggregate: unknown module")
