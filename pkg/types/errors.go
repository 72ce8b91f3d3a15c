package types

import "errors"

// Failure classes surfaced by the retrieval engine. The hybrid orchestrator
// recovers from both locally; matchers invoked directly propagate them so
// callers can distinguish "no data" from "query failed".
var (
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrStoreUnavailable     = errors.New("store unavailable")
)

// Domain errors for type validation
var (
	ErrInvalidResultID   = errors.New("invalid result ID")
	ErrInvalidRank       = errors.New("rank must be >= 1")
	ErrEmptyContent      = errors.New("content cannot be empty")
	ErrInvalidProvenance = errors.New("provenance must be material or note")
)
