package domain

import "errors"

// Sentinel errors for graph construction and queries. Everything except
// ErrNoPath indicates a caller mistake and should fail fast at the point of
// mutation or lookup.
var (
	// ErrInvalidTransaction is returned when a transaction carries a
	// non-positive amount or frequency. Such edges would produce a zero or
	// negative suspicion score and break the weighting invariant
	// (weight > 0), so they are rejected instead of propagated.
	ErrInvalidTransaction = errors.New("invalid transaction")

	// ErrUnknownAccount is returned when a transaction references an
	// account that was never registered and auto-creation is disabled.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrNoSuchEdge is returned by edge attribute lookups for a pair of
	// accounts with no recorded transaction between them.
	ErrNoSuchEdge = errors.New("no such edge")

	// ErrNoPath is the expected outcome when no directed route exists
	// between two accounts. Callers must treat it as a normal result
	// ("no suspicious route"), not a failure.
	ErrNoPath = errors.New("no path found")

	// ErrAnalysisNotFound is returned when a previously submitted analysis
	// cannot be located in the result cache.
	ErrAnalysisNotFound = errors.New("analysis not found")
)
