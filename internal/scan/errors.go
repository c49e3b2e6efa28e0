package scan

import "errors"

// Recoverable per-item failures are handled where they occur and never abort
// a scan; these sentinels exist so callers and logs can classify them.
var (
	// ErrStructuralMismatch: a candidate's range no longer fits its live leaf.
	ErrStructuralMismatch = errors.New("candidate range no longer fits leaf")

	// ErrTraversalFailure: a style-isolated sub-region could not be entered;
	// its text is simply absent from the corpus.
	ErrTraversalFailure = errors.New("sub-region traversal failed")

	// ErrMalformedCandidate: a source or AI record is missing value or type.
	ErrMalformedCandidate = errors.New("candidate missing value or type")

	// ErrScanInProgress: the applier is not reentrant; a second pass may not
	// start while a prior pass is mid-flight.
	ErrScanInProgress = errors.New("scan already in progress for this session")

	// ErrAllSourcesFailed: every configured source failed to respond. Distinct
	// from a clean "no results" outcome.
	ErrAllSourcesFailed = errors.New("all lookup sources failed")
)
