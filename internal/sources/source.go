// Package sources defines the external lookup interface and fans value
// batches out to every configured source. A source failure degrades to "no
// contribution" — absence of an answer is never an answer.
package sources

import (
	"context"

	"ioclens/internal/scan"
)

// Source is one external system that can say whether values are known
// entities.
type Source interface {
	// ID uniquely names this source instance within the configuration.
	ID() string
	// Kind names the source flavor (rest, watchlist, ...).
	Kind() string
	// MatchValues resolves a value batch. Entries are explicit verdicts;
	// values the source knows nothing about may be omitted.
	MatchValues(ctx context.Context, values []string, types []string) ([]scan.SourceEntry, error)
}
