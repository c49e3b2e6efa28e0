// Package scan implements the indicator scanning pipeline: corpus
// normalization, boilerplate filtering, pattern extraction, match finding,
// multi-source entity merging, annotation application, and value-scoped
// selection. One Session per page scan; the engine orchestrates the passes.
package scan

import (
	"strings"

	"golang.org/x/net/html"
)

// SourceState summarizes how the configured lookup sources resolved a value.
type SourceState string

const (
	// StateNone means no source confirmed the value (or nothing was asked).
	StateNone SourceState = "none"
	// StateFound means exactly one source confirmed the value.
	StateFound SourceState = "found"
	// StateMixed means one source confirmed while another explicitly denied.
	StateMixed SourceState = "mixed"
	// StateMultiFound means two or more sources confirmed the value.
	StateMultiFound SourceState = "multiFound"
)

// DiscoveryKind records how a value entered the pipeline.
type DiscoveryKind string

const (
	DiscoveryPattern DiscoveryKind = "pattern"
	DiscoveryAI      DiscoveryKind = "ai"
	DiscoveryManual  DiscoveryKind = "manual"
)

// Mode selects how a scan collects candidate values.
type Mode string

const (
	ModePattern Mode = "pattern"
	ModeManual  Mode = "manual"
	ModeAI      Mode = "ai"
)

// SourceMatch is one source's verdict on a value.
type SourceMatch struct {
	SourceID   string
	SourceKind string
	ExternalID string
	Found      bool
	Payload    map[string]any
}

// EntityRecord is the merged, per-unique-value state. Identity is the
// case-normalized value, not the type: two sources reporting the same value
// under different types still collapse into one record.
type EntityRecord struct {
	ID            string
	Type          string
	Value         string
	Found         bool
	SourceMatches []SourceMatch
	DiscoveryKind DiscoveryKind
	SourceState   SourceState

	// Highlightable is false for records whose value never matched the
	// corpus (AI suggestions about content the page no longer shows).
	Highlightable bool

	// AI discovery metadata; zero for other kinds.
	Reason     string
	Confidence float64
}

// RecomputeSourceState derives SourceState from SourceMatches. It is the only
// way SourceState changes; callers never set the field directly.
func (r *EntityRecord) RecomputeSourceState() {
	var found, denied int
	for _, m := range r.SourceMatches {
		if m.Found {
			found++
		} else {
			denied++
		}
	}
	switch {
	case found >= 2:
		r.SourceState = StateMultiFound
	case found == 1 && denied >= 1:
		r.SourceState = StateMixed
	case found == 1:
		r.SourceState = StateFound
	default:
		r.SourceState = StateNone
	}
	r.Found = found >= 1
}

// PrimarySource returns the first confirming source, which drives default
// interactions; the rest feed "also found in …" display.
func (r *EntityRecord) PrimarySource() (SourceMatch, bool) {
	for _, m := range r.SourceMatches {
		if m.Found {
			return m, true
		}
	}
	return SourceMatch{}, false
}

// NormalizeValue is the identity key for merging: case folded, whitespace
// trimmed. Surrounding punctuation variants (trailing-slash URLs) stay
// distinct.
func NormalizeValue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// NodeSpan maps one text leaf to its half-open range in the corpus.
// Spans are created in document order, monotonically increasing and
// non-overlapping, and are discarded after the applier pass for their scan.
type NodeSpan struct {
	Leaf *html.Node
	// Start and End are byte offsets into the corpus.
	Start, End int
	// LeadingTrim is how many bytes of leading whitespace normalization
	// removed from the leaf text: local offset = corpus offset - Start +
	// LeadingTrim.
	LeadingTrim int
}

// Corpus is the flattened, searchable view of a document snapshot. Text and
// Spans are immutable once built.
type Corpus struct {
	Text  string
	Spans []NodeSpan
}

// SpanAt returns the span covering the corpus offset, if any.
func (c *Corpus) SpanAt(offset int) (NodeSpan, bool) {
	lo, hi := 0, len(c.Spans)
	for lo < hi {
		mid := (lo + hi) / 2
		s := c.Spans[mid]
		switch {
		case offset < s.Start:
			hi = mid
		case offset >= s.End:
			lo = mid + 1
		default:
			return s, true
		}
	}
	return NodeSpan{}, false
}

// MatchCandidate is a located occurrence of an entity value, pending
// application. Transient: produced per scan, consumed by the applier.
type MatchCandidate struct {
	GlobalOffset int
	Leaf         *html.Node
	LocalStart   int
	LocalEnd     int
	Entity       *EntityRecord
}

// Annotation is the handle for one applied wrapper. Interaction wiring
// (hover, click) is the caller's job; the engine only keeps presentation
// state in sync.
type Annotation struct {
	ID       string
	Record   *EntityRecord
	Wrapper  *html.Node
	Selected bool
	// Offset is the corpus range the wrapper covers, kept for the
	// no-overlap check.
	Offset [2]int
}
