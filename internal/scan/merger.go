package scan

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SourceEntry is one source's explicit verdict on one value. Found=false is
// an explicit denial; a source that has nothing to say about a value simply
// omits it.
type SourceEntry struct {
	Type       string
	Value      string
	Found      bool
	ExternalID string
	Payload    map[string]any
}

// SourceResultSet is everything one source returned for a lookup round.
// A set with Err != nil contributes nothing: a dead source must never be
// read as "confirmed not found".
type SourceResultSet struct {
	SourceID   string
	SourceKind string
	Entries    []SourceEntry
	Err        error
}

// RequestedValue is one value the scan asked the sources about.
type RequestedValue struct {
	Type  string
	Value string
	Kind  DiscoveryKind
}

// Merger consolidates per-source result sets into one EntityRecord per
// unique case-normalized value.
type Merger struct {
	log *zap.Logger
}

// NewMerger creates a merger. A nil logger is replaced with a no-op.
func NewMerger(log *zap.Logger) *Merger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Merger{log: log}
}

// Merge produces one record per requested value, resolving cross-source
// state. Records come back in request order; duplicate requests (same
// normalized value) collapse into the first.
func (m *Merger) Merge(requested []RequestedValue, sets []SourceResultSet) []*EntityRecord {
	records := make(map[string]*EntityRecord)
	var order []string

	for _, req := range requested {
		if req.Value == "" || req.Type == "" {
			m.log.Debug("malformed requested value discarded",
				zap.String("value", req.Value), zap.String("type", req.Type))
			continue
		}
		key := NormalizeValue(req.Value)
		if _, ok := records[key]; ok {
			continue
		}
		records[key] = &EntityRecord{
			ID:            uuid.NewString(),
			Type:          req.Type,
			Value:         req.Value,
			DiscoveryKind: req.Kind,
			SourceState:   StateNone,
		}
		order = append(order, key)
	}

	for _, set := range sets {
		if set.Err != nil {
			m.log.Warn("source contributed nothing",
				zap.String("source", set.SourceID), zap.Error(set.Err))
			continue
		}
		for _, e := range set.Entries {
			if e.Value == "" || e.Type == "" {
				m.log.Debug("malformed source entry discarded",
					zap.String("source", set.SourceID))
				continue
			}
			key := NormalizeValue(e.Value)
			rec, ok := records[key]
			if !ok {
				// Sources can surface values the scan never asked about
				// (platform-side enrichment); accept them.
				rec = &EntityRecord{
					ID:            uuid.NewString(),
					Type:          e.Type,
					Value:         e.Value,
					DiscoveryKind: DiscoveryPattern,
					SourceState:   StateNone,
				}
				records[key] = rec
				order = append(order, key)
			}
			rec.SourceMatches = append(rec.SourceMatches, SourceMatch{
				SourceID:   set.SourceID,
				SourceKind: set.SourceKind,
				ExternalID: e.ExternalID,
				Found:      e.Found,
				Payload:    e.Payload,
			})
		}
	}

	out := make([]*EntityRecord, 0, len(order))
	for _, key := range order {
		rec := records[key]
		rec.RecomputeSourceState()
		out = append(out, rec)
	}
	return out
}

// AICandidate is a discovery-source suggestion before it enters the pipeline.
type AICandidate struct {
	Type       string
	Value      string
	Reason     string
	Confidence float64
}

// MergeAICandidates converts discovery suggestions into records. They enter
// unfound; matching against the corpus decides highlightability later, and
// unmatched ones are still reported to the caller rather than dropped.
func (m *Merger) MergeAICandidates(cands []AICandidate) []*EntityRecord {
	seen := make(map[string]bool)
	var out []*EntityRecord
	for _, c := range cands {
		if c.Value == "" || c.Type == "" {
			m.log.Debug("malformed AI candidate discarded", zap.String("value", c.Value))
			continue
		}
		key := NormalizeValue(c.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, &EntityRecord{
			ID:            uuid.NewString(),
			Type:          c.Type,
			Value:         c.Value,
			DiscoveryKind: DiscoveryAI,
			SourceState:   StateNone,
			Reason:        c.Reason,
			Confidence:    c.Confidence,
		})
	}
	return out
}
