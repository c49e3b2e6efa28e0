package scan

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"ioclens/internal/dom"
)

// Outcome distinguishes the user-visible result classes: real results, a
// clean empty scan (paired with an AI-discovery suggestion), and total
// lookup failure.
type Outcome string

const (
	OutcomeResults   Outcome = "results"
	OutcomeNoResults Outcome = "noResults"
	OutcomeLookupErr Outcome = "lookupFailed"
)

// Lookup fans a value batch out to the configured sources. Implemented by
// the sources manager; faked in tests.
type Lookup interface {
	MatchValues(ctx context.Context, values []string, types []string) []SourceResultSet
}

// Discoverer supplies AI candidates for ai-mode scans.
type Discoverer interface {
	Discover(ctx context.Context, corpusExcerpt string) ([]AICandidate, error)
}

// Options tune a scan pass.
type Options struct {
	Match MatchOptions
	// MinConfidence drops AI candidates below the threshold before lookup.
	MinConfidence float64
}

// Result is what one full scan produced.
type Result struct {
	Outcome     Outcome
	Records     []*EntityRecord
	Annotations []*Annotation
	// SuggestAI accompanies OutcomeNoResults for pattern/manual scans.
	SuggestAI bool
	// SourceErrors maps source IDs to their failures for the error state.
	SourceErrors map[string]error
}

// Engine runs the scan pipeline. Normalization, matching, merging, and
// application execute synchronously as one pass; only the source lookups and
// AI discovery are awaited out of process.
type Engine struct {
	normalizer *Normalizer
	filter     *BoilerplateFilter
	extractor  *Extractor
	merger     *Merger
	applier    *Applier
	lookup     Lookup
	discoverer Discoverer
	opts       Options
	log        *zap.Logger
}

// NewEngine wires the pipeline. lookup may be nil (no sources configured);
// discoverer may be nil (ai mode then yields no candidates).
func NewEngine(lookup Lookup, discoverer Discoverer, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		normalizer: NewNormalizer(log.Named("normalize")),
		filter:     NewBoilerplateFilter(),
		extractor:  NewExtractor(),
		merger:     NewMerger(log.Named("merge")),
		applier:    NewApplier(log.Named("apply")),
		lookup:     lookup,
		discoverer: discoverer,
		opts:       opts,
		log:        log,
	}
}

// Filter exposes the boilerplate rule table (CLI listing).
func (e *Engine) Filter() *BoilerplateFilter { return e.filter }

// Extractor exposes the pattern rule table (CLI listing).
func (e *Engine) Extractor() *Extractor { return e.extractor }

// Scan runs one full pass over doc within the session. Any prior annotations
// are cleared first; the applier pass holds single-pass exclusivity for the
// session until it completes.
func (e *Engine) Scan(ctx context.Context, sess *Session, doc *dom.Document) (*Result, error) {
	if err := sess.begin(); err != nil {
		return nil, err
	}
	defer sess.end()

	e.applier.Clear(doc)
	corpus := e.normalizer.Normalize(doc)

	requested, aiRecords, err := e.collectValues(ctx, sess, corpus)
	if err != nil {
		return nil, err
	}

	var sets []SourceResultSet
	sourceErrs := make(map[string]error)
	if e.lookup != nil && len(requested) > 0 {
		values := make([]string, 0, len(requested))
		types := make([]string, 0, len(requested))
		for _, rv := range requested {
			values = append(values, rv.Value)
			types = append(types, rv.Type)
		}
		sets = e.lookup.MatchValues(ctx, values, types)
		for _, set := range sets {
			if set.Err != nil {
				sourceErrs[set.SourceID] = set.Err
			}
		}
		if len(sets) > 0 && len(sourceErrs) == len(sets) {
			// Every source failed: a distinct error state, not "no results".
			return &Result{Outcome: OutcomeLookupErr, SourceErrors: sourceErrs}, ErrAllSourcesFailed
		}
	}

	records := e.merger.Merge(requested, sets)
	records = append(records, aiRecords...)

	var candidates []MatchCandidate
	for _, rec := range records {
		found := FindMatches(corpus, rec.Value, rec, e.opts.Match)
		rec.Highlightable = len(found) > 0
		candidates = append(candidates, found...)
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].GlobalOffset < candidates[j].GlobalOffset
	})

	anns := e.applier.Apply(doc, candidates, DefaultAttrs)
	sess.storeResults(corpus, records, anns)

	res := &Result{
		Records:      records,
		Annotations:  anns,
		SourceErrors: sourceErrs,
	}
	if len(anns) == 0 {
		res.Outcome = OutcomeNoResults
		res.SuggestAI = sess.Mode() != ModeAI && e.discoverer != nil
	} else {
		res.Outcome = OutcomeResults
	}

	e.log.Info("scan complete",
		zap.String("session", sess.ID),
		zap.String("mode", string(sess.Mode())),
		zap.String("outcome", string(res.Outcome)),
		zap.Int("records", len(records)),
		zap.Int("annotations", len(anns)),
		zap.Int("source_errors", len(sourceErrs)))
	return res, nil
}

// collectValues gathers the value batch for the session's mode. AI-mode
// candidates also come back as records so unmatched ones survive to the
// caller (flagged non-highlightable by the match pass).
func (e *Engine) collectValues(ctx context.Context, sess *Session, corpus *Corpus) ([]RequestedValue, []*EntityRecord, error) {
	switch sess.Mode() {
	case ModeManual:
		return sess.manualValues(), nil, nil

	case ModeAI:
		if e.discoverer == nil {
			return nil, nil, nil
		}
		cands, err := e.discoverer.Discover(ctx, corpus.Text)
		if err != nil {
			return nil, nil, err
		}
		kept := cands[:0]
		for _, c := range cands {
			if c.Confidence >= e.opts.MinConfidence {
				kept = append(kept, c)
			}
		}
		return nil, e.merger.MergeAICandidates(kept), nil

	default: // ModePattern
		// Extraction reads the filtered copy; matching never does.
		filtered := e.filter.Filter(corpus.Text)
		return e.extractor.Extract(filtered), nil, nil
	}
}
