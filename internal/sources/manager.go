package sources

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ioclens/internal/scan"
)

// Manager queries every registered source for one value batch. Sources run
// concurrently with a shared deadline; each failure is isolated into its
// result set's Err and the merger ignores that set.
type Manager struct {
	sources []Source
	timeout time.Duration
	log     *zap.Logger
}

// NewManager creates a manager. A zero timeout means no per-round deadline
// beyond the caller's context.
func NewManager(srcs []Source, timeout time.Duration, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{sources: srcs, timeout: timeout, log: log}
}

// Sources returns the registered sources.
func (m *Manager) Sources() []Source {
	out := make([]Source, len(m.sources))
	copy(out, m.sources)
	return out
}

// MatchValues runs the batch against every source. The returned slice always
// has one set per source, in registration order; failed sources carry their
// error instead of entries.
func (m *Manager) MatchValues(ctx context.Context, values []string, types []string) []scan.SourceResultSet {
	if len(m.sources) == 0 {
		return nil
	}
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	sets := make([]scan.SourceResultSet, len(m.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range m.sources {
		g.Go(func() error {
			started := time.Now()
			entries, err := src.MatchValues(gctx, values, types)
			sets[i] = scan.SourceResultSet{
				SourceID:   src.ID(),
				SourceKind: src.Kind(),
				Entries:    entries,
				Err:        err,
			}
			if err != nil {
				m.log.Warn("source lookup failed",
					zap.String("source", src.ID()),
					zap.Duration("elapsed", time.Since(started)),
					zap.Error(err))
			} else {
				m.log.Debug("source lookup done",
					zap.String("source", src.ID()),
					zap.Int("entries", len(entries)),
					zap.Duration("elapsed", time.Since(started)))
			}
			// Failures stay inside the set; one bad source must not cancel
			// the round for the others.
			return nil
		})
	}
	_ = g.Wait()
	return sets
}
