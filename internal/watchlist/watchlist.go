// Package watchlist serves locally curated indicators as a lookup source.
// The list is a plain text file, one value per line, optionally prefixed
// with its type ("domain:evil.example"). The file is re-read whenever it
// changes on disk.
package watchlist

import (
	"bufio"
	"context"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"ioclens/internal/scan"
)

// Watchlist implements sources.Source over a local indicator file.
// Membership is only ever a positive signal: a value missing from the list
// contributes nothing, it is not an explicit denial.
type Watchlist struct {
	id   string
	path string
	log  *zap.Logger

	mu      sync.RWMutex
	entries map[string]entry // normalized value -> entry

	watcher *fsnotify.Watcher
	done    chan struct{}
}

type entry struct {
	value string
	typ   string
}

// New loads the file and starts watching it. The watcher is best effort: if
// it cannot be created the list still works, it just never self-refreshes.
func New(id, path string, log *zap.Logger) (*Watchlist, error) {
	if log == nil {
		log = zap.NewNop()
	}
	w := &Watchlist{id: id, path: path, log: log, done: make(chan struct{})}
	if err := w.Reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("watchlist file watching unavailable", zap.Error(err))
		return w, nil
	}
	if err := watcher.Add(path); err != nil {
		log.Warn("watchlist file watching unavailable", zap.Error(err))
		_ = watcher.Close()
		return w, nil
	}
	w.watcher = watcher
	go w.watch()
	return w, nil
}

// ID implements sources.Source.
func (w *Watchlist) ID() string { return w.id }

// Kind implements sources.Source.
func (w *Watchlist) Kind() string { return "watchlist" }

// Len returns the number of loaded entries.
func (w *Watchlist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

// MatchValues reports found entries for the requested values present in the
// list. Values not on the list are omitted, never denied.
func (w *Watchlist) MatchValues(ctx context.Context, values []string, types []string) ([]scan.SourceEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w.mu.RLock()
	defer w.mu.RUnlock()

	var out []scan.SourceEntry
	for i, v := range values {
		e, ok := w.entries[scan.NormalizeValue(v)]
		if !ok {
			continue
		}
		typ := e.typ
		if typ == "" && i < len(types) {
			typ = types[i]
		}
		if typ == "" {
			typ = "indicator"
		}
		out = append(out, scan.SourceEntry{
			Value:      v,
			Type:       typ,
			Found:      true,
			ExternalID: "watchlist:" + e.value,
		})
	}
	return out, nil
}

// Reload re-reads the file.
func (w *Watchlist) Reload() error {
	f, err := os.Open(w.path)
	if err != nil {
		return err
	}
	defer f.Close()

	entries := make(map[string]entry)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		typ := ""
		value := line
		if prefix, rest, ok := strings.Cut(line, ":"); ok && isTypePrefix(prefix) {
			typ = strings.ToLower(strings.TrimSpace(prefix))
			value = strings.TrimSpace(rest)
		}
		if value == "" {
			continue
		}
		entries[scan.NormalizeValue(value)] = entry{value: value, typ: typ}
	}
	if err := sc.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	w.entries = entries
	w.mu.Unlock()
	w.log.Debug("watchlist loaded", zap.String("path", w.path), zap.Int("entries", len(entries)))
	return nil
}

// isTypePrefix keeps "https://..." lines from being split at the scheme.
func isTypePrefix(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ipv4", "ipv6", "domain", "url", "md5", "sha1", "sha256", "email", "cve", "indicator":
		return true
	}
	return false
}

func (w *Watchlist) watch() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := w.Reload(); err != nil {
					w.log.Warn("watchlist reload failed", zap.Error(err))
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watchlist watcher error", zap.Error(err))
		}
	}
}

// Close stops the file watcher.
func (w *Watchlist) Close() error {
	close(w.done)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}
