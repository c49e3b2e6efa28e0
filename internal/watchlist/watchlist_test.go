package watchlist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeList(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0644))
	return path
}

func TestWatchlistLoadAndMatch(t *testing.T) {
	path := writeList(t, `# curated indicators
domain:evil.example.org
10.0.0.1
url:https://bad.example.org/drop

`)
	w, err := New("local", path, nil)
	require.NoError(t, err)
	defer w.Close()

	require.Equal(t, 3, w.Len())
	require.Equal(t, "local", w.ID())
	require.Equal(t, "watchlist", w.Kind())

	entries, err := w.MatchValues(context.Background(),
		[]string{"EVIL.EXAMPLE.ORG", "10.0.0.1", "unknown.example.org"},
		[]string{"domain", "ipv4", "domain"})
	require.NoError(t, err)

	// Positive signal only: the unknown value is omitted, never denied.
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.True(t, e.Found)
	}
	require.Equal(t, "domain", entries[0].Type)
	// Untyped lines take the requested type.
	require.Equal(t, "ipv4", entries[1].Type)
}

func TestWatchlistURLLineNotSplitAtScheme(t *testing.T) {
	path := writeList(t, "https://bad.example.org/drop\n")
	w, err := New("local", path, nil)
	require.NoError(t, err)
	defer w.Close()

	entries, err := w.MatchValues(context.Background(),
		[]string{"https://bad.example.org/drop"}, []string{"url"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWatchlistReloadOnChange(t *testing.T) {
	path := writeList(t, "domain:first.example.org\n")
	w, err := New("local", path, nil)
	require.NoError(t, err)
	defer w.Close()
	require.Equal(t, 1, w.Len())

	require.NoError(t, os.WriteFile(path, []byte("domain:first.example.org\ndomain:second.example.org\n"), 0644))

	require.Eventually(t, func() bool {
		return w.Len() == 2
	}, 3*time.Second, 20*time.Millisecond, "watcher should pick up the new entry")
}

func TestWatchlistMissingFile(t *testing.T) {
	_, err := New("local", filepath.Join(t.TempDir(), "absent.txt"), nil)
	require.Error(t, err)
}

func TestWatchlistCanceledContext(t *testing.T) {
	path := writeList(t, "domain:evil.example.org\n")
	w, err := New("local", path, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.MatchValues(ctx, []string{"evil.example.org"}, []string{"domain"})
	require.ErrorIs(t, err, context.Canceled)
}
