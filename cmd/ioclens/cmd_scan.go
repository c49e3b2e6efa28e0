package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ioclens/internal/browser"
	"ioclens/internal/discovery"
	"ioclens/internal/dom"
	"ioclens/internal/logging"
	"ioclens/internal/scan"
	"ioclens/internal/sources"
	"ioclens/internal/store"
	"ioclens/internal/watchlist"
)

var (
	scanMode      string
	scanValues    []string
	scanCaseSens  bool
	scanBoundary  bool
	scanOutPath   string
	scanNoHistory bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [target]",
	Short: "Scan a page or HTML file for indicators and annotate it",
	Long: `Scans the target for indicator values and wraps each match in an
annotation element carrying the merged source verdict.

The target is a local HTML file, or an http(s) URL rendered through a
headless browser snapshot. Mode selects where values come from:

  pattern  extract candidates from the page text (default)
  manual   look up only the values given with --value
  ai       ask the configured AI discovery model for candidates`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanMode, "mode", "m", "pattern", "scan mode: pattern, manual, or ai")
	scanCmd.Flags().StringArrayVar(&scanValues, "value", nil, "value to look up in manual mode (repeatable, TYPE:VALUE or VALUE)")
	scanCmd.Flags().BoolVar(&scanCaseSens, "case-sensitive", false, "match values case-sensitively")
	scanCmd.Flags().BoolVar(&scanBoundary, "word-boundary", true, "require word boundaries around matches")
	scanCmd.Flags().StringVarP(&scanOutPath, "out", "o", "", "write the annotated document to this path")
	scanCmd.Flags().BoolVar(&scanNoHistory, "no-history", false, "skip recording the scan in history")
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]
	log := logging.Get(logging.CategoryScan)

	mode, err := parseMode(scanMode)
	if err != nil {
		return err
	}

	doc, err := loadDocument(cmd.Context(), target)
	if err != nil {
		return err
	}

	lookup, closeLookup, err := buildLookup(log)
	if err != nil {
		return err
	}
	defer closeLookup()

	var disc scan.Discoverer
	if cfg.Discovery.APIKey != "" {
		d, derr := discovery.NewGeminiDiscoverer(cmd.Context(), cfg.Discovery, logging.Get(logging.CategoryDiscovery))
		if derr != nil {
			log.Warn("AI discovery unavailable", zap.Error(derr))
		} else {
			disc = d
		}
	}
	if mode == scan.ModeAI && disc == nil {
		return fmt.Errorf("ai mode requires a Gemini API key (set IOCLENS_GEMINI_API_KEY)")
	}

	engine := scan.NewEngine(lookup, disc, scan.Options{
		Match: scan.MatchOptions{
			CaseSensitive:       scanCaseSens,
			RequireWordBoundary: scanBoundary,
		},
		MinConfidence: cfg.Scanner.MinAIConfidence,
	}, log)

	sess := scan.NewSession(mode, nil)
	if mode == scan.ModeManual {
		if len(scanValues) == 0 {
			return fmt.Errorf("manual mode requires at least one --value")
		}
		sess.SetManualValues(parseManualValues(scanValues))
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.LookupTimeout()+30*time.Second)
	defer cancel()

	started := time.Now()
	res, err := engine.Scan(ctx, sess, doc)
	if err != nil {
		return scanFailure(os.Stdout, res, err)
	}
	finished := time.Now()

	printResult(os.Stdout, res)

	if scanOutPath != "" {
		var buf strings.Builder
		if rerr := doc.Render(&buf); rerr != nil {
			return fmt.Errorf("failed to render annotated document: %w", rerr)
		}
		if werr := os.WriteFile(scanOutPath, []byte(buf.String()), 0644); werr != nil {
			return fmt.Errorf("failed to write output: %w", werr)
		}
		fmt.Printf("Annotated document written to %s\n", scanOutPath)
	}

	if !scanNoHistory {
		if err := recordScan(sess, target, res, started, finished); err != nil {
			log.Warn("failed to record scan history", zap.Error(err))
		}
	}
	return nil
}

func parseMode(s string) (scan.Mode, error) {
	switch strings.ToLower(s) {
	case "pattern":
		return scan.ModePattern, nil
	case "manual":
		return scan.ModeManual, nil
	case "ai":
		return scan.ModeAI, nil
	}
	return "", fmt.Errorf("unknown mode %q (want pattern, manual, or ai)", s)
}

// parseManualValues accepts "type:value" or a bare value. A bare value gets
// the generic "indicator" type so sources can still key on it.
func parseManualValues(raw []string) []scan.RequestedValue {
	var out []scan.RequestedValue
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		typ := "indicator"
		val := r
		if idx := strings.Index(r, ":"); idx > 0 && !strings.Contains(r[:idx], "/") {
			typ = r[:idx]
			val = r[idx+1:]
		}
		out = append(out, scan.RequestedValue{
			Type:  typ,
			Value: strings.TrimSpace(val),
			Kind:  scan.DiscoveryManual,
		})
	}
	return out
}

// loadDocument reads a local HTML file, or snapshots a URL through the
// headless browser so script-built content and shadow roots are captured.
func loadDocument(ctx context.Context, target string) (*dom.Document, error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		snap := browser.NewSnapshotter(cfg.Browser, logging.Get(logging.CategoryBrowser))
		defer snap.Close()
		return snap.Snapshot(ctx, target)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", target, err)
	}
	return dom.ParseString(string(data))
}

// buildLookup assembles the source manager from config. The returned closer
// shuts down any watchers.
func buildLookup(log *zap.Logger) (scan.Lookup, func(), error) {
	var srcs []sources.Source
	for _, sc := range cfg.Sources {
		src, err := sources.NewRESTSource(sc)
		if err != nil {
			return nil, nil, fmt.Errorf("source %s: %w", sc.ID, err)
		}
		srcs = append(srcs, src)
	}

	var closers []func()
	if cfg.Watchlist.Path != "" {
		wl, err := watchlist.New("watchlist", cfg.Watchlist.Path, logging.Get(logging.CategorySources))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load watchlist: %w", err)
		}
		srcs = append(srcs, wl)
		closers = append(closers, func() { wl.Close() })
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	if len(srcs) == 0 {
		return nil, closeAll, nil
	}
	return sources.NewManager(srcs, cfg.LookupTimeout(), log), closeAll, nil
}

// scanFailure reports a failed scan pass. An all-sources-failed result still
// carries the per-source errors, so print them before surfacing the error.
func scanFailure(w io.Writer, res *scan.Result, err error) error {
	if errors.Is(err, scan.ErrAllSourcesFailed) && res != nil {
		printResult(w, res)
	}
	return fmt.Errorf("scan failed: %w", err)
}

func printResult(w io.Writer, res *scan.Result) {
	switch res.Outcome {
	case scan.OutcomeNoResults:
		fmt.Fprintln(w, "No indicators matched on the page.")
		if res.SuggestAI {
			fmt.Fprintln(w, "Try --mode ai to let the discovery model suggest candidates.")
		}
	case scan.OutcomeLookupErr:
		fmt.Fprintln(w, "All lookup sources failed:")
		for id, err := range res.SourceErrors {
			fmt.Fprintf(w, "  %s: %v\n", id, err)
		}
	default:
		fmt.Fprintf(w, "%d entities, %d annotations\n\n", len(res.Records), len(res.Annotations))
		recs := append([]*scan.EntityRecord(nil), res.Records...)
		sort.Slice(recs, func(i, j int) bool { return recs[i].Value < recs[j].Value })
		for _, rec := range recs {
			marker := " "
			if !rec.Highlightable {
				marker = "?"
			}
			fmt.Fprintf(w, "%s %-10s %-44s %s", marker, rec.Type, rec.Value, rec.SourceState)
			if src, ok := rec.PrimarySource(); ok {
				fmt.Fprintf(w, " (%s)", src.SourceID)
			}
			fmt.Fprintln(w)
		}
		for id, err := range res.SourceErrors {
			fmt.Fprintf(w, "\nwarning: source %s failed: %v\n", id, err)
		}
	}
}

func recordScan(sess *scan.Session, target string, res *scan.Result, started, finished time.Time) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	return st.SaveScan(store.ScanRow{
		ID:          uuid.NewString(),
		Target:      target,
		Mode:        string(sess.Mode()),
		Outcome:     string(res.Outcome),
		Records:     len(res.Records),
		Annotations: len(res.Annotations),
		StartedAt:   started,
		FinishedAt:  finished,
	}, res.Records)
}
