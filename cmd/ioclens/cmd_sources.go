package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ioclens/internal/logging"
	"ioclens/internal/sources"
	"ioclens/internal/watchlist"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured lookup sources",
	RunE:  runSources,
}

var sourcesCheckCmd = &cobra.Command{
	Use:   "check [value]",
	Short: "Query every source for one value and show each verdict",
	Args:  cobra.ExactArgs(1),
	RunE:  runSourcesCheck,
}

func init() {
	sourcesCmd.AddCommand(sourcesCheckCmd)
}

func runSources(cmd *cobra.Command, args []string) error {
	if len(cfg.Sources) == 0 && cfg.Watchlist.Path == "" {
		fmt.Println("No sources configured.")
		return nil
	}
	for _, sc := range cfg.Sources {
		fmt.Printf("%-20s rest       %s\n", sc.ID, sc.BaseURL)
	}
	if cfg.Watchlist.Path != "" {
		fmt.Printf("%-20s watchlist  %s\n", "watchlist", cfg.Watchlist.Path)
	}
	return nil
}

func runSourcesCheck(cmd *cobra.Command, args []string) error {
	value := args[0]
	log := logging.Get(logging.CategorySources)

	var srcs []sources.Source
	for _, sc := range cfg.Sources {
		src, err := sources.NewRESTSource(sc)
		if err != nil {
			return fmt.Errorf("source %s: %w", sc.ID, err)
		}
		srcs = append(srcs, src)
	}
	if cfg.Watchlist.Path != "" {
		wl, err := watchlist.New("watchlist", cfg.Watchlist.Path, log)
		if err != nil {
			return fmt.Errorf("failed to load watchlist: %w", err)
		}
		defer wl.Close()
		srcs = append(srcs, wl)
	}
	if len(srcs) == 0 {
		return fmt.Errorf("no sources configured")
	}

	mgr := sources.NewManager(srcs, cfg.LookupTimeout(), log)
	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.LookupTimeout()+5*time.Second)
	defer cancel()

	sets := mgr.MatchValues(ctx, []string{value}, []string{"indicator"})
	for _, set := range sets {
		if set.Err != nil {
			fmt.Printf("%-20s error: %v\n", set.SourceID, set.Err)
			continue
		}
		verdict := "no contribution"
		for _, e := range set.Entries {
			if e.Found {
				verdict = "found"
			} else {
				verdict = "explicitly absent"
			}
		}
		fmt.Printf("%-20s %s\n", set.SourceID, verdict)
	}
	return nil
}
