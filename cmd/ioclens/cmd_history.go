package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ioclens/internal/store"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [scan-id]",
	Short: "List recent scans, or show one scan's entities",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of scans to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer st.Close()

	if len(args) == 1 {
		return showScan(st, args[0])
	}

	scans, err := st.ListScans(historyLimit)
	if err != nil {
		return err
	}
	if len(scans) == 0 {
		fmt.Println("No scans recorded.")
		return nil
	}
	for _, s := range scans {
		fmt.Printf("%s  %-19s  %-7s  %-12s  %d entities, %d annotations  %s\n",
			s.ID, s.StartedAt.Format("2006-01-02 15:04:05"), s.Mode, s.Outcome,
			s.Records, s.Annotations, s.Target)
	}
	return nil
}

func showScan(st *store.Store, scanID string) error {
	entities, err := st.ScanEntities(scanID)
	if err != nil {
		return err
	}
	if len(entities) == 0 {
		fmt.Printf("No entities recorded for scan %s.\n", scanID)
		return nil
	}
	for _, e := range entities {
		marker := " "
		if !e.Highlightable {
			marker = "?"
		}
		fmt.Printf("%s %-10s %-44s %-10s %s\n", marker, e.Type, e.Value, e.SourceState, e.DiscoveryKind)
	}
	return nil
}
