package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ioclens/internal/scan"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the extraction and boilerplate rule tables",
	Run:   runRules,
}

func runRules(cmd *cobra.Command, args []string) {
	fmt.Println("Extraction rules (pattern mode):")
	for _, r := range scan.NewExtractor().Rules() {
		fmt.Printf("  %-10s %s\n", r.ID, r.Pattern.String())
	}

	fmt.Println("\nBoilerplate filter rules (heuristics only, applied in order):")
	for _, r := range scan.NewBoilerplateFilter().Rules() {
		state := ""
		if r.Disabled {
			state = " (disabled)"
		}
		fmt.Printf("  %-20s %s%s\n", r.ID, r.Pattern.String(), state)
	}
}
