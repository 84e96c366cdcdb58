package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <plot-or-vti>",
	Short: "Show the full event chain for an identifier or plot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := args[0]

		// Plot refs only have a pre-harvest ledger.
		if !strings.HasPrefix(ref, "vti-") {
			events, err := api.ListPlotEvents(cmd.Context(), ref)
			if err != nil {
				return err
			}
			if jsonOutput {
				printJSON(events)
				return nil
			}
			printEventTable(events, nil)
			return nil
		}

		h, err := api.GetHistory(cmd.Context(), ref)
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(h)
			return nil
		}
		printVTITable(h.Identifier)
		fmt.Println()
		printEventTable(h.Events, h.Actors)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent public identifiers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		vtis, err := api.ListVTIs(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(vtis)
			return nil
		}
		printVTIListTable(vtis)
		return nil
	},
}

func init() {
	listCmd.Flags().Int("limit", 0, "maximum number of identifiers to return")
}
