package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/harvestlink/traceledger/internal/model"
)

var eventsCmd = &cobra.Command{
	Use:   "events <plot-or-vti>",
	Short: "List the ledger entries recorded against a plot or identifier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref := args[0]

		var (
			events []*model.TraceEvent
			err    error
		)
		if strings.HasPrefix(ref, "vti-") {
			events, err = api.ListVTIEvents(cmd.Context(), ref)
		} else {
			events, err = api.ListPlotEvents(cmd.Context(), ref)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(events)
			return nil
		}
		printEventTable(events, nil)
		return nil
	},
}
