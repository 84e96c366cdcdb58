package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <vti>",
	Short: "Show an identifier's registry record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vti, err := api.GetVTI(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(vti)
			return nil
		}
		printVTITable(vti)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check server health",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := api.Health(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(status)
		return nil
	},
}
