package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link <vti> <linked-vti>",
	Short: "Record a lineage link between two identifiers",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.AddLink(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("linked %s -> %s\n", args[0], args[1])
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <vti> <status>",
	Short: "Update an identifier's lifecycle status",
	Long:  "Valid statuses: active, consumed, recalled, archived.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := api.UpdateStatus(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s is now %s\n", args[0], args[1])
		return nil
	},
}
