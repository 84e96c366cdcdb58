package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harvestlink/traceledger/internal/client"
)

var harvestCmd = &cobra.Command{
	Use:   "harvest <plot>",
	Short: "Record a harvest: mint an identifier and its HARVESTED event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plotID := args[0]

		geoStr, _ := cmd.Flags().GetString("geo")
		geo, err := parseGeoFlag(geoStr)
		if err != nil {
			return err
		}
		vtiType, _ := cmd.Flags().GetString("type")
		metaFlags, _ := cmd.Flags().GetStringSlice("meta")

		metadata := map[string]string{}
		for _, kv := range metaFlags {
			parts := strings.SplitN(kv, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("meta must be key=value, got %q", kv)
			}
			metadata[parts[0]] = parts[1]
		}

		req := &client.HarvestRequest{
			Type:     vtiType,
			Metadata: metadata,
			Actor:    actor,
			Geo:      geo,
		}
		if private, _ := cmd.Flags().GetBool("private"); private {
			pub := false
			req.Public = &pub
		}

		resp, err := api.Harvest(cmd.Context(), plotID, req)
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(resp)
			return nil
		}
		fmt.Printf("harvested %s from %s\n", renderAccent(resp.Identifier.ID), plotID)
		return nil
	},
}

func init() {
	harvestCmd.Flags().String("type", "", "identifier type (default farm_batch)")
	harvestCmd.Flags().StringSlice("meta", nil, "metadata entries as key=value")
	harvestCmd.Flags().String("geo", "", "coordinates as lat,lon")
	harvestCmd.Flags().Bool("private", false, "hide the batch from public listings")
}
