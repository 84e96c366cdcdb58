package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harvestlink/traceledger/internal/client"
	"github.com/harvestlink/traceledger/internal/model"
)

// parseGeoFlag parses "lat,lon" into a GeoPoint.
func parseGeoFlag(s string) (*model.GeoPoint, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.SplitN(s, ",", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("geo must be lat,lon")
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude: %w", err)
	}
	return &model.GeoPoint{Lat: lat, Lon: lon}, nil
}

func buildAppendRequest(cmd *cobra.Command, eventType string) (*client.AppendEventRequest, error) {
	geoStr, _ := cmd.Flags().GetString("geo")
	geo, err := parseGeoFlag(geoStr)
	if err != nil {
		return nil, err
	}

	req := &client.AppendEventRequest{
		Type:  eventType,
		Actor: actor,
		Geo:   geo,
	}
	if payload, _ := cmd.Flags().GetString("payload"); payload != "" {
		if !json.Valid([]byte(payload)) {
			return nil, fmt.Errorf("payload must be valid JSON")
		}
		req.Payload = json.RawMessage(payload)
	}
	if private, _ := cmd.Flags().GetBool("private"); private {
		pub := false
		req.Public = &pub
	}
	return req, nil
}

var logCmd = &cobra.Command{
	Use:   "log <plot-or-vti> <event-type>",
	Short: "Append an event to a plot or identifier ledger",
	Long: `Append an event. Refs starting with the identifier prefix are recorded
against that identifier; anything else is treated as a field-plot ref.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, eventType := args[0], strings.ToUpper(args[1])

		req, err := buildAppendRequest(cmd, eventType)
		if err != nil {
			return err
		}

		var event *model.TraceEvent
		if strings.HasPrefix(ref, "vti-") {
			event, err = api.AppendVTIEvent(cmd.Context(), ref, req)
		} else {
			event, err = api.AppendPlotEvent(cmd.Context(), ref, req)
		}
		if err != nil {
			return err
		}

		if jsonOutput {
			printJSON(event)
			return nil
		}
		fmt.Printf("recorded %s event %d at %s\n", event.Type, event.ID, event.RecordedAt.Format(timeFormat))
		return nil
	},
}

func init() {
	logCmd.Flags().String("geo", "", "coordinates as lat,lon")
	logCmd.Flags().String("payload", "", "event payload as JSON")
	logCmd.Flags().Bool("private", false, "hide the event from public history")
}
