package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/harvestlink/traceledger/internal/model"
)

// ANSI256 color codes.
const (
	colorAccent  = 74  // blue
	colorMuted   = 245 // medium gray
	colorWarning = 173 // orange
)

var noColor bool

func forceNoColor() { noColor = true }

func renderAccent(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorAccent, s)
}

func renderMuted(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorMuted, s)
}

func renderWarning(s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", colorWarning, s)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

const timeFormat = "2006-01-02 15:04:05"

func printVTITable(v *model.VTI) {
	fmt.Printf("ID:         %s\n", renderAccent(v.ID))
	fmt.Printf("Type:       %s\n", v.Type)
	fmt.Printf("Status:     %s\n", v.Status)
	fmt.Printf("Public:     %t\n", v.IsPublic)
	fmt.Printf("Created At: %s\n", v.CreatedAt.Format(timeFormat))
	if plot := v.FarmFieldID(); plot != "" {
		fmt.Printf("Farm Field: %s\n", plot)
	}
	for k, val := range v.Metadata {
		if k == model.MetadataFarmField {
			continue
		}
		fmt.Printf("  %s: %s\n", renderMuted(k), val)
	}
	if len(v.LinkedIDs) > 0 {
		fmt.Printf("Linked:     %v\n", v.LinkedIDs)
	}
}

func printVTIListTable(vtis []*model.VTI) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tSTATUS\tPUBLIC\tCREATED")
	for _, v := range vtis {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n",
			v.ID, v.Type, v.Status, v.IsPublic, v.CreatedAt.Format(timeFormat))
	}
	w.Flush()
	fmt.Printf("\n%d identifiers\n", len(vtis))
}

func printEventTable(events []*model.TraceEvent, actors map[string]*model.ActorInfo) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tACTOR\tREF\tFLAGS")
	for _, e := range events {
		actorName := e.Actor
		if info, ok := actors[e.Actor]; ok {
			actorName = info.Name
		}
		ref := e.VTIRef
		if ref == "" {
			ref = e.PlotRef
		}
		flags := ""
		for _, a := range e.Annotations {
			if a.IsAnomaly {
				flags = renderWarning("ANOMALY: " + a.Reason)
				break
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.RecordedAt.Format(timeFormat), e.Type, actorName, ref, flags)
	}
	w.Flush()
}
