package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/harvestlink/traceledger/internal/store"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version         string    `json:"version"`
	Type            string    `json:"type"`
	Timestamp       time.Time `json:"timestamp"`
	IdentifierCount int       `json:"identifier_count"`
	EventCount      int       `json:"event_count"`
	AnnotationCount int       `json:"annotation_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ExportJSONL writes the full ledger as JSONL to w: identifiers (with their
// lineage links), every event in recorded order, and all annotations.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	vtis, err := s.ListAllVTIs(ctx)
	if err != nil {
		return fmt.Errorf("list identifiers: %w", err)
	}
	for _, v := range vtis {
		links, err := s.GetLinks(ctx, v.ID)
		if err != nil {
			return fmt.Errorf("get links for %s: %w", v.ID, err)
		}
		v.LinkedIDs = links
	}

	events, err := s.ListAllEvents(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	annotations, err := s.ListAllAnnotations(ctx)
	if err != nil {
		return fmt.Errorf("list annotations: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:         "1",
		Type:            "header",
		Timestamp:       time.Now().UTC(),
		IdentifierCount: len(vtis),
		EventCount:      len(events),
		AnnotationCount: len(annotations),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, v := range vtis {
		if err := enc.Encode(record{Type: "identifier", Data: v}); err != nil {
			return fmt.Errorf("encode identifier %s: %w", v.ID, err)
		}
	}
	for _, e := range events {
		if err := enc.Encode(record{Type: "event", Data: e}); err != nil {
			return fmt.Errorf("encode event %d: %w", e.ID, err)
		}
	}
	for _, a := range annotations {
		if err := enc.Encode(record{Type: "annotation", Data: a}); err != nil {
			return fmt.Errorf("encode annotation %d: %w", a.ID, err)
		}
	}

	return nil
}
