package model

import (
	"encoding/json"
	"time"
)

// EventType tags a lifecycle event.
type EventType string

// Pre-harvest types, recorded against a field-plot before any VTI exists.
const (
	EventPlanted      EventType = "PLANTED"
	EventInputApplied EventType = "INPUT_APPLIED"
	EventObserved     EventType = "OBSERVED"
	EventIrrigated    EventType = "IRRIGATED"
)

// EventHarvested is the transition event: the first event recorded against a
// freshly minted VTI, carrying the plot ref for cross-reference.
const EventHarvested EventType = "HARVESTED"

// Post-harvest types, recorded against a VTI.
const (
	EventTransported EventType = "TRANSPORTED"
	EventProcessed   EventType = "PROCESSED"
	EventStored      EventType = "STORED"
	EventInspected   EventType = "INSPECTED"
	EventSold        EventType = "SOLD"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsValid checks whether the event type is a known value.
func (t EventType) IsValid() bool {
	switch t {
	case EventPlanted, EventInputApplied, EventObserved, EventIrrigated,
		EventHarvested,
		EventTransported, EventProcessed, EventStored, EventInspected, EventSold:
		return true
	}
	return false
}

// GeoPoint is an optional coordinate pair attached to an event.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// TraceEvent is one immutable ledger entry. At least one of VTIRef or PlotRef
// must be set; HARVESTED events carry both. RecordedAt is assigned by the
// database at write time, never by clients, so the pre/post-harvest merge has
// a single clock.
type TraceEvent struct {
	ID         int64           `json:"id"`
	VTIRef     string          `json:"vti_ref,omitempty"`
	PlotRef    string          `json:"plot_ref,omitempty"`
	Type       EventType       `json:"type"`
	Actor      string          `json:"actor"`
	Geo        *GeoPoint       `json:"geo,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	IsPublic   bool            `json:"is_public"`
	RecordedAt time.Time       `json:"recorded_at"`

	// Annotations are anomaly verdicts joined onto the event at read time;
	// the event row itself is never rewritten.
	Annotations []*Annotation `json:"annotations,omitempty"`
}
