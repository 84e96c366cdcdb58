package events

import (
	"context"

	"github.com/harvestlink/traceledger/internal/model"
)

// Event topic constants
const (
	TopicVTICreated       = "trace.vti.created"
	TopicVTILinked        = "trace.vti.linked"
	TopicVTIStatusChanged = "trace.vti.status"
	TopicHarvestCompleted = "trace.harvest.completed"

	// TopicEventAppended fires after every successful ledger append; the
	// anomaly hook subscribes to it and acts on events that carry a VTI ref.
	TopicEventAppended = "trace.event.appended"

	// TopicAnomalyFlagged is published by the anomaly hook after it records
	// a verdict; the notification fan-out consumes it downstream.
	TopicAnomalyFlagged = "trace.anomaly.flagged"
)

// Event types

type VTICreated struct {
	VTI *model.VTI `json:"vti"`
}

type VTILinked struct {
	VTIID    string `json:"vti_id"`
	LinkedID string `json:"linked_id"`
}

type VTIStatusChanged struct {
	VTIID  string `json:"vti_id"`
	Status string `json:"status"`
}

type HarvestCompleted struct {
	VTI     *model.VTI        `json:"vti"`
	PlotID  string            `json:"plot_id"`
	EventID int64             `json:"event_id"`
	Harvest *model.TraceEvent `json:"harvest"`
}

type EventAppended struct {
	Event *model.TraceEvent `json:"event"`
}

type AnomalyFlagged struct {
	VTIID      string            `json:"vti_id"`
	EventID    int64             `json:"event_id"`
	Reason     string            `json:"reason,omitempty"`
	Annotation *model.Annotation `json:"annotation"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
