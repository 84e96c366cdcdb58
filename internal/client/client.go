// Package client provides a transport-agnostic interface for the traceledger
// service and an HTTP/JSON implementation that talks to its REST API.
package client

import (
	"context"
	"encoding/json"

	"github.com/harvestlink/traceledger/internal/model"
)

// TraceClient is the interface that all CLI commands use to communicate with
// the ledger server. It is implemented by HTTPClient and can be backed by any
// transport.
type TraceClient interface {
	// Pre-harvest plot ledger
	AppendPlotEvent(ctx context.Context, plotID string, req *AppendEventRequest) (*model.TraceEvent, error)
	ListPlotEvents(ctx context.Context, plotID string) ([]*model.TraceEvent, error)

	// Harvest transition
	Harvest(ctx context.Context, plotID string, req *HarvestRequest) (*HarvestResponse, error)

	// Identifier registry
	GetVTI(ctx context.Context, id string) (*model.VTI, error)
	ListVTIs(ctx context.Context, limit int) ([]*model.VTI, error)
	AddLink(ctx context.Context, id, linkedID string) error
	UpdateStatus(ctx context.Context, id, status string) error

	// Post-harvest ledger and history
	AppendVTIEvent(ctx context.Context, id string, req *AppendEventRequest) (*model.TraceEvent, error)
	ListVTIEvents(ctx context.Context, id string) ([]*model.TraceEvent, error)
	GetHistory(ctx context.Context, id string) (*HistoryResponse, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// AppendEventRequest holds parameters for appending a ledger event.
type AppendEventRequest struct {
	Type    string          `json:"type"`
	Actor   string          `json:"actor"`
	Geo     *model.GeoPoint `json:"geo,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Public  *bool           `json:"is_public,omitempty"`
}

// HarvestRequest holds parameters for a harvest transition.
type HarvestRequest struct {
	Type     string            `json:"type,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Actor    string            `json:"actor"`
	Geo      *model.GeoPoint   `json:"geo,omitempty"`
	Payload  json.RawMessage   `json:"payload,omitempty"`
	Public   *bool             `json:"is_public,omitempty"`
}

// HarvestResponse is the response from Harvest: the minted identifier and its
// first event.
type HarvestResponse struct {
	Identifier *model.VTI        `json:"identifier"`
	Event      *model.TraceEvent `json:"event"`
}

// HistoryResponse is the reconstructed chain of custody for an identifier.
type HistoryResponse struct {
	Identifier *model.VTI                  `json:"identifier"`
	Events     []*model.TraceEvent         `json:"events"`
	Actors     map[string]*model.ActorInfo `json:"actors"`
}
