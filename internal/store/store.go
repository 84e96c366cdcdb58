package store

import (
	"context"
	"errors"

	"github.com/harvestlink/traceledger/internal/model"
)

// ErrDuplicateID is returned by CreateVTI when a freshly generated identifier
// already exists. The id space makes this vanishingly unlikely; surfacing it
// instead of swallowing it keeps the uniqueness invariant checkable.
var ErrDuplicateID = errors.New("identifier already exists")

// Store defines the persistence interface for the traceability ledger.
// Not-found lookups return sql.ErrNoRows.
type Store interface {
	// Identifier registry
	CreateVTI(ctx context.Context, vti *model.VTI) error
	GetVTI(ctx context.Context, id string) (*model.VTI, error)
	ListPublicVTIs(ctx context.Context, limit int) ([]*model.VTI, error)
	UpdateVTIStatus(ctx context.Context, id string, status model.VTIStatus) error

	// Lineage links (append-only)
	AddLink(ctx context.Context, vtiID, linkedID string) error
	GetLinks(ctx context.Context, vtiID string) ([]string, error)

	// Event ledger (append-only; RecordedAt is assigned by the store)
	AppendEvent(ctx context.Context, event *model.TraceEvent) error
	GetEvent(ctx context.Context, id int64) (*model.TraceEvent, error)
	ListEventsByPlot(ctx context.Context, plotID string, preHarvestOnly bool) ([]*model.TraceEvent, error)
	ListEventsByVTI(ctx context.Context, vtiID string) ([]*model.TraceEvent, error)

	// Anomaly annotations (append-only, joined onto events at read time)
	AddAnnotation(ctx context.Context, a *model.Annotation) error
	ListAnnotationsByVTI(ctx context.Context, vtiID string) ([]*model.Annotation, error)

	// Full-table listings for archive export
	ListAllVTIs(ctx context.Context) ([]*model.VTI, error)
	ListAllEvents(ctx context.Context) ([]*model.TraceEvent, error)
	ListAllAnnotations(ctx context.Context) ([]*model.Annotation, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
