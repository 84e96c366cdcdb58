package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harvestlink/traceledger/internal/events"
	"github.com/harvestlink/traceledger/internal/idgen"
	"github.com/harvestlink/traceledger/internal/model"
	"github.com/harvestlink/traceledger/internal/store"
)

// createVTIAttempts bounds id regeneration when an insert hits the (extremely
// unlikely) duplicate-id case.
const createVTIAttempts = 3

// appendEventInput holds transport-agnostic parameters for appending an event.
type appendEventInput struct {
	Type     string          `json:"type"`
	Actor    string          `json:"actor"`
	Geo      *model.GeoPoint `json:"geo,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Public   *bool           `json:"is_public,omitempty"`
	PlotRef  string          `json:"plot_ref,omitempty"` // cross-reference on post-harvest appends
}

// harvestInput holds transport-agnostic parameters for a harvest transition.
type harvestInput struct {
	Type     string            `json:"type"` // identifier type; defaults to farm_batch
	Metadata map[string]string `json:"metadata,omitempty"`
	Actor    string            `json:"actor"`
	Geo      *model.GeoPoint   `json:"geo,omitempty"`
	Payload  json.RawMessage   `json:"payload,omitempty"`
	Public   *bool             `json:"is_public,omitempty"`
}

func publicOrDefault(p *bool) bool {
	if p == nil {
		return true
	}
	return *p
}

// appendPreHarvestEvent records a field-operation event against a plot,
// before any identifier exists.
func (s *LedgerServer) appendPreHarvestEvent(ctx context.Context, plotID string, in appendEventInput) (*model.TraceEvent, error) {
	if plotID == "" {
		return nil, inputError("plot id is required")
	}

	event := &model.TraceEvent{
		PlotRef:  plotID,
		Type:     model.EventType(in.Type),
		Actor:    in.Actor,
		Geo:      in.Geo,
		Payload:  in.Payload,
		IsPublic: publicOrDefault(in.Public),
	}
	if err := model.ValidateEvent(event); err != nil {
		return nil, inputError("invalid event: " + err.Error())
	}

	if err := s.store.AppendEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	s.publish(ctx, events.TopicEventAppended, events.EventAppended{Event: event})
	return event, nil
}

// appendPostHarvestEvent records an event against an identifier. The registry
// existence check runs before the write; appending to an unknown identifier
// is a referential integrity failure surfaced as not-found.
func (s *LedgerServer) appendPostHarvestEvent(ctx context.Context, vtiID string, in appendEventInput) (*model.TraceEvent, error) {
	if vtiID == "" {
		return nil, inputError("vti id is required")
	}

	if _, err := s.store.GetVTI(ctx, vtiID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("identifier " + vtiID + " not found")
		}
		return nil, fmt.Errorf("failed to check identifier: %w", err)
	}

	event := &model.TraceEvent{
		VTIRef:   vtiID,
		PlotRef:  in.PlotRef,
		Type:     model.EventType(in.Type),
		Actor:    in.Actor,
		Geo:      in.Geo,
		Payload:  in.Payload,
		IsPublic: publicOrDefault(in.Public),
	}
	if err := model.ValidateEvent(event); err != nil {
		return nil, inputError("invalid event: " + err.Error())
	}

	if err := s.store.AppendEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to append event: %w", err)
	}

	s.publish(ctx, events.TopicEventAppended, events.EventAppended{Event: event})
	return event, nil
}

// harvestTransition mints a new identifier for a plot's output and records
// the HARVESTED event against it. Both writes run in one transaction: the
// identifier and its first event appear together, or not at all.
func (s *LedgerServer) harvestTransition(ctx context.Context, plotID string, in harvestInput) (*model.VTI, *model.TraceEvent, error) {
	if plotID == "" {
		return nil, nil, inputError("plot id is required")
	}

	vtiType := model.VTIType(in.Type)
	if vtiType == "" {
		vtiType = model.TypeFarmBatch
	}

	metadata := make(map[string]string, len(in.Metadata)+1)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	// The plot ref is load-bearing for reconstruction; the caller cannot
	// override it.
	metadata[model.MetadataFarmField] = plotID

	event := &model.TraceEvent{
		PlotRef:  plotID,
		Type:     model.EventHarvested,
		Actor:    in.Actor,
		Geo:      in.Geo,
		Payload:  in.Payload,
		IsPublic: publicOrDefault(in.Public),
	}

	var vti *model.VTI
	for attempt := 0; attempt < createVTIAttempts; attempt++ {
		id, err := idgen.Generate()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate identifier: %w", err)
		}

		vti = &model.VTI{
			ID:       id,
			Type:     vtiType,
			Status:   model.StatusActive,
			Metadata: metadata,
			IsPublic: publicOrDefault(in.Public),
		}
		if err := model.ValidateVTI(vti); err != nil {
			return nil, nil, inputError("invalid identifier: " + err.Error())
		}

		event.VTIRef = id
		if err := model.ValidateEvent(event); err != nil {
			return nil, nil, inputError("invalid harvest event: " + err.Error())
		}

		err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
			if err := tx.CreateVTI(ctx, vti); err != nil {
				return err
			}
			return tx.AppendEvent(ctx, event)
		})
		if errors.Is(err, store.ErrDuplicateID) {
			s.logger.Warn("identifier collision, regenerating", "id", id)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("harvest transition failed: %w", err)
		}

		s.publish(ctx, events.TopicVTICreated, events.VTICreated{VTI: vti})
		s.publish(ctx, events.TopicHarvestCompleted, events.HarvestCompleted{
			VTI: vti, PlotID: plotID, EventID: event.ID, Harvest: event,
		})
		s.publish(ctx, events.TopicEventAppended, events.EventAppended{Event: event})
		return vti, event, nil
	}

	return nil, nil, fmt.Errorf("harvest transition failed: %w", store.ErrDuplicateID)
}

// linkIdentifiers records a lineage edge (split/merge) between two existing
// identifiers, rejecting edges that would make the lineage graph cyclic.
func (s *LedgerServer) linkIdentifiers(ctx context.Context, vtiID, linkedID string) error {
	if vtiID == "" || linkedID == "" {
		return inputError("both identifier ids are required")
	}
	if vtiID == linkedID {
		return inputError("an identifier cannot link to itself")
	}

	for _, id := range []string{vtiID, linkedID} {
		if _, err := s.store.GetVTI(ctx, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return notFoundError("identifier " + id + " not found")
			}
			return fmt.Errorf("failed to check identifier: %w", err)
		}
	}

	cyclic, err := s.wouldCreateCycle(ctx, vtiID, linkedID)
	if err != nil {
		return fmt.Errorf("failed to check lineage graph: %w", err)
	}
	if cyclic {
		return inputError("link would create a lineage cycle")
	}

	if err := s.store.AddLink(ctx, vtiID, linkedID); err != nil {
		return fmt.Errorf("failed to add link: %w", err)
	}

	s.publish(ctx, events.TopicVTILinked, events.VTILinked{VTIID: vtiID, LinkedID: linkedID})
	return nil
}

// wouldCreateCycle walks the lineage graph from linkedID; reaching vtiID
// means the proposed edge closes a cycle.
func (s *LedgerServer) wouldCreateCycle(ctx context.Context, vtiID, linkedID string) (bool, error) {
	visited := map[string]struct{}{}
	stack := []string{linkedID}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if current == vtiID {
			return true, nil
		}
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}

		next, err := s.store.GetLinks(ctx, current)
		if err != nil {
			return false, err
		}
		stack = append(stack, next...)
	}
	return false, nil
}

// updateStatus moves an identifier's lifecycle flag. Id, type, and creation
// time stay immutable; this is the only mutable registry field.
func (s *LedgerServer) updateStatus(ctx context.Context, vtiID string, status model.VTIStatus) error {
	if !status.IsValid() {
		return inputError(fmt.Sprintf("invalid status %q", status))
	}

	if err := s.store.UpdateVTIStatus(ctx, vtiID, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError("identifier " + vtiID + " not found")
		}
		return fmt.Errorf("failed to update status: %w", err)
	}

	s.publish(ctx, events.TopicVTIStatusChanged, events.VTIStatusChanged{
		VTIID: vtiID, Status: string(status),
	})
	return nil
}
