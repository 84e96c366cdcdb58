package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/harvestlink/traceledger/internal/model"
)

// History is the reconstructed chain of custody for one identifier: the
// registry record, every event from field preparation through the last
// post-harvest entry in chronological order, and the resolved actors.
type History struct {
	Identifier *model.VTI                  `json:"identifier"`
	Events     []*model.TraceEvent         `json:"events"`
	Actors     map[string]*model.ActorInfo `json:"actors"`
}

// getHistory rebuilds the full event chain for an identifier. Pre-harvest
// events are pulled by the farm-field ref stored in the identifier's
// metadata; when that ref is absent the chain starts at the harvest.
func (s *LedgerServer) getHistory(ctx context.Context, vtiID string, includePrivate bool) (*History, error) {
	vti, err := s.store.GetVTI(ctx, vtiID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("identifier " + vtiID + " not found")
		}
		return nil, fmt.Errorf("failed to load identifier: %w", err)
	}
	if !includePrivate && !vti.IsPublic {
		return nil, notFoundError("identifier " + vtiID + " not found")
	}

	var (
		wg        sync.WaitGroup
		pre, post []*model.TraceEvent
		preErr    error
		postErr   error
	)

	if plotID := vti.FarmFieldID(); plotID != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pre, preErr = s.store.ListEventsByPlot(ctx, plotID, true)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		post, postErr = s.store.ListEventsByVTI(ctx, vtiID)
	}()
	wg.Wait()

	if preErr != nil {
		return nil, fmt.Errorf("failed to load pre-harvest events: %w", preErr)
	}
	if postErr != nil {
		return nil, fmt.Errorf("failed to load post-harvest events: %w", postErr)
	}

	merged := make([]*model.TraceEvent, 0, len(pre)+len(post))
	merged = append(merged, pre...)
	merged = append(merged, post...)
	sort.SliceStable(merged, func(i, j int) bool {
		if !merged[i].RecordedAt.Equal(merged[j].RecordedAt) {
			return merged[i].RecordedAt.Before(merged[j].RecordedAt)
		}
		return merged[i].ID < merged[j].ID
	})

	if !includePrivate {
		visible := merged[:0]
		for _, e := range merged {
			if e.IsPublic {
				visible = append(visible, e)
			}
		}
		merged = visible
	}

	if err := s.attachAnnotations(ctx, vtiID, merged); err != nil {
		return nil, err
	}

	actorIDs := make(map[string]struct{}, len(merged))
	for _, e := range merged {
		actorIDs[e.Actor] = struct{}{}
	}

	return &History{
		Identifier: vti,
		Events:     merged,
		Actors:     s.resolver.Resolve(ctx, actorIDs),
	}, nil
}

// attachAnnotations joins stored anomaly verdicts onto the matching events.
func (s *LedgerServer) attachAnnotations(ctx context.Context, vtiID string, evs []*model.TraceEvent) error {
	annotations, err := s.store.ListAnnotationsByVTI(ctx, vtiID)
	if err != nil {
		return fmt.Errorf("failed to load annotations: %w", err)
	}
	if len(annotations) == 0 {
		return nil
	}

	byEvent := make(map[int64][]*model.Annotation, len(annotations))
	for _, a := range annotations {
		byEvent[a.EventID] = append(byEvent[a.EventID], a)
	}
	for _, e := range evs {
		e.Annotations = byEvent[e.ID]
	}
	return nil
}

// getIdentifier loads one registry record with its lineage links.
func (s *LedgerServer) getIdentifier(ctx context.Context, vtiID string, includePrivate bool) (*model.VTI, error) {
	vti, err := s.store.GetVTI(ctx, vtiID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("identifier " + vtiID + " not found")
		}
		return nil, fmt.Errorf("failed to load identifier: %w", err)
	}
	if !includePrivate && !vti.IsPublic {
		return nil, notFoundError("identifier " + vtiID + " not found")
	}

	links, err := s.store.GetLinks(ctx, vtiID)
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}
	vti.LinkedIDs = links
	return vti, nil
}

// listEvents returns an identifier's own ledger entries, without the
// pre-harvest back-fill that getHistory performs.
func (s *LedgerServer) listEvents(ctx context.Context, vtiID string, includePrivate bool) ([]*model.TraceEvent, error) {
	if _, err := s.store.GetVTI(ctx, vtiID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundError("identifier " + vtiID + " not found")
		}
		return nil, fmt.Errorf("failed to load identifier: %w", err)
	}

	evs, err := s.store.ListEventsByVTI(ctx, vtiID)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	if !includePrivate {
		visible := evs[:0]
		for _, e := range evs {
			if e.IsPublic {
				visible = append(visible, e)
			}
		}
		evs = visible
	}
	if err := s.attachAnnotations(ctx, vtiID, evs); err != nil {
		return nil, err
	}
	return evs, nil
}

// listPlotEvents returns the pre-harvest ledger for a field plot.
func (s *LedgerServer) listPlotEvents(ctx context.Context, plotID string, includePrivate bool) ([]*model.TraceEvent, error) {
	if plotID == "" {
		return nil, inputError("plot id is required")
	}
	evs, err := s.store.ListEventsByPlot(ctx, plotID, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	if !includePrivate {
		visible := evs[:0]
		for _, e := range evs {
			if e.IsPublic {
				visible = append(visible, e)
			}
		}
		evs = visible
	}
	return evs, nil
}

// listPublicBatches returns recent public identifiers for consumer browsing.
func (s *LedgerServer) listPublicBatches(ctx context.Context, limit int) ([]*model.VTI, error) {
	vtis, err := s.store.ListPublicVTIs(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list identifiers: %w", err)
	}
	return vtis, nil
}
