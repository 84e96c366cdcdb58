package anomaly

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/harvestlink/traceledger/internal/events"
	"github.com/harvestlink/traceledger/internal/model"
	"github.com/harvestlink/traceledger/internal/store"
)

// Handler scores identifiers after each post-harvest append and records
// anomalous verdicts as annotations. All failures here are downstream
// failures: logged and swallowed, never propagated back to the append.
type Handler struct {
	store     store.Store
	scorer    Scorer
	publisher events.Publisher
	logger    *slog.Logger
}

// NewHandler creates an anomaly handler backed by the given store and scorer.
func NewHandler(s store.Store, scorer Scorer, pub events.Publisher, logger *slog.Logger) *Handler {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: s, scorer: scorer, publisher: pub, logger: logger}
}

// HandleAppend scores the identifier referenced by a freshly appended event.
// Events without a VTI ref (pre-harvest) are ignored. When the scorer reports
// an anomaly, an annotation is appended against the triggering event and an
// AnomalyFlagged event is published for the notification fan-out.
func (h *Handler) HandleAppend(ctx context.Context, event *model.TraceEvent) {
	if event == nil || event.VTIRef == "" {
		return
	}

	verdict, err := h.scorer.Score(ctx, event.VTIRef)
	if err != nil {
		h.logger.Warn("anomaly: scorer unreachable",
			"vti_id", event.VTIRef, "event_id", event.ID, "error", err)
		return
	}
	if !verdict.IsAnomaly {
		return
	}

	annotation := &model.Annotation{
		EventID:   event.ID,
		VTIRef:    event.VTIRef,
		IsAnomaly: true,
		Reason:    verdict.Reason,
	}
	if err := h.store.AddAnnotation(ctx, annotation); err != nil {
		h.logger.Error("anomaly: failed to record annotation",
			"vti_id", event.VTIRef, "event_id", event.ID, "error", err)
		return
	}

	h.logger.Info("anomaly: flagged event",
		"vti_id", event.VTIRef, "event_id", event.ID, "reason", verdict.Reason)

	if err := h.publisher.Publish(ctx, events.TopicAnomalyFlagged, events.AnomalyFlagged{
		VTIID:      event.VTIRef,
		EventID:    event.ID,
		Reason:     verdict.Reason,
		Annotation: annotation,
	}); err != nil {
		h.logger.Warn("anomaly: failed to publish flag",
			"vti_id", event.VTIRef, "event_id", event.ID, "error", err)
	}
}

// StartSubscriber listens for appended-event notifications on the bus and
// scores each one. It blocks until ctx is cancelled.
func (h *Handler) StartSubscriber(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe(events.TopicEventAppended)
	if err != nil {
		return fmt.Errorf("anomaly: subscribe: %w", err)
	}
	defer cancel()

	h.logger.Info("anomaly: subscriber started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("anomaly: subscriber stopping")
			return nil
		case raw, ok := <-ch:
			if !ok {
				h.logger.Info("anomaly: subscription channel closed")
				return nil
			}

			var appended events.EventAppended
			if err := json.Unmarshal(raw, &appended); err != nil {
				h.logger.Warn("anomaly: bad event payload", "error", err)
				continue
			}

			h.HandleAppend(ctx, appended.Event)
		}
	}
}
