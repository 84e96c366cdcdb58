// Package server implements the traceability ledger service: identifier
// registry operations, append-only event recording, the harvest transition,
// and history reconstruction, exposed over HTTP/JSON.
package server

import (
	"context"
	"log/slog"

	"github.com/harvestlink/traceledger/internal/actors"
	"github.com/harvestlink/traceledger/internal/events"
	"github.com/harvestlink/traceledger/internal/model"
	"github.com/harvestlink/traceledger/internal/store"
)

// LedgerServer holds the ledger's collaborators. Stores and clients are
// injected so tests can swap in doubles; there is no package-level state.
type LedgerServer struct {
	store     store.Store
	publisher events.Publisher
	resolver  *actors.Resolver
	logger    *slog.Logger
}

// NewLedgerServer returns a LedgerServer backed by the given store, publisher,
// and actor resolver.
func NewLedgerServer(s store.Store, p events.Publisher, r *actors.Resolver, logger *slog.Logger) *LedgerServer {
	if p == nil {
		p = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if r == nil {
		r = actors.NewResolver(noDirectory{}, 0, logger)
	}
	return &LedgerServer{store: s, publisher: p, resolver: r, logger: logger}
}

// noDirectory resolves nothing; every actor degrades to the sentinel. Used
// when no profile service is configured.
type noDirectory struct{}

func (noDirectory) Lookup(context.Context, []string) (map[string]*model.ActorInfo, error) {
	return nil, nil
}

// publish emits a bus event. Publishing is best-effort relative to the
// durable write that preceded it; failures are logged, never propagated.
func (s *LedgerServer) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}

// inputError indicates invalid caller input. Transport layers map it to 400.
type inputError string

func (e inputError) Error() string { return string(e) }

// notFoundError indicates an unknown identifier or field-plot reference,
// including failed pre-write referential integrity checks. Maps to 404.
type notFoundError string

func (e notFoundError) Error() string { return string(e) }
