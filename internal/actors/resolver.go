// Package actors resolves event actor refs to display metadata from the
// external profile directory.
package actors

import (
	"context"
	"log/slog"
	"sort"

	"github.com/harvestlink/traceledger/internal/model"
)

// DefaultChunkSize matches the profile store's bounded batch-lookup primitive.
const DefaultChunkSize = 30

// Directory is the bounded-batch lookup primitive exposed by the external
// profile store. Implementations must accept at most chunkSize ids per call;
// ids with no matching profile are simply absent from the result map.
type Directory interface {
	Lookup(ctx context.Context, ids []string) (map[string]*model.ActorInfo, error)
}

// Resolver batches actor lookups against a Directory and fills gaps with the
// System/Unknown sentinel so history always renders.
type Resolver struct {
	dir       Directory
	chunkSize int
	logger    *slog.Logger
}

// NewResolver creates a resolver over the given directory. chunkSize <= 0
// falls back to DefaultChunkSize.
func NewResolver(dir Directory, chunkSize int, logger *slog.Logger) *Resolver {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{dir: dir, chunkSize: chunkSize, logger: logger}
}

// Resolve partitions the id set into chunks, issues one directory lookup per
// chunk, and merges the results. Every input id is present in the returned
// map: unknown ids, and all ids of a chunk whose lookup failed, map to the
// sentinel record. Resolve itself never fails.
func (r *Resolver) Resolve(ctx context.Context, ids map[string]struct{}) map[string]*model.ActorInfo {
	resolved := make(map[string]*model.ActorInfo, len(ids))
	if len(ids) == 0 {
		return resolved
	}

	// Deterministic chunking keeps lookups reproducible in tests.
	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	for start := 0; start < len(ordered); start += r.chunkSize {
		end := start + r.chunkSize
		if end > len(ordered) {
			end = len(ordered)
		}
		chunk := ordered[start:end]

		found, err := r.dir.Lookup(ctx, chunk)
		if err != nil {
			r.logger.Warn("actor lookup failed, degrading to sentinel",
				"chunk_size", len(chunk), "error", err)
			found = nil
		}
		for _, id := range chunk {
			if info, ok := found[id]; ok && info != nil {
				resolved[id] = info
			} else {
				resolved[id] = model.UnknownActor(id)
			}
		}
	}

	return resolved
}
