// Package cache implements the hash cache (C5): per-hash memoization of
// fingerprint store rows, write-through population on miss.
package cache

import (
	"context"

	"github.com/google/uuid"
)

// Row is one (song_id, offset) pair cached for a given hash.
type Row struct {
	SongID uuid.UUID
	Offset uint32
}

// Cache is the hash cache contract (§4.5). Values are opaque to callers
// above this package; GetMany decodes them back into row slices.
type Cache interface {
	// GetMany looks up every hash, returning only the hashes that hit.
	// A hash absent from the returned map is a cache miss.
	GetMany(ctx context.Context, hashes []uint64) (map[uint64][]Row, error)

	// PutMany writes the full row set for each hash with the given TTL
	// (seconds). Individual write failures inside the pipeline are
	// non-fatal and logged, never returned.
	PutMany(ctx context.Context, rows map[uint64][]Row, ttlSeconds int)

	// Available reports whether the cache is reachable. When false, the
	// match engine must degrade to direct-store mode.
	Available() bool

	// Close releases underlying resources.
	Close() error
}
