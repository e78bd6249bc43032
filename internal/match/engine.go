// Package match implements the match engine (C6): resolves a query's
// (hash, offset) stream against the two-tier cache/store lookup and
// produces per-song offset-delta evidence plus hash coincidence counts.
package match

import (
	"context"

	"github.com/google/uuid"

	"github.com/media-luna/sonora/internal/cache"
	"github.com/media-luna/sonora/internal/store"
)

// QueryHash is one (hash, offset) pair from the query's hash stream.
type QueryHash struct {
	Hash   uint64
	Offset int64
}

// Result is one (song_id, offset_delta) tuple emitted by the offset
// broadcast stage.
type Result struct {
	SongID uuid.UUID
	Offset int64
}

// Engine orchestrates the cache-probe -> store-fallback -> cache-fill ->
// combine -> dedup-count -> offset-broadcast pipeline, batched over
// distinct query hashes in first-seen order.
type Engine struct {
	store      store.Store
	cache      cache.Cache
	ttlSeconds int
}

// NewEngine builds a match engine over s and c. c may be nil, meaning
// direct-store mode (no cache tier at all).
func NewEngine(s store.Store, c cache.Cache, ttlSeconds int) *Engine {
	return &Engine{store: s, cache: c, ttlSeconds: ttlSeconds}
}

// Match resolves query against the store/cache, batching batchSize
// distinct hashes at a time. It returns the flattened (song_id,
// offset_delta) result multiset and a per-song hash coincidence count,
// keyed by song id string per the external scorer's contract.
func (e *Engine) Match(ctx context.Context, query []QueryHash, batchSize int) ([]Result, map[string]int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	offsetsByHash := make(map[uint64][]int64)
	var distinct []uint64
	for _, q := range query {
		if _, seen := offsetsByHash[q.Hash]; !seen {
			distinct = append(distinct, q.Hash)
		}
		offsetsByHash[q.Hash] = append(offsetsByHash[q.Hash], q.Offset)
	}

	var results []Result
	dedup := make(map[string]int)

	for start := 0; start < len(distinct); start += batchSize {
		end := start + batchSize
		if end > len(distinct) {
			end = len(distinct)
		}
		batch := distinct[start:end]

		if err := e.processBatch(ctx, batch, offsetsByHash, &results, dedup); err != nil {
			return nil, nil, err
		}
	}

	return results, dedup, nil
}

func (e *Engine) processBatch(ctx context.Context, batch []uint64, offsetsByHash map[uint64][]int64, results *[]Result, dedup map[string]int) error {
	combined := make(map[uint64][]cache.Row, len(batch))

	var hits map[uint64][]cache.Row
	if e.cache != nil {
		var err error
		hits, err = e.cache.GetMany(ctx, batch)
		if err != nil {
			hits = nil
		}
	}

	var misses []uint64
	for _, h := range batch {
		if rows, ok := hits[h]; ok {
			combined[h] = rows
		} else {
			misses = append(misses, h)
		}
	}

	if len(misses) > 0 {
		storeRows, err := e.store.SelectMatches(ctx, misses)
		if err != nil {
			return err
		}

		grouped := make(map[uint64][]cache.Row)
		for _, r := range storeRows {
			grouped[r.Hash] = append(grouped[r.Hash], cache.Row{SongID: r.SongID, Offset: r.Offset})
		}
		for h, rows := range grouped {
			combined[h] = rows
		}

		if e.cache != nil && len(grouped) > 0 {
			e.cache.PutMany(ctx, grouped, e.ttlSeconds)
		}
	}

	for _, h := range batch {
		rows := combined[h]
		if len(rows) == 0 {
			continue
		}
		offsets := offsetsByHash[h]

		for _, row := range rows {
			dedup[row.SongID.String()]++
		}

		for _, row := range rows {
			for _, q := range offsets {
				*results = append(*results, Result{
					SongID: row.SongID,
					Offset: int64(row.Offset) - q,
				})
			}
		}
	}

	return nil
}
