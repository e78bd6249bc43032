// Package store implements the fingerprint store (C4): a typed index over
// (hash -> [(song_id, offset)]) backed by a SQL table, with a bounded
// connection pool and either a MySQL or Postgres backend.
package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/media-luna/sonora/internal/models"
)

// Error kinds named in the error handling design (§7). StoreUnavailable is
// fatal to the in-flight query; StoreTransient is rolled back at cursor
// scope and may be retried by the caller; DuplicateSong is folded into an
// idempotent insert_song return rather than surfaced. NotFound is reported
// by GetSongByID as the ErrNotFound error; it is not returned as a zero
// result with a nil error.
var (
	ErrStoreUnavailable = errors.New("store: unavailable")
	ErrStoreTransient   = errors.New("store: transient error")
	ErrNotFound         = errors.New("store: not found")
)

// HashOffset is one (hash, offset) pair awaiting insertion, as produced by
// the hash packer.
type HashOffset struct {
	Hash   uint64
	Offset uint32
}

// MatchRow is one (hash, song_id, offset) row returned by SelectMatches.
type MatchRow struct {
	Hash   uint64
	SongID uuid.UUID
	Offset uint32
}

// IngestProgress reports bulk-insert progress; *store.Progress (wrapping
// schollz/progressbar/v3) satisfies it, as does a no-op for callers that
// don't want one.
type IngestProgress interface {
	Add(n int)
}

// Store is the fingerprint store contract (§4.4). Both the MySQL and
// Postgres backends implement it identically from the caller's view.
type Store interface {
	// InsertSong creates a row with fingerprinted=false and returns its
	// id, or the id of an existing row sharing the same sha1 (idempotent
	// re-ingest).
	InsertSong(ctx context.Context, name string, sha1 [20]byte, totalHashes uint32) (uuid.UUID, error)

	// InsertHashes bulk-inserts (hash, offset) pairs for songID in batches
	// of batchSize, suppressing duplicates on the composite key. A
	// progress reporter may be nil.
	InsertHashes(ctx context.Context, songID uuid.UUID, pairs []HashOffset, batchSize int, progress IngestProgress) error

	// SetSongFingerprinted flips the fingerprinted flag. Must be the last
	// step of ingest.
	SetSongFingerprinted(ctx context.Context, songID uuid.UUID) error

	// DeleteUnfingerprinted removes songs with fingerprinted=false,
	// cascading to their fingerprints.
	DeleteUnfingerprinted(ctx context.Context) error

	// DeleteSongs batched-deletes songs by id, cascading to their
	// fingerprints.
	DeleteSongs(ctx context.Context, ids []uuid.UUID, batchSize int) error

	// SelectMatches returns all rows for the given hash set, unordered.
	SelectMatches(ctx context.Context, hashes []uint64) ([]MatchRow, error)

	// SelectAll dumps every (song_id, offset) row in the fingerprints
	// table, per the reference's query(None) behavior. Used by tooling
	// and tests, never on the query hot path.
	SelectAll(ctx context.Context) ([]MatchRow, error)

	// CountSongs returns the number of fully fingerprinted songs.
	CountSongs(ctx context.Context) (int, error)

	// CountFingerprints returns the number of fingerprint rows.
	CountFingerprints(ctx context.Context) (int, error)

	// GetSongByID fetches a song by id, or ErrNotFound.
	GetSongByID(ctx context.Context, songID uuid.UUID) (models.Song, error)

	// ListFingerprintedSongs returns every fully fingerprinted song.
	ListFingerprintedSongs(ctx context.Context) ([]models.Song, error)

	// Close releases underlying resources.
	Close() error
}
