// Package models defines the data model shared by the store, cache, and
// match engine: songs and their fingerprints.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Song is a single registered audio recording.
type Song struct {
	SongID        uuid.UUID
	Name          string
	FileSHA1      [20]byte
	TotalHashes   uint32
	Fingerprinted bool
	CreatedAt     time.Time
	ModifiedAt    time.Time
}

// Fingerprint is one packed constellation hash anchored at Offset frames
// into Song SongID's spectrogram.
type Fingerprint struct {
	Hash   uint64
	SongID uuid.UUID
	Offset uint32
}
