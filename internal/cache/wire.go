package cache

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrCorruptFrame is returned when a cached value does not parse as a
// well-formed row frame.
var ErrCorruptFrame = errors.New("cache: corrupt frame")

const rowSize = 16 + 4 // uuid bytes + big-endian uint32 offset

// encodeRows packs rows into a length-prefixed binary frame: a 4-byte
// row count, followed by that many (16-byte song_id, 4-byte offset)
// records. This replaces the reference implementation's Python pickle
// wire format with an explicit, self-describing binary encoding per the
// redesign note in §9 — any process decoding a frame need not trust or
// execute the producer's runtime.
func encodeRows(rows []Row) []byte {
	buf := make([]byte, 4+len(rows)*rowSize)
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(rows)))
	for i, r := range rows {
		off := 4 + i*rowSize
		copy(buf[off:off+16], r.SongID[:])
		binary.BigEndian.PutUint32(buf[off+16:off+20], r.Offset)
	}
	return buf
}

// decodeRows reverses encodeRows.
func decodeRows(data []byte) ([]Row, error) {
	if len(data) < 4 {
		return nil, ErrCorruptFrame
	}
	count := binary.BigEndian.Uint32(data[0:4])
	want := 4 + int(count)*rowSize
	if len(data) != want {
		return nil, ErrCorruptFrame
	}

	rows := make([]Row, count)
	for i := range rows {
		off := 4 + i*rowSize
		copy(rows[i].SongID[:], data[off:off+16])
		rows[i].Offset = binary.BigEndian.Uint32(data[off+16 : off+20])
	}
	return rows, nil
}
