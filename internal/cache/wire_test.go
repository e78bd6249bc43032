package cache

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rows := []Row{
		{SongID: uuid.New(), Offset: 100},
		{SongID: uuid.New(), Offset: 0},
	}

	frame := encodeRows(rows)
	decoded, err := decodeRows(frame)
	require.NoError(t, err)
	assert.Equal(t, rows, decoded)
}

func TestEncodeDecodeEmpty(t *testing.T) {
	frame := encodeRows(nil)
	decoded, err := decodeRows(frame)
	require.NoError(t, err)
	assert.Empty(t, decoded)
}

func TestDecodeRejectsCorruptFrame(t *testing.T) {
	_, err := decodeRows([]byte{0, 0, 0, 1}) // claims one row but has no payload
	assert.ErrorIs(t, err, ErrCorruptFrame)
}
