package hashing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/media-luna/sonora/internal/config"
	"github.com/media-luna/sonora/internal/hashing"
	"github.com/media-luna/sonora/internal/peaks"
)

func TestPackUnpackBoundary(t *testing.T) {
	// E6: f_i = 2^20-1, f_j = 0, dt = 2^24-1 -> hash = 0xFFFFF_00000_FFFFFF.
	h := hashing.Pack((1<<20)-1, 0, (1<<24)-1)
	assert.Equal(t, uint64(0xFFFFF00000FFFFFF), h)

	fi, fj, dt := hashing.Unpack(h)
	assert.Equal(t, (1<<20)-1, fi)
	assert.Equal(t, 0, fj)
	assert.Equal(t, (1<<24)-1, dt)
}

func TestCheckFrequencyBoundRejectsOverflow(t *testing.T) {
	require.NoError(t, hashing.CheckFrequencyBound(1<<20))
	err := hashing.CheckFrequencyBound((1 << 20) + 1)
	require.Error(t, err)
}

func TestGenerateFieldsRoundTrip(t *testing.T) {
	ps := []peaks.Peak{
		{Time: 0, Freq: 100},
		{Time: 5, Freq: 200},
		{Time: 205, Freq: 300}, // outside max delta from anchor 0
	}
	cfg := config.Hashing{FanValue: 3, MinTimeDelta: 0, MaxTimeDelta: 200}

	pairs, err := hashing.Generate(ps, cfg)
	require.NoError(t, err)
	require.Len(t, pairs, 2) // (0,1), (1,2); (0,2) excluded by delta

	for _, p := range pairs {
		fi, fj, dt := hashing.Unpack(p.Hash)
		assert.GreaterOrEqual(t, dt, cfg.MinTimeDelta)
		assert.LessOrEqual(t, dt, cfg.MaxTimeDelta)
		assert.True(t, fi == 100 || fi == 200)
		assert.True(t, fj == 200 || fj == 300)
	}
}

func TestGenerateFanWindowCount(t *testing.T) {
	// invariant 2: each anchor i pairs with targets j in [i+1, i+K) subject
	// to the delta window; with a wide delta window and K=2 every anchor
	// pairs with exactly its one immediate neighbor (last anchor: none).
	ps := make([]peaks.Peak, 5)
	for i := range ps {
		ps[i] = peaks.Peak{Time: i, Freq: i}
	}
	cfg := config.Hashing{FanValue: 2, MinTimeDelta: 0, MaxTimeDelta: 1000}

	pairs, err := hashing.Generate(ps, cfg)
	require.NoError(t, err)
	assert.Len(t, pairs, 4)
}

func TestGenerateRejectsLowFanValue(t *testing.T) {
	_, err := hashing.Generate(nil, config.Hashing{FanValue: 1})
	require.Error(t, err)
}
