package peaks_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/media-luna/sonora/internal/config"
	"github.com/media-luna/sonora/internal/peaks"
)

func grid(rows, cols int, fill func(t, f int) float64) [][]float64 {
	g := make([][]float64, rows)
	for t := range g {
		g[t] = make([]float64, cols)
		for f := range g[t] {
			g[t][f] = fill(t, f)
		}
	}
	return g
}

func TestDetectFindsSingleIsolatedPeak(t *testing.T) {
	frames := grid(11, 11, func(t, f int) float64 { return 0 })
	frames[5][5] = 50

	cfg := config.Peaks{ConnectivityMask: 2, NeighborhoodSize: 2, Sort: true}
	found := peaks.Detect(frames, cfg, 10)

	require.Len(t, found, 1)
	assert.Equal(t, 5, found[0].Time)
	assert.Equal(t, 5, found[0].Freq)
}

func TestDetectAmpMinIsStrictlyGreaterThan(t *testing.T) {
	frames := grid(5, 5, func(t, f int) float64 { return 0 })
	frames[2][2] = 10

	cfg := config.Peaks{ConnectivityMask: 2, NeighborhoodSize: 1, Sort: true}

	// amp_min == amp must be excluded (strict >, never >=).
	assert.Empty(t, peaks.Detect(frames, cfg, 10))
	assert.NotEmpty(t, peaks.Detect(frames, cfg, 9.999))
}

func TestDetectEmptyFrames(t *testing.T) {
	cfg := config.Peaks{ConnectivityMask: 1, NeighborhoodSize: 1}
	assert.Nil(t, peaks.Detect(nil, cfg, 0))
}

func TestDetectSortByTimeWhenRequested(t *testing.T) {
	frames := grid(20, 20, func(t, f int) float64 { return 0 })
	frames[15][3] = 30
	frames[2][10] = 30

	cfg := config.Peaks{ConnectivityMask: 1, NeighborhoodSize: 2, Sort: true}
	found := peaks.Detect(frames, cfg, 5)
	require.Len(t, found, 2)
	assert.LessOrEqual(t, found[0].Time, found[1].Time)
}
