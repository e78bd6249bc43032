package spectrogram_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/media-luna/sonora/internal/config"
	"github.com/media-luna/sonora/internal/spectrogram"
)

func TestComputeShortInputRejected(t *testing.T) {
	cfg := config.Spectrogram{SampleRate: 8000, WindowSize: 1024, Overlap: 0.5}
	_, err := spectrogram.Compute(make([]float64, 10), cfg)
	require.ErrorIs(t, err, spectrogram.ErrShortInput)
}

func TestComputeProducesExpectedBinCount(t *testing.T) {
	cfg := config.Spectrogram{SampleRate: 8000, WindowSize: 64, Overlap: 0.5}
	samples := make([]float64, 256)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * float64(i) / 16)
	}

	spec, err := spectrogram.Compute(samples, cfg)
	require.NoError(t, err)
	assert.Equal(t, 64/2+1, spec.NumBins)
	assert.NotEmpty(t, spec.Frames)
	for _, row := range spec.Frames {
		assert.Len(t, row, spec.NumBins)
	}
}

func TestComputeSilenceIsZero(t *testing.T) {
	cfg := config.Spectrogram{SampleRate: 8000, WindowSize: 32, Overlap: 0}
	spec, err := spectrogram.Compute(make([]float64, 64), cfg)
	require.NoError(t, err)
	for _, row := range spec.Frames {
		for _, v := range row {
			// log10(0) convention must yield exactly 0, never -Inf/NaN.
			assert.Equal(t, 0.0, v)
		}
	}
}
