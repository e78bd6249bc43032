package audio_test

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/media-luna/sonora/internal/audio"
	"github.com/media-luna/sonora/internal/config"
	"github.com/media-luna/sonora/internal/hashing"
	"github.com/media-luna/sonora/internal/peaks"
	"github.com/media-luna/sonora/internal/spectrogram"
)

// synthesizeWAV builds a mono 16-bit PCM RIFF/WAVE buffer holding the sum of
// a few tones, high-amplitude enough to produce clear spectral peaks. The
// header layout (RIFF/WAVE/fmt /data chunks, little-endian fields) follows
// the standard WAV format used by faiface/beep/wav.Decode.
func synthesizeWAV(sampleRate int, seconds float64, tones []float64) []byte {
	n := int(float64(sampleRate) * seconds)
	dataSize := n * 2 // 16-bit mono

	buf := &bytes.Buffer{}
	buf.WriteString("RIFF")
	writeUint32(buf, uint32(36+dataSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	writeUint32(buf, 16)
	writeUint16(buf, 1) // PCM
	writeUint16(buf, 1) // mono
	writeUint32(buf, uint32(sampleRate))
	writeUint32(buf, uint32(sampleRate*2)) // byte rate
	writeUint16(buf, 2)                    // block align
	writeUint16(buf, 16)                   // bits per sample

	buf.WriteString("data")
	writeUint32(buf, uint32(dataSize))

	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		sample := 0.0
		for _, freq := range tones {
			sample += math.Sin(2 * math.Pi * freq * t)
		}
		sample /= float64(len(tones))
		writeUint16(buf, uint16(int16(sample*30000)))
	}

	return buf.Bytes()
}

func writeUint32(w io.Writer, v uint32) {
	w.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

func writeUint16(w io.Writer, v uint16) {
	w.Write([]byte{byte(v), byte(v >> 8)})
}

// TestDecodePipelineEndToEnd exercises the full C1-C3 chain on a real
// decoded WAV: Decode -> spectrogram.Compute -> peaks.Detect ->
// hashing.Generate must together produce at least one hash.
func TestDecodePipelineEndToEnd(t *testing.T) {
	const sampleRate = 8000
	wavBytes := synthesizeWAV(sampleRate, 2.0, []float64{440, 1200})

	samples, format, err := audio.Decode(io.NopCloser(bytes.NewReader(wavBytes)), "wav")
	require.NoError(t, err)
	assert.EqualValues(t, sampleRate, format.SampleRate)
	require.NotEmpty(t, samples)

	specCfg := config.Spectrogram{
		SampleRate: sampleRate,
		WindowSize: 1024,
		Overlap:    0.5,
		// A loose threshold isolates the pipeline-wiring assertion from the
		// exact mlab dB scale: any bin with non-zero energy is a candidate.
		AmpMin: -1000,
	}
	spec, err := spectrogram.Compute(samples, specCfg)
	require.NoError(t, err)
	require.NotEmpty(t, spec.Frames)

	require.NoError(t, hashing.CheckFrequencyBound(spec.NumBins))

	peaksCfg := config.Peaks{ConnectivityMask: 2, NeighborhoodSize: 10, Sort: true}
	detected := peaks.Detect(spec.Frames, peaksCfg, specCfg.AmpMin)
	require.NotEmpty(t, detected)

	hashCfg := config.Hashing{FanValue: 15, MinTimeDelta: 0, MaxTimeDelta: 200}
	pairs, err := hashing.Generate(detected, hashCfg)
	require.NoError(t, err)
	assert.NotEmpty(t, pairs)
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	_, _, err := audio.Decode(io.NopCloser(bytes.NewReader(nil)), "ogg")
	require.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}
