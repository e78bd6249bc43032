// Package spectrogram computes a log-magnitude STFT spectrogram from PCM
// samples, the input to the peak detector.
package spectrogram

import (
	"math"
	"math/cmplx"

	"github.com/maddyblue/go-dsp/fft"
	"github.com/pkg/errors"

	"github.com/media-luna/sonora/internal/config"
)

// ErrShortInput is returned when fewer samples than one window are given.
var ErrShortInput = errors.New("spectrogram: input shorter than one window")

// Spectrogram is a time-major matrix of log-magnitude bins: Frames[t][f].
type Spectrogram struct {
	Frames   [][]float64
	NumBins  int
	HopSize  int
	WindowSz int
}

// hannWindow builds a symmetric Hann window of length n (equivalent to
// np.hanning), matching matplotlib.mlab's default window used by the
// reference implementation.
func hannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := 0; i < n; i++ {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// Compute runs a Hann-windowed STFT over samples, producing a log-magnitude
// spectrogram. The hop size is derived from cfg.WindowSize*(1-cfg.Overlap).
//
// Power is scaled to match matplotlib.mlab's specgram/psd convention:
// |FFT(window*x)|^2 is divided by (SampleRate * sum(window^2)), and every
// one-sided bin except DC (and Nyquist, when WindowSize is even) is doubled
// to fold the negative-frequency half back in. Without this scaling,
// amp_min's absolute dB threshold has no fixed relationship to the
// reference's output and peak survival diverges. Each bin's scaled power
// value x is converted via 10*log10(x), with the convention log10(0) := 0
// applied as an exact equality test on x (no epsilon), matching the
// reference implementation.
func Compute(samples []float64, cfg config.Spectrogram) (*Spectrogram, error) {
	wsize := cfg.WindowSize
	if len(samples) < wsize {
		return nil, ErrShortInput
	}

	hop := int(float64(wsize) * (1 - cfg.Overlap))
	if hop < 1 {
		hop = 1
	}

	window := hannWindow(wsize)
	numBins := wsize/2 + 1

	windowPower := 0.0
	for _, w := range window {
		windowPower += w * w
	}
	fs := float64(cfg.SampleRate)
	if fs <= 0 {
		fs = 1
	}
	scale := 1.0 / (fs * windowPower)
	nyquist := numBins - 1
	evenLength := wsize%2 == 0

	var frames [][]float64
	for start := 0; start+wsize <= len(samples); start += hop {
		frame := make([]float64, wsize)
		for i := 0; i < wsize; i++ {
			frame[i] = samples[start+i] * window[i]
		}

		spectrum := fft.FFTReal(frame)

		row := make([]float64, numBins)
		for f := 0; f < numBins; f++ {
			mag := cmplx.Abs(spectrum[f])
			power := mag * mag * scale
			if f != 0 && !(evenLength && f == nyquist) {
				power *= 2
			}
			row[f] = log10Zero(power)
		}
		frames = append(frames, row)
	}

	return &Spectrogram{
		Frames:   frames,
		NumBins:  numBins,
		HopSize:  hop,
		WindowSz: wsize,
	}, nil
}

// log10Zero returns 10*log10(x), except it returns 0 when x is exactly 0,
// matching np.log10(arr, out=zeros_like(arr), where=(arr != 0)) * 10.
func log10Zero(x float64) float64 {
	if x == 0 {
		return 0
	}
	return 10 * math.Log10(x)
}
