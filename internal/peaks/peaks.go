// Package peaks implements 2D local-maxima detection over a spectrogram,
// the constellation-map step between the spectrogram and the hash packer.
package peaks

import (
	"sort"

	"github.com/media-luna/sonora/internal/config"
)

// Peak is one constellation point: frequency bin Freq at time frame Time,
// with log-magnitude Amp.
type Peak struct {
	Time int
	Freq int
	Amp  float64
}

// Detect finds local maxima in a time-major spectrogram using a
// structuring-element dilation/erosion scheme equivalent to
// scipy.ndimage's maximum_filter/binary_erosion pipeline:
//
//  1. build a footprint (diamond for ConnectivityMask=1, square for
//     ConnectivityMask=2) of radius NeighborhoodSize;
//  2. a cell is a local max if it equals the footprint-windowed max
//     (reflect boundary, matching maximum_filter's default mode);
//  3. the zero-valued background is eroded with the same footprint and
//     border_value=true (constant boundary);
//  4. detected peaks are local-max XOR eroded-background, keeping only
//     cells strictly greater than AmpMin.
func Detect(frames [][]float64, cfg config.Peaks, ampMin float64) []Peak {
	if len(frames) == 0 {
		return nil
	}
	nT := len(frames)
	nF := len(frames[0])

	footprint := buildFootprint(cfg.ConnectivityMask, cfg.NeighborhoodSize)

	localMax := maxFilterEqual(frames, footprint)
	background := makeBackground(frames)
	eroded := binaryErosion(background, footprint, true)

	var out []Peak
	for t := 0; t < nT; t++ {
		for f := 0; f < nF; f++ {
			detected := localMax[t][f] != eroded[t][f] // XOR
			if detected && frames[t][f] > ampMin {
				out = append(out, Peak{Time: t, Freq: f, Amp: frames[t][f]})
			}
		}
	}

	if cfg.Sort {
		sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	}

	return out
}

// buildFootprint returns the boolean structuring element produced by
// iterate_structure(generate_binary_structure(2, connectivity), n): a
// Manhattan-distance diamond when connectivity is 1, a Chebyshev-distance
// square when connectivity is 2, both of radius n.
func buildFootprint(connectivity, n int) [][]bool {
	size := 2*n + 1
	fp := make([][]bool, size)
	for dy := -n; dy <= n; dy++ {
		row := make([]bool, size)
		for dx := -n; dx <= n; dx++ {
			var in bool
			if connectivity == 1 {
				in = absInt(dx)+absInt(dy) <= n
			} else {
				in = maxInt(absInt(dx), absInt(dy)) <= n
			}
			row[dx+n] = in
		}
		fp[dy+n] = row
	}
	return fp
}

// maxFilterEqual computes, for each cell, whether it equals the footprint
// windowed maximum, using reflect ("half-sample symmetric") boundary
// handling to match scipy.ndimage.maximum_filter's default mode.
func maxFilterEqual(data [][]float64, footprint [][]bool) [][]bool {
	nT := len(data)
	nF := len(data[0])
	n := (len(footprint) - 1) / 2

	out := make([][]bool, nT)
	for t := 0; t < nT; t++ {
		out[t] = make([]bool, nF)
		for f := 0; f < nF; f++ {
			max := data[t][f]
			for dy := -n; dy <= n; dy++ {
				for dx := -n; dx <= n; dx++ {
					if !footprint[dy+n][dx+n] {
						continue
					}
					v := data[reflectIndex(t+dy, nT)][reflectIndex(f+dx, nF)]
					if v > max {
						max = v
					}
				}
			}
			out[t][f] = max == data[t][f]
		}
	}
	return out
}

// makeBackground marks cells that are exactly zero, the convention used by
// the reference implementation for "no energy" bins.
func makeBackground(data [][]float64) [][]bool {
	out := make([][]bool, len(data))
	for t := range data {
		out[t] = make([]bool, len(data[t]))
		for f := range data[t] {
			out[t][f] = data[t][f] == 0
		}
	}
	return out
}

// binaryErosion erodes a boolean image with the given structuring element,
// treating out-of-bounds cells as borderValue (constant boundary mode).
func binaryErosion(img [][]bool, footprint [][]bool, borderValue bool) [][]bool {
	nT := len(img)
	nF := len(img[0])
	n := (len(footprint) - 1) / 2

	out := make([][]bool, nT)
	for t := 0; t < nT; t++ {
		out[t] = make([]bool, nF)
		for f := 0; f < nF; f++ {
			all := true
			for dy := -n; dy <= n && all; dy++ {
				for dx := -n; dx <= n; dx++ {
					if !footprint[dy+n][dx+n] {
						continue
					}
					ti, fi := t+dy, f+dx
					var v bool
					if ti < 0 || ti >= nT || fi < 0 || fi >= nF {
						v = borderValue
					} else {
						v = img[ti][fi]
					}
					if !v {
						all = false
						break
					}
				}
			}
			out[t][f] = all
		}
	}
	return out
}

// reflectIndex maps an out-of-range index into [0,n) by reflecting about
// the edge, duplicating the edge sample (scipy's "reflect" mode).
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		}
		if i >= n {
			i = 2*n - 1 - i
		}
	}
	return i
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
