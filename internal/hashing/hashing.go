// Package hashing pairs constellation peaks within a fan window and packs
// each pair into a 64-bit locality-sensitive hash.
package hashing

import (
	"github.com/pkg/errors"

	"github.com/media-luna/sonora/internal/config"
	"github.com/media-luna/sonora/internal/peaks"
)

// FreqBits, TargetShift, and TimeDeltaBits describe the packed hash layout
// [f_i:20][f_j:20][Δt:24], MSB-first: hash = (f_i<<44)|(f_j<<24)|Δt.
const (
	FreqBits      = 20
	TimeDeltaBits = 24
	AnchorShift   = FreqBits + TimeDeltaBits // 44
	TargetShift   = TimeDeltaBits            // 24

	maxFreq  = 1 << FreqBits
	maxDelta = 1 << TimeDeltaBits
)

// ErrFrequencyOverflow is a ConfigError: a frequency bin index would not
// fit in the packed hash's 20-bit field.
var ErrFrequencyOverflow = errors.Wrap(config.ErrConfig, "hashing: frequency bin does not fit in 20 bits")

// Pair is one emitted (hash, anchor-time) tuple.
type Pair struct {
	Hash uint64
	Time int
}

// CheckFrequencyBound validates at startup that a spectrogram with numBins
// frequency rows cannot produce a frequency index at or beyond 2^20, per
// the packed hash's 20-bit field width. Configurations that could overflow
// must be rejected, never silently truncated.
func CheckFrequencyBound(numBins int) error {
	if numBins > maxFreq {
		return errors.Wrapf(ErrFrequencyOverflow, "spectrogram has %d frequency bins, max is %d", numBins, maxFreq)
	}
	return nil
}

// Generate pairs peaks within the configured fan window and packs each
// accepted pair into a 64-bit hash. Peaks are assumed already sorted by
// time if the peak detector's Sort option requested it (peaks.Detect
// applies that).
func Generate(ps []peaks.Peak, cfg config.Hashing) ([]Pair, error) {
	if cfg.FanValue < 2 {
		return nil, errors.Wrapf(config.ErrConfig, "fan_value must be >= 2, got %d", cfg.FanValue)
	}

	var out []Pair
	n := len(ps)
	for i := 0; i < n; i++ {
		anchor := ps[i]
		if anchor.Freq >= maxFreq || anchor.Freq < 0 {
			return nil, errors.Wrapf(ErrFrequencyOverflow, "anchor frequency %d out of range", anchor.Freq)
		}
		limit := i + cfg.FanValue
		if limit > n {
			limit = n
		}
		for j := i + 1; j < limit; j++ {
			target := ps[j]
			dt := target.Time - anchor.Time
			if dt < cfg.MinTimeDelta || dt > cfg.MaxTimeDelta {
				continue
			}
			if target.Freq >= maxFreq || target.Freq < 0 {
				return nil, errors.Wrapf(ErrFrequencyOverflow, "target frequency %d out of range", target.Freq)
			}
			if dt < 0 || dt >= maxDelta {
				continue
			}
			h := Pack(anchor.Freq, target.Freq, dt)
			out = append(out, Pair{Hash: h, Time: anchor.Time})
		}
	}
	return out, nil
}

// Pack bit-packs an anchor frequency, target frequency, and time delta into
// a single 64-bit hash: (fi<<44)|(fj<<24)|dt.
func Pack(fi, fj, dt int) uint64 {
	return (uint64(fi) << AnchorShift) | (uint64(fj) << TargetShift) | uint64(dt)
}

// Unpack reverses Pack, splitting a hash back into its three fields.
func Unpack(h uint64) (fi, fj, dt int) {
	fi = int(h >> AnchorShift)
	fj = int((h >> TargetShift) & (maxFreq - 1))
	dt = int(h & (maxDelta - 1))
	return
}
