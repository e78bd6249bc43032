// Package audio decodes compressed PCM files into the mono float64 sample
// buffers the fingerprinter consumes. It is a test/fixture helper, not a
// product surface: the generator and match engine operate on sample
// buffers the caller already decoded.
package audio

import (
	"io"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/wav"
	"github.com/pkg/errors"
)

// ErrUnsupportedFormat is returned when the file extension names a format
// none of the decoders handle.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// Decode dials the beep decoder matching ext ("wav", "mp3", or "flac") and
// drains the whole stream into mono float64 samples, averaging channels.
func Decode(r io.ReadCloser, ext string) ([]float64, beep.Format, error) {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)

	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "wav":
		streamer, format, err = wav.Decode(r)
	case "mp3":
		streamer, format, err = mp3.Decode(r)
	case "flac":
		streamer, format, err = flac.Decode(r)
	default:
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "ext=%q", ext)
	}
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(err, "audio: decode")
	}
	defer streamer.Close()

	samples, drainErr := ToMono(streamer)
	if drainErr != nil {
		return nil, beep.Format{}, drainErr
	}
	return samples, format, nil
}

// ToMono drains a beep.Streamer to completion, downmixing each stereo frame
// to mono by averaging the two channels, matching the reference
// CollectSample downmix convention.
func ToMono(s beep.Streamer) ([]float64, error) {
	const chunk = 4096
	buf := make([][2]float64, chunk)

	var mono []float64
	for {
		n, ok := s.Stream(buf)
		if n > 0 {
			for _, frame := range buf[:n] {
				mono = append(mono, (frame[0]+frame[1])/2)
			}
		}
		if !ok {
			break
		}
	}
	return mono, nil
}
