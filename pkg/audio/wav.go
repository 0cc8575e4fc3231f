package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

const defaultTargetRate = 16000

// WAVDecoder is a [Decoder] for 16-bit PCM WAV files. Stereo input is
// downmixed to mono and the result is resampled to the target rate.
// The zero value is not usable; construct with [NewWAVDecoder].
// WAVDecoder is read-only after construction and safe for concurrent use.
type WAVDecoder struct {
	targetRate int
}

// Compile-time interface check.
var _ Decoder = (*WAVDecoder)(nil)

// WAVOption is a functional option for configuring a [WAVDecoder].
type WAVOption func(*WAVDecoder)

// WithTargetRate sets the output sample rate in Hz. Default: 16000.
func WithTargetRate(rate int) WAVOption {
	return func(d *WAVDecoder) { d.targetRate = rate }
}

// NewWAVDecoder constructs a [WAVDecoder] with the supplied options.
func NewWAVDecoder(opts ...WAVOption) *WAVDecoder {
	d := &WAVDecoder{targetRate: defaultTargetRate}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Load implements [Decoder]. All failure modes — missing file, malformed
// header, unsupported encoding — wrap [ErrUnreadable].
func (d *WAVDecoder) Load(path string) (Signal, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Signal{}, unreadable(path, err)
	}

	pcm, rate, channels, err := parseWAV(raw)
	if err != nil {
		return Signal{}, unreadable(path, err)
	}

	if channels == 2 {
		pcm = StereoToMono(pcm)
	}
	if rate != d.targetRate {
		pcm = ResampleMono16(pcm, rate, d.targetRate)
	}

	return Signal{
		Samples:    PCMToFloat32(pcm),
		SampleRate: d.targetRate,
	}, nil
}

// parseWAV walks the RIFF chunk list and returns the raw little-endian int16
// PCM data together with the declared sample rate and channel count.
func parseWAV(raw []byte) (pcm []byte, rate, channels int, err error) {
	if len(raw) < 12 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, 0, 0, errors.New("not a RIFF/WAVE file")
	}

	var (
		fmtSeen       bool
		bitsPerSample int
	)

	offset := 12
	for offset+8 <= len(raw) {
		chunkID := string(raw[offset : offset+4])
		chunkSize := int(binary.LittleEndian.Uint32(raw[offset+4 : offset+8]))
		body := offset + 8
		if body+chunkSize > len(raw) {
			// Tolerate a truncated final data chunk; some encoders write a
			// size that exceeds the actual file length.
			chunkSize = len(raw) - body
		}

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return nil, 0, 0, errors.New("fmt chunk too short")
			}
			format := binary.LittleEndian.Uint16(raw[body : body+2])
			if format != 1 { // PCM
				return nil, 0, 0, fmt.Errorf("unsupported WAV format code %d (only PCM)", format)
			}
			channels = int(binary.LittleEndian.Uint16(raw[body+2 : body+4]))
			rate = int(binary.LittleEndian.Uint32(raw[body+4 : body+8]))
			bitsPerSample = int(binary.LittleEndian.Uint16(raw[body+14 : body+16]))
			fmtSeen = true

		case "data":
			if !fmtSeen {
				return nil, 0, 0, errors.New("data chunk before fmt chunk")
			}
			if bitsPerSample != 16 {
				return nil, 0, 0, fmt.Errorf("unsupported bit depth %d (only 16-bit)", bitsPerSample)
			}
			if channels < 1 || channels > 2 {
				return nil, 0, 0, fmt.Errorf("unsupported channel count %d", channels)
			}
			if rate <= 0 {
				return nil, 0, 0, fmt.Errorf("invalid sample rate %d", rate)
			}
			data := raw[body : body+chunkSize]
			if len(data) == 0 {
				return nil, 0, 0, errors.New("empty data chunk")
			}
			return data, rate, channels, nil
		}

		// Chunks are word-aligned.
		offset = body + chunkSize
		if chunkSize%2 == 1 {
			offset++
		}
	}

	return nil, 0, 0, errors.New("no data chunk found")
}
