package audio

import (
	"encoding/binary"
	"fmt"
)

const (
	// CaptureRate is the outbound sample rate mandated by the live protocol.
	CaptureRate = 16000
	// PlaybackRate is the inbound sample rate mandated by the live protocol.
	PlaybackRate = 24000
)

// DownsamplePCM16 converts native-rate float samples to PCM16 little-endian
// bytes at targetRate using nearest-neighbor decimation. No low-pass filter is
// applied; aliasing above the voice band is an accepted tradeoff.
func DownsamplePCM16(input []float32, nativeRate, targetRate int) []byte {
	if len(input) == 0 || nativeRate <= 0 || targetRate <= 0 {
		return nil
	}

	ratio := float64(nativeRate) / float64(targetRate)
	outputLen := int(float64(len(input)) / ratio)
	out := make([]byte, outputLen*2)

	for i := 0; i < outputLen; i++ {
		s := input[int(float64(i)*ratio)]
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}

		// Standard PCM16 convention: the negative range is one step wider
		// than the positive one.
		var v int16
		if s < 0 {
			v = int16(s * 0x8000)
		} else {
			v = int16(s * 0x7FFF)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}

	return out
}

// DecodePCM16 converts PCM16 little-endian bytes to float samples in [-1, 1).
func DecodePCM16(pcm []byte) ([]float32, error) {
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("malformed pcm16 buffer: %d bytes", len(pcm))
	}

	out := make([]float32, len(pcm)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768.0
	}
	return out, nil
}
