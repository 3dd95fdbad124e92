package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestDownsamplePCM16_Length(t *testing.T) {
	tests := []struct {
		name       string
		inputLen   int
		nativeRate int
		wantLen    int
	}{
		{"48k to 16k", 2048, 48000, 682},
		{"44.1k to 16k", 2048, 44100, 743},
		{"16k passthrough", 2048, 16000, 2048},
		{"single sample", 1, 48000, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := make([]float32, tt.inputLen)
			out := DownsamplePCM16(input, tt.nativeRate, CaptureRate)
			if len(out) != tt.wantLen*2 {
				t.Errorf("expected %d samples (%d bytes), got %d bytes",
					tt.wantLen, tt.wantLen*2, len(out))
			}
		})
	}
}

func TestDownsamplePCM16_Empty(t *testing.T) {
	if out := DownsamplePCM16(nil, 48000, CaptureRate); out != nil {
		t.Errorf("expected nil for empty input, got %d bytes", len(out))
	}
}

func TestDownsamplePCM16_AsymmetricScaling(t *testing.T) {
	input := []float32{-1.0, 1.0, 0.0, -0.5}
	out := DownsamplePCM16(input, 16000, 16000)
	if len(out) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(out))
	}

	samples := make([]int16, 4)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(out[i*2:]))
	}

	if samples[0] != -32768 {
		t.Errorf("-1.0 should map to -32768, got %d", samples[0])
	}
	if samples[1] != 32767 {
		t.Errorf("1.0 should map to 32767, got %d", samples[1])
	}
	if samples[2] != 0 {
		t.Errorf("0.0 should map to 0, got %d", samples[2])
	}
	if samples[3] != -16384 {
		t.Errorf("-0.5 should map to -16384, got %d", samples[3])
	}
}

func TestDownsamplePCM16_Clamping(t *testing.T) {
	input := []float32{-3.5, 2.1}
	out := DownsamplePCM16(input, 16000, 16000)

	lo := int16(binary.LittleEndian.Uint16(out[0:]))
	hi := int16(binary.LittleEndian.Uint16(out[2:]))
	if lo != -32768 {
		t.Errorf("out-of-range negative should clamp to -32768, got %d", lo)
	}
	if hi != 32767 {
		t.Errorf("out-of-range positive should clamp to 32767, got %d", hi)
	}
}

func TestDownsamplePCM16_NearestNeighbor(t *testing.T) {
	// With ratio 3 the output must pick source samples 0, 3, 6.
	input := []float32{0.1, 0.9, 0.9, 0.2, 0.9, 0.9, 0.3, 0.9, 0.9}
	out := DownsamplePCM16(input, 48000, 16000)
	if len(out) != 6 {
		t.Fatalf("expected 3 samples, got %d bytes", len(out))
	}

	want := []float32{0.1, 0.2, 0.3}
	for i, w := range want {
		got := float32(int16(binary.LittleEndian.Uint16(out[i*2:]))) / 32767.0
		if math.Abs(float64(got-w)) > 0.001 {
			t.Errorf("sample %d: expected ~%f, got %f", i, w, got)
		}
	}
}

func TestDecodePCM16_RoundTrip(t *testing.T) {
	input := []float32{0.0, 0.25, -0.25, 0.99, -0.99, 1.0, -1.0}
	encoded := DownsamplePCM16(input, 16000, 16000)

	decoded, err := DecodePCM16(encoded)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(decoded) != len(input) {
		t.Fatalf("expected %d samples, got %d", len(input), len(decoded))
	}

	// Positive samples encode against 0x7FFF but decode against 32768, so
	// near full scale the round trip drifts by up to s/32768 on top of the
	// truncation step. Two quantization steps bounds both.
	for i := range input {
		if diff := math.Abs(float64(decoded[i] - input[i])); diff > 2.0/32768.0 {
			t.Errorf("sample %d: expected %f within quantization error, got %f (diff %f)",
				i, input[i], decoded[i], diff)
		}
	}
}

func TestDecodePCM16_OddLength(t *testing.T) {
	if _, err := DecodePCM16([]byte{0x00, 0x01, 0x02}); err == nil {
		t.Error("expected error for odd-length buffer")
	}
}

func TestDecodePCM16_Empty(t *testing.T) {
	out, err := DecodePCM16(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty output, got %d samples", len(out))
	}
}
