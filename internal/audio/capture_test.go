package audio

import "testing"

func collectChunks(chunks *[][]byte) func([]byte) {
	return func(pcm []byte) {
		*chunks = append(*chunks, pcm)
	}
}

func TestCaptureResampler_NoEmitUntilFullChunk(t *testing.T) {
	var chunks [][]byte
	cr := NewCaptureResampler(48000, 2048, collectChunks(&chunks))

	cr.Push(make([]float32, 2047))
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks before a full buffer, got %d", len(chunks))
	}
	if cr.Buffered() != 2047 {
		t.Errorf("expected 2047 buffered samples, got %d", cr.Buffered())
	}

	cr.Push(make([]float32, 1))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if cr.Buffered() != 0 {
		t.Errorf("expected empty buffer, got %d", cr.Buffered())
	}
}

func TestCaptureResampler_ChunkLength(t *testing.T) {
	var chunks [][]byte
	cr := NewCaptureResampler(48000, 2048, collectChunks(&chunks))

	cr.Push(make([]float32, 2048))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}

	// floor(2048 / 3) samples, 2 bytes each.
	if len(chunks[0]) != 682*2 {
		t.Errorf("expected %d bytes, got %d", 682*2, len(chunks[0]))
	}
}

func TestCaptureResampler_MultipleChunksInOrder(t *testing.T) {
	var chunks [][]byte
	cr := NewCaptureResampler(16000, 4, collectChunks(&chunks))

	// Each chunk of 4 native samples passes through unchanged at 16k.
	cr.Push([]float32{0.1, 0.1, 0.1, 0.1, 0.2, 0.2, 0.2, 0.2, 0.3})
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	first, err := DecodePCM16(chunks[0])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	second, err := DecodePCM16(chunks[1])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if first[0] < 0.09 || first[0] > 0.11 {
		t.Errorf("first chunk should carry 0.1 samples, got %f", first[0])
	}
	if second[0] < 0.19 || second[0] > 0.21 {
		t.Errorf("second chunk should carry 0.2 samples, got %f", second[0])
	}
	if cr.Buffered() != 1 {
		t.Errorf("expected 1 leftover sample, got %d", cr.Buffered())
	}
}

func TestCaptureResampler_EmptyPushIsNoop(t *testing.T) {
	var chunks [][]byte
	cr := NewCaptureResampler(48000, 2048, collectChunks(&chunks))

	cr.Push(nil)
	cr.Push([]float32{})
	if len(chunks) != 0 || cr.Buffered() != 0 {
		t.Error("empty input must be a no-op")
	}
}

func TestCaptureResampler_DefaultChunkSize(t *testing.T) {
	var chunks [][]byte
	cr := NewCaptureResampler(48000, 0, collectChunks(&chunks))

	cr.Push(make([]float32, DefaultChunkSize))
	if len(chunks) != 1 {
		t.Fatalf("expected default chunk size %d to apply", DefaultChunkSize)
	}
}
