package audio

// DefaultChunkSize is the number of native-rate samples accumulated before a
// chunk is downsampled and emitted.
const DefaultChunkSize = 2048

// CaptureResampler accumulates native-rate mono float samples from a capture
// device and emits fixed-size PCM16 chunks at the protocol capture rate.
//
// Push is driven by the device callback and must not be called concurrently.
// It never blocks: when no full chunk is buffered it simply emits nothing.
type CaptureResampler struct {
	nativeRate int
	targetRate int
	chunkSize  int
	buf        []float32
	emit       func(pcm []byte)
}

func NewCaptureResampler(nativeRate, chunkSize int, emit func([]byte)) *CaptureResampler {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &CaptureResampler{
		nativeRate: nativeRate,
		targetRate: CaptureRate,
		chunkSize:  chunkSize,
		buf:        make([]float32, 0, chunkSize*2),
		emit:       emit,
	}
}

// Push appends samples to the accumulation buffer and emits one downsampled
// chunk per chunkSize native samples available, in order, never batched.
func (c *CaptureResampler) Push(samples []float32) {
	if len(samples) == 0 {
		return
	}

	c.buf = append(c.buf, samples...)
	for len(c.buf) >= c.chunkSize {
		chunk := DownsamplePCM16(c.buf[:c.chunkSize], c.nativeRate, c.targetRate)
		n := copy(c.buf, c.buf[c.chunkSize:])
		c.buf = c.buf[:n]

		if len(chunk) > 0 {
			c.emit(chunk)
		}
	}
}

// Buffered reports the number of native-rate samples awaiting a full chunk.
func (c *CaptureResampler) Buffered() int {
	return len(c.buf)
}
