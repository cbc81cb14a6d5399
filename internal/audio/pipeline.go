package audio

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
)

// Pipeline pulls PCM frames from a source at real-time rate.
type Pipeline struct {
	source  beep.Streamer
	frameCh chan []int16
	frames  atomic.Int64
}

// NewPipeline creates a pipeline rendering source. The source must never
// block; a Controller satisfies this.
func NewPipeline(source beep.Streamer) *Pipeline {
	return &Pipeline{
		source:  source,
		frameCh: make(chan []int16, 100),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// Position returns how much audio has been rendered since Run started.
func (p *Pipeline) Position() time.Duration {
	return time.Duration(p.frames.Load()) * FrameDuration
}

// Run starts the pipeline. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	buf := make([][2]float64, FrameSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := RenderFrame(p.source, buf)
		select {
		case p.frameCh <- frame:
			p.frames.Add(1)
		case <-ctx.Done():
			return
		}
	}
}
