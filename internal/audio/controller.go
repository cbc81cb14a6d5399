package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"charm.land/log/v2"

	"github.com/satindergrewal/ison/internal/catalog"
)

var (
	ErrSampleNotReady = errors.New("audio sample not loaded")
	ErrInvalidPitch   = errors.New("pitch must be a positive number")
)

// SampleSource looks up decoded samples by note.
type SampleSource interface {
	Sample(n catalog.Note) (*Sample, bool)
}

// PlaybackState is a snapshot of the controller.
type PlaybackState struct {
	Note    string  `json:"note"`
	Playing bool    `json:"playing"`
	Pitch   float64 `json:"pitch"`
}

// Controller holds at most one active voice. It is a beep.Streamer that
// renders the active voice at the output rate, or silence when idle. All
// methods are safe for concurrent use.
type Controller struct {
	samples SampleSource
	quality int

	mu     sync.Mutex
	pitch  float64
	active *Voice
}

// NewController creates an idle controller at pitch 1.0.
func NewController(samples SampleSource, quality int) *Controller {
	if quality < 1 || quality > 64 {
		quality = DefaultQuality
	}
	return &Controller{
		samples: samples,
		quality: quality,
		pitch:   1,
	}
}

// Play stops any active voice and starts looping note at the current
// pitch. If the note's sample is not loaded the request is dropped and
// ErrSampleNotReady is returned; the previous voice stays stopped.
func (c *Controller) Play(n catalog.Note) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()

	s, ok := c.samples.Sample(n)
	if !ok {
		log.Error("Audio sample not loaded", "note", n)
		return fmt.Errorf("%w: %s", ErrSampleNotReady, n)
	}
	c.active = newVoice(s, c.pitch, c.quality)
	log.Info("Ison playing", "note", n, "pitch", c.pitch)
	return nil
}

// Stop silences the active voice. It is a no-op when idle.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		log.Info("Ison stopped", "note", c.active.note)
	}
	c.stopLocked()
}

func (c *Controller) stopLocked() {
	if c.active == nil {
		return
	}
	c.active.stop()
	c.active = nil
}

// SetPitch changes the playback rate multiplier. An active voice is
// retuned in place without restarting.
func (c *Controller) SetPitch(p float64) error {
	if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidPitch, p)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pitch = p
	if c.active != nil {
		c.active.setPitch(p)
	}
	return nil
}

// Pitch returns the current pitch multiplier.
func (c *Controller) Pitch() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pitch
}

// Active returns the playing voice, or nil when idle.
func (c *Controller) Active() *Voice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// State returns a snapshot of what is playing.
func (c *Controller) State() PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := PlaybackState{Pitch: c.pitch}
	if c.active != nil {
		st.Note = string(c.active.note)
		st.Playing = true
	}
	return st
}

// Stream implements beep.Streamer. It always fills samples and never ends.
func (c *Controller) Stream(samples [][2]float64) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	if c.active != nil {
		var ok bool
		n, ok = c.active.stream(samples)
		if !ok {
			log.Warn("Voice ended unexpectedly", "note", c.active.note)
			c.stopLocked()
		}
	}
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (c *Controller) Err() error {
	return nil
}
