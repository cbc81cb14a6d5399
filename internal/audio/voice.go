package audio

import (
	"github.com/gopxl/beep/v2"

	"github.com/satindergrewal/ison/internal/catalog"
)

// Voice is one looping playback of a sample. A voice never ends on its
// own; it plays until stopped. Voices are owned by a Controller and are
// only mutated under its lock.
type Voice struct {
	note      catalog.Note
	base      float64 // sample rate / output rate
	pitch     float64
	resampler *beep.Resampler
	pos       int // samples rendered, for the attack envelope
	stopped   bool
}

func newVoice(s *Sample, pitch float64, quality int) *Voice {
	loop := beep.Loop(-1, s.Buffer.Streamer(0, s.Buffer.Len()))
	base := float64(s.Format.SampleRate) / float64(SampleRate)
	return &Voice{
		note:      s.Note,
		base:      base,
		pitch:     pitch,
		resampler: beep.ResampleRatio(quality, base*pitch, loop),
	}
}

// Note returns the note this voice plays.
func (v *Voice) Note() catalog.Note { return v.note }

// Pitch returns the playback rate multiplier.
func (v *Voice) Pitch() float64 { return v.pitch }

// Ratio returns the effective resampling ratio (sample rate conversion
// times pitch).
func (v *Voice) Ratio() float64 { return v.resampler.Ratio() }

// Stopped reports whether the voice has been stopped.
func (v *Voice) Stopped() bool { return v.stopped }

func (v *Voice) setPitch(p float64) {
	v.pitch = p
	v.resampler.SetRatio(v.base * p)
}

func (v *Voice) stop() {
	v.stopped = true
}

func (v *Voice) stream(samples [][2]float64) (int, bool) {
	if v.stopped {
		return 0, false
	}
	n, ok := v.resampler.Stream(samples)
	v.pos = applyAttack(samples[:n], v.pos)
	return n, ok
}
