package audio

import "time"

// AttackDuration is the fade-in applied when a voice starts, so a new
// note does not click.
const AttackDuration = 5 * time.Millisecond

var attackSamples = SampleRate * int(AttackDuration/time.Microsecond) / 1_000_000

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// applyAttack scales samples by the attack envelope, given that pos samples
// of the voice have already been rendered. Returns the new position.
func applyAttack(samples [][2]float64, pos int) int {
	for i := range samples {
		if pos >= attackSamples {
			return pos
		}
		gain := Smoothstep(float64(pos) / float64(attackSamples))
		samples[i][0] *= gain
		samples[i][1] *= gain
		pos++
	}
	return pos
}
