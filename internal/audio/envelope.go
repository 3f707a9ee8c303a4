package audio

import "github.com/gopxl/beep/v2"

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

// envelope fades a voice in over its first ramp samples and out over its
// last ramp samples, so cutting into a track mid-waveform does not click.
type envelope struct {
	s     beep.Streamer
	pos   int
	total int
	ramp  int
}

func newEnvelope(s beep.Streamer, total, ramp int) *envelope {
	if ramp*2 > total {
		ramp = total / 2
	}
	return &envelope{s: s, total: total, ramp: ramp}
}

// Gain returns the envelope gain at sample index pos.
func (e *envelope) Gain(pos int) float64 {
	if e.ramp <= 0 {
		return 1
	}
	if pos < e.ramp {
		return Smoothstep(float64(pos) / float64(e.ramp))
	}
	if remaining := e.total - pos; remaining <= e.ramp {
		return Smoothstep(float64(remaining) / float64(e.ramp))
	}
	return 1
}

func (e *envelope) Stream(samples [][2]float64) (int, bool) {
	n, ok := e.s.Stream(samples)
	for i := 0; i < n; i++ {
		g := e.Gain(e.pos)
		samples[i][0] *= g
		samples[i][1] *= g
		e.pos++
	}
	return n, ok
}

func (e *envelope) Err() error {
	return e.s.Err()
}
