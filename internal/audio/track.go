package audio

import (
	"errors"
	"fmt"

	"github.com/gopxl/beep/v2"
)

var (
	// ErrOutOfRange is returned when a slice starts at or past the end of a track.
	ErrOutOfRange = errors.New("slice starts beyond end of track")
	// ErrNoOutput is returned when a track was decoded without an engine.
	ErrNoOutput = errors.New("track has no output engine")
)

// Track is a fully decoded, randomly seekable audio track.
// It is never modified after decoding; every voice reads its own window.
type Track struct {
	buf *beep.Buffer
	out *Engine
}

func newTrack(buf *beep.Buffer, out *Engine) (*Track, error) {
	if buf.Len() == 0 {
		return nil, ErrNoAudio
	}
	return &Track{buf: buf, out: out}, nil
}

// Duration returns the track length in seconds.
func (t *Track) Duration() float64 {
	return pcmFormat.SampleRate.D(t.buf.Len()).Seconds()
}

// numSamples returns the number of stereo samples in the track.
func (t *Track) numSamples() int {
	return t.buf.Len()
}

// Streamer returns a streamer over the whole track, for continuous playback.
func (t *Track) Streamer() beep.StreamSeeker {
	return t.buf.Streamer(0, t.buf.Len())
}

// Play starts a new voice at start seconds lasting duration seconds.
// The window is clamped to the end of the track. onDone, if set, runs once
// after the voice finishes or has been stopped.
func (t *Track) Play(start, duration float64, onDone func()) (*Voice, error) {
	if t.out == nil {
		return nil, ErrNoOutput
	}
	if start < 0 || duration <= 0 {
		return nil, fmt.Errorf("invalid slice window start=%.3f duration=%.3f", start, duration)
	}

	sr := pcmFormat.SampleRate
	from := sr.N(seconds(start))
	if from >= t.buf.Len() {
		return nil, ErrOutOfRange
	}
	to := from + sr.N(seconds(duration))
	if to > t.buf.Len() {
		to = t.buf.Len()
	}

	s := newEnvelope(t.buf.Streamer(from, to), to-from, sr.N(declickDuration))
	return t.out.play(s, onDone), nil
}
