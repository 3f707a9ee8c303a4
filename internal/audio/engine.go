package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

// ErrVoiceFinished is returned when stopping a voice that already ended.
var ErrVoiceFinished = errors.New("voice already finished")

// Engine mixes triggered voices into one stereo output and cuts the result
// into 20ms PCM frames for the stream broadcaster.
//
// The engine is driven either by the local speaker (it is a beep.Streamer)
// or, headless, by Run at real-time rate.
type Engine struct {
	frameCh chan []int16

	mu     sync.Mutex
	mixer  beep.Mixer
	voices map[*Voice]struct{}
	done   []func() // completion callbacks, run after mu is released
	tap    []int16  // interleaved samples not yet framed
}

// NewEngine creates an idle mixing engine.
func NewEngine() *Engine {
	return &Engine{
		frameCh: make(chan []int16, 100),
		voices:  make(map[*Voice]struct{}),
		tap:     make([]int16, 0, FrameSamples*2),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (e *Engine) Frames() <-chan []int16 {
	return e.frameCh
}

// ActiveVoices returns the number of voices still sounding.
func (e *Engine) ActiveVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

// StopAll silences every voice, including any not owned by a pad session.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for v := range e.voices {
		v.ctrl.Streamer = nil
	}
}

// Run renders the mix at real-time rate. Blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	buf := make([][2]float64, FrameSize)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Stream(buf)
		}
	}
}

// Stream fills samples with the current mix. It never drains: silence is
// produced while no voice is active.
func (e *Engine) Stream(samples [][2]float64) (int, bool) {
	e.mu.Lock()
	n, _ := e.mixer.Stream(samples)
	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	e.emit(samples)
	done := e.done
	e.done = nil
	e.mu.Unlock()

	for _, fn := range done {
		fn()
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (e *Engine) Err() error {
	return nil
}

func (e *Engine) play(s beep.Streamer, onDone func()) *Voice {
	v := &Voice{engine: e, ctrl: &beep.Ctrl{Streamer: s}}

	e.mu.Lock()
	e.voices[v] = struct{}{}
	e.mixer.Add(beep.Seq(v.ctrl, beep.Callback(func() {
		// Called from inside mixer.Stream, so mu is already held.
		delete(e.voices, v)
		v.finished = true
		if onDone != nil {
			e.done = append(e.done, onDone)
		}
	})))
	e.mu.Unlock()
	return v
}

// emit appends rendered samples to the tap and sends every full frame.
// Frames are dropped when the consumer falls behind. Caller holds mu.
func (e *Engine) emit(samples [][2]float64) {
	for _, s := range samples {
		e.tap = append(e.tap, toInt16(s[0]), toInt16(s[1]))
	}
	for len(e.tap) >= FrameSamples {
		frame := make([]int16, FrameSamples)
		copy(frame, e.tap[:FrameSamples])
		n := copy(e.tap, e.tap[FrameSamples:])
		e.tap = e.tap[:n]

		select {
		case e.frameCh <- frame:
		default:
		}
	}
}

func toInt16(v float64) int16 {
	// Clip to int16 range
	v *= 32768
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}

// Voice is one in-flight playback of a track window.
type Voice struct {
	engine   *Engine
	ctrl     *beep.Ctrl
	finished bool
}

// Stop silences the voice. Stopping a voice that already finished, or was
// already stopped, returns ErrVoiceFinished.
func (v *Voice) Stop() error {
	v.engine.mu.Lock()
	defer v.engine.mu.Unlock()
	if v.finished || v.ctrl.Streamer == nil {
		return ErrVoiceFinished
	}
	v.ctrl.Streamer = nil
	return nil
}

// isFinished reports whether the voice has ended.
func (v *Voice) isFinished() bool {
	v.engine.mu.Lock()
	defer v.engine.mu.Unlock()
	return v.finished
}
