package audio

import (
	"context"
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// OpenSpeaker initialises the local output device at 48kHz with the given
// buffer latency. Call once per process.
func OpenSpeaker(latency time.Duration) error {
	if err := speaker.Init(pcmFormat.SampleRate, pcmFormat.SampleRate.N(latency)); err != nil {
		return fmt.Errorf("init speaker: %w", err)
	}
	return nil
}

// CloseSpeaker stops all local output.
func CloseSpeaker() {
	speaker.Clear()
	speaker.Close()
}

// DriveSpeaker makes the local device pull the engine's mix. The engine then
// runs at the device's pace, so Run must not be used at the same time.
func (e *Engine) DriveSpeaker() {
	speaker.Play(e)
}

// PlayWhole plays s on the speaker and blocks until it ends or ctx is done.
func PlayWhole(ctx context.Context, s beep.Streamer) error {
	done := make(chan struct{})
	speaker.Play(beep.Seq(s, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}
