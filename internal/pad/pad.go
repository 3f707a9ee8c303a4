// Package pad implements the slice trigger map: a fixed set of trigger keys,
// each bound to a random fixed-length window of the loaded track, played on
// press and stopped on release.
package pad

import (
	"context"
	"errors"
	"strings"
)

// Status messages shown on the pad's status line.
const (
	StatusMissingURL = "Please enter a URL."
	StatusLoading    = "Loading track..."
	StatusLoaded     = "Track loaded. Use your keyboard or click a cell to play slices."
	StatusLoadError  = "Error loading track."
	StatusRandomized = "Slices randomized!"
	StatusNoTrack    = "Please load a track first."
)

var (
	// ErrNoTrack is returned by operations that need a loaded track.
	ErrNoTrack = errors.New("no track loaded")
	// ErrEmptyURL is returned by Load when the URL is blank.
	ErrEmptyURL = errors.New("empty track URL")
	// ErrSuperseded is returned by a load that finished after a newer one started.
	ErrSuperseded = errors.New("load superseded by a newer request")
)

// TriggerID names one pad, e.g. "Q".
type TriggerID string

// Slice is the window of the track a trigger plays, in seconds.
type Slice struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// Playback is an in-flight playback instance.
type Playback interface {
	Stop() error
}

// DecodedAudio is a decoded, seekable track.
type DecodedAudio interface {
	// Duration returns the track length in seconds.
	Duration() float64
	// Play starts an independent playback at start lasting duration seconds.
	// onDone runs once the playback has ended, naturally or by Stop.
	Play(start, duration float64, onDone func()) (Playback, error)
}

// Fetcher downloads the raw bytes of a track.
type Fetcher interface {
	Download(ctx context.Context, trackURL string) ([]byte, error)
}

// Decoder turns downloaded bytes into DecodedAudio.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (DecodedAudio, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, data []byte) (DecodedAudio, error)

// Decode calls f.
func (f DecoderFunc) Decode(ctx context.Context, data []byte) (DecodedAudio, error) {
	return f(ctx, data)
}

// NormalizeKey upper-cases and trims a key name.
func NormalizeKey(key string) TriggerID {
	return TriggerID(strings.ToUpper(strings.TrimSpace(key)))
}
