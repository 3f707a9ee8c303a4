package audio

import (
	"bytes"
	"time"

	"github.com/gopxl/beep/v2"
)

const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// declickDuration is the fade applied at both edges of every voice.
const declickDuration = 2 * time.Millisecond

// pcmFormat is the format every decoded track is normalised to.
var pcmFormat = beep.Format{
	SampleRate:  SampleRate,
	NumChannels: Channels,
	Precision:   BitDepth / 8,
}

// Container identifies an encoded audio payload.
type Container int

const (
	ContainerUnknown Container = iota
	ContainerMP3
	ContainerWAV
	ContainerFLAC
	ContainerOgg
)

func (c Container) String() string {
	switch c {
	case ContainerMP3:
		return "mp3"
	case ContainerWAV:
		return "wav"
	case ContainerFLAC:
		return "flac"
	case ContainerOgg:
		return "ogg"
	default:
		return "unknown"
	}
}

// Sniff guesses the container from the leading bytes.
func Sniff(data []byte) Container {
	switch {
	case bytes.HasPrefix(data, []byte("ID3")):
		return ContainerMP3
	case len(data) >= 12 && bytes.Equal(data[:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WAVE")):
		return ContainerWAV
	case bytes.HasPrefix(data, []byte("fLaC")):
		return ContainerFLAC
	case bytes.HasPrefix(data, []byte("OggS")):
		return ContainerOgg
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		// bare MPEG frame sync
		return ContainerMP3
	}
	return ContainerUnknown
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
