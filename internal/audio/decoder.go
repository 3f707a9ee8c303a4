package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// ErrNoAudio is returned when a payload decodes to zero samples.
var ErrNoAudio = errors.New("no audio data")

// resampleQuality is passed to beep.Resample; 4 is a good speed/quality middle.
const resampleQuality = 4

// Decoder turns encoded bytes into a seekable in-memory Track.
// Known containers are decoded in-process; anything else goes through FFmpeg.
type Decoder struct {
	out    *Engine
	ffmpeg string
}

// NewDecoder creates a decoder whose tracks play through out.
// An empty ffmpegPath disables the FFmpeg fallback.
func NewDecoder(out *Engine, ffmpegPath string) *Decoder {
	return &Decoder{out: out, ffmpeg: ffmpegPath}
}

// Decode fully decodes data into a 48kHz stereo Track.
func (d *Decoder) Decode(ctx context.Context, data []byte) (*Track, error) {
	if len(data) == 0 {
		return nil, ErrNoAudio
	}

	container := Sniff(data)
	if container != ContainerUnknown {
		buf, err := decodeNative(container, data)
		if err == nil {
			return newTrack(buf, d.out)
		}
		if d.ffmpeg == "" {
			return nil, err
		}
		log.Printf("Native %s decode failed, falling back to ffmpeg: %v", container, err)
	}

	if d.ffmpeg == "" {
		return nil, fmt.Errorf("decode: unrecognised audio container")
	}
	samples, err := DecodePCM(ctx, d.ffmpeg, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return newTrack(bufferFromPCM(samples), d.out)
}

func decodeNative(c Container, data []byte) (*beep.Buffer, error) {
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch c {
	case ContainerMP3:
		s, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	case ContainerWAV:
		s, format, err = wav.Decode(bytes.NewReader(data))
	case ContainerFLAC:
		s, format, err = flac.Decode(bytes.NewReader(data))
	case ContainerOgg:
		s, format, err = vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		return nil, fmt.Errorf("decode: no native decoder for %s", c)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c, err)
	}
	defer s.Close()

	var src beep.Streamer = s
	if format.SampleRate != pcmFormat.SampleRate {
		src = beep.Resample(resampleQuality, format.SampleRate, pcmFormat.SampleRate, s)
	}

	buf := beep.NewBuffer(pcmFormat)
	buf.Append(src)
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c, err)
	}
	return buf, nil
}

// DecodePCM runs FFmpeg to decode any audio stream to raw PCM int16 samples.
// Returns interleaved stereo samples at 48kHz.
func DecodePCM(ctx context.Context, ffmpeg string, r io.Reader) ([]int16, error) {
	cmd := exec.CommandContext(ctx, ffmpeg,
		"-i", "pipe:0",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", "48000",
		"-ac", "2",
		"-loglevel", "error",
		"pipe:1",
	)
	cmd.Stdin = r

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode: %w", err)
	}

	// Ensure even byte count for int16 alignment
	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}

	samples := make([]int16, len(out)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(out[i*2 : i*2+2]))
	}

	return samples, nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// pcmStreamer reads interleaved stereo int16 samples as a beep.Streamer.
type pcmStreamer struct {
	samples []int16
	pos     int
}

func (p *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	n := 0
	for n < len(samples) && p.pos+1 < len(p.samples) {
		samples[n][0] = float64(p.samples[p.pos]) / 32768
		samples[n][1] = float64(p.samples[p.pos+1]) / 32768
		p.pos += Channels
		n++
	}
	return n, n > 0
}

func (p *pcmStreamer) Err() error { return nil }

func bufferFromPCM(samples []int16) *beep.Buffer {
	buf := beep.NewBuffer(pcmFormat)
	buf.Append(&pcmStreamer{samples: samples})
	return buf
}
