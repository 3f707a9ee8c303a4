package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/satindergrewal/slicepad/internal/api"
	"github.com/satindergrewal/slicepad/internal/audio"
	"github.com/satindergrewal/slicepad/internal/config"
	"github.com/satindergrewal/slicepad/internal/loader"
	"github.com/satindergrewal/slicepad/internal/pad"
	"github.com/satindergrewal/slicepad/internal/stream"
)

// trackDecoder adapts audio.Decoder to pad.Decoder.
type trackDecoder struct {
	dec *audio.Decoder
}

func (d trackDecoder) Decode(ctx context.Context, data []byte) (pad.DecodedAudio, error) {
	t, err := d.dec.Decode(ctx, data)
	if err != nil {
		return nil, err
	}
	return padTrack{t}, nil
}

// padTrack exposes an audio.Track as pad.DecodedAudio.
type padTrack struct {
	*audio.Track
}

func (t padTrack) Play(start, duration float64, onDone func()) (pad.Playback, error) {
	v, err := t.Track.Play(start, duration, onDone)
	if err != nil {
		return nil, err
	}
	return v, nil
}

var (
	_ pad.Decoder      = trackDecoder{}
	_ pad.DecodedAudio = padTrack{}
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("slicepad starting up...")

	// Mixing engine: paced by the speaker or by its own ticker
	engine := audio.NewEngine()
	switch cfg.Output {
	case "speaker":
		if err := audio.OpenSpeaker(50 * time.Millisecond); err != nil {
			log.Fatalf("Speaker not available: %v", err)
		}
		defer audio.CloseSpeaker()
		engine.DriveSpeaker()
		log.Println("Output: local speaker")
	default:
		go engine.Run(ctx)
		log.Println("Output: stream only")
	}

	broadcaster := stream.NewBroadcaster()
	go broadcaster.Run(ctx, engine.Frames())

	// Track loader and pad session
	client := loader.NewClient(cfg.DownloadEndpoint(), cfg.FetchTimeout)
	objects := loader.New(client, loader.NewObjectStore(cfg.MaxObjects))
	decoder := trackDecoder{dec: audio.NewDecoder(engine, cfg.FFmpegPath)}

	session := pad.NewSession(pad.Config{
		Keys:          cfg.Keys,
		SliceDuration: cfg.SliceDuration,
	}, client, decoder)
	log.Printf("Pad keys: %v, slice %.2fs, backend %s", session.Keys(), cfg.SliceDuration, cfg.DownloadEndpoint())

	webrtcHandler := stream.NewWebRTCHandler(broadcaster, session, cfg.OpusBitrate)
	defer webrtcHandler.Close()

	srv := api.New(session, objects, api.Options{
		Objects: objects.Store(),
		Stream:  stream.NewHTTPHandler(broadcaster, cfg.FFmpegPath, 0),
		Offer:   webrtcHandler,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: srv}

	go func() {
		<-ctx.Done()
		log.Printf("Shutting down... (%d voices sounding, %d frames broadcast)",
			engine.ActiveVoices(), broadcaster.FrameCount())
		session.ReleaseAll()
		engine.StopAll()
		server.Close()
	}()

	log.Printf("slicepad live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}
