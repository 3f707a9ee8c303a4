// Command trackplay fetches one track through the download backend and
// plays it start to finish on the local speaker.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/satindergrewal/slicepad/internal/audio"
	"github.com/satindergrewal/slicepad/internal/config"
	"github.com/satindergrewal/slicepad/internal/loader"
)

func main() {
	trackURL := flag.String("url", "", "track URL to play")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := loader.NewClient(cfg.DownloadEndpoint(), cfg.FetchTimeout)
	log.Println("Loading track...")
	data, err := client.Download(ctx, *trackURL)
	if errors.Is(err, loader.ErrEmptyURL) {
		log.Fatal("Please enter a URL (-url).")
	}
	if err != nil {
		log.Fatalf("Error loading track: %v", err)
	}

	track, err := audio.NewDecoder(nil, cfg.FFmpegPath).Decode(ctx, data)
	if err != nil {
		log.Fatalf("Error decoding track: %v", err)
	}

	if err := audio.OpenSpeaker(100 * time.Millisecond); err != nil {
		log.Fatalf("Speaker not available: %v", err)
	}
	defer audio.CloseSpeaker()

	log.Printf("Playing %.1fs", track.Duration())
	if err := audio.PlayWhole(ctx, track.Streamer()); err != nil {
		log.Printf("Stopped: %v", err)
		return
	}
	log.Println("Done")
}
