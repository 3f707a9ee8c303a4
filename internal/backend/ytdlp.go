// Package backend implements the download endpoint: it turns a track URL
// into encoded audio bytes using yt-dlp.
package backend

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/lrstanley/go-ytdlp"
)

// Downloader fetches the audio behind a URL as encoded bytes.
type Downloader interface {
	Download(ctx context.Context, trackURL string) ([]byte, error)
}

// ToolError is returned when the download tool exits unsuccessfully.
type ToolError struct {
	Details string
	Err     error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("yt-dlp failed: %v", e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// YTDLP downloads and extracts audio with yt-dlp.
type YTDLP struct {
	format Format
}

// NewYTDLP creates a yt-dlp downloader producing the given audio format.
func NewYTDLP(format Format) *YTDLP {
	return &YTDLP{format: format}
}

// Download runs yt-dlp into a fresh temp dir and returns the extracted file.
func (y *YTDLP) Download(ctx context.Context, trackURL string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "padbackend-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	dl := ytdlp.New().
		ExtractAudio().
		AudioFormat(y.format.Name).
		NoPlaylist().
		ForceOverwrites().
		Output(filepath.Join(dir, "downloaded.%(ext)s"))

	result, err := dl.Run(ctx, trackURL)
	if result != nil {
		log.Printf("yt-dlp stdout:\n%s", result.Stdout)
		log.Printf("yt-dlp stderr:\n%s", result.Stderr)
	}
	if err != nil {
		te := &ToolError{Err: err}
		if result != nil {
			te.Details = result.Stderr
		}
		return nil, te
	}

	// yt-dlp picks the extension itself (vorbis becomes .ogg).
	matches, _ := filepath.Glob(filepath.Join(dir, "downloaded.*"))
	if len(matches) == 0 {
		return nil, &ToolError{Details: "no output file produced", Err: os.ErrNotExist}
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, &ToolError{Details: "no output file produced", Err: err}
	}
	return data, nil
}
