package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultKeys is the reference trigger set, one pad per letter.
const DefaultKeys = "QWERTASDFGZXCVB"

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Pad server
	Port   int
	Output string // "stream" (headless ticker) or "speaker"

	// Download backend
	BackendPort  int
	BackendURL   string
	FetchTimeout time.Duration
	AudioFormat  string // yt-dlp --audio-format

	// Pad behavior
	Keys          []string
	SliceDuration float64 // seconds

	// Tools and streaming
	FFmpegPath  string
	OpusBitrate int
	MaxObjects  int // object URLs kept for continuous playback

	LayoutFile string
}

// Layout is the optional YAML overlay named by PAD_LAYOUT.
type Layout struct {
	Keys          []string `yaml:"keys"`
	SliceDuration float64  `yaml:"slice_duration"`
	BackendURL    string   `yaml:"backend_url"`
}

// Load reads configuration from environment variables with sane defaults.
// A PAD_LAYOUT file, when set, is applied on top; a broken file is an error.
func Load() (Config, error) {
	cfg := Config{
		Port:   envInt("PAD_PORT", 8080),
		Output: envStr("PAD_OUTPUT", "stream"),

		BackendPort:  envInt("PAD_BACKEND_PORT", 5000),
		BackendURL:   strings.TrimRight(envStr("PAD_BACKEND_URL", "http://localhost:5000"), "/"),
		FetchTimeout: time.Duration(envInt("PAD_FETCH_TIMEOUT", 120)) * time.Second,
		AudioFormat:  envStr("PAD_AUDIO_FORMAT", "mp3"),

		Keys:          ParseKeys(envStr("PAD_KEYS", DefaultKeys)),
		SliceDuration: envFloat("PAD_SLICE_DURATION", 1.0),

		FFmpegPath:  envStr("PAD_FFMPEG", "ffmpeg"),
		OpusBitrate: envInt("PAD_OPUS_BITRATE", 128000),
		MaxObjects:  envInt("PAD_MAX_OBJECTS", 8),

		LayoutFile: envStr("PAD_LAYOUT", ""),
	}

	if cfg.LayoutFile != "" {
		layout, err := LoadLayout(cfg.LayoutFile)
		if err != nil {
			return cfg, err
		}
		cfg.ApplyLayout(layout)
	}

	if len(cfg.Keys) == 0 {
		cfg.Keys = ParseKeys(DefaultKeys)
	}
	if cfg.SliceDuration <= 0 {
		cfg.SliceDuration = 1.0
	}
	return cfg, nil
}

// DownloadEndpoint is the backend route the loader posts track URLs to.
func (c Config) DownloadEndpoint() string {
	return c.BackendURL + "/api/download"
}

// LoadLayout reads a YAML pad layout.
func LoadLayout(path string) (Layout, error) {
	var l Layout
	data, err := os.ReadFile(path)
	if err != nil {
		return l, fmt.Errorf("read layout %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &l); err != nil {
		return l, fmt.Errorf("parse layout %s: %w", path, err)
	}
	return l, nil
}

// ApplyLayout overrides the fields the layout sets.
func (c *Config) ApplyLayout(l Layout) {
	if len(l.Keys) > 0 {
		c.Keys = normalizeKeys(l.Keys)
	}
	if l.SliceDuration > 0 {
		c.SliceDuration = l.SliceDuration
	}
	if l.BackendURL != "" {
		c.BackendURL = strings.TrimRight(l.BackendURL, "/")
	}
}

// ParseKeys splits a key list. Comma separated lists allow multi-character
// names ("KICK,SNARE"); otherwise every character is one key.
func ParseKeys(s string) []string {
	if strings.Contains(s, ",") {
		return normalizeKeys(strings.Split(s, ","))
	}
	return normalizeKeys(strings.Split(s, ""))
}

func normalizeKeys(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToUpper(strings.TrimSpace(k))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
