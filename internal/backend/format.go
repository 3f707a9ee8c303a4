package backend

import (
	"fmt"
	"sort"
	"strings"
)

// Format is an audio format yt-dlp can extract to, with how it is served.
type Format struct {
	Name        string // --audio-format value
	ContentType string
	Filename    string // attachment name
}

var formats = map[string]Format{
	"mp3":    {Name: "mp3", ContentType: "audio/mpeg", Filename: "downloaded.mp3"},
	"m4a":    {Name: "m4a", ContentType: "audio/mp4", Filename: "downloaded.m4a"},
	"opus":   {Name: "opus", ContentType: "audio/ogg", Filename: "downloaded.opus"},
	"vorbis": {Name: "vorbis", ContentType: "audio/ogg", Filename: "downloaded.ogg"},
	"flac":   {Name: "flac", ContentType: "audio/flac", Filename: "downloaded.flac"},
	"wav":    {Name: "wav", ContentType: "audio/wav", Filename: "downloaded.wav"},
}

// LookupFormat resolves a configured audio format. Empty means mp3.
func LookupFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "mp3"
	}
	f, ok := formats[name]
	if !ok {
		names := make([]string, 0, len(formats))
		for n := range formats {
			names = append(names, n)
		}
		sort.Strings(names)
		return Format{}, fmt.Errorf("unsupported audio format %q (want one of %s)", name, strings.Join(names, ", "))
	}
	return f, nil
}
