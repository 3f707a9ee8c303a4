package pad

import (
	"context"
	"log"
	"math/rand/v2"
	"strings"
	"sync"
)

// Config holds pad parameters.
type Config struct {
	Keys          []string
	SliceDuration float64        // seconds
	Rand          func() float64 // uniform in [0,1); defaults to math/rand/v2
}

// Snapshot is a copy of the pad state for display.
type Snapshot struct {
	Status        string              `json:"status"`
	Loaded        bool                `json:"loaded"`
	Duration      float64             `json:"duration"`
	SliceDuration float64             `json:"slice_duration"`
	Keys          []TriggerID         `json:"keys"`
	Slices        map[TriggerID]Slice `json:"slices"`
	Active        []TriggerID         `json:"active"`
}

// Session owns all state of one pad: the loaded track, the slice
// assignments and the set of sounding triggers.
//
// Playback onDone callbacks must not be invoked from inside Play; they take
// the session lock.
type Session struct {
	keys     []TriggerID
	keySet   map[TriggerID]bool
	sliceDur float64
	rnd      func() float64
	fetcher  Fetcher
	decoder  Decoder

	mu      sync.Mutex
	track   DecodedAudio
	slices  map[TriggerID]Slice
	active  map[TriggerID]Playback
	status  string
	loadSeq uint64
}

// NewSession creates a pad with no track loaded.
func NewSession(cfg Config, fetcher Fetcher, decoder Decoder) *Session {
	s := &Session{
		keySet:   make(map[TriggerID]bool, len(cfg.Keys)),
		sliceDur: cfg.SliceDuration,
		rnd:      cfg.Rand,
		fetcher:  fetcher,
		decoder:  decoder,
		slices:   make(map[TriggerID]Slice),
		active:   make(map[TriggerID]Playback),
	}
	if s.sliceDur <= 0 {
		s.sliceDur = 1.0
	}
	if s.rnd == nil {
		s.rnd = rand.Float64
	}
	for _, k := range cfg.Keys {
		id := NormalizeKey(k)
		if id == "" || s.keySet[id] {
			continue
		}
		s.keySet[id] = true
		s.keys = append(s.keys, id)
	}
	return s
}

// Keys returns the trigger set in layout order.
func (s *Session) Keys() []TriggerID {
	return append([]TriggerID(nil), s.keys...)
}

// ParseTrigger matches key case-insensitively against the trigger set.
func (s *Session) ParseTrigger(key string) (TriggerID, bool) {
	id := NormalizeKey(key)
	return id, s.keySet[id]
}

// Status returns the current status line.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Load downloads and decodes trackURL and installs it as the pad's track.
// Download and decode run without holding the session lock, so triggers on
// the previous track keep working meanwhile. If another Load starts before
// this one finishes, this one's result is dropped.
func (s *Session) Load(ctx context.Context, trackURL string) error {
	trackURL = strings.TrimSpace(trackURL)
	if trackURL == "" {
		s.setStatus(StatusMissingURL)
		return ErrEmptyURL
	}

	s.mu.Lock()
	s.loadSeq++
	seq := s.loadSeq
	s.status = StatusLoading
	s.mu.Unlock()

	log.Printf("Loading track: %s", trackURL)
	var track DecodedAudio
	data, err := s.fetcher.Download(ctx, trackURL)
	if err == nil {
		track, err = s.decoder.Decode(ctx, data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != s.loadSeq {
		log.Printf("Dropping stale load of %s", trackURL)
		return ErrSuperseded
	}
	if err != nil {
		log.Printf("Error loading track: %v", err)
		s.status = StatusLoadError
		return err
	}

	s.releaseAllLocked()
	s.track = track
	s.assignLocked()
	s.status = StatusLoaded
	log.Printf("Track loaded: %.1fs, %d triggers", track.Duration(), len(s.keys))
	return nil
}

// AssignRandomSlices gives every trigger a new random window of the track.
func (s *Session) AssignRandomSlices() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.track == nil {
		return ErrNoTrack
	}
	s.assignLocked()
	return nil
}

// Randomize is the user-facing reshuffle: it reassigns slices and reports
// the outcome on the status line.
func (s *Session) Randomize() error {
	if err := s.AssignRandomSlices(); err != nil {
		s.setStatus(StatusNoTrack)
		return err
	}
	s.setStatus(StatusRandomized)
	return nil
}

func (s *Session) assignLocked() {
	maxStart := 0.0
	if d := s.track.Duration(); d > s.sliceDur {
		maxStart = d - s.sliceDur
	}

	// Replace the whole map so no assignment outlives a reshuffle.
	slices := make(map[TriggerID]Slice, len(s.keys))
	for _, id := range s.keys {
		slices[id] = Slice{Start: s.rnd() * maxStart, Duration: s.sliceDur}
	}
	s.slices = slices
}

// Trigger starts the slice bound to id. It returns false without side
// effects if no track is loaded, id has no slice, or id is already sounding.
func (s *Session) Trigger(id TriggerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.track == nil {
		return false
	}
	slice, ok := s.slices[id]
	if !ok {
		return false
	}
	if _, sounding := s.active[id]; sounding {
		return false
	}

	var pb Playback
	onDone := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cur, ok := s.active[id]; ok && cur == pb {
			delete(s.active, id)
		}
	}
	p, err := s.track.Play(slice.Start, slice.Duration, onDone)
	if err != nil {
		log.Printf("Error playing key %s: %v", id, err)
		return false
	}
	pb = p
	s.active[id] = pb
	return true
}

// Release stops id if it is sounding. Stop errors, such as the playback
// having just finished on its own, are logged and otherwise ignored.
func (s *Session) Release(id TriggerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releaseLocked(id)
}

// ReleaseAll stops every sounding trigger.
func (s *Session) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseAllLocked()
}

func (s *Session) releaseLocked(id TriggerID) bool {
	pb, ok := s.active[id]
	if !ok {
		return false
	}
	if err := pb.Stop(); err != nil {
		log.Printf("Error stopping key %s: %v", id, err)
	}
	delete(s.active, id)
	return true
}

func (s *Session) releaseAllLocked() {
	for id := range s.active {
		s.releaseLocked(id)
	}
}

// KeyDown triggers the pad named by key. Unknown keys are ignored.
func (s *Session) KeyDown(key string) bool {
	id, ok := s.ParseTrigger(key)
	if !ok {
		return false
	}
	return s.Trigger(id)
}

// KeyUp releases the pad named by key. Unknown keys are ignored.
func (s *Session) KeyUp(key string) bool {
	id, ok := s.ParseTrigger(key)
	if !ok {
		return false
	}
	return s.Release(id)
}

// Sounding reports whether id is currently playing.
func (s *Session) Sounding(id TriggerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[id]
	return ok
}

// Slices returns a copy of the current assignments.
func (s *Session) Slices() map[TriggerID]Slice {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[TriggerID]Slice, len(s.slices))
	for k, v := range s.slices {
		out[k] = v
	}
	return out
}

// Snapshot returns a copy of the whole pad state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Status:        s.status,
		Loaded:        s.track != nil,
		SliceDuration: s.sliceDur,
		Keys:          append([]TriggerID(nil), s.keys...),
		Slices:        make(map[TriggerID]Slice, len(s.slices)),
		Active:        []TriggerID{},
	}
	if s.track != nil {
		snap.Duration = s.track.Duration()
	}
	for k, v := range s.slices {
		snap.Slices[k] = v
	}
	for _, id := range s.keys {
		if _, ok := s.active[id]; ok {
			snap.Active = append(snap.Active, id)
		}
	}
	return snap
}

func (s *Session) setStatus(msg string) {
	s.mu.Lock()
	s.status = msg
	s.mu.Unlock()
}
