package stream

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/satindergrewal/slicepad/internal/audio"
	"gopkg.in/hraban/opus.v2"
)

// Pad receives trigger input from remote peers.
type Pad interface {
	KeyDown(key string) bool
	KeyUp(key string) bool
}

// TriggerMsg is a key event sent by a peer on the "pad" data channel.
type TriggerMsg struct {
	Type string `json:"type"` // "down" or "up"
	Key  string `json:"key"`
}

// ParseTriggerMsg decodes and validates a data-channel message.
func ParseTriggerMsg(data []byte) (TriggerMsg, error) {
	var m TriggerMsg
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode trigger message: %w", err)
	}
	m.Type = strings.ToLower(strings.TrimSpace(m.Type))
	if m.Type != "down" && m.Type != "up" {
		return m, fmt.Errorf("unknown trigger type %q", m.Type)
	}
	if strings.TrimSpace(m.Key) == "" {
		return m, fmt.Errorf("trigger message without key")
	}
	return m, nil
}

// Apply delivers m to p.
func (m TriggerMsg) Apply(p Pad) bool {
	if m.Type == "down" {
		return p.KeyDown(m.Key)
	}
	return p.KeyUp(m.Key)
}

// WebRTCHandler negotiates WebRTC sessions that carry the pad output as
// Opus audio and accept trigger messages on a data channel.
type WebRTCHandler struct {
	broadcaster *Broadcaster
	pad         Pad
	bitrate     int

	mu    sync.Mutex
	peers map[*webrtc.PeerConnection]*Listener
}

// NewWebRTCHandler creates a WebRTC handler. pad may be nil for a
// listen-only output.
func NewWebRTCHandler(b *Broadcaster, pad Pad, bitrate int) *WebRTCHandler {
	if bitrate <= 0 {
		bitrate = 128000
	}
	return &WebRTCHandler{
		broadcaster: b,
		pad:         pad,
		bitrate:     bitrate,
		peers:       make(map[*webrtc.PeerConnection]*Listener),
	}
}

// PeerCount returns the number of connected peers.
func (h *WebRTCHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *WebRTCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, "create peer connection failed", http.StatusInternalServerError)
		return
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"slicepad",
	)
	if err != nil {
		pc.Close()
		http.Error(w, "create audio track failed", http.StatusInternalServerError)
		return
	}
	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		http.Error(w, "add track failed", http.StatusInternalServerError)
		return
	}

	if h.pad != nil {
		pc.OnDataChannel(h.handleDataChannel)
	}

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		http.Error(w, "set remote description failed", http.StatusBadRequest)
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		http.Error(w, "create answer failed", http.StatusInternalServerError)
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		http.Error(w, "set local description failed", http.StatusInternalServerError)
		return
	}

	<-webrtc.GatheringCompletePromise(pc)

	listener := h.addPeer(pc)
	log.Printf("WebRTC peer connected (total: %d)", h.PeerCount())

	go h.streamToPeer(listener, track)

	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		h.handlePeerState(pc, st)
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

func (h *WebRTCHandler) handleDataChannel(dc *webrtc.DataChannel) {
	if dc.Label() != "pad" {
		return
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !msg.IsString {
			return
		}
		m, err := ParseTriggerMsg(msg.Data)
		if err != nil {
			log.Printf("WebRTC: %v", err)
			return
		}
		m.Apply(h.pad)
	})
}

// handlePeerState drops pc once its connection is gone. Dropping
// unsubscribes the peer's listener, which ends its stream goroutine.
func (h *WebRTCHandler) handlePeerState(pc *webrtc.PeerConnection, st webrtc.PeerConnectionState) {
	switch st {
	case webrtc.PeerConnectionStateFailed,
		webrtc.PeerConnectionStateClosed,
		webrtc.PeerConnectionStateDisconnected:
		if h.dropPeer(pc) {
			pc.Close()
			log.Printf("WebRTC peer disconnected (remaining: %d)", h.PeerCount())
		}
	}
}

func (h *WebRTCHandler) streamToPeer(l *Listener, track *webrtc.TrackLocalStaticSample) {
	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		log.Printf("WebRTC: opus encoder error: %v", err)
		h.broadcaster.Unsubscribe(l)
		return
	}
	if err := enc.SetBitrate(h.bitrate); err != nil {
		log.Printf("WebRTC: set bitrate %d: %v", h.bitrate, err)
	}

	buf := make([]byte, 4000)
	pump(l, func(frame []int16) error {
		n, err := enc.Encode(frame, buf)
		if err != nil {
			log.Printf("WebRTC: opus encode error: %v", err)
			return nil
		}
		return track.WriteSample(media.Sample{
			Data:     buf[:n],
			Duration: audio.FrameDuration,
		})
	})
}

// pump hands frames from l to send until l is unsubscribed or send fails.
// Writes to a track whose peer has gone still succeed, so Done is the stop.
func pump(l *Listener, send func([]int16) error) {
	for {
		select {
		case <-l.Done():
			return
		case frame := <-l.C:
			if err := send(frame); err != nil {
				return
			}
		}
	}
}

func (h *WebRTCHandler) addPeer(pc *webrtc.PeerConnection) *Listener {
	l := h.broadcaster.Subscribe()
	h.mu.Lock()
	h.peers[pc] = l
	h.mu.Unlock()
	return l
}

func (h *WebRTCHandler) dropPeer(pc *webrtc.PeerConnection) bool {
	h.mu.Lock()
	l, ok := h.peers[pc]
	delete(h.peers, pc)
	h.mu.Unlock()
	if !ok {
		return false
	}
	log.Printf("WebRTC listener closed (dropped %d frames)", l.Dropped())
	h.broadcaster.Unsubscribe(l)
	return true
}

// Close tears down every peer connection.
func (h *WebRTCHandler) Close() {
	h.mu.Lock()
	peers := make([]*webrtc.PeerConnection, 0, len(h.peers))
	for pc := range h.peers {
		peers = append(peers, pc)
	}
	h.mu.Unlock()
	for _, pc := range peers {
		h.dropPeer(pc)
		pc.Close()
	}
}
