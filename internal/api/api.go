// Package api exposes the pad session over HTTP: the pad page, JSON
// control endpoints and object URLs for whole-track playback.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/satindergrewal/slicepad/internal/loader"
	"github.com/satindergrewal/slicepad/internal/pad"
	"github.com/satindergrewal/slicepad/internal/web"
)

// Pad is the session surface the API drives.
type Pad interface {
	Load(ctx context.Context, trackURL string) error
	Randomize() error
	KeyDown(key string) bool
	KeyUp(key string) bool
	Snapshot() pad.Snapshot
}

// ObjectLoader turns a track URL into a locally served object URL.
type ObjectLoader interface {
	ObjectURL(ctx context.Context, trackURL string) (string, error)
}

// Server routes pad requests.
type Server struct {
	pad     Pad
	objects ObjectLoader
	mux     *http.ServeMux
}

// Options carries the optional handlers mounted next to the API.
type Options struct {
	Objects http.Handler // GET and DELETE /objects/<id>
	Stream  http.Handler // GET /stream
	Offer   http.Handler // POST /offer
}

// New builds the route table.
func New(p Pad, objects ObjectLoader, opts Options) *Server {
	s := &Server{pad: p, objects: objects, mux: http.NewServeMux()}

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/api/load", s.handleLoad)
	s.mux.HandleFunc("/api/randomize", s.handleRandomize)
	s.mux.HandleFunc("/api/trigger", s.handleKey(p.KeyDown))
	s.mux.HandleFunc("/api/release", s.handleKey(p.KeyUp))
	s.mux.HandleFunc("/api/status", s.handleStatus)
	s.mux.HandleFunc("/api/stream", s.handleStream)
	if opts.Objects != nil {
		s.mux.Handle(loader.ObjectPrefix, opts.Objects)
	}
	if opts.Stream != nil {
		s.mux.Handle("/stream", opts.Stream)
	}
	if opts.Offer != nil {
		s.mux.Handle("/offer", opts.Offer)
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type urlReq struct {
	URL string `json:"url"`
}

type keyReq struct {
	Key string `json:"key"`
}

type keyResp struct {
	Key     string   `json:"key"`
	Changed bool     `json:"changed"`
	Active  []string `json:"active"`
}

type streamResp struct {
	URL string `json:"url"`
}

type errorResp struct {
	Error  string `json:"error"`
	Status string `json:"status,omitempty"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(web.IndexHTML)
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var req urlReq
	if !decode(w, r, &req) {
		return
	}

	err := s.pad.Load(r.Context(), req.URL)
	switch {
	case errors.Is(err, pad.ErrEmptyURL):
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error(), Status: pad.StatusMissingURL})
		return
	case err != nil:
		// Failures are reported through the status line.
		log.Printf("Load %s: %v", req.URL, err)
	}
	writeJSON(w, http.StatusOK, s.pad.Snapshot())
}

func (s *Server) handleRandomize(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if err := s.pad.Randomize(); err != nil {
		writeJSON(w, http.StatusConflict, errorResp{Error: err.Error(), Status: pad.StatusNoTrack})
		return
	}
	writeJSON(w, http.StatusOK, s.pad.Snapshot())
}

func (s *Server) handleKey(apply func(string) bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requirePost(w, r) {
			return
		}
		var req keyReq
		if !decode(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Key) == "" {
			writeJSON(w, http.StatusBadRequest, errorResp{Error: "missing key"})
			return
		}
		changed := apply(req.Key)
		snap := s.pad.Snapshot()
		active := make([]string, len(snap.Active))
		for i, id := range snap.Active {
			active[i] = string(id)
		}
		writeJSON(w, http.StatusOK, keyResp{
			Key:     string(pad.NormalizeKey(req.Key)),
			Changed: changed,
			Active:  active,
		})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" && r.Method != "HEAD" {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.pad.Snapshot())
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	if s.objects == nil {
		http.Error(w, "stream player disabled", http.StatusNotFound)
		return
	}
	var req urlReq
	if !decode(w, r, &req) {
		return
	}

	path, err := s.objects.ObjectURL(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, loader.ErrEmptyURL) {
			writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error(), Status: pad.StatusMissingURL})
			return
		}
		log.Printf("Stream player load %s: %v", req.URL, err)
		writeJSON(w, http.StatusBadGateway, errorResp{Error: err.Error(), Status: pad.StatusLoadError})
		return
	}
	writeJSON(w, http.StatusOK, streamResp{URL: path})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != "POST" {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
