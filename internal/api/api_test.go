package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/satindergrewal/slicepad/internal/loader"
	"github.com/satindergrewal/slicepad/internal/pad"
	"github.com/satindergrewal/slicepad/internal/web"
)

type stubPlayback struct{}

func (stubPlayback) Stop() error { return nil }

type stubAudio struct{ dur float64 }

func (a stubAudio) Duration() float64 { return a.dur }

func (a stubAudio) Play(start, duration float64, onDone func()) (pad.Playback, error) {
	return &stubPlayback{}, nil
}

type stubFetcher struct{ err error }

func (f stubFetcher) Download(ctx context.Context, trackURL string) ([]byte, error) {
	return []byte("data"), f.err
}

type stubObjects struct {
	path string
	err  error
}

func (o stubObjects) ObjectURL(ctx context.Context, trackURL string) (string, error) {
	if strings.TrimSpace(trackURL) == "" {
		return "", loader.ErrEmptyURL
	}
	return o.path, o.err
}

func newServer(fetchErr error) (*Server, *pad.Session) {
	dec := pad.DecoderFunc(func(ctx context.Context, data []byte) (pad.DecodedAudio, error) {
		return stubAudio{dur: 10}, nil
	})
	sess := pad.NewSession(pad.Config{Keys: []string{"Q", "W"}, SliceDuration: 1}, stubFetcher{err: fetchErr}, dec)
	return New(sess, stubObjects{path: "/objects/abc"}, Options{}), sess
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func snapshotOf(t *testing.T, rec *httptest.ResponseRecorder) pad.Snapshot {
	t.Helper()
	var snap pad.Snapshot
	if err := json.NewDecoder(rec.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

func TestIndex(t *testing.T) {
	s, _ := newServer(nil)
	rec := do(s, "GET", "/", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `id="grid"`) {
		t.Error("index page missing grid")
	}
	if rec := do(s, "GET", "/nope", ""); rec.Code != 404 {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}

func TestLoadAndStatus(t *testing.T) {
	s, _ := newServer(nil)
	rec := do(s, "POST", "/api/load", `{"url":"https://example.com/t"}`)
	if rec.Code != 200 {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	snap := snapshotOf(t, rec)
	if snap.Status != pad.StatusLoaded || !snap.Loaded || len(snap.Slices) != 2 {
		t.Errorf("snapshot = %+v", snap)
	}

	rec = do(s, "GET", "/api/status", "")
	if got := snapshotOf(t, rec); got.Duration != 10 {
		t.Errorf("status duration = %v, want 10", got.Duration)
	}
}

func TestLoadEmptyURL(t *testing.T) {
	s, sess := newServer(nil)
	rec := do(s, "POST", "/api/load", `{"url":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if sess.Status() != pad.StatusMissingURL {
		t.Errorf("session status = %q", sess.Status())
	}
}

func TestLoadFailureReportsStatus(t *testing.T) {
	s, _ := newServer(errors.New("backend down"))
	rec := do(s, "POST", "/api/load", `{"url":"https://example.com/t"}`)
	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if snap := snapshotOf(t, rec); snap.Status != pad.StatusLoadError {
		t.Errorf("Status = %q, want %q", snap.Status, pad.StatusLoadError)
	}
}

func TestBadRequests(t *testing.T) {
	s, _ := newServer(nil)
	tests := []struct {
		method, path, body string
		want               int
	}{
		{"GET", "/api/load", "", http.StatusMethodNotAllowed},
		{"POST", "/api/load", "{", http.StatusBadRequest},
		{"GET", "/api/trigger", "", http.StatusMethodNotAllowed},
		{"POST", "/api/trigger", `{"key":""}`, http.StatusBadRequest},
		{"POST", "/api/release", "nope", http.StatusBadRequest},
		{"POST", "/api/status", "", http.StatusMethodNotAllowed},
		{"GET", "/api/randomize", "", http.StatusMethodNotAllowed},
		{"POST", "/api/randomize", "", http.StatusConflict},
		{"POST", "/api/stream", `{"url":" "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rec := do(s, tt.method, tt.path, tt.body); rec.Code != tt.want {
			t.Errorf("%s %s %q: status = %d, want %d", tt.method, tt.path, tt.body, rec.Code, tt.want)
		}
	}
}

func TestTriggerRelease(t *testing.T) {
	s, sess := newServer(nil)
	do(s, "POST", "/api/load", `{"url":"u"}`)

	rec := do(s, "POST", "/api/trigger", `{"key":"q"}`)
	var resp keyResp
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Changed || resp.Key != "Q" || len(resp.Active) != 1 {
		t.Errorf("trigger resp = %+v", resp)
	}
	if !sess.Sounding("Q") {
		t.Error("Q should be sounding")
	}

	rec = do(s, "POST", "/api/trigger", `{"key":"Q"}`)
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Changed {
		t.Error("second trigger should report no change")
	}

	rec = do(s, "POST", "/api/release", `{"key":"Q"}`)
	resp = keyResp{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Changed || len(resp.Active) != 0 {
		t.Errorf("release resp = %+v", resp)
	}

	rec = do(s, "POST", "/api/release", `{"key":"Q"}`)
	if rec.Code != 200 {
		t.Errorf("idle release status = %d, want 200", rec.Code)
	}
}

func TestRandomize(t *testing.T) {
	s, _ := newServer(nil)
	do(s, "POST", "/api/load", `{"url":"u"}`)
	rec := do(s, "POST", "/api/randomize", "")
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if snap := snapshotOf(t, rec); snap.Status != pad.StatusRandomized {
		t.Errorf("Status = %q", snap.Status)
	}
}

func TestStreamObjectURL(t *testing.T) {
	s, _ := newServer(nil)
	rec := do(s, "POST", "/api/stream", `{"url":"https://example.com/t"}`)
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp streamResp
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.URL != "/objects/abc" {
		t.Errorf("URL = %q", resp.URL)
	}

	failing := New(pad.NewSession(pad.Config{}, nil, nil), stubObjects{err: errors.New("502")}, Options{})
	if rec := do(failing, "POST", "/api/stream", `{"url":"x"}`); rec.Code != http.StatusBadGateway {
		t.Errorf("failed stream status = %d, want 502", rec.Code)
	}

	disabled := New(pad.NewSession(pad.Config{}, nil, nil), nil, Options{})
	if rec := do(disabled, "POST", "/api/stream", `{"url":"x"}`); rec.Code != 404 {
		t.Errorf("disabled stream status = %d, want 404", rec.Code)
	}
}

func TestOptionalRoutes(t *testing.T) {
	hit := map[string]bool{}
	mark := func(name string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hit[name] = true })
	}
	s := New(pad.NewSession(pad.Config{}, nil, nil), nil, Options{
		Objects: mark("objects"),
		Stream:  mark("stream"),
		Offer:   mark("offer"),
	})
	do(s, "GET", "/objects/x", "")
	do(s, "GET", "/stream", "")
	do(s, "POST", "/offer", "")
	for _, name := range []string{"objects", "stream", "offer"} {
		if !hit[name] {
			t.Errorf("%s handler not mounted", name)
		}
	}
}

func TestObjectRevokeRoute(t *testing.T) {
	store := loader.NewObjectStore(4)
	s := New(pad.NewSession(pad.Config{}, nil, nil), nil, Options{Objects: store})
	path := store.Put([]byte("ID3"), "audio/mpeg")

	if rec := do(s, "GET", path, ""); rec.Code != 200 {
		t.Fatalf("GET status = %d, want 200", rec.Code)
	}
	if rec := do(s, "DELETE", path, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", rec.Code)
	}
	if rec := do(s, "GET", path, ""); rec.Code != 404 {
		t.Errorf("GET after revoke status = %d, want 404", rec.Code)
	}
	if !strings.Contains(string(web.IndexHTML), "method: 'DELETE'") {
		t.Error("pad page never revokes its previous object")
	}
}
