package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeDownloader struct {
	data  []byte
	err   error
	calls []string
}

func (f *fakeDownloader) Download(ctx context.Context, trackURL string) ([]byte, error) {
	f.calls = append(f.calls, trackURL)
	return f.data, f.err
}

var mp3 = formats["mp3"]

func post(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", "/api/download", strings.NewReader(body)))
	return rec
}

func TestHandlerSuccess(t *testing.T) {
	dl := &fakeDownloader{data: []byte("ID3audio")}
	rec := post(NewHandler(dl, mp3), `{"url":"https://example.com/v"}`)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "downloaded.mp3") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
	if rec.Body.String() != "ID3audio" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if len(dl.calls) != 1 || dl.calls[0] != "https://example.com/v" {
		t.Errorf("calls = %v", dl.calls)
	}
}

func TestHandlerMissingURL(t *testing.T) {
	for _, body := range []string{`{}`, `{"url":""}`, `{"url":"  "}`} {
		dl := &fakeDownloader{}
		rec := post(NewHandler(dl, mp3), body)
		if rec.Code != 400 {
			t.Errorf("%q: status = %d, want 400", body, rec.Code)
		}
		var resp errorResp
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp.Error != "No URL provided" {
			t.Errorf("%q: error = %q", body, resp.Error)
		}
		if len(dl.calls) != 0 {
			t.Errorf("%q: downloader called", body)
		}
	}
}

func TestHandlerInvalidJSON(t *testing.T) {
	for _, body := range []string{`not json`, ``, `{"url":`} {
		dl := &fakeDownloader{}
		rec := post(NewHandler(dl, mp3), body)
		if rec.Code != 400 {
			t.Errorf("%q: status = %d, want 400", body, rec.Code)
		}
		var resp errorResp
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp.Error != "Invalid JSON body" {
			t.Errorf("%q: error = %q", body, resp.Error)
		}
		if len(dl.calls) != 0 {
			t.Errorf("%q: downloader called", body)
		}
	}
}

func TestHandlerFormatHeaders(t *testing.T) {
	tests := []struct {
		format, contentType, filename string
	}{
		{"mp3", "audio/mpeg", "downloaded.mp3"},
		{"m4a", "audio/mp4", "downloaded.m4a"},
		{"flac", "audio/flac", "downloaded.flac"},
		{"vorbis", "audio/ogg", "downloaded.ogg"},
	}
	for _, tt := range tests {
		f, err := LookupFormat(tt.format)
		if err != nil {
			t.Fatalf("LookupFormat(%q): %v", tt.format, err)
		}
		rec := post(NewHandler(&fakeDownloader{data: []byte("x")}, f), `{"url":"u"}`)
		if ct := rec.Header().Get("Content-Type"); ct != tt.contentType {
			t.Errorf("%s: Content-Type = %q, want %q", tt.format, ct, tt.contentType)
		}
		want := `attachment; filename="` + tt.filename + `"`
		if cd := rec.Header().Get("Content-Disposition"); cd != want {
			t.Errorf("%s: Content-Disposition = %q, want %q", tt.format, cd, want)
		}
	}
}

func TestHandlerToolFailure(t *testing.T) {
	dl := &fakeDownloader{err: &ToolError{Details: "ERROR: Unsupported URL", Err: errors.New("exit status 1")}}
	rec := post(NewHandler(dl, mp3), `{"url":"https://example.com/bad"}`)

	if rec.Code != 500 {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp errorResp
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "yt-dlp failed" {
		t.Errorf("error = %q", resp.Error)
	}
	if resp.Details != "ERROR: Unsupported URL" {
		t.Errorf("details = %q", resp.Details)
	}
}

func TestHandlerMethods(t *testing.T) {
	h := NewHandler(&fakeDownloader{}, mp3)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("OPTIONS", "/api/download", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want 204", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/download", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}
}

func TestToolErrorUnwrap(t *testing.T) {
	inner := errors.New("exit status 2")
	err := error(&ToolError{Err: inner})
	if !errors.Is(err, inner) {
		t.Error("ToolError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "yt-dlp failed") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestLookupFormat(t *testing.T) {
	for _, name := range []string{"", " MP3 ", "mp3"} {
		f, err := LookupFormat(name)
		if err != nil || f.Name != "mp3" {
			t.Errorf("LookupFormat(%q) = %+v, %v; want mp3", name, f, err)
		}
	}
	if _, err := LookupFormat("wma"); err == nil || !strings.Contains(err.Error(), "unsupported audio format") {
		t.Errorf("LookupFormat(wma) err = %v", err)
	}
	if y := NewYTDLP(formats["opus"]); y.format.Name != "opus" {
		t.Errorf("format = %q, want opus", y.format.Name)
	}
}
