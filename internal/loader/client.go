// Package loader fetches tracks from the download backend, either as raw
// bytes for decoding or as a locally served object URL.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// ErrEmptyURL is returned when the track URL is blank. No request is made.
var ErrEmptyURL = errors.New("empty track URL")

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %d", e.Code)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

// Client talks to the download backend.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a backend client posting to endpoint
// (e.g. http://localhost:5000/api/download).
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

type downloadReq struct {
	URL string `json:"url"`
}

// Payload is an encoded track as returned by the backend.
type Payload struct {
	Data        []byte
	ContentType string
}

// Download asks the backend for the audio behind trackURL and returns the
// raw encoded bytes.
func (c *Client) Download(ctx context.Context, trackURL string) ([]byte, error) {
	p, err := c.Fetch(ctx, trackURL)
	if err != nil {
		return nil, err
	}
	return p.Data, nil
}

// Fetch is Download keeping the backend's content type.
func (c *Client) Fetch(ctx context.Context, trackURL string) (Payload, error) {
	trackURL = strings.TrimSpace(trackURL)
	if trackURL == "" {
		return Payload{}, ErrEmptyURL
	}

	body, err := json.Marshal(downloadReq{URL: trackURL})
	if err != nil {
		return Payload{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Payload{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Payload{}, fmt.Errorf("download request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Payload{}, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Payload{}, fmt.Errorf("read response: %w", err)
	}
	ct := resp.Header.Get("Content-Type")
	log.Printf("Downloaded %d bytes (%s) for %s", len(data), ct, trackURL)
	return Payload{Data: data, ContentType: ct}, nil
}
