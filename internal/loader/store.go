package loader

import (
	"bytes"
	"context"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ObjectPrefix is the URL path under which stored objects are served.
const ObjectPrefix = "/objects/"

// defaultContentType is served when the backend did not name one.
const defaultContentType = "audio/mpeg"

type object struct {
	data        []byte
	contentType string
	created     time.Time
}

// ObjectStore keeps downloaded tracks in memory and serves them as
// seekable audio. It holds at most max objects; the oldest is evicted first.
type ObjectStore struct {
	max int

	mu    sync.Mutex
	objs  map[string]object
	order []string // insertion order, oldest first
}

// NewObjectStore creates a store holding up to max objects.
func NewObjectStore(max int) *ObjectStore {
	if max < 1 {
		max = 1
	}
	return &ObjectStore{
		max:  max,
		objs: make(map[string]object),
	}
}

// Put stores data served as contentType and returns its URL path.
func (s *ObjectStore) Put(data []byte, contentType string) string {
	if contentType == "" {
		contentType = defaultContentType
	}
	id := uuid.NewString()

	s.mu.Lock()
	s.objs[id] = object{data: data, contentType: contentType, created: time.Now()}
	s.order = append(s.order, id)
	for len(s.order) > s.max {
		delete(s.objs, s.order[0])
		s.order = s.order[1:]
	}
	s.mu.Unlock()

	log.Printf("Stored object %s, %d bytes (%d held)", id, len(data), s.Len())
	return ObjectPrefix + id
}

// Revoke drops the object behind path (or bare id). Unknown paths are ignored.
func (s *ObjectStore) Revoke(path string) bool {
	id := strings.TrimPrefix(path, ObjectPrefix)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objs[id]; !ok {
		return false
	}
	delete(s.objs, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of stored objects.
func (s *ObjectStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objs)
}

func (s *ObjectStore) get(id string) (object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.objs[id]
	return o, ok
}

// ServeHTTP serves GET/HEAD ObjectPrefix<id> with range support and
// revokes the object on DELETE.
func (s *ObjectStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, ObjectPrefix)
	if _, err := uuid.Parse(id); err != nil {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case "GET", "HEAD":
		o, ok := s.get(id)
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", o.contentType)
		http.ServeContent(w, r, "", o.created, bytes.NewReader(o.data))
	case "DELETE":
		if !s.Revoke(id) {
			http.NotFound(w, r)
			return
		}
		log.Printf("Revoked object %s (%d held)", id, s.Len())
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// Loader combines a backend client with an object store for continuous
// playback of a whole track.
type Loader struct {
	client *Client
	store  *ObjectStore
}

// New creates a Loader.
func New(client *Client, store *ObjectStore) *Loader {
	return &Loader{client: client, store: store}
}

// ObjectURL downloads trackURL and returns the local path it is served at.
func (l *Loader) ObjectURL(ctx context.Context, trackURL string) (string, error) {
	p, err := l.client.Fetch(ctx, trackURL)
	if err != nil {
		return "", err
	}
	return l.store.Put(p.Data, p.ContentType), nil
}

// Store returns the loader's object store.
func (l *Loader) Store() *ObjectStore {
	return l.store
}
