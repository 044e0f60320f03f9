package photo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a photo id is unknown to the store.
var ErrNotFound = errors.New("photo: not found")

// Meta is the capture information recorded with a photo.
type Meta struct {
	Width    int
	Height   int
	Lens     string
	Mirrored bool
	Flash    bool
}

// Store keeps captured photos as JPEG files under a directory.
type Store struct {
	dir    string
	photos map[string]Photo
	mu     sync.RWMutex
	now    func() time.Time
}

// NewStore creates the directory if needed and returns an empty store.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create photo directory: %w", err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve photo directory: %w", err)
	}
	return &Store{
		dir:    abs,
		photos: make(map[string]Photo),
		now:    time.Now,
	}, nil
}

// Dir returns the absolute directory photos are written to.
func (s *Store) Dir() string {
	return s.dir
}

// Save writes the JPEG bytes under a fresh id and returns the photo.
func (s *Store) Save(jpeg []byte, meta Meta) (Photo, error) {
	id := uuid.New().String()
	path := filepath.Join(s.dir, id+".jpg")

	if err := os.WriteFile(path, jpeg, 0o644); err != nil {
		return Photo{}, fmt.Errorf("write photo: %w", err)
	}

	p := Photo{
		ID:         id,
		Path:       path,
		Width:      meta.Width,
		Height:     meta.Height,
		Lens:       meta.Lens,
		Mirrored:   meta.Mirrored,
		Flash:      meta.Flash,
		Size:       int64(len(jpeg)),
		CapturedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.photos[id] = p
	s.mu.Unlock()

	return p, nil
}

// Get returns the photo with the given id.
func (s *Store) Get(id string) (Photo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.photos[id]
	if !ok {
		return Photo{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// Read returns the JPEG bytes of the photo with the given id.
func (s *Store) Read(id string) ([]byte, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(p.Path)
}

// Remove deletes the photo file and forgets the id.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	p, ok := s.photos[id]
	delete(s.photos, id)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := os.Remove(p.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove photo: %w", err)
	}
	return nil
}

// Count returns the number of photos held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.photos)
}
