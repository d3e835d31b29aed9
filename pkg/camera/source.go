// Package camera provides the frame sources polled by the scan loop.
package camera

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrClosed is returned by Frame when the source is not open
var ErrClosed = errors.New("camera: source closed")

// Source is a capture stream
type Source interface {
	// Open starts the stream
	Open() error
	// Frame returns the current frame
	Frame() (image.Image, error)
	// Close stops the stream. Closing a closed source is a no-op.
	Close() error
}

// SequenceSource replays a fixed list of frames, holding the last one
type SequenceSource struct {
	mu     sync.Mutex
	frames []image.Image
	next   int
	open   bool
	opens  int
}

// NewSequenceSource creates a source over frames
func NewSequenceSource(frames ...image.Image) *SequenceSource {
	return &SequenceSource{frames: frames}
}

// Open implements Source
func (s *SequenceSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	s.opens++
	return nil
}

// Frame implements Source
func (s *SequenceSource) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, ErrClosed
	}
	if len(s.frames) == 0 {
		return nil, nil
	}
	f := s.frames[s.next]
	if s.next < len(s.frames)-1 {
		s.next++
	}
	return f, nil
}

// Close implements Source
func (s *SequenceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// IsOpen reports whether the source is streaming
func (s *SequenceSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Opens returns how many times the source was opened
func (s *SequenceSource) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// NewDirSource loads every .png/.jpg/.jpeg file in dir, in name order
func NewDirSource(dir string) (*SequenceSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	frames := make([]image.Image, 0, len(names))
	for _, name := range names {
		img, err := LoadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		frames = append(frames, img)
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames found in %s", dir)
	}
	return NewSequenceSource(frames...), nil
}

// LoadImage decodes a PNG or JPEG file
func LoadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}
