package directory

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/1F47E/qr-navigator/pkg/models"
	"gopkg.in/yaml.v3"
)

// Destination is a named point in the scene
type Destination struct {
	Name     string      `json:"name" yaml:"name"`
	Position models.Vec3 `json:"position" yaml:"position"`
}

// Store backs the directory server
type Store interface {
	// Search returns the names containing text, case-insensitively
	Search(ctx context.Context, text string) ([]string, error)
	// Lookup returns the position of name or ErrNotFound
	Lookup(ctx context.Context, name string) (models.Vec3, error)
}

// MemoryStore is an ordered in-memory Store
type MemoryStore struct {
	mu           sync.RWMutex
	destinations []Destination
	byName       map[string]int
}

// NewMemoryStore creates a store. Later duplicates of a name replace the position of the first.
func NewMemoryStore(destinations ...Destination) *MemoryStore {
	s := &MemoryStore{byName: make(map[string]int)}
	s.Add(destinations...)
	return s
}

// Add appends destinations, keeping insertion order
func (s *MemoryStore) Add(destinations ...Destination) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range destinations {
		if i, ok := s.byName[d.Name]; ok {
			s.destinations[i].Position = d.Position
			continue
		}
		s.byName[d.Name] = len(s.destinations)
		s.destinations = append(s.destinations, d)
	}
}

// Search implements Store
func (s *MemoryStore) Search(_ context.Context, text string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(text)
	names := make([]string, 0)
	for _, d := range s.destinations {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			names = append(names, d.Name)
		}
	}
	return names, nil
}

// Lookup implements Store
func (s *MemoryStore) Lookup(_ context.Context, name string) (models.Vec3, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byName[name]
	if !ok {
		return models.Vec3{}, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	return s.destinations[i].Position, nil
}

// Destinations returns a copy of all destinations
func (s *MemoryStore) Destinations() []Destination {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Destination(nil), s.destinations...)
}

// seedFile is the YAML layout of a destination seed
type seedFile struct {
	Destinations []Destination `yaml:"destinations"`
}

// LoadSeed reads destinations from a YAML file
func LoadSeed(path string) ([]Destination, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed %s: %w", path, err)
	}
	for i, d := range seed.Destinations {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("seed %s: destination %d has no name", path, i)
		}
	}
	return seed.Destinations, nil
}
