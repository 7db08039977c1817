package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/openvhal/vhal-go/pkg/vehicle"
)

// SnapshotVersion is the current version of the snapshot file format.
const SnapshotVersion = 1

// ErrUnsupportedVersion is returned when a snapshot was written by a newer
// format version.
var ErrUnsupportedVersion = errors.New("unsupported snapshot version")

// ValueSnapshot holds the property values worth restoring.
type ValueSnapshot struct {
	// Version is the snapshot file format version.
	Version int `json:"version"`

	// SavedAt is when the snapshot was last saved.
	SavedAt time.Time `json:"saved_at"`

	// Values are the stored property values, one per property area.
	Values []vehicle.PropertyValue `json:"values,omitempty"`
}

// Store reads and writes a ValueSnapshot file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Save writes the snapshot, creating parent directories as needed.
func (s *Store) Save(snap *ValueSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	snap.Version = SnapshotVersion
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0644)
}

// Load reads the snapshot. It returns nil, nil if the file doesn't exist.
func (s *Store) Load() (*ValueSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &ValueSnapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	if snap.Version > SnapshotVersion {
		return nil, fmt.Errorf("%s: %w %d", s.path, ErrUnsupportedVersion, snap.Version)
	}
	return snap, nil
}

// Clear removes the snapshot file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
