package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DiskStore writes records as JSON files, one per run. The directory is
// created on the first Save; without a configured directory a temp
// directory is used.
type DiskStore struct {
	mu  sync.Mutex
	dir string
}

// NewDiskStore creates a DiskStore rooted at dir. An empty dir selects a
// lazily-created temp directory.
func NewDiskStore(dir string) *DiskStore {
	return &DiskStore{dir: dir}
}

// Save writes a record as a JSON file to disk.
func (s *DiskStore) Save(rec *Record) error {
	if _, err := uuid.Parse(rec.ID); err != nil {
		return fmt.Errorf("saving record %q: invalid id: %w", rec.ID, err)
	}
	dir, err := s.ensureDir()
	if err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshalling record %s: %w", rec.ID, err)
	}
	path := filepath.Join(dir, rec.ID+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing record %s: %w", rec.ID, err)
	}
	return nil
}

// Load reads a record from disk.
func (s *DiskStore) Load(id string) (*Record, error) {
	// IDs are uuids; anything else cannot name a file we wrote.
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	dir, err := s.ensureDir()
	if err != nil {
		return nil, err
	}
	rec, err := readRecord(filepath.Join(dir, id+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

// List returns every record in the directory, oldest first.
func (s *DiskStore) List() ([]*Record, error) {
	dir, err := s.ensureDir()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}

	var out []*Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		rec, err := readRecord(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Dir returns the backing directory, creating it if needed.
func (s *DiskStore) Dir() (string, error) {
	return s.ensureDir()
}

func readRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", filepath.Base(path), err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshalling record %s: %w", filepath.Base(path), err)
	}
	return &rec, nil
}

func (s *DiskStore) ensureDir() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o700); err != nil {
			return "", fmt.Errorf("creating history directory: %w", err)
		}
		return s.dir, nil
	}
	dir, err := os.MkdirTemp("", "execkit-runs-*")
	if err != nil {
		return "", fmt.Errorf("creating history directory: %w", err)
	}
	s.dir = dir
	return dir, nil
}
