package persist

import (
	"fmt"
	"os"
	"path/filepath"
)

// Storage is the non-volatile backing for the state record. Implementations
// must make Commit atomic: a power cut mid-commit leaves either the old
// record or the new one, never a torn mix.
type Storage interface {
	// Load returns the raw record bytes, or os.ErrNotExist when nothing
	// has ever been committed.
	Load() ([]byte, error)
	// Commit durably replaces the record.
	Commit(data []byte) error
}

// FileStorage keeps the record in a single file, standing in for the
// microcontroller's EEPROM. Commits go through a temp file and rename so a
// crash never leaves a partial record behind.
type FileStorage struct {
	Path string
}

// NewFileStorage returns file-backed storage at path.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{Path: path}
}

func (f *FileStorage) Load() ([]byte, error) {
	return os.ReadFile(f.Path)
}

func (f *FileStorage) Commit(data []byte) error {
	dir := filepath.Dir(f.Path)
	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return fmt.Errorf("persist: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persist: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("persist: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist: close temp: %w", err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("persist: rename: %w", err)
	}
	return nil
}

// MemStorage is an in-memory Storage for tests. Corrupt gives tests a way to
// flip bytes in the committed record, simulating EEPROM decay.
type MemStorage struct {
	data []byte
}

func (m *MemStorage) Load() ([]byte, error) {
	if m.data == nil {
		return nil, os.ErrNotExist
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *MemStorage) Commit(data []byte) error {
	m.data = make([]byte, len(data))
	copy(m.data, data)
	return nil
}

// Corrupt XORs the byte at off with mask. No-op if nothing is stored.
func (m *MemStorage) Corrupt(off int, mask byte) {
	if m.data != nil && off < len(m.data) {
		m.data[off] ^= mask
	}
}
