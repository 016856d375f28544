// Package filestore is the payload file service. Every operation returns the
// downlink lines to transmit, mirroring how results reach the ground station;
// callers never interpret an error type, they relay the lines.
//
// All paths are sandboxed under the store root. The command parser already
// rejects traversal attempts, but the store re-checks on resolution so it is
// safe even when driven from code paths that skipped parsing.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/logging"
)

// ChunkSize is the downlink payload size for file reads. One chunk fits one
// radio packet.
const ChunkSize = 200

// MaxListEntries caps a directory listing.
const MaxListEntries = 100

const (
	writeRetries   = 3
	writeRetryWait = 100 * time.Millisecond
)

var errOutsideRoot = errors.New("filestore: path escapes root")

// Config sets the root directory and the optional space quota.
type Config struct {
	Root string

	// QuotaBytes caps total store usage; zero disables accounting.
	QuotaBytes int64

	// MinFreeBytes is headroom kept under the quota.
	MinFreeBytes int64
}

// Store is an os-backed sandboxed file tree.
type Store struct {
	cfg  Config
	log  logging.Logger
	feed func()
}

// New builds a store over cfg.Root, creating it if missing. feed is the
// watchdog feeder for long chunked operations; it may be nil.
func New(cfg Config, feed func(), log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Noop()
	}
	if feed == nil {
		feed = func() {}
	}
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &Store{cfg: cfg, log: logging.Subsystem(log, "store"), feed: feed}, nil
}

// resolve maps a radio-protocol path to a real path under the root. Checked
// before cleaning: path.Clean would silently rewrite "/../x" to "/x" and hide
// the attempt from the rejection counters.
func (s *Store) resolve(p string) (string, error) {
	if strings.Contains(p, "..") {
		return "", errOutsideRoot
	}
	clean := path.Clean("/" + strings.TrimSpace(p))
	return filepath.Join(s.cfg.Root, filepath.FromSlash(clean)), nil
}

func (s *Store) usedBytes() int64 {
	var used int64
	filepath.WalkDir(s.cfg.Root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			used += info.Size()
		}
		return nil
	})
	return used
}

// HasSpace reports whether n more bytes fit under the quota.
func (s *Store) HasSpace(n int64) bool {
	if s.cfg.QuotaBytes <= 0 {
		return true
	}
	return s.usedBytes()+n+s.cfg.MinFreeBytes <= s.cfg.QuotaBytes
}

// FreePercent returns the free share of the quota, or -1 when accounting is
// disabled. Used by the telemetry frame.
func (s *Store) FreePercent() int {
	if s.cfg.QuotaBytes <= 0 {
		return -1
	}
	used := s.usedBytes()
	if used >= s.cfg.QuotaBytes {
		return 0
	}
	return int((s.cfg.QuotaBytes - used) * 100 / s.cfg.QuotaBytes)
}

// List returns a directory listing framed by DIR:/END:DIR markers. Entries
// are D:<name> for directories and F:<name>,<size> for files.
func (s *Store) List(dir string) []string {
	s.feed()
	real, err := s.resolve(dir)
	if err != nil {
		return []string{"ERR:OPEN_DIR_FAILED"}
	}
	info, err := os.Stat(real)
	if err != nil {
		return []string{"ERR:OPEN_DIR_FAILED"}
	}
	if !info.IsDir() {
		return []string{"ERR:NOT_A_DIRECTORY"}
	}
	entries, err := os.ReadDir(real)
	if err != nil {
		return []string{"ERR:OPEN_DIR_FAILED"}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	lines := []string{"DIR:" + path.Clean("/"+dir)}
	for i, e := range entries {
		if i >= MaxListEntries {
			break
		}
		s.feed()
		if e.IsDir() {
			lines = append(lines, "D:"+e.Name())
			continue
		}
		size := int64(0)
		if fi, err := e.Info(); err == nil {
			size = fi.Size()
		}
		lines = append(lines, fmt.Sprintf("F:%s,%d", e.Name(), size))
	}
	return append(lines, "END:DIR")
}

// Read returns a file as a FILE: header, ChunkSize-byte chunks, and an
// END:FILE trailer.
func (s *Store) Read(p string) []string {
	s.feed()
	real, err := s.resolve(p)
	if err != nil {
		return []string{"ERR:OPEN_FILE_FAILED"}
	}
	data, err := os.ReadFile(real)
	if err != nil {
		return []string{"ERR:OPEN_FILE_FAILED"}
	}

	lines := []string{fmt.Sprintf("FILE:%s,%d", path.Clean("/"+p), len(data))}
	for off := 0; off < len(data); off += ChunkSize {
		s.feed()
		end := off + ChunkSize
		if end > len(data) {
			end = len(data)
		}
		lines = append(lines, string(data[off:end]))
	}
	return append(lines, "END:FILE")
}

func (s *Store) writeWithRetry(p string, data []byte, flags int, okTag, errTag string) []string {
	if !s.HasSpace(int64(len(data))) {
		return []string{"ERR:SD_FULL"}
	}
	real, err := s.resolve(p)
	if err != nil {
		return []string{"ERR:OPEN_FILE_FAILED"}
	}

	for attempt := 1; attempt <= writeRetries; attempt++ {
		s.feed()
		f, err := os.OpenFile(real, flags, 0o644)
		if err != nil {
			return []string{"ERR:OPEN_FILE_FAILED"}
		}
		n, err := f.Write(data)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err == nil {
			return []string{fmt.Sprintf("OK:%s:%dB", okTag, n)}
		}
		s.log.Warn(context.Background(), "write attempt failed",
			logging.String("path", p), logging.Int("attempt", attempt),
			logging.Any("error", err))
		time.Sleep(writeRetryWait)
	}
	return []string{"ERR:" + errTag}
}

// Put writes a file and reports failure as an error instead of downlink
// lines. Bulk transfers commit through this path.
func (s *Store) Put(p string, data []byte) error {
	real, err := s.resolve(p)
	if err != nil {
		return err
	}
	s.feed()
	return os.WriteFile(real, data, 0o644)
}

// Write replaces a file's contents, retrying transient failures.
func (s *Store) Write(p string, data []byte) []string {
	return s.writeWithRetry(p, data, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, "WRITTEN", "WRITE_FAILED")
}

// Append appends to a file, creating it if absent.
func (s *Store) Append(p string, data []byte) []string {
	return s.writeWithRetry(p, data, os.O_WRONLY|os.O_CREATE|os.O_APPEND, "APPENDED", "APPEND_FAILED")
}

// Mkdir creates a directory.
func (s *Store) Mkdir(p string) []string {
	real, err := s.resolve(p)
	if err != nil {
		return []string{"ERR:MKDIR_FAILED"}
	}
	if err := os.Mkdir(real, 0o755); err != nil {
		return []string{"ERR:MKDIR_FAILED"}
	}
	return []string{"OK:DIR_CREATED:" + path.Clean("/"+p)}
}

// Rmdir removes an empty directory.
func (s *Store) Rmdir(p string) []string {
	real, err := s.resolve(p)
	if err != nil {
		return []string{"ERR:RMDIR_FAILED"}
	}
	if err := os.Remove(real); err != nil {
		return []string{"ERR:RMDIR_FAILED"}
	}
	return []string{"OK:DIR_REMOVED"}
}

// Rename moves a file within the sandbox.
func (s *Store) Rename(from, to string) []string {
	src, err := s.resolve(from)
	if err != nil {
		return []string{"ERR:RENAME_FAILED"}
	}
	dst, err := s.resolve(to)
	if err != nil {
		return []string{"ERR:RENAME_FAILED"}
	}
	if err := os.Rename(src, dst); err != nil {
		return []string{"ERR:RENAME_FAILED"}
	}
	return []string{"OK:RENAMED"}
}

// Delete removes a file.
func (s *Store) Delete(p string) []string {
	real, err := s.resolve(p)
	if err != nil {
		return []string{"ERR:DELETE_FAILED"}
	}
	if err := os.Remove(real); err != nil {
		return []string{"ERR:DELETE_FAILED"}
	}
	return []string{"OK:DELETED"}
}
