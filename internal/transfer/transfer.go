// Package transfer receives chunked uploads from the ground station. The
// link is slow and lossy, so payloads arrive as numbered base64 chunks that
// can be retried individually; the assembled file is committed to the
// payload store only when every chunk is accounted for.
package transfer

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/logging"
)

// State is the upload session state.
type State int

const (
	Idle State = iota
	Receiving
	Complete
	Failed
)

// Sink commits a finished upload. The payload file store implements it.
type Sink interface {
	HasSpace(n int64) bool
	Put(path string, data []byte) error
}

// Config bounds an upload session.
type Config struct {
	MaxChunks int
	MaxBytes  int

	// IdleTimeout cancels a session with no chunk activity. The check
	// runs from the mission tick, not a timer.
	IdleTimeout time.Duration
}

// DefaultConfig matches the radio link budget: 200-byte chunks, payloads up
// to 100 KiB.
func DefaultConfig() Config {
	return Config{
		MaxChunks:   512,
		MaxBytes:    100 * 1024,
		IdleTimeout: 2 * time.Minute,
	}
}

// Manager runs at most one upload session at a time. Single caller.
type Manager struct {
	cfg  Config
	sink Sink
	log  logging.Logger

	state     State
	filename  string
	total     int
	chunks    [][]byte
	received  int
	size      int
	lastChunk time.Time
}

// NewManager builds an idle manager.
func NewManager(cfg Config, sink Sink, log logging.Logger) *Manager {
	if log == nil {
		log = logging.Noop()
	}
	return &Manager{cfg: cfg, sink: sink, log: logging.Subsystem(log, "xfer")}
}

func (m *Manager) reset() {
	m.state = Idle
	m.filename = ""
	m.total = 0
	m.chunks = nil
	m.received = 0
	m.size = 0
}

// State returns the session state.
func (m *Manager) State() State { return m.state }

// Start opens a session for filename split into totalChunks chunks of
// expectedSize total bytes.
func (m *Manager) Start(now time.Time, filename string, totalChunks, expectedSize int) []string {
	if m.state == Receiving {
		return []string{"ERR:IMG_BUSY"}
	}
	if totalChunks < 1 || totalChunks > m.cfg.MaxChunks {
		return []string{"ERR:IMG_INVALID_CHUNKS"}
	}
	if expectedSize < 1 || expectedSize > m.cfg.MaxBytes {
		return []string{"ERR:IMG_TOO_LARGE"}
	}
	if !m.sink.HasSpace(int64(expectedSize)) {
		return []string{"ERR:SD_FULL"}
	}

	m.state = Receiving
	m.filename = filename
	m.total = totalChunks
	m.chunks = make([][]byte, totalChunks)
	m.received = 0
	m.size = 0
	m.lastChunk = now

	m.log.Info(context.Background(), "transfer started",
		logging.String("file", filename), logging.Int("chunks", totalChunks))
	return []string{fmt.Sprintf("OK:IMG_START:%d", totalChunks)}
}

// Chunk stores one numbered chunk. Duplicates are acknowledged and skipped
// so ground-side retries are harmless.
func (m *Manager) Chunk(now time.Time, n int, b64 string) []string {
	if m.state != Receiving {
		return []string{"ERR:IMG_NOT_STARTED"}
	}
	if n < 0 || n >= m.total {
		return []string{"ERR:IMG_INVALID_CHUNK"}
	}
	if m.chunks[n] != nil {
		return []string{fmt.Sprintf("OK:IMG_DUP:%d", n)}
	}

	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(data) == 0 {
		return []string{"ERR:IMG_DECODE"}
	}
	if m.size+len(data) > m.cfg.MaxBytes {
		return []string{"ERR:IMG_TOO_LARGE"}
	}

	m.chunks[n] = data
	m.received++
	m.size += len(data)
	m.lastChunk = now
	return []string{fmt.Sprintf("OK:IMG_CHUNK:%d/%d", n, m.total)}
}

// End commits the assembled file. With chunks missing it reports up to the
// first five missing indices so the ground can retransmit exactly those.
func (m *Manager) End() []string {
	if m.state != Receiving {
		return []string{"ERR:IMG_NOT_STARTED"}
	}
	if m.received < m.total {
		var missing []string
		for i := 0; i < m.total && len(missing) < 5; i++ {
			if m.chunks[i] == nil {
				missing = append(missing, fmt.Sprintf("%d", i))
			}
		}
		return []string{"ERR:IMG_MISSING:" + strings.Join(missing, ",")}
	}

	data := make([]byte, 0, m.size)
	for _, c := range m.chunks {
		data = append(data, c...)
	}
	if err := m.sink.Put(m.filename, data); err != nil {
		m.log.Warn(context.Background(), "commit failed", logging.Any("error", err))
		m.state = Failed
		return []string{"ERR:IMG_WRITE"}
	}

	name, size := m.filename, m.size
	m.reset()
	m.state = Complete
	m.log.Info(context.Background(), "transfer complete",
		logging.String("file", name), logging.Int("bytes", size))
	return []string{fmt.Sprintf("OK:IMG_COMPLETE:%s:%dB", name, size)}
}

// Cancel abandons any active session.
func (m *Manager) Cancel() []string {
	active := m.state == Receiving
	m.reset()
	if active {
		return []string{"OK:IMG_CANCELLED"}
	}
	return nil
}

// Status renders the session state for the Status telemetry command.
func (m *Manager) Status() string {
	switch m.state {
	case Receiving:
		return fmt.Sprintf("IMG:RX:%d/%d", m.received, m.total)
	case Complete:
		return "IMG:COMPLETE"
	case Failed:
		return "IMG:ERROR"
	default:
		return "IMG:IDLE"
	}
}

// CheckTimeout cancels a stalled session. Called every tick; returns the
// lines to downlink when the timeout fires.
func (m *Manager) CheckTimeout(now time.Time) []string {
	if m.state != Receiving || m.cfg.IdleTimeout <= 0 {
		return nil
	}
	if now.Sub(m.lastChunk) <= m.cfg.IdleTimeout {
		return nil
	}
	m.log.Warn(context.Background(), "transfer timed out",
		logging.String("file", m.filename))
	m.reset()
	return []string{"ERR:IMG_TIMEOUT"}
}
