package transfer

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"
)

type memSink struct {
	files  map[string][]byte
	full   bool
	putErr error
}

func newMemSink() *memSink {
	return &memSink{files: make(map[string][]byte)}
}

func (s *memSink) HasSpace(n int64) bool { return !s.full }

func (s *memSink) Put(path string, data []byte) error {
	if s.putErr != nil {
		return s.putErr
	}
	s.files[path] = data
	return nil
}

func enc(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestUploadRoundTrip(t *testing.T) {
	sink := newMemSink()
	m := NewManager(DefaultConfig(), sink, nil)
	now := time.Unix(0, 0)

	if got := m.Start(now, "/photo.jpg", 3, 9); got[0] != "OK:IMG_START:3" {
		t.Fatalf("Start = %v", got)
	}
	if got := m.Chunk(now, 0, enc("aaa")); got[0] != "OK:IMG_CHUNK:0/3" {
		t.Fatalf("chunk 0 = %v", got)
	}
	// Out of order is fine; chunks are indexed, not appended.
	if got := m.Chunk(now, 2, enc("ccc")); got[0] != "OK:IMG_CHUNK:2/3" {
		t.Fatalf("chunk 2 = %v", got)
	}
	if got := m.Chunk(now, 1, enc("bbb")); got[0] != "OK:IMG_CHUNK:1/3" {
		t.Fatalf("chunk 1 = %v", got)
	}

	if got := m.End(); got[0] != "OK:IMG_COMPLETE:/photo.jpg:9B" {
		t.Fatalf("End = %v", got)
	}
	if string(sink.files["/photo.jpg"]) != "aaabbbccc" {
		t.Fatalf("committed data = %q", sink.files["/photo.jpg"])
	}
	if m.Status() != "IMG:COMPLETE" {
		t.Fatalf("Status = %q", m.Status())
	}
}

func TestDuplicateChunkAcknowledged(t *testing.T) {
	m := NewManager(DefaultConfig(), newMemSink(), nil)
	now := time.Unix(0, 0)
	m.Start(now, "/f", 2, 6)
	m.Chunk(now, 0, enc("abc"))

	if got := m.Chunk(now, 0, enc("abc")); got[0] != "OK:IMG_DUP:0" {
		t.Fatalf("duplicate = %v", got)
	}
	if m.Status() != "IMG:RX:1/2" {
		t.Fatalf("Status = %q, duplicate must not count", m.Status())
	}
}

func TestEndReportsMissingChunks(t *testing.T) {
	m := NewManager(DefaultConfig(), newMemSink(), nil)
	now := time.Unix(0, 0)
	m.Start(now, "/f", 4, 12)
	m.Chunk(now, 1, enc("abc"))

	got := m.End()
	if got[0] != "ERR:IMG_MISSING:0,2,3" {
		t.Fatalf("End = %v", got)
	}
	// Session stays open for retransmission.
	if m.State() != Receiving {
		t.Fatalf("state = %v after missing report", m.State())
	}
}

func TestStartValidation(t *testing.T) {
	sink := newMemSink()
	m := NewManager(DefaultConfig(), sink, nil)
	now := time.Unix(0, 0)

	if got := m.Start(now, "/f", 0, 10); got[0] != "ERR:IMG_INVALID_CHUNKS" {
		t.Fatalf("zero chunks = %v", got)
	}
	if got := m.Start(now, "/f", 1000, 10); got[0] != "ERR:IMG_INVALID_CHUNKS" {
		t.Fatalf("too many chunks = %v", got)
	}
	if got := m.Start(now, "/f", 1, 200*1024); got[0] != "ERR:IMG_TOO_LARGE" {
		t.Fatalf("oversize = %v", got)
	}

	sink.full = true
	if got := m.Start(now, "/f", 1, 10); got[0] != "ERR:SD_FULL" {
		t.Fatalf("full sink = %v", got)
	}
	sink.full = false

	m.Start(now, "/f", 1, 10)
	if got := m.Start(now, "/g", 1, 10); got[0] != "ERR:IMG_BUSY" {
		t.Fatalf("concurrent start = %v", got)
	}
}

func TestChunkValidation(t *testing.T) {
	m := NewManager(DefaultConfig(), newMemSink(), nil)
	now := time.Unix(0, 0)

	if got := m.Chunk(now, 0, enc("x")); got[0] != "ERR:IMG_NOT_STARTED" {
		t.Fatalf("chunk before start = %v", got)
	}

	m.Start(now, "/f", 2, 6)
	if got := m.Chunk(now, 5, enc("x")); got[0] != "ERR:IMG_INVALID_CHUNK" {
		t.Fatalf("out-of-range chunk = %v", got)
	}
	if got := m.Chunk(now, 0, "not!base64!"); got[0] != "ERR:IMG_DECODE" {
		t.Fatalf("bad base64 = %v", got)
	}
}

func TestIdleTimeoutCancelsSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IdleTimeout = time.Minute
	m := NewManager(cfg, newMemSink(), nil)
	start := time.Unix(0, 0)

	m.Start(start, "/f", 2, 6)
	m.Chunk(start.Add(10*time.Second), 0, enc("abc"))

	if got := m.CheckTimeout(start.Add(30 * time.Second)); got != nil {
		t.Fatalf("timeout fired early: %v", got)
	}
	got := m.CheckTimeout(start.Add(72 * time.Second))
	if len(got) != 1 || got[0] != "ERR:IMG_TIMEOUT" {
		t.Fatalf("timeout = %v", got)
	}
	if m.State() != Idle {
		t.Fatalf("state = %v after timeout", m.State())
	}
	// A fresh session can start immediately.
	if got := m.Start(start.Add(80*time.Second), "/g", 1, 3); got[0] != "OK:IMG_START:1" {
		t.Fatalf("restart = %v", got)
	}
}

func TestCancel(t *testing.T) {
	m := NewManager(DefaultConfig(), newMemSink(), nil)
	now := time.Unix(0, 0)

	if got := m.Cancel(); got != nil {
		t.Fatalf("idle cancel = %v, want silence", got)
	}
	m.Start(now, "/f", 1, 3)
	if got := m.Cancel(); len(got) != 1 || got[0] != "OK:IMG_CANCELLED" {
		t.Fatalf("Cancel = %v", got)
	}
	if m.Status() != "IMG:IDLE" {
		t.Fatalf("Status = %q", m.Status())
	}
}

func TestCommitFailureMarksError(t *testing.T) {
	sink := newMemSink()
	sink.putErr = errors.New("disk gone")
	m := NewManager(DefaultConfig(), sink, nil)
	now := time.Unix(0, 0)

	m.Start(now, "/f", 1, 3)
	m.Chunk(now, 0, enc("abc"))
	got := m.End()
	if got[0] != "ERR:IMG_WRITE" {
		t.Fatalf("End = %v", got)
	}
	if !strings.HasPrefix(m.Status(), "IMG:ERROR") {
		t.Fatalf("Status = %q", m.Status())
	}
}
