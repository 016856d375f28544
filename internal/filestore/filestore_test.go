package filestore

import (
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Root: t.TempDir()}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	got := s.Write("/names.txt", []byte("John Doe\n"))
	if len(got) != 1 || got[0] != "OK:WRITTEN:9B" {
		t.Fatalf("Write = %v", got)
	}

	lines := s.Read("/names.txt")
	if lines[0] != "FILE:/names.txt,9" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[len(lines)-1] != "END:FILE" {
		t.Fatalf("trailer = %q", lines[len(lines)-1])
	}
	if body := strings.Join(lines[1:len(lines)-1], ""); body != "John Doe\n" {
		t.Fatalf("body = %q", body)
	}
}

func TestReadChunksAtBoundary(t *testing.T) {
	s := newTestStore(t)

	data := strings.Repeat("x", ChunkSize*2+50)
	s.Write("/big.bin", []byte(data))

	lines := s.Read("/big.bin")
	// Header, three chunks, trailer.
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	if len(lines[1]) != ChunkSize || len(lines[2]) != ChunkSize || len(lines[3]) != 50 {
		t.Fatalf("chunk sizes = %d,%d,%d", len(lines[1]), len(lines[2]), len(lines[3]))
	}
}

func TestReadMissingFile(t *testing.T) {
	s := newTestStore(t)
	got := s.Read("/absent.txt")
	if len(got) != 1 || got[0] != "ERR:OPEN_FILE_FAILED" {
		t.Fatalf("Read = %v", got)
	}
}

func TestAppendAccumulates(t *testing.T) {
	s := newTestStore(t)

	s.Write("/log.txt", []byte("a"))
	got := s.Append("/log.txt", []byte("bc"))
	if got[0] != "OK:APPENDED:2B" {
		t.Fatalf("Append = %v", got)
	}

	lines := s.Read("/log.txt")
	if body := strings.Join(lines[1:len(lines)-1], ""); body != "abc" {
		t.Fatalf("body = %q", body)
	}
}

func TestListDirectory(t *testing.T) {
	s := newTestStore(t)
	s.Mkdir("/sub")
	s.Write("/a.txt", []byte("12345"))

	lines := s.List("/")
	if lines[0] != "DIR:/" || lines[len(lines)-1] != "END:DIR" {
		t.Fatalf("framing = %v", lines)
	}
	var sawFile, sawDir bool
	for _, l := range lines[1 : len(lines)-1] {
		switch l {
		case "F:a.txt,5":
			sawFile = true
		case "D:sub":
			sawDir = true
		}
	}
	if !sawFile || !sawDir {
		t.Fatalf("listing missing entries: %v", lines)
	}
}

func TestListOnFileFails(t *testing.T) {
	s := newTestStore(t)
	s.Write("/f.txt", []byte("x"))

	got := s.List("/f.txt")
	if len(got) != 1 || got[0] != "ERR:NOT_A_DIRECTORY" {
		t.Fatalf("List = %v", got)
	}
}

func TestTraversalRejectedDefensively(t *testing.T) {
	s := newTestStore(t)

	if got := s.Read("/../etc/passwd"); got[0] != "ERR:OPEN_FILE_FAILED" {
		t.Fatalf("Read traversal = %v", got)
	}
	if got := s.Write("../evil", []byte("x")); got[0] != "ERR:OPEN_FILE_FAILED" {
		t.Fatalf("Write traversal = %v", got)
	}
	if got := s.Delete(".."); got[0] != "ERR:DELETE_FAILED" {
		t.Fatalf("Delete traversal = %v", got)
	}
}

func TestRenameAndDelete(t *testing.T) {
	s := newTestStore(t)
	s.Write("/old.txt", []byte("data"))

	if got := s.Rename("/old.txt", "/new.txt"); got[0] != "OK:RENAMED" {
		t.Fatalf("Rename = %v", got)
	}
	if got := s.Read("/new.txt"); got[0] != "FILE:/new.txt,4" {
		t.Fatalf("Read renamed = %v", got)
	}
	if got := s.Delete("/new.txt"); got[0] != "OK:DELETED" {
		t.Fatalf("Delete = %v", got)
	}
	if got := s.Read("/new.txt"); got[0] != "ERR:OPEN_FILE_FAILED" {
		t.Fatalf("Read deleted = %v", got)
	}
}

func TestMkdirRmdir(t *testing.T) {
	s := newTestStore(t)

	if got := s.Mkdir("/data"); got[0] != "OK:DIR_CREATED:/data" {
		t.Fatalf("Mkdir = %v", got)
	}
	if got := s.Mkdir("/data"); got[0] != "ERR:MKDIR_FAILED" {
		t.Fatalf("second Mkdir = %v", got)
	}
	if got := s.Rmdir("/data"); got[0] != "OK:DIR_REMOVED" {
		t.Fatalf("Rmdir = %v", got)
	}
}

func TestQuotaEnforced(t *testing.T) {
	s, err := New(Config{Root: t.TempDir(), QuotaBytes: 100, MinFreeBytes: 10}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := s.Write("/a", make([]byte, 50)); got[0] != "OK:WRITTEN:50B" {
		t.Fatalf("first write = %v", got)
	}
	if !s.HasSpace(30) {
		t.Fatal("HasSpace(30) = false with 40 usable bytes left")
	}
	if got := s.Write("/b", make([]byte, 60)); got[0] != "ERR:SD_FULL" {
		t.Fatalf("over-quota write = %v", got)
	}

	free := s.FreePercent()
	if free != 50 {
		t.Fatalf("FreePercent = %d, want 50", free)
	}
}

func TestFreePercentWithoutQuota(t *testing.T) {
	s := newTestStore(t)
	if got := s.FreePercent(); got != -1 {
		t.Fatalf("FreePercent = %d, want -1", got)
	}
}
