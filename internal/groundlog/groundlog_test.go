package groundlog

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndQueryBeacons(t *testing.T) {
	db := openTestDB(t)
	base := time.Unix(1_700_000_000, 0).UTC()

	for i := 0; i < 3; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		if err := db.RecordBeacon(at, "acquisition", "ORBITAL TEMPLE:SEARCHING|T+00:00:00|B:1|C:NO|V:4.1"); err != nil {
			t.Fatalf("RecordBeacon: %v", err)
		}
	}

	got, err := db.RecentBeacons(2)
	if err != nil {
		t.Fatalf("RecentBeacons: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d beacons, want 2", len(got))
	}
	if !got[0].ReceivedAt.After(got[1].ReceivedAt) {
		t.Fatalf("beacons not newest-first: %v then %v", got[0].ReceivedAt, got[1].ReceivedAt)
	}
	if got[0].Mode != "acquisition" {
		t.Fatalf("mode = %q", got[0].Mode)
	}
}

func TestRecordTelemetryAndExchange(t *testing.T) {
	db := openTestDB(t)
	now := time.Unix(1_700_000_000, 0).UTC()

	if err := db.RecordTelemetry(now, "T+00:01:00|IMU:OK,SD:OK,RF:OK|BAT:4.10V|TEMP:21.5C|LUX:300.0|SEU:0"); err != nil {
		t.Fatalf("RecordTelemetry: %v", err)
	}
	if err := db.RecordExchange(now, "SAT001-Ping&@#0011223344556677", "PONG|T+00:01:00"); err != nil {
		t.Fatalf("RecordExchange: %v", err)
	}

	frames, err := db.RecentTelemetry(10)
	if err != nil {
		t.Fatalf("RecentTelemetry: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
}

func TestOpenIsIdempotentOnSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	db1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db1.RecordBeacon(time.Now().UTC(), "steady", "payload")
	db1.Close()

	db2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()
	got, err := db2.RecentBeacons(10)
	if err != nil {
		t.Fatalf("RecentBeacons: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d beacons after reopen, want 1", len(got))
	}
}
