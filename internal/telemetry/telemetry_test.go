package telemetry

import (
	"strings"
	"testing"
	"time"
)

func TestBuilderTruncatesAtCapacity(t *testing.T) {
	b := NewBuilder(10)

	b.WriteString("0123456789")
	if b.Truncated() {
		t.Fatal("flagged truncation at exactly capacity")
	}
	b.WriteString("overflow")
	if !b.Truncated() {
		t.Fatal("overflow not flagged")
	}
	if got := b.String(); got != "0123456789" {
		t.Fatalf("String = %q, want the first 10 bytes only", got)
	}
}

func TestBuilderPartialWriteKeepsPrefix(t *testing.T) {
	b := NewBuilder(5)
	b.WriteString("abc")
	b.WriteString("defgh")

	if got := b.String(); got != "abcde" {
		t.Fatalf("String = %q, want abcde", got)
	}
	if !b.Truncated() {
		t.Fatal("truncation not flagged")
	}
}

func TestBuilderResetRetainsCapacity(t *testing.T) {
	b := NewBuilder(8)
	b.WriteString("12345678")
	b.WriteString("x")
	b.Reset()

	if b.Len() != 0 || b.Truncated() {
		t.Fatalf("reset left len=%d truncated=%v", b.Len(), b.Truncated())
	}
	b.WriteString("fresh")
	if got := b.String(); got != "fresh" {
		t.Fatalf("String after reset = %q", got)
	}
}

func TestFrameFormat(t *testing.T) {
	f := NewFormatter()

	snap := Snapshot{
		BatteryVolts:   3.87,
		TempC:          12.34,
		Lux:            512.0,
		IMUOK:          true,
		SDOK:           true,
		RFOK:           true,
		StorageFreePct: 87,
	}
	got := f.Frame(3*time.Minute+5*time.Second, snap, 4)
	want := "T+00:03:05|IMU:OK,SD:OK,RF:OK|BAT:3.87V|TEMP:12.3C|LUX:512.0|SD:87%|SEU:4"
	if got != want {
		t.Fatalf("Frame = %q, want %q", got, want)
	}
}

func TestFrameOmitsStorageWhenUnavailable(t *testing.T) {
	f := NewFormatter()

	snap := Snapshot{BatteryVolts: -1, TempC: 0, Lux: 0, StorageFreePct: -1}
	got := f.Frame(0, snap, 0)
	if strings.Contains(got, "|SD:") && strings.Contains(got, "%") {
		t.Fatalf("Frame %q reports storage while unavailable", got)
	}
	if !strings.Contains(got, "SD:FAIL") {
		t.Fatalf("Frame %q missing the SD health flag", got)
	}
	if !strings.Contains(got, "BAT:-1.00V") {
		t.Fatalf("Frame %q does not surface the failed battery reading", got)
	}
}

func TestFormatterReuseDoesNotLeakPriorFrame(t *testing.T) {
	f := NewFormatter()

	first := f.Frame(time.Hour, Snapshot{BatteryVolts: 4.2, StorageFreePct: -1}, 1)
	second := f.Frame(time.Second, Snapshot{BatteryVolts: 3.1, StorageFreePct: -1}, 2)

	if strings.Contains(second, "4.2") {
		t.Fatalf("second frame %q contains data from the first", second)
	}
	if first == second {
		t.Fatal("frames identical despite different inputs")
	}
	if !strings.HasPrefix(first, "T+01:00:00|") {
		t.Fatalf("first frame %q has wrong timestamp", first)
	}
}
