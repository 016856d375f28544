package telemetry

import (
	"time"

	"github.com/edsonpavoni/orbitalTemple/internal/beacon"
)

// MaxFrameLen bounds a telemetry frame. Matches the radio packet budget.
const MaxFrameLen = 256

// Snapshot is one set of sensor readings. Negative analogue values mean the
// reading failed; health flags report subsystem self-test results.
type Snapshot struct {
	BatteryVolts float64
	TempC        float64
	Lux          float64

	IMUOK bool
	SDOK  bool
	RFOK  bool

	// StorageFreePct is the free space of the payload store, or -1 when
	// the store is unavailable.
	StorageFreePct int
}

// Source supplies fresh sensor readings on demand.
type Source interface {
	Read() Snapshot
}

// Formatter renders telemetry frames into a reused bounded buffer. Single
// caller, not safe for concurrent use.
type Formatter struct {
	b *Builder
}

// NewFormatter builds a formatter with the standard frame budget.
func NewFormatter() *Formatter {
	return &Formatter{b: NewBuilder(MaxFrameLen)}
}

func status(ok bool) string {
	if ok {
		return "OK"
	}
	return "FAIL"
}

// Frame renders one status line:
//
//	T+HH:MM:SS|IMU:OK,SD:OK,RF:OK|BAT:3.87V|TEMP:12.3C|LUX:512.0|SD:87%|SEU:4
//
// The SD field is omitted when the store is unavailable.
func (f *Formatter) Frame(elapsed time.Duration, snap Snapshot, seuTotal uint64) string {
	b := f.b
	b.Reset()

	b.WriteString(beacon.FormatElapsed(elapsed))
	b.WriteString("|IMU:")
	b.WriteString(status(snap.IMUOK))
	b.WriteString(",SD:")
	b.WriteString(status(snap.SDOK))
	b.WriteString(",RF:")
	b.WriteString(status(snap.RFOK))
	b.WriteString("|BAT:")
	b.WriteFloat(snap.BatteryVolts, 2)
	b.WriteString("V|TEMP:")
	b.WriteFloat(snap.TempC, 1)
	b.WriteString("C|LUX:")
	b.WriteFloat(snap.Lux, 1)
	if snap.SDOK && snap.StorageFreePct >= 0 {
		b.WriteString("|SD:")
		b.WriteInt(int64(snap.StorageFreePct))
		b.WriteString("%")
	}
	b.WriteString("|SEU:")
	b.WriteInt(int64(seuTotal))

	return b.String()
}
