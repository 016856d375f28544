// Package telemetry builds the periodic downlink status frames. Frames are
// assembled in a fixed-capacity buffer that is reused between emissions;
// a long-running flight process must not grow its heap with every status
// line it formats.
package telemetry

import (
	"fmt"
	"strconv"
)

// Builder is a bounded string assembler. Writes past the capacity are
// discarded and flagged rather than grown; the caller decides whether a
// truncated frame is still worth sending.
type Builder struct {
	buf       []byte
	truncated bool
}

// NewBuilder allocates a builder holding up to capacity bytes.
func NewBuilder(capacity int) *Builder {
	return &Builder{buf: make([]byte, 0, capacity)}
}

// Reset empties the builder for reuse. Capacity is retained.
func (b *Builder) Reset() {
	b.buf = b.buf[:0]
	b.truncated = false
}

func (b *Builder) room() int { return cap(b.buf) - len(b.buf) }

// WriteString appends s, truncating at capacity.
func (b *Builder) WriteString(s string) {
	if len(s) > b.room() {
		s = s[:b.room()]
		b.truncated = true
	}
	b.buf = append(b.buf, s...)
}

// WriteFloat appends f with the given number of decimals.
func (b *Builder) WriteFloat(f float64, decimals int) {
	b.WriteString(strconv.FormatFloat(f, 'f', decimals, 64))
}

// WriteInt appends n in decimal.
func (b *Builder) WriteInt(n int64) {
	b.WriteString(strconv.FormatInt(n, 10))
}

// Writef appends a formatted string.
func (b *Builder) Writef(format string, args ...any) {
	b.WriteString(fmt.Sprintf(format, args...))
}

// Truncated reports whether any write was cut short.
func (b *Builder) Truncated() bool { return b.truncated }

// Len returns the assembled length.
func (b *Builder) Len() int { return len(b.buf) }

// String returns the assembled frame. The returned string is a copy and
// stays valid across Reset.
func (b *Builder) String() string { return string(b.buf) }
