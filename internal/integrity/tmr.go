package integrity

import "errors"

// ErrCatastrophic is returned when all three copies of a TMR cell disagree.
// Majority voting cannot resolve this; the only safe response is a best-effort
// state save followed by a full restart. Callers must not pick a copy and
// continue.
var ErrCatastrophic = errors.New("integrity: all three TMR copies disagree")

// TMR is a triple-modular-redundancy cell: one logical value stored three
// times, read back by 2-of-3 majority vote. A single-copy upset is detected
// and corrected; two copies corrupted to the same wrong value is an accepted
// residual risk that voting cannot see.
type TMR[T comparable] struct {
	a, b, c T
}

// NewTMR returns a cell with all three copies set to v.
func NewTMR[T comparable](v T) TMR[T] {
	return TMR[T]{a: v, b: v, c: v}
}

// Write sets all three copies to v.
func (t *TMR[T]) Write(v T) {
	t.a, t.b, t.c = v, v, v
}

// Read returns the majority value. If no two copies agree it returns
// ErrCatastrophic and the zero value.
func (t *TMR[T]) Read() (T, error) {
	if t.a == t.b || t.a == t.c {
		return t.a, nil
	}
	if t.b == t.c {
		return t.b, nil
	}
	var zero T
	return zero, ErrCatastrophic
}

// Scrub rewrites any copy that disagrees with the majority and reports
// whether a correction was made. A three-way disagreement is surfaced the
// same way Read surfaces it.
func (t *TMR[T]) Scrub() (corrected bool, err error) {
	v, err := t.Read()
	if err != nil {
		return false, err
	}
	if t.a != v {
		t.a = v
		corrected = true
	}
	if t.b != v {
		t.b = v
		corrected = true
	}
	if t.c != v {
		t.c = v
		corrected = true
	}
	return corrected, nil
}

// InjectFault overwrites a single copy (0, 1, or 2) without touching the
// others. It exists for fault-injection tests; flight code never calls it.
func (t *TMR[T]) InjectFault(copy int, v T) {
	switch copy {
	case 0:
		t.a = v
	case 1:
		t.b = v
	case 2:
		t.c = v
	}
}
