package groundtrack

import (
	"testing"
	"time"
)

// ISS elements; any valid LEO TLE exercises the propagation path.
const (
	tle1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	tle2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func testObserver() Observer {
	return Observer{LatDeg: -23.55, LonDeg: -46.63, AltKm: 0.76} // São Paulo
}

func TestElevationIsBounded(t *testing.T) {
	p := NewPredictor(tle1, tle2, testObserver())
	start := time.Date(2021, 10, 3, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 48; i++ {
		at := start.Add(time.Duration(i) * 30 * time.Minute)
		el := p.ElevationAt(at)
		if el < -90 || el > 90 {
			t.Fatalf("elevation at %s = %.2f, out of range", at, el)
		}
	}
}

func TestPassesAreWellFormed(t *testing.T) {
	p := NewPredictor(tle1, tle2, testObserver())
	start := time.Date(2021, 10, 3, 0, 0, 0, 0, time.UTC)

	passes := p.Passes(start, 24*time.Hour, 30*time.Second)
	if len(passes) == 0 {
		t.Fatal("a LEO satellite must pass a mid-latitude station within a day")
	}
	for i, pass := range passes {
		if !pass.AOS.Before(pass.LOS) {
			t.Fatalf("pass %d: AOS %s not before LOS %s", i, pass.AOS, pass.LOS)
		}
		if pass.MaxAt.Before(pass.AOS) || pass.MaxAt.After(pass.LOS) {
			t.Fatalf("pass %d: peak %s outside [%s, %s]", i, pass.MaxAt, pass.AOS, pass.LOS)
		}
		if pass.MaxElevationDeg < p.MinElevationDeg {
			t.Fatalf("pass %d: max elevation %.1f below threshold %.1f",
				i, pass.MaxElevationDeg, p.MinElevationDeg)
		}
		if i > 0 && pass.AOS.Before(passes[i-1].LOS) {
			t.Fatalf("pass %d overlaps previous", i)
		}
	}
}

func TestLowerThresholdSeesMorePasses(t *testing.T) {
	start := time.Date(2021, 10, 3, 0, 0, 0, 0, time.UTC)

	high := NewPredictor(tle1, tle2, testObserver())
	high.MinElevationDeg = 40

	low := NewPredictor(tle1, tle2, testObserver())
	low.MinElevationDeg = 5

	if len(low.Passes(start, 24*time.Hour, 30*time.Second)) < len(high.Passes(start, 24*time.Hour, 30*time.Second)) {
		t.Fatal("lowering the elevation threshold lost passes")
	}
}
