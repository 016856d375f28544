// Package groundtrack predicts when the satellite is visible from the ground
// station, so operators know when commanding and image uplink are possible.
// Orbits are propagated with SGP4 from a two-line element set.
package groundtrack

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// earthRadiusKm is the spherical-Earth approximation used for the observer
// position. Elevation angles a degree or two off do not matter for a LoRa
// link with a wide-beam antenna.
const earthRadiusKm = 6371.0

// Observer is the ground-station location.
type Observer struct {
	LatDeg float64
	LonDeg float64
	AltKm  float64
}

// Pass is one visibility window above the minimum elevation.
type Pass struct {
	AOS             time.Time
	LOS             time.Time
	MaxElevationDeg float64
	MaxAt           time.Time
}

func (p Pass) String() string {
	return fmt.Sprintf("AOS %s  LOS %s  max %.1f° at %s",
		p.AOS.Format(time.RFC3339), p.LOS.Format(time.RFC3339),
		p.MaxElevationDeg, p.MaxAt.Format("15:04:05"))
}

// Predictor propagates one satellite over one observer.
type Predictor struct {
	sat satellite.Satellite
	obs Observer

	// MinElevationDeg is the visibility threshold for pass detection.
	MinElevationDeg float64
}

// NewPredictor parses the TLE and fixes the observer.
func NewPredictor(tle1, tle2 string, obs Observer) *Predictor {
	return &Predictor{
		sat:             satellite.TLEToSat(tle1, tle2, satellite.GravityWGS72),
		obs:             obs,
		MinElevationDeg: 10.0,
	}
}

// ecef returns the observer position in ECEF kilometres.
func (p *Predictor) ecef() (x, y, z float64) {
	lat := p.obs.LatDeg * math.Pi / 180
	lon := p.obs.LonDeg * math.Pi / 180
	r := earthRadiusKm + p.obs.AltKm
	return r * math.Cos(lat) * math.Cos(lon),
		r * math.Cos(lat) * math.Sin(lon),
		r * math.Sin(lat)
}

// ElevationAt returns the satellite elevation in degrees at t, negative when
// below the horizon.
func (p *Predictor) ElevationAt(t time.Time) float64 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(p.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	ox, oy, oz := p.ecef()
	rx, ry, rz := posECEF.X-ox, posECEF.Y-oy, posECEF.Z-oz

	rho := math.Sqrt(rx*rx + ry*ry + rz*rz)
	up := math.Sqrt(ox*ox + oy*oy + oz*oz)
	if rho == 0 || up == 0 {
		return -90
	}
	sinEl := (rx*ox + ry*oy + rz*oz) / (rho * up)
	return math.Asin(sinEl) * 180 / math.Pi
}

// Passes scans [start, start+window] at the given step and returns every
// visibility window. A pass still open at the end of the window is reported
// with LOS clamped to the window edge.
func (p *Predictor) Passes(start time.Time, window, step time.Duration) []Pass {
	if step <= 0 {
		step = 30 * time.Second
	}
	var passes []Pass
	var current *Pass

	end := start.Add(window)
	for t := start; !t.After(end); t = t.Add(step) {
		el := p.ElevationAt(t)
		visible := el >= p.MinElevationDeg

		switch {
		case visible && current == nil:
			current = &Pass{AOS: t, MaxElevationDeg: el, MaxAt: t}
		case visible:
			if el > current.MaxElevationDeg {
				current.MaxElevationDeg = el
				current.MaxAt = t
			}
		case current != nil:
			current.LOS = t
			passes = append(passes, *current)
			current = nil
		}
	}
	if current != nil {
		current.LOS = end
		passes = append(passes, *current)
	}
	return passes
}
