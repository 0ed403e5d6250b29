package geometry

import (
	"math"
	"testing"

	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const metersPerDegree = EarthRadiusMeters * math.Pi / 180

func distance(a, b orb.Point) float64 {
	pa := s2.LatLngFromDegrees(a.Lat(), a.Lon())
	pb := s2.LatLngFromDegrees(b.Lat(), b.Lon())
	return pa.Distance(pb).Radians() * EarthRadiusMeters
}

func TestGSD(t *testing.T) {
	w, h := GSD(2, 1, 4, 1000)
	assert.Equal(t, 500.0, w)
	assert.Equal(t, 250.0, h)
}

func TestAngleOfView(t *testing.T) {
	assert.InDelta(t, 90, AngleOfView(2, 1), 1e-9)
}

func TestSphericalGSD_CloseToFlatForNarrowLens(t *testing.T) {
	alt := 400e3
	w, h := SphericalGSD(1, 0.5, alt)

	flatW := 2 * alt * math.Tan(0.5*math.Pi/180)
	flatH := 2 * alt * math.Tan(0.25*math.Pi/180)

	assert.InEpsilon(t, flatW, w, 0.01)
	assert.InEpsilon(t, flatH, h, 0.01)
	assert.Greater(t, w, flatW)
}

func TestDestination(t *testing.T) {
	p := Destination(s2.LatLngFromDegrees(0, 0), 0, metersPerDegree)
	assert.InDelta(t, 1, p.Lat.Degrees(), 1e-9)
	assert.InDelta(t, 0, p.Lng.Degrees(), 1e-9)

	p = Destination(s2.LatLngFromDegrees(0, 0), 90, metersPerDegree)
	assert.InDelta(t, 0, p.Lat.Degrees(), 1e-9)
	assert.InDelta(t, 1, p.Lng.Degrees(), 1e-9)
}

func TestFootprint(t *testing.T) {
	poly := Footprint(0, 10, 20e3, 10e3)

	require.Len(t, poly, 1)
	ring := poly[0]
	require.Len(t, ring, 5)
	assert.True(t, ring.Closed())

	tl, tr, br, bl := ring[0], ring[1], ring[2], ring[3]

	assert.Less(t, tl.Lon(), tr.Lon())
	assert.Greater(t, tl.Lat(), bl.Lat())
	assert.Greater(t, tr.Lat(), br.Lat())

	assert.InEpsilon(t, 20e3, distance(tl, tr), 0.01)
	assert.InEpsilon(t, 10e3, distance(tl, bl), 0.01)

	center := orb.Point{10, 0}
	assert.InEpsilon(t, math.Hypot(20e3, 10e3)/2, distance(center, br), 1e-6)
}
