package geometry

import (
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// EarthRadiusMeters is the mean earth radius.
const EarthRadiusMeters = 6371e3

// GSD returns the ground width and height covered by a frame taken straight
// down from altitudeM meters with a pinhole camera. Sensor and focal length
// share a unit.
func GSD(sensorWidth, sensorHeight, focalLength, altitudeM float64) (float64, float64) {
	return sensorWidth * altitudeM / focalLength, sensorHeight * altitudeM / focalLength
}

// AngleOfView returns the full angle, in degrees, subtended by a sensor
// dimension behind a lens of the given focal length.
func AngleOfView(sensor, focalLength float64) float64 {
	return 2 * math.Atan(sensor/(2*focalLength)) * 180 / math.Pi
}

// SphericalGSD is GSD on a spherical earth: the arc length between the
// points where the edge rays of the horizontal and vertical angles of view
// hit the surface.
func SphericalGSD(horizontalAOV, verticalAOV, altitudeM float64) (float64, float64) {
	return arc(horizontalAOV, altitudeM), arc(verticalAOV, altitudeM)
}

func arc(aovDeg, altitudeM float64) float64 {
	half := aovDeg * math.Pi / 360
	d := EarthRadiusMeters + altitudeM

	// slant range to the surface along the edge ray
	b := -2 * d * math.Cos(half)
	c := d*d - EarthRadiusMeters*EarthRadiusMeters
	disc := b*b - 4*c
	if disc < 0 {
		return math.NaN()
	}
	x := (-b - math.Sqrt(disc)) / 2

	return 2 * math.Asin(x*math.Sin(half)/EarthRadiusMeters) * EarthRadiusMeters
}

// Destination moves distance meters from p along bearing degrees (0 = north).
func Destination(p s2.LatLng, bearing, distance float64) s2.LatLng {
	brg := bearing * math.Pi / 180
	ang := distance / EarthRadiusMeters

	lat := p.Lat.Radians()
	lng := p.Lng.Radians()

	lat2 := math.Asin(math.Sin(lat)*math.Cos(ang) + math.Cos(lat)*math.Sin(ang)*math.Cos(brg))
	lng2 := lng + math.Atan2(math.Sin(brg)*math.Sin(ang)*math.Cos(lat), math.Cos(ang)-math.Sin(lat)*math.Sin(lat2))

	return s2.LatLng{Lat: s1.Angle(lat2), Lng: s1.Angle(lng2)}.Normalized()
}

// Footprint is the north-up rectangle of widthM x heightM meters centered on
// (lat, lon), as a closed ring: top-left, top-right, bottom-right,
// bottom-left.
func Footprint(lat, lon, widthM, heightM float64) orb.Polygon {
	c := s2.LatLngFromDegrees(lat, lon)

	half := math.Hypot(widthM, heightM) / 2
	diag := math.Atan2(widthM, heightM) * 180 / math.Pi

	corner := func(bearing float64) orb.Point {
		p := Destination(c, bearing, half)
		return orb.Point{p.Lng.Degrees(), p.Lat.Degrees()}
	}

	tl := corner(360 - diag)
	ring := orb.Ring{tl, corner(diag), corner(180 - diag), corner(180 + diag), tl}

	return orb.Polygon{ring}
}
