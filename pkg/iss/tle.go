package iss

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/morphism/sgp4go"
)

// WGS84
const (
	semiMajorKm = 6378.137
	ecc2        = 6.69437999014e-3
)

// TLE propagates a two line element set with SGP4, so no network is needed.
type TLE struct {
	mu  sync.Mutex
	tle *sgp4go.TLE
}

func NewTLE(line1, line2 string) (*TLE, error) {
	if err := checkLine(line1, '1'); err != nil {
		return nil, err
	}
	if err := checkLine(line2, '2'); err != nil {
		return nil, err
	}

	t, err := sgp4go.NewTLE(line1, line2)
	if err != nil {
		return nil, fmt.Errorf("invalid tle: %w", err)
	}
	return &TLE{tle: t}, nil
}

// checkLine verifies the line number, the length and the modulo 10 checksum
// in column 69. sgp4go parses without any checks.
func checkLine(l string, num byte) error {
	if len(l) != 69 || l[0] != num || l[1] != ' ' {
		return fmt.Errorf("invalid tle line %c: %q", num, l)
	}

	sum := 0
	for i := 0; i < 68; i++ {
		switch c := l[i]; {
		case c >= '0' && c <= '9':
			sum += int(c - '0')
		case c == '-':
			sum++
		}
	}

	if want := int(l[68] - '0'); sum%10 != want {
		return fmt.Errorf("tle line %c: checksum mismatch", num)
	}

	return nil
}

// LoadTLE reads a TLE file. An optional name line before the element lines
// is ignored.
func LoadTLE(path string) (*TLE, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var line1, line2 string

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		l := strings.TrimRight(sc.Text(), " \r")
		switch {
		case strings.HasPrefix(l, "1 "):
			line1 = l
		case strings.HasPrefix(l, "2 "):
			line2 = l
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if line1 == "" || line2 == "" {
		return nil, fmt.Errorf("no element lines in %s", path)
	}

	return NewTLE(line1, line2)
}

// Catalog is the NORAD catalog number of the element set.
func (t *TLE) Catalog() int {
	return t.tle.NoradCatNum()
}

// Altitude returns the height above the WGS84 ellipsoid at time ts.
func (t *TLE) Altitude(ctx context.Context, ts time.Time) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	e, err := t.tle.Prop(ts)
	t.mu.Unlock()

	if err != nil {
		if sgp4go.HasDecayed(err) {
			return 0, fmt.Errorf("propagation to %s: orbit decayed: %w", ts.UTC().Format(time.RFC3339), err)
		}
		return 0, fmt.Errorf("propagation to %s: %w", ts.UTC().Format(time.RFC3339), err)
	}

	return geodeticHeight(e.ECI.X, e.ECI.Y, e.ECI.Z) * 1000, nil
}

// geodeticHeight returns the ellipsoidal height, in km, of a position given
// in km. Earth rotation does not change the height, so TEME works as is.
func geodeticHeight(x, y, z float64) float64 {
	p := math.Hypot(x, y)

	if p < 1e-9 {
		return math.Abs(z) - semiMajorKm*math.Sqrt(1-ecc2)
	}

	lat := math.Atan2(z, p*(1-ecc2))
	var h float64

	for i := 0; i < 6; i++ {
		s := math.Sin(lat)
		n := semiMajorKm / math.Sqrt(1-ecc2*s*s)
		h = p/math.Cos(lat) - n
		lat = math.Atan2(z, p*(1-ecc2*n/(n+h)))
	}

	return h
}
