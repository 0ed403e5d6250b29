package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/project-spencer/orbit/pkg/model"
	"github.com/rwcarlsen/goexif/exif"
)

// ErrNoMetadata wraps any failure to find EXIF data in a file.
var ErrNoMetadata = errors.New("no exif metadata")

// Decode extracts GPS position and DateTimeOriginal. Missing tags leave the
// corresponding Has* flag unset. The camera clock is UTC.
func Decode(r io.Reader) (model.Metadata, error) {
	x, err := exif.Decode(r)

	if err != nil {
		return model.Metadata{}, fmt.Errorf("%w: %w", ErrNoMetadata, err)
	}

	var m model.Metadata

	// LatLong applies GPSLatitudeRef / GPSLongitudeRef
	if lat, lon, err := x.LatLong(); err == nil {
		m.Lat, m.Lon, m.HasGPS = lat, lon, true
	}

	if t, err := x.DateTime(); err == nil {
		m.Time, m.HasTime = wallClockUTC(t), true
	}

	return m, nil
}

func Read(path string) (model.Metadata, error) {
	f, err := os.Open(path)

	if err != nil {
		return model.Metadata{}, err
	}
	defer f.Close()

	return Decode(f)
}

// wallClockUTC keeps the wall clock of t and drops its zone. DateTimeOriginal
// carries no offset, so goexif returns it in time.Local.
func wallClockUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}
