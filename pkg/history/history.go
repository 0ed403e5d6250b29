// Package history reads and writes yearly NDVI snapshots: GeoJSON-shaped
// files whose features carry a region path and the mean NDVI measured there.
package history

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/project-spencer/orbit/pkg/model"
	"github.com/tidwall/gjson"
)

// Snapshot maps region keys to the mean NDVI of one period.
type Snapshot struct {
	Name   string
	Values map[string]float64
}

// Parse reads features[].properties.{path,mean_ndvi}. Other members, the
// geometry included, are ignored.
func Parse(name string, data []byte) (Snapshot, error) {
	if !gjson.ValidBytes(data) {
		return Snapshot{}, fmt.Errorf("%s: invalid json", name)
	}

	features := gjson.GetBytes(data, "features")

	if !features.IsArray() {
		return Snapshot{}, fmt.Errorf("%s: missing features array", name)
	}

	s := Snapshot{Name: name, Values: make(map[string]float64)}

	var err error
	features.ForEach(func(i, f gjson.Result) bool {
		path := f.Get("properties.path")
		ndvi := f.Get("properties.mean_ndvi")

		if path.Type != gjson.String || path.String() == "" {
			err = fmt.Errorf("%s: feature %d has no properties.path", name, i.Int())
			return false
		}

		if ndvi.Type != gjson.Number {
			err = fmt.Errorf("%s: feature %d (%s) has no numeric properties.mean_ndvi", name, i.Int(), path.String())
			return false
		}

		if _, dup := s.Values[path.String()]; dup {
			err = fmt.Errorf("%s: region %s listed twice", name, path.String())
			return false
		}

		s.Values[path.String()] = ndvi.Float()
		return true
	})

	if err != nil {
		return Snapshot{}, err
	}

	return s, nil
}

// Load reads one snapshot file; its name is the file name without extension.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)

	if err != nil {
		return Snapshot{}, err
	}

	return Parse(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), data)
}

// LoadAll keeps the order of paths, which is the chronological order of the
// history.
func LoadAll(paths []string) ([]Snapshot, error) {
	out := make([]Snapshot, 0, len(paths))

	for _, p := range paths {
		s, err := Load(p)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}

	return out, nil
}

// Entry is one region of the current run.
type Entry struct {
	Path     string
	MeanNDVI float64
	Meta     model.Metadata
	// Footprint, when set, replaces the point geometry.
	Footprint orb.Polygon
}

// Build turns entries into a feature collection readable by Parse, sorted
// by path.
func Build(entries []Entry) *geojson.FeatureCollection {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	fc := geojson.NewFeatureCollection()

	for _, e := range sorted {
		var g orb.Geometry
		switch {
		case len(e.Footprint) > 0:
			g = e.Footprint
		case e.Meta.HasGPS:
			g = orb.Point{e.Meta.Lon, e.Meta.Lat}
		}

		f := geojson.NewFeature(g)
		f.Properties["path"] = e.Path
		f.Properties["mean_ndvi"] = e.MeanNDVI

		if e.Meta.HasTime {
			f.Properties["time"] = e.Meta.Time.UTC().Format(time.RFC3339)
		}

		fc.Append(f)
	}

	return fc
}

func Write(path string, entries []Entry) error {
	data, err := Build(entries).MarshalJSON()

	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
