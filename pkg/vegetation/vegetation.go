// Package vegetation turns the frames that survived the funnel into regional
// vegetation health: mean NDVI per frame, the frame's place on the ground,
// and the VCI of its region against previous years.
package vegetation

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/project-spencer/orbit/pkg/geometry"
	"github.com/project-spencer/orbit/pkg/history"
	"github.com/project-spencer/orbit/pkg/iss"
	"github.com/project-spencer/orbit/pkg/metadata"
	"github.com/project-spencer/orbit/pkg/model"
	"github.com/project-spencer/orbit/pkg/ndvi"
	"github.com/project-spencer/orbit/pkg/report"
	"github.com/project-spencer/orbit/pkg/vci"
	"github.com/sirupsen/logrus"
)

type Options struct {
	// ContrastStretch maps the 5th..95th NDVI percentiles onto [0,1]
	// before averaging.
	ContrastStretch bool
	MaxDimension    int
	// PrefixLen is stripped from each path to form the region key.
	PrefixLen int
	// Altitude enables footprint polygons; nil keeps point geometry.
	Altitude       iss.AltitudeSource
	SensorWidthMM  float64
	SensorHeightMM float64
	FocalLengthMM  float64
	// Spherical measures the footprint on a spherical earth instead of a
	// flat plane.
	Spherical bool
	Logger    logrus.FieldLogger
}

type Measurement struct {
	Path      string
	Region    string
	MeanNDVI  float64
	Meta      model.Metadata
	Footprint orb.Polygon
}

// Measure computes the mean NDVI, negatives excluded, of every path. Frames
// that fail to decode or hold no non-negative NDVI are logged and left out.
func Measure(ctx context.Context, paths []string, opts Options) ([]Measurement, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	out := make([]Measurement, 0, len(paths))

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		l := log.WithField("path", p)

		img, err := model.Load(p, opts.MaxDimension)
		if err != nil {
			l.WithError(err).Warn("could not decode image, skipping")
			continue
		}

		g := ndvi.Compute(img)
		if opts.ContrastStretch {
			g = ndvi.Stretch(g, 5, 95)
		}

		mean, err := ndvi.Mean(g, true)
		if err != nil {
			l.WithError(err).Warn("no vegetation pixels, skipping")
			continue
		}

		m := Measurement{
			Path:     p,
			Region:   vci.RegionKey(p, opts.PrefixLen),
			MeanNDVI: mean,
		}

		meta, err := metadata.Read(p)
		if err != nil {
			l.WithError(err).Debug("no metadata")
		} else {
			m.Meta = meta
		}

		if opts.Altitude != nil && m.Meta.HasGPS && m.Meta.HasTime {
			m.Footprint = footprint(ctx, m.Meta, opts, l)
		}

		l.WithField("mean_ndvi", mean).Debug("measured")
		out = append(out, m)
	}

	return out, nil
}

func footprint(ctx context.Context, meta model.Metadata, opts Options, log logrus.FieldLogger) orb.Polygon {
	alt, err := opts.Altitude.Altitude(ctx, meta.Time)

	if err != nil {
		log.WithError(err).Warn("altitude lookup failed, keeping point geometry")
		return nil
	}

	w, h := geometry.GSD(opts.SensorWidthMM, opts.SensorHeightMM, opts.FocalLengthMM, alt)
	if opts.Spherical {
		w, h = geometry.SphericalGSD(
			geometry.AngleOfView(opts.SensorWidthMM, opts.FocalLengthMM),
			geometry.AngleOfView(opts.SensorHeightMM, opts.FocalLengthMM),
			alt,
		)
	}

	log.WithFields(logrus.Fields{"altitude": alt, "width": w, "height": h}).Debug("footprint")
	return geometry.Footprint(meta.Lat, meta.Lon, w, h)
}

// Analysis is the result of Analyze.
type Analysis struct {
	Measurements []Measurement
	Aggregation  *vci.Aggregation
}

// Analyze measures paths and evaluates each region against snapshots.
func Analyze(ctx context.Context, paths []string, snapshots []history.Snapshot, policy vci.MissingPolicy, opts Options) (*Analysis, error) {
	ms, err := Measure(ctx, paths, opts)

	if err != nil {
		return nil, err
	}

	current := make(map[string]float64, len(ms))
	for _, m := range ms {
		current[m.Region] = m.MeanNDVI
	}

	agg, err := vci.Aggregate(current, snapshots, policy)

	if err != nil {
		return nil, err
	}

	return &Analysis{Measurements: ms, Aggregation: agg}, nil
}

// Dump lays the analysis out for report.Write.
func (a *Analysis) Dump() report.Dump {
	latest := make(map[string]float64, len(a.Measurements))
	for _, m := range a.Measurements {
		latest[m.Path] = m.MeanNDVI
	}

	return report.Dump{
		Latest:  latest,
		History: a.Aggregation.History,
		Results: a.Aggregation.Results,
	}
}

// Entries converts measurements into the next snapshot.
func Entries(ms []Measurement) []history.Entry {
	out := make([]history.Entry, len(ms))
	for i, m := range ms {
		out[i] = history.Entry{
			Path:      m.Region,
			MeanNDVI:  m.MeanNDVI,
			Meta:      m.Meta,
			Footprint: m.Footprint,
		}
	}
	return out
}
