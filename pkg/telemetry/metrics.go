package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters and gauges of one pipeline run. Each Metrics
// owns its registry, so a process may build several without collisions.
type Metrics struct {
	Registry *prometheus.Registry

	ImagesInput     prometheus.Gauge
	ImagesFinal     prometheus.Gauge
	ImagesKept      *prometheus.CounterVec   // labels: stage
	ImagesDiscarded *prometheus.CounterVec   // labels: stage
	DecodeErrors    *prometheus.CounterVec   // labels: stage
	StageDuration   *prometheus.HistogramVec // labels: stage
	RunDuration     prometheus.Gauge

	RegionsClassified *prometheus.CounterVec // labels: state
	RegionsSkipped    prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ImagesInput: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "orbit",
			Name:      "images_input",
			Help:      "Images found in the input directory.",
		}),
		ImagesFinal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "orbit",
			Name:      "images_final",
			Help:      "Images that survived every stage.",
		}),
		ImagesKept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orbit",
			Name:      "images_kept_total",
			Help:      "Images kept by a stage.",
		}, []string{"stage"}),
		ImagesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orbit",
			Name:      "images_discarded_total",
			Help:      "Images removed by a stage.",
		}, []string{"stage"}),
		DecodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orbit",
			Name:      "decode_errors_total",
			Help:      "Images that could not be decoded.",
		}, []string{"stage"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orbit",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock time of one stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}, []string{"stage"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "orbit",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock time of the whole funnel.",
		}),
		RegionsClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orbit",
			Name:      "regions_classified_total",
			Help:      "Regions by vegetation state.",
		}, []string{"state"}),
		RegionsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orbit",
			Name:      "regions_skipped_total",
			Help:      "Regions left out because a snapshot lacked them.",
		}),
	}

	m.Registry.MustRegister(
		m.ImagesInput,
		m.ImagesFinal,
		m.ImagesKept,
		m.ImagesDiscarded,
		m.DecodeErrors,
		m.StageDuration,
		m.RunDuration,
		m.RegionsClassified,
		m.RegionsSkipped,
	)

	return m
}

// WriteTextfile dumps the registry in the text exposition format, for the
// node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
