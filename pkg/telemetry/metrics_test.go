package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_Independent(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()

	a.ImagesInput.Set(10)

	assert.Equal(t, 10.0, testutil.ToFloat64(a.ImagesInput))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ImagesInput))
}

func TestWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.ImagesKept.WithLabelValues("dark").Add(7)
	m.RegionsClassified.WithLabelValues("NORMAL").Inc()

	p := filepath.Join(t.TempDir(), "orbit.prom")
	require.NoError(t, m.WriteTextfile(p))

	data, err := os.ReadFile(p)
	require.NoError(t, err)

	assert.Contains(t, string(data), `orbit_images_kept_total{stage="dark"} 7`)
	assert.Contains(t, string(data), `orbit_regions_classified_total{state="NORMAL"} 1`)
}
