package vci

import (
	"testing"

	"github.com/project-spencer/orbit/pkg/history"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	current = map[string]float64{"a.png": 0.5, "b.png": 0.2}

	y2019 = history.Snapshot{Name: "2019", Values: map[string]float64{"a.png": 0.1, "b.png": 0.6}}
	y2020 = history.Snapshot{Name: "2020", Values: map[string]float64{"a.png": 0.3, "b.png": 0.4}}
	y2021 = history.Snapshot{Name: "2021", Values: map[string]float64{"a.png": 0.2}}
)

func TestAggregate(t *testing.T) {
	a, err := Aggregate(current, []history.Snapshot{y2019, y2020}, FailOnMissing)
	require.NoError(t, err)

	assert.Equal(t, []float64{0.1, 0.3, 0.5}, a.History["a.png"])
	assert.Equal(t, []float64{0.6, 0.4, 0.2}, a.History["b.png"])
	assert.Empty(t, a.Skipped)

	require.Len(t, a.Results, 2)
	assert.Equal(t, "a.png", a.Results[0].Region)
	assert.InDelta(t, 100, a.Results[0].VCI, 1e-9)
	assert.Equal(t, Normal, a.Results[0].State)
	assert.Equal(t, "b.png", a.Results[1].Region)
	assert.InDelta(t, 0, a.Results[1].VCI, 1e-9)
	assert.Equal(t, ExtremeDrought, a.Results[1].State)
}

func TestAggregate_MissingRegionFails(t *testing.T) {
	_, err := Aggregate(current, []history.Snapshot{y2019, y2021}, FailOnMissing)

	var me *MissingRegionError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "b.png", me.Region)
	assert.Equal(t, "2021", me.Snapshot)
}

func TestAggregate_MissingRegionSkipped(t *testing.T) {
	a, err := Aggregate(current, []history.Snapshot{y2019, y2021}, SkipMissing)
	require.NoError(t, err)

	assert.Equal(t, []string{"b.png"}, a.Skipped)
	require.Len(t, a.Results, 1)
	assert.Equal(t, "a.png", a.Results[0].Region)
	assert.NotContains(t, a.History, "b.png")
}

func TestAggregate_NoHistoryIsDegenerate(t *testing.T) {
	_, err := Aggregate(current, nil, FailOnMissing)

	var de *DegenerateRangeError
	assert.ErrorAs(t, err, &de)
}

func TestRegionKey(t *testing.T) {
	assert.Equal(t, "img.png", RegionKey("out/ndvi_out/img.png", len("out/ndvi_out/")))
	assert.Equal(t, "out/img.png", RegionKey("out/img.png", 0))
	assert.Equal(t, "", RegionKey("a", 5))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("SKIP")
	require.NoError(t, err)
	assert.Equal(t, SkipMissing, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, FailOnMissing, p)

	_, err = ParsePolicy("ignore")
	assert.Error(t, err)
}
