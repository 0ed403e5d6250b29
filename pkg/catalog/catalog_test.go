package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/project-spencer/orbit/pkg/classifier"
	"github.com/project-spencer/orbit/pkg/funnel"
	"github.com/project-spencer/orbit/pkg/vci"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func open(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func report() *funnel.Report {
	return &funnel.Report{
		Input:     "in",
		Initial:   3,
		Survivors: []string{"out/ndvi_out/b.png"},
		Elapsed:   1500 * time.Millisecond,
		Stages: []funnel.StageReport{
			{
				Name: "dark",
				Result: &classifier.Result{
					Classifier: "dark",
					Kept:       []classifier.Decision{{Path: "in/b.png", Metric: 92, Keep: true}},
					Discarded:  []classifier.Decision{{Path: "in/a.png", Metric: 3}},
					Failed:     []classifier.Decision{{Path: "in/c.jpg", Err: errors.New("unexpected EOF")}},
				},
			},
		},
	}
}

func TestRecordRun(t *testing.T) {
	c := open(t)
	ctx := context.Background()

	require.NoError(t, c.RecordRun(ctx, "run-1", time.Now(), report()))

	run, err := c.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "in", run.Input)
	assert.Equal(t, 3, run.Initial)
	assert.Equal(t, 1, run.Final)
	assert.Equal(t, 1500*time.Millisecond, run.Elapsed)

	rows, err := c.Decisions(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "in/b.png", rows[0].Path)
	assert.True(t, rows[0].Kept)
	require.NotNil(t, rows[0].Metric)
	assert.Equal(t, 92.0, *rows[0].Metric)

	assert.False(t, rows[1].Kept)

	assert.Nil(t, rows[2].Metric)
	assert.Equal(t, "unexpected EOF", rows[2].Error)
}

func TestRecordRun_DuplicateID(t *testing.T) {
	c := open(t)
	ctx := context.Background()

	require.NoError(t, c.RecordRun(ctx, "run-1", time.Now(), report()))
	assert.Error(t, c.RecordRun(ctx, "run-1", time.Now(), report()))

	rows, err := c.Decisions(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, rows, 3, "failed insert rolled back")
}

func TestRecordVCI_Upsert(t *testing.T) {
	c := open(t)
	ctx := context.Background()

	require.NoError(t, c.RecordVCI(ctx, "run-1", []vci.Result{
		{Region: "b.png", Current: 0.2, VCI: 0, State: vci.ExtremeDrought},
		{Region: "a.png", Current: 0.5, VCI: 100, State: vci.Normal},
	}))
	require.NoError(t, c.RecordVCI(ctx, "run-1", []vci.Result{
		{Region: "b.png", Current: 0.3, VCI: 35, State: vci.LightDrought},
	}))

	rows, err := c.Results(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, []ResultRow{
		{Region: "a.png", Current: 0.5, VCI: 100, State: "NORMAL"},
		{Region: "b.png", Current: 0.3, VCI: 35, State: "LIGHT_DROUGHT"},
	}, rows)
}

func orphans(t *testing.T, c *Catalog) int {
	t.Helper()
	var n int
	require.NoError(t, c.sql.QueryRow(
		`SELECT COUNT(*) FROM vci_results WHERE run_id NOT IN (SELECT id FROM runs)`).Scan(&n))
	return n
}

func TestRecordVCI_CreatesRun(t *testing.T) {
	c := open(t)
	ctx := context.Background()

	require.NoError(t, c.RecordVCI(ctx, "run-2", []vci.Result{
		{Region: "a.png", Current: 0.5, VCI: 100, State: vci.Normal},
	}))

	run, err := c.Run(ctx, "run-2")
	require.NoError(t, err)
	assert.Equal(t, "run-2", run.ID)
	assert.Zero(t, orphans(t, c))
}

func TestRecordVCI_KeepsRecordedRun(t *testing.T) {
	c := open(t)
	ctx := context.Background()

	require.NoError(t, c.RecordRun(ctx, "run-1", time.Now(), report()))
	require.NoError(t, c.RecordVCI(ctx, "run-1", []vci.Result{
		{Region: "b.png", Current: 0.2, VCI: 0, State: vci.ExtremeDrought},
	}))

	run, err := c.Run(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "in", run.Input)
	assert.Equal(t, 3, run.Initial)
}

func TestBeginRun(t *testing.T) {
	c := open(t)
	ctx := context.Background()

	require.NoError(t, c.BeginRun(ctx, "run-3", "frames", time.Now(), 7))
	require.NoError(t, c.RecordVCI(ctx, "run-3", []vci.Result{
		{Region: "a.png", Current: 0.5, VCI: 100, State: vci.Normal},
	}))

	run, err := c.Run(ctx, "run-3")
	require.NoError(t, err)
	assert.Equal(t, "frames", run.Input)
	assert.Equal(t, 7, run.Initial)
	assert.Zero(t, orphans(t, c))

	rows, err := c.Results(ctx, "run-3")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestRun_Unknown(t *testing.T) {
	_, err := open(t).Run(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownRun)
}
