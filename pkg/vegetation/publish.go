package vegetation

import (
	"context"
	"fmt"

	"github.com/project-spencer/orbit/pkg/catalog"
	"github.com/project-spencer/orbit/pkg/history"
	"github.com/project-spencer/orbit/pkg/report"
	"github.com/project-spencer/orbit/pkg/telemetry"
	"github.com/sirupsen/logrus"
)

// Outputs lists where an analysis is written. Empty fields are skipped.
type Outputs struct {
	RunID        string
	ResultFile   string
	SnapshotFile string
	Catalog      *catalog.Catalog
	Metrics      *telemetry.Metrics
}

// Publish logs every region and writes the result dump, the snapshot of
// this run and the catalog rows.
func Publish(ctx context.Context, a *Analysis, out Outputs, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}

	for _, r := range a.Aggregation.Results {
		log.WithFields(logrus.Fields{
			"region": r.Region,
			"ndvi":   r.Current,
			"vci":    r.VCI,
		}).Infof("vegetation state %s", r.State)

		if out.Metrics != nil {
			out.Metrics.RegionsClassified.WithLabelValues(r.State.String()).Inc()
		}
	}

	for _, r := range a.Aggregation.Skipped {
		log.WithField("region", r).Warn("region missing from history, skipped")
	}

	if out.Metrics != nil {
		out.Metrics.RegionsSkipped.Add(float64(len(a.Aggregation.Skipped)))
	}

	if out.ResultFile != "" {
		if err := report.WriteFile(out.ResultFile, a.Dump()); err != nil {
			return fmt.Errorf("could not write result %s: %w", out.ResultFile, err)
		}
		log.Infof("wrote result to %s", out.ResultFile)
	}

	if out.SnapshotFile != "" {
		if err := history.Write(out.SnapshotFile, Entries(a.Measurements)); err != nil {
			return fmt.Errorf("could not write snapshot %s: %w", out.SnapshotFile, err)
		}
		log.Infof("wrote snapshot to %s", out.SnapshotFile)
	}

	if out.Catalog != nil {
		if err := out.Catalog.RecordVCI(ctx, out.RunID, a.Aggregation.Results); err != nil {
			return fmt.Errorf("could not record vci: %w", err)
		}
	}

	return nil
}
