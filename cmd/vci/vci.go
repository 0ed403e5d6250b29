package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/project-spencer/orbit/pkg/catalog"
	"github.com/project-spencer/orbit/pkg/config"
	"github.com/project-spencer/orbit/pkg/history"
	"github.com/project-spencer/orbit/pkg/iss"
	"github.com/project-spencer/orbit/pkg/logging"
	"github.com/project-spencer/orbit/pkg/telemetry"
	"github.com/project-spencer/orbit/pkg/util"
	"github.com/project-spencer/orbit/pkg/vci"
	"github.com/project-spencer/orbit/pkg/vegetation"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	skip     bool
	stretch  bool
	snapshot string
)

var rootCmd = &cobra.Command{
	Use:   "vci <dir> <snapshot.json>...",
	Short: "Compute the vegetation condition index of already filtered frames",
	Long: `Measures the mean NDVI of every frame in <dir> and compares each region
against the given snapshots, oldest first.`,
	Args:         cobra.MinimumNArgs(2),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.New(cfgFile)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("skip-missing") {
			if skip {
				v.Set("vci.missing_region", config.MissingRegionSkip)
			} else {
				v.Set("vci.missing_region", config.MissingRegionFail)
			}
		}
		if cmd.Flags().Changed("stretch") {
			v.Set("vci.contrast_stretch", stretch)
		}
		if snapshot != "" {
			v.Set("output.snapshot", snapshot)
		}

		cfg, err := config.Load(v)
		if err != nil {
			return err
		}

		log, closer, err := logging.New(cfg.LogFile, cfg.LogLevel)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return analyze(ctx, cfg, args[0], args[1:], log)
	},
}

func analyze(ctx context.Context, cfg *config.Config, dir string, snapshotFiles []string, logger *logrus.Logger) error {
	runID := util.RunID()
	entry := logger.WithField("run", runID)
	started := time.Now()

	dir = filepath.Clean(dir)

	paths, err := util.ListImages(dir)
	if err != nil {
		var notFound *util.PathNotFoundError
		if errors.As(err, &notFound) {
			entry.Errorf("Path not found: %s", notFound.Path)
		} else {
			entry.WithError(err).Error("could not list frames")
		}
		return err
	}

	snapshots, err := history.LoadAll(snapshotFiles)
	if err != nil {
		return err
	}

	policy, err := vci.ParsePolicy(cfg.MissingRegion)
	if err != nil {
		return err
	}

	opts := vegetation.Options{
		ContrastStretch: cfg.ContrastStretch,
		MaxDimension:    cfg.MaxDimension,
		PrefixLen:       cfg.RegionPrefix,
		SensorWidthMM:   cfg.SensorWidthMM,
		SensorHeightMM:  cfg.SensorHeightMM,
		FocalLengthMM:   cfg.FocalLengthMM,
		Spherical:       cfg.GeometryModel == config.GeometrySpherical,
		Logger:          entry,
	}
	if opts.PrefixLen < 0 {
		opts.PrefixLen = len(dir) + 1
	}
	if opts.Altitude, err = iss.FromConfig(cfg, entry); err != nil {
		return err
	}

	a, err := vegetation.Analyze(ctx, paths, snapshots, policy, opts)
	if err != nil {
		entry.WithError(err).Error("vci aggregation failed")
		return err
	}

	out := vegetation.Outputs{
		RunID:        runID,
		ResultFile:   cfg.ResultFile,
		SnapshotFile: cfg.SnapshotFile,
		Metrics:      telemetry.NewMetrics(),
	}

	if cfg.Catalog != "" {
		cat, err := catalog.Open(cfg.Catalog)
		if err != nil {
			return fmt.Errorf("could not open catalog %s: %w", cfg.Catalog, err)
		}
		defer cat.Close()

		if err := cat.BeginRun(ctx, runID, dir, started, len(paths)); err != nil {
			return fmt.Errorf("could not record run: %w", err)
		}
		out.Catalog = cat
	}

	if err := vegetation.Publish(ctx, a, out, entry); err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := out.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			entry.WithError(err).Warn("could not write metrics")
		}
	}

	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.orbit.yaml)")
	rootCmd.Flags().BoolVar(&skip, "skip-missing", false, "leave out regions a snapshot does not list instead of failing")
	rootCmd.Flags().BoolVar(&stretch, "stretch", false, "contrast-stretch NDVI before averaging")
	rootCmd.Flags().StringVar(&snapshot, "snapshot", "", "write this run's measurements as a new snapshot")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
