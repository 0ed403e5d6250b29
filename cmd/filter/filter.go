package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/project-spencer/orbit/pkg/catalog"
	"github.com/project-spencer/orbit/pkg/config"
	"github.com/project-spencer/orbit/pkg/downlink"
	"github.com/project-spencer/orbit/pkg/funnel"
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

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "filter <path>",
	Short:        "Drop dark, cloudy and sea frames from a directory of photos",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.New(cfgFile)
		if err != nil {
			return err
		}

		cfg, err := config.Load(v)
		if err != nil {
			return err
		}

		logger, closer, err := logging.New(cfg.LogFile, cfg.LogLevel)
		if err != nil {
			return err
		}
		defer closer.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg, args[0], logger)
	},
}

func run(ctx context.Context, cfg *config.Config, input string, logger *logrus.Logger) error {
	runID := util.RunID()
	log := logger.WithField("run", runID)

	clock := clockwork.NewRealClock()
	metrics := telemetry.NewMetrics()
	started := clock.Now()

	f := funnel.New(funnel.FromConfig(cfg), log, metrics, clock)

	rep, err := f.Run(ctx, input)

	if err != nil {
		var notFound *util.PathNotFoundError
		if errors.As(err, &notFound) {
			log.Errorf("Path not found: %s", notFound.Path)
		}
		return err
	}

	var cat *catalog.Catalog

	if cfg.Catalog != "" {
		cat, err = catalog.Open(cfg.Catalog)

		if err != nil {
			return fmt.Errorf("could not open catalog %s: %w", cfg.Catalog, err)
		}
		defer cat.Close()

		if err := cat.RecordRun(ctx, runID, started, rep); err != nil {
			return fmt.Errorf("could not record run: %w", err)
		}
	}

	if cfg.Archive != "" {
		if err := archive(cfg.Archive, rep.Final, log); err != nil {
			return err
		}
	}

	if cfg.DownlinkURL != "" {
		dl := downlink.NewClient(cfg.DownlinkURL, cfg.DownlinkRetries, cfg.DownlinkTimeout, log)

		n, err := dl.AnnounceAll(ctx, rep.Survivors)
		if err != nil {
			log.WithError(err).Error("downlink failed")
			return err
		}
		log.Infof("queued %d bytes for downlink", n)
	}

	opts := vegetation.Options{
		ContrastStretch: cfg.ContrastStretch,
		MaxDimension:    cfg.MaxDimension,
		PrefixLen:       cfg.RegionPrefix,
		SensorWidthMM:   cfg.SensorWidthMM,
		SensorHeightMM:  cfg.SensorHeightMM,
		FocalLengthMM:   cfg.FocalLengthMM,
		Spherical:       cfg.GeometryModel == config.GeometrySpherical,
		Logger:          log,
	}
	if opts.PrefixLen < 0 {
		opts.PrefixLen = len(rep.Final) + 1
	}
	if opts.Altitude, err = iss.FromConfig(cfg, log); err != nil {
		return err
	}

	switch {
	case len(cfg.History) > 0:
		snapshots, err := history.LoadAll(cfg.History)
		if err != nil {
			return err
		}

		policy, err := vci.ParsePolicy(cfg.MissingRegion)
		if err != nil {
			return err
		}

		a, err := vegetation.Analyze(ctx, rep.Survivors, snapshots, policy, opts)
		if err != nil {
			log.WithError(err).Error("vci aggregation failed")
			return err
		}

		err = vegetation.Publish(ctx, a, vegetation.Outputs{
			RunID:        runID,
			ResultFile:   cfg.ResultFile,
			SnapshotFile: cfg.SnapshotFile,
			Catalog:      cat,
			Metrics:      metrics,
		}, log)
		if err != nil {
			return err
		}

	case cfg.SnapshotFile != "":
		// first run of a season: nothing to compare against yet
		ms, err := vegetation.Measure(ctx, rep.Survivors, opts)
		if err != nil {
			return err
		}

		if err := history.Write(cfg.SnapshotFile, vegetation.Entries(ms)); err != nil {
			return fmt.Errorf("could not write snapshot %s: %w", cfg.SnapshotFile, err)
		}
		log.Infof("wrote snapshot of %d regions to %s", len(ms), cfg.SnapshotFile)
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.WithError(err).Warn("could not write metrics")
		}
	}

	return nil
}

func archive(path, dir string, log logrus.FieldLogger) error {
	out, err := os.Create(path)

	if err != nil {
		return fmt.Errorf("could not create archive %s: %w", path, err)
	}

	n, err := util.ZipImages(dir, out)

	if err != nil {
		out.Close()
		return fmt.Errorf("could not archive %s: %w", dir, err)
	}

	if err := out.Close(); err != nil {
		return err
	}

	log.Infof("archived %d images to %s", n, path)
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.orbit.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
