package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/project-spencer/orbit/pkg/classifier"
	"github.com/project-spencer/orbit/pkg/config"
	"github.com/project-spencer/orbit/pkg/downlink"
	"github.com/project-spencer/orbit/pkg/funnel"
	"github.com/project-spencer/orbit/pkg/logging"
	"github.com/project-spencer/orbit/pkg/model"
	"github.com/project-spencer/orbit/pkg/telemetry"
	"github.com/project-spencer/orbit/pkg/util"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	resume  bool
)

var rootCmd = &cobra.Command{
	Use:          "watch <dir>",
	Short:        "Filter frames as they land in a directory",
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

		return watch(ctx, cfg, args[0], logger)
	},
}

func check(ctx context.Context, f *funnel.Funnel, dl *downlink.Client, path string, log logrus.FieldLogger) {
	if !model.IsImage(path) {
		return
	}

	v, err := f.Admit(path)

	if err != nil {
		var decodeErr *classifier.DecodeError
		if errors.As(err, &decodeErr) {
			log.WithError(err).WithField("path", path).Warn("could not decode image")
			return
		}
		log.WithError(err).WithField("path", path).Error("could not check image")
		return
	}

	if v.RejectedBy != "" {
		log.WithFields(logrus.Fields{"path": path, "stage": v.RejectedBy}).Debug("rejected")
		return
	}

	if dl == nil {
		return
	}

	if _, err := dl.Announce(ctx, v.Output); err != nil {
		log.WithError(err).WithField("path", v.Output).Error("downlink failed")
	}
}

func watch(ctx context.Context, cfg *config.Config, dir string, logger *logrus.Logger) error {
	log := logger.WithField("run", util.RunID())
	metrics := telemetry.NewMetrics()

	f := funnel.New(funnel.FromConfig(cfg), log, metrics, nil)

	var dl *downlink.Client
	if cfg.DownlinkURL != "" {
		dl = downlink.NewClient(cfg.DownlinkURL, cfg.DownlinkRetries, cfg.DownlinkTimeout, log)
	}

	files, err := util.ListImages(dir)

	if err != nil {
		var notFound *util.PathNotFoundError
		if errors.As(err, &notFound) {
			log.Errorf("Path not found: %s", notFound.Path)
		}
		return err
	}

	// kept frames would land in the watched directory again
	if err := f.CheckInput(dir); err != nil {
		return err
	}

	if resume {
		// frames that arrived while we were not running
		log.Infof("checking %d existing images", len(files))

		for _, file := range files {
			check(ctx, f, dl, file, log)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("could not watch %s: %w", dir, err)
	}

	log.Infof("monitoring directory %s, writing to %s", dir, f.FinalDir())

	defer func() {
		if cfg.MetricsFile == "" {
			return
		}
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			log.WithError(err).Warn("could not write metrics")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("watch stopped")
			return nil

		case file, ok := <-watcher.Events:
			if !ok {
				log.Info("watch stopped")
				return nil
			}

			if !file.Has(fsnotify.Create) {
				continue
			}

			check(ctx, f, dl, filepath.Clean(file.Name), log)

		case err, ok := <-watcher.Errors:
			if !ok {
				log.Info("watch stopped")
				return nil
			}
			log.WithError(err).Warn("watcher error")
		}
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.orbit.yaml)")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "check images already in the directory before watching")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
