// Package funnel runs the classifier stages in order, each stage reading the
// directory the previous one wrote, so that only frames every stage kept end
// up in the final directory.
package funnel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/project-spencer/orbit/pkg/classifier"
	"github.com/project-spencer/orbit/pkg/config"
	"github.com/project-spencer/orbit/pkg/model"
	"github.com/project-spencer/orbit/pkg/telemetry"
	"github.com/project-spencer/orbit/pkg/util"
	"github.com/sirupsen/logrus"
)

const (
	DarkDir      = "dark_out"
	ThresholdDir = "threshold_out"
	NDVIDir      = "ndvi_out"
)

// ErrInputInOutDir is returned when the input lies at or below the out root,
// which Run clears before the first stage.
var ErrInputInOutDir = errors.New("input is inside the output directory")

type Stage struct {
	Classifier classifier.Classifier
	// Dir is the output directory name under the out root.
	Dir string
	// Kind describes the removed frames in the log, e.g. "dark".
	Kind string
}

type Config struct {
	OutDir           string
	Stages           []Stage
	Workers          int
	MaxDimension     int
	KeepIntermediate bool
}

// FromConfig builds the dark -> cloud -> sea funnel.
func FromConfig(cfg *config.Config) Config {
	var cloud classifier.Classifier = classifier.Threshold{
		Pixel:      cfg.PixelThreshold,
		Percentage: cfg.CloudThreshold,
	}
	if cfg.CloudMethod == config.CloudMethodOtsu {
		cloud = classifier.Otsu{Percentage: cfg.OtsuThreshold}
	}

	return Config{
		OutDir: cfg.OutDir,
		Stages: []Stage{
			{Classifier: classifier.Dark{Threshold: cfg.DarkThreshold}, Dir: DarkDir, Kind: "dark"},
			{Classifier: cloud, Dir: ThresholdDir, Kind: "cloudy"},
			{Classifier: classifier.NDVI{Low: cfg.NDVILow, High: cfg.NDVIHigh, Percentage: cfg.NDVIThreshold}, Dir: NDVIDir, Kind: "sea"},
		},
		Workers:          cfg.Workers,
		MaxDimension:     cfg.MaxDimension,
		KeepIntermediate: cfg.KeepIntermediate,
	}
}

type StageReport struct {
	Name    string
	Input   string
	Output  string
	Before  int
	After   int
	Removed int
	Failed  []classifier.Decision
	Result  *classifier.Result
	Elapsed time.Duration
}

type Report struct {
	Input     string
	Initial   int
	Stages    []StageReport
	Final     string
	Survivors []string
	Elapsed   time.Duration
}

func (r *Report) Count() int {
	return len(r.Survivors)
}

type Funnel struct {
	cfg     Config
	log     logrus.FieldLogger
	metrics *telemetry.Metrics
	clock   clockwork.Clock
}

// New wires a funnel. Nil metrics and clock fall back to a throwaway
// registry and the real clock.
func New(cfg Config, log logrus.FieldLogger, metrics *telemetry.Metrics, clock clockwork.Clock) *Funnel {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Funnel{cfg: cfg, log: log, metrics: metrics, clock: clock}
}

// FinalDir is where the surviving frames are written.
func (f *Funnel) FinalDir() string {
	if len(f.cfg.Stages) == 0 {
		return f.cfg.OutDir
	}
	return filepath.Join(f.cfg.OutDir, f.cfg.Stages[len(f.cfg.Stages)-1].Dir)
}

// Run clears the out root and pushes every image in input through the stages.
// A missing input is a *util.PathNotFoundError; an empty one runs through
// with a count of zero.
func (f *Funnel) Run(ctx context.Context, input string) (*Report, error) {
	start := f.clock.Now()

	count, err := util.CountImages(input)

	if err != nil {
		f.log.WithError(err).WithField("path", input).Error("could not read input directory")
		return nil, err
	}

	f.log.Infof("found %d images", count)
	f.metrics.ImagesInput.Set(float64(count))

	if count == 0 {
		f.log.Warnf("no images in %s", input)
	}

	if err := f.CheckInput(input); err != nil {
		f.log.WithError(err).WithFields(logrus.Fields{"input": input, "out_dir": f.cfg.OutDir}).Error("refusing to clear the output directory")
		return nil, err
	}

	if err := util.ResetDir(f.cfg.OutDir); err != nil {
		return nil, fmt.Errorf("could not prepare %s: %w", f.cfg.OutDir, err)
	}

	rep := &Report{Input: input, Initial: count, Final: input}
	src := input

	for i, s := range f.cfg.Stages {
		sr, err := f.runStage(ctx, s, src, count)

		if err != nil {
			f.log.WithError(err).WithField("stage", s.Classifier.Name()).Error("stage failed")
			return nil, fmt.Errorf("stage %s: %w", s.Classifier.Name(), err)
		}

		rep.Stages = append(rep.Stages, *sr)

		if i > 0 && !f.cfg.KeepIntermediate {
			if err := os.RemoveAll(src); err != nil {
				f.log.WithError(err).Warnf("could not remove %s", src)
			}
		}

		src = sr.Output
		count = sr.After
	}

	rep.Final = src
	rep.Survivors, err = util.ListImages(src)

	if err != nil {
		return nil, err
	}

	rep.Elapsed = f.clock.Since(start)

	f.metrics.ImagesFinal.Set(float64(len(rep.Survivors)))
	f.metrics.RunDuration.Set(rep.Elapsed.Seconds())

	f.log.Infof("execution completed in %s, with %d images", rep.Elapsed, len(rep.Survivors))

	return rep, nil
}

// CheckInput fails with ErrInputInOutDir when input is the out root or sits
// below it.
func (f *Funnel) CheckInput(input string) error {
	in, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	root, err := filepath.Abs(f.cfg.OutDir)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(root, in)
	if err != nil {
		return nil
	}

	if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
		return fmt.Errorf("%w: %s is under %s", ErrInputInOutDir, input, f.cfg.OutDir)
	}

	return nil
}

func (f *Funnel) runStage(ctx context.Context, s Stage, src string, before int) (*StageReport, error) {
	name := s.Classifier.Name()
	dst := filepath.Join(f.cfg.OutDir, s.Dir)
	t := f.clock.Now()

	f.log.WithFields(logrus.Fields{"stage": name, "input": src, "output": dst}).Info("stage started")

	res, err := classifier.Run(ctx, s.Classifier, classifier.Config{Source: src, Destination: dst}, classifier.Options{
		Workers:      f.cfg.Workers,
		MaxDimension: f.cfg.MaxDimension,
		Logger:       f.log,
	})

	if err != nil {
		return nil, err
	}

	after, err := util.CountImages(dst)

	if err != nil {
		return nil, err
	}

	sr := &StageReport{
		Name:    name,
		Input:   src,
		Output:  dst,
		Before:  before,
		After:   after,
		Removed: before - after,
		Failed:  res.Failed,
		Result:  res,
		Elapsed: f.clock.Since(t),
	}

	f.metrics.ImagesKept.WithLabelValues(name).Add(float64(len(res.Kept)))
	f.metrics.ImagesDiscarded.WithLabelValues(name).Add(float64(len(res.Discarded)))
	f.metrics.DecodeErrors.WithLabelValues(name).Add(float64(len(res.Failed)))
	f.metrics.StageDuration.WithLabelValues(name).Observe(sr.Elapsed.Seconds())

	if len(res.Failed) > 0 {
		f.log.WithField("stage", name).Warnf("%d images could not be decoded", len(res.Failed))
	}

	f.log.WithField("stage", name).Infof("removed %d %s images", sr.Removed, s.Kind)

	return sr, nil
}

// Verdict is the outcome of pushing one frame through every stage.
type Verdict struct {
	Path string
	// RejectedBy names the first stage that dropped the frame; empty when
	// the frame survived.
	RejectedBy string
	Metrics    map[string]float64
	// Output is the copy in the final directory, set only on survival.
	Output string
}

// Admit runs a single frame through the stages in memory and, if every
// stage keeps it, copies it straight into the final directory. The frame is
// decoded once. A decode failure is a *classifier.DecodeError.
func (f *Funnel) Admit(path string) (*Verdict, error) {
	img, err := model.Load(path, f.cfg.MaxDimension)

	if err != nil {
		return nil, &classifier.DecodeError{Path: path, Err: err}
	}

	v := &Verdict{Path: path, Metrics: make(map[string]float64, len(f.cfg.Stages))}

	for _, s := range f.cfg.Stages {
		name := s.Classifier.Name()
		m := s.Classifier.Measure(img)
		v.Metrics[name] = m

		if !s.Classifier.Keep(m) {
			v.RejectedBy = name
			f.metrics.ImagesDiscarded.WithLabelValues(name).Inc()
			f.log.WithFields(logrus.Fields{"path": path, "stage": name, "metric": m}).Infof("removed %s image", s.Kind)
			return v, nil
		}

		f.metrics.ImagesKept.WithLabelValues(name).Inc()
	}

	dir := f.FinalDir()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	v.Output, err = util.CopyFile(path, dir)

	if err != nil {
		return nil, fmt.Errorf("could not copy %s: %w", path, err)
	}

	f.log.WithField("path", path).Info("image kept")

	return v, nil
}
