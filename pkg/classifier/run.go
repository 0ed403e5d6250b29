package classifier

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/project-spencer/orbit/pkg/util"
	"github.com/sirupsen/logrus"
)

// Config names the directories of one classifier invocation.
type Config struct {
	Source      string
	Destination string
}

type Options struct {
	// Workers bounds the number of frames decoded at once. Zero means
	// runtime.NumCPU().
	Workers int
	// MaxDimension downsamples frames before measuring. Zero keeps the
	// full resolution.
	MaxDimension int
	Logger       logrus.FieldLogger
}

type Result struct {
	Classifier string
	Kept       []Decision
	Discarded  []Decision
	Failed     []Decision
}

// Total is the number of frames looked at.
func (r *Result) Total() int {
	return len(r.Kept) + len(r.Discarded) + len(r.Failed)
}

// Run classifies every image in cfg.Source and copies the kept ones,
// unchanged and under the same name, into cfg.Destination. Decisions are
// collected from all workers before anything is copied. Frames that fail to
// decode are reported in Result.Failed and do not stop the run.
func Run(ctx context.Context, c Classifier, cfg Config, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("stage", c.Name())

	files, err := util.ListImages(cfg.Source)

	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Destination, 0755); err != nil {
		return nil, fmt.Errorf("could not create %s: %w", cfg.Destination, err)
	}

	decisions := evaluateAll(ctx, c, files, opts)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Classifier: c.Name()}

	for _, d := range decisions {
		l := log.WithFields(logrus.Fields{"path": d.Path, "metric": d.Metric})

		switch {
		case d.Err != nil:
			l.WithError(d.Err).Warn("skipping image")
			res.Failed = append(res.Failed, d)
		case d.Keep:
			if _, err := util.CopyFile(d.Path, cfg.Destination); err != nil {
				return nil, fmt.Errorf("could not copy %s to %s: %w", d.Path, cfg.Destination, err)
			}
			l.Debug("kept")
			res.Kept = append(res.Kept, d)
		default:
			l.Debug("discarded")
			res.Discarded = append(res.Discarded, d)
		}
	}

	return res, nil
}

func evaluateAll(ctx context.Context, c Classifier, files []string, opts Options) []Decision {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(files) {
		workers = len(files)
	}

	decisions := make([]Decision, len(files))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				decisions[i] = Evaluate(c, files[i], opts.MaxDimension)
			}
		}()
	}

	for i := range files {
		if ctx.Err() != nil {
			break
		}
		jobs <- i
	}
	close(jobs)

	wg.Wait()

	return decisions
}
