// Package pipeline runs the engine's batch jobs over the parallel harness.
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wonny/aiqdata/internal/featureconfig"
	"github.com/wonny/aiqdata/internal/harness"
	"github.com/wonny/aiqdata/internal/storage"
	"github.com/wonny/aiqdata/pkg/config"
	"github.com/wonny/aiqdata/pkg/logger"
)

// ErrAllFailed is returned when a non-empty batch has no successful unit
var ErrAllFailed = errors.New("every unit failed")

// Runner wires components to the harness and a sink.
// One Runner serves one command invocation.
type Runner struct {
	cfg      *config.Config
	features featureconfig.Features
	sink     storage.Sink
	metrics  *harness.Metrics
	log      *logger.Logger
}

// New creates a Runner. metrics may be nil.
func New(cfg *config.Config, features featureconfig.Features, sink storage.Sink, metrics *harness.Metrics, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	if fs, ok := sink.(*storage.FileStore); ok && features.Rolling() && fs.RollingColumn == "" {
		fs.RollingColumn = features.RollingFeatureName()
	}
	return &Runner{
		cfg:      cfg,
		features: features,
		sink:     sink,
		metrics:  metrics,
		log:      log.WithModule("pipeline"),
	}
}

func (r *Runner) options(name string) harness.Options {
	return harness.Options{
		Name:         name,
		MaxWorkers:   r.cfg.Harness.Workers,
		UnitTimeout:  r.cfg.Harness.UnitTimeout,
		Budget:       r.cfg.Harness.Budget,
		DispatchRate: r.cfg.Harness.DispatchRate,
		Metrics:      r.metrics,
		Logger:       r.log,
	}
}

// batchErr turns an all-failed batch into ErrAllFailed with the first cause
func batchErr[R any](name string, b *harness.Batch[R]) error {
	if !b.AllFailed() {
		return nil
	}
	return fmt.Errorf("%s: %w (%d units): %v", name, ErrAllFailed, b.Failed(), b.Failures()[0].Err)
}

// ListFiles returns the files in dir with extension ext, sorted by name.
// A path to a single file is returned as is.
func ListFiles(dir, ext string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", dir, err)
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
