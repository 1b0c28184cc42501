package ingest

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"lakehouse/internal/logger"
	"lakehouse/internal/metrics"
)

// DefaultWorkers is used when Runner.Workers is not positive.
const DefaultWorkers = 4

// Runner processes many objects with a bounded worker pool. One object is
// handled by exactly one worker.
type Runner struct {
	Engine  *Engine
	Workers int
	Log     *logger.Logger
}

// Summary is the outcome of a Run. Results are sorted by path.
type Summary struct {
	RunID   string
	Results []*Result
	Failed  []error
	Counts  map[Status]int
	Elapsed time.Duration
}

// Err joins the per-object failures.
func (s *Summary) Err() error { return errors.Join(s.Failed...) }

// Retryable lists the paths that failed to fetch.
func (s *Summary) Retryable() []string {
	var out []string
	for _, err := range s.Failed {
		var oe *ObjectError
		if errors.As(err, &oe) && errors.Is(err, ErrFetch) {
			out = append(out, oe.Path)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Runner) log() *logger.Logger {
	if r.Log == nil {
		return logger.Nop()
	}
	return r.Log
}

// Run processes paths concurrently. Per-object failures never stop the
// other workers; they are collected in Summary.Failed. The returned error
// is non-nil only when ctx ends before every path was handed out.
func (r *Runner) Run(ctx context.Context, paths []string) (*Summary, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	sum := &Summary{RunID: uuid.NewString(), Counts: map[Status]int{}}
	log := r.log().With("run_id", sum.RunID)
	ctx = WithRunID(ctx, sum.RunID)
	start := time.Now()

	log.Info("ingest run starting", "objects", len(paths), "workers", workers)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range paths {
		if gctx.Err() != nil {
			break
		}
		p := p
		g.Go(func() error {
			res, err := r.Engine.Process(gctx, p)
			mu.Lock()
			defer mu.Unlock()
			sum.Results = append(sum.Results, res)
			sum.Counts[res.Status]++
			if err != nil {
				sum.Failed = append(sum.Failed, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(sum.Results, func(i, j int) bool { return sum.Results[i].Path < sum.Results[j].Path })
	sum.Elapsed = time.Since(start)
	if err := metrics.Flush(); err != nil {
		log.Warn("metrics flush failed", "error", err)
	}
	log.Info("ingest run finished",
		"processed", sum.Counts[StatusProcessed],
		"duplicates", sum.Counts[StatusDuplicate],
		"degraded", sum.Counts[StatusDegraded],
		"unsupported", sum.Counts[StatusUnsupported],
		"failed", sum.Counts[StatusFailed],
		"duration", sum.Elapsed.Truncate(time.Millisecond),
	)
	return sum, ctx.Err()
}

// RunPrefix lists every object under prefix and runs them. Derived
// artifacts under processed/ are never re-ingested.
func (r *Runner) RunPrefix(ctx context.Context, prefix string) (*Summary, error) {
	infos, err := r.Engine.Store.List(ctx, prefix)
	if err != nil {
		return nil, objectErr(prefix, StageFetch, ErrFetch, err)
	}
	paths := make([]string, 0, len(infos))
	for _, info := range infos {
		if isDerived(info.Path) {
			continue
		}
		paths = append(paths, info.Path)
	}
	return r.Run(ctx, paths)
}

func isDerived(p string) bool {
	return strings.HasPrefix(p, "processed/")
}
