package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/clinventory/internal/cl"
	"github.com/cwbudde/clinventory/internal/inventory"
	"github.com/cwbudde/clinventory/internal/metrics"
	"github.com/cwbudde/clinventory/internal/stopwatch"
)

// ErrPassFailed is returned by Driver.Run when at least one pass failed.
var ErrPassFailed = errors.New("dispatch pass failed")

// DefaultCategories are the categories exercised when none are configured.
func DefaultCategories() []cl.Category {
	return []cl.Category{cl.CategoryCPU, cl.CategoryGPU, cl.CategoryAccelerator}
}

// Driver runs one pass per eligible device across every platform.
type Driver[T Element] struct {
	rt       cl.Runtime
	pipeline *Pipeline
	out      io.Writer

	Categories []cl.Category
	// AllDevices runs a pass on every device of a category instead of the first.
	AllDevices bool
	// Jobs bounds concurrent passes; values <= 1 run them sequentially.
	Jobs int
}

// NewDriver returns a driver writing its report to out.
func NewDriver[T Element](rt cl.Runtime, pipeline *Pipeline, out io.Writer) *Driver[T] {
	return &Driver[T]{
		rt:         rt,
		pipeline:   pipeline,
		out:        out,
		Categories: DefaultCategories(),
		Jobs:       1,
	}
}

// Summary counts the passes of one Run.
type Summary struct {
	Platforms int
	Passes    int
	Failed    int
}

type outcome[T Element] struct {
	result *Result[T]
	err    error
}

// Run plans the passes, executes them and prints one line per pass in plan
// order. Platform discovery failures are returned as is; failed passes yield
// ErrPassFailed after every pass ran.
func (d *Driver[T]) Run(ctx context.Context, n int) (Summary, error) {
	var summary Summary

	platforms, err := inventory.ListPlatforms(d.rt)
	if err != nil {
		return summary, err
	}
	summary.Platforms = len(platforms)
	metrics.PlatformsDiscovered.Set(float64(len(platforms)))
	fmt.Fprintf(d.out, "Number of platforms: %d\n", len(platforms))
	if len(platforms) == 0 {
		return summary, nil
	}

	bytes := inventory.HostAllocation(n, ElementSize[T]())
	fmt.Fprintf(d.out, "Host memory: %.3f GB (3 vectors of %d %s-precision elements)\n",
		float64(bytes)/1e9, n, Precision[T]())

	targets := d.plan(platforms)
	summary.Passes = len(targets)
	if len(targets) == 0 {
		return summary, nil
	}

	a, b := Ramp[T](n)
	outcomes := make([]outcome[T], len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(d.Jobs, 1))
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			res, err := Run(gctx, d.pipeline, target, a, b)
			outcomes[i] = outcome[T]{result: res, err: err}
			return nil
		})
	}
	_ = g.Wait()

	for i, o := range outcomes {
		d.printOutcome(targets[i], o)
		if o.err != nil {
			summary.Failed++
		}
	}
	if summary.Failed > 0 {
		return summary, fmt.Errorf("%w: %d of %d passes", ErrPassFailed, summary.Failed, summary.Passes)
	}
	return summary, nil
}

// plan prints the per-category device counts and returns the passes to run.
// An enumeration error abandons the rest of that platform.
func (d *Driver[T]) plan(platforms []inventory.Platform) []Target {
	var targets []Target
	for _, p := range platforms {
		fmt.Fprintf(d.out, "\nPlatform %d: %s\n", p.Index, p.Label())

		for _, category := range d.Categories {
			count, err := inventory.CountDevices(d.rt, p.ID, category)
			if err != nil {
				log.Error().Err(err).Str("platform", p.Label()).Str("category", category.String()).Msg("Device enumeration failed, skipping platform")
				fmt.Fprintf(d.out, "%s: enumeration failed: %v\n", category, err)
				break
			}
			if count == 0 {
				fmt.Fprintf(d.out, "%s: 0 devices, skipped\n", category)
				continue
			}

			runs := 1
			if d.AllDevices {
				runs = count
			}
			fmt.Fprintf(d.out, "%s: %d devices, %d scheduled\n", category, count, runs)
			for i := 0; i < runs; i++ {
				targets = append(targets, Target{Platform: p, Category: category, Index: i})
			}
		}
	}
	return targets
}

func (d *Driver[T]) printOutcome(target Target, o outcome[T]) {
	res := o.result
	if res == nil {
		fmt.Fprintf(d.out, "%s: FAILED: %v\n", target.Label(), o.err)
		return
	}

	name := res.DeviceName
	if name == "" {
		name = target.Label()
	}
	if o.err != nil {
		fmt.Fprintf(d.out, "Result on %s (%s): FAILED at %s: %v [%s]\n",
			name, target.Category, res.Failed, o.err, stopwatch.Format(res.Elapsed))
		return
	}
	fmt.Fprintf(d.out, "Result on %s (%s): sum %.6f (expected %.6f), global %d, local %d [%s]\n",
		name, target.Category, res.Sum, res.ExpectedSum, res.Global, res.Local, stopwatch.Format(res.Elapsed))
}
