package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cwbudde/clinventory/internal/cl"
	"github.com/cwbudde/clinventory/internal/inventory"
	"github.com/cwbudde/clinventory/internal/metrics"
	"github.com/cwbudde/clinventory/internal/stopwatch"
)

// ErrInvalidInput is returned before any stage runs when the host vectors
// cannot form a pass.
var ErrInvalidInput = errors.New("invalid dispatch input")

// Target selects the device a pass runs on: the Index-th device of Category
// on Platform.
type Target struct {
	Platform inventory.Platform
	Category cl.Category
	Index    int
}

// Label names the target in output and logs.
func (t Target) Label() string {
	return fmt.Sprintf("%s / %s #%d", t.Platform.Label(), t.Category, t.Index)
}

// Pipeline runs passes against one runtime. It holds no per-pass state and is
// safe for concurrent use when the runtime is.
type Pipeline struct {
	rt        cl.Runtime
	timer     stopwatch.Timer
	localSize int
	reference func(n int) float64
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLocalSize sets the work-group size. Values <= 0 select DefaultLocalSize.
func WithLocalSize(n int) Option {
	return func(p *Pipeline) { p.localSize = n }
}

// WithTimer replaces the stopwatch timing each pass.
func WithTimer(t stopwatch.Timer) Option {
	return func(p *Pipeline) { p.timer = t }
}

// WithReference sets the analytic expected sum of c for n elements, such as
// RampExpectedSum. Without it the sum is computed from the host inputs.
func WithReference(sum func(n int) float64) Option {
	return func(p *Pipeline) { p.reference = sum }
}

// New returns a pipeline over rt.
func New(rt cl.Runtime, opts ...Option) *Pipeline {
	p := &Pipeline{
		rt:        rt,
		timer:     stopwatch.New(),
		localSize: DefaultLocalSize,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result describes one pass. It is returned for failed passes too, with the
// fields filled up to the failing stage.
type Result[T Element] struct {
	PassID     uuid.UUID
	Target     Target
	Device     cl.DeviceID
	DeviceName string

	N      int
	Global int
	Local  int

	C           []T
	Sum         float64
	ExpectedSum float64

	// Failed is the stage the pass stopped at, zero on success.
	Failed  Stage
	Elapsed time.Duration
}

// pass carries the state of one Run.
type pass struct {
	p      *Pipeline
	ctx    context.Context
	label  string
	logger zerolog.Logger
	stack  releaseStack
}

// step runs one stage under its own stopwatch label. A failure is wrapped in
// a *StageError unless fn already produced one.
func (ps *pass) step(stage Stage, fn func() error) error {
	label := ps.label + "/" + stage.String()
	ps.p.timer.Start(ps.ctx, label)
	err := fn()
	ps.p.timer.Stop(label, err)

	if err == nil {
		ps.logger.Debug().Str("stage", stage.String()).Msg("Stage complete")
		return nil
	}
	var stageErr *StageError
	if !errors.As(err, &stageErr) {
		stageErr = newStageError(stage, err)
	}
	return stageErr
}

// Run executes the thirteen stages on target with inputs a and b. Every
// resource acquired is released before Run returns. Lifecycle failures are
// *StageError values; a completed pass with a wrong answer returns a
// *ValidationError.
func Run[T Element](ctx context.Context, p *Pipeline, target Target, a, b []T) (*Result[T], error) {
	n := len(a)
	if n == 0 || len(b) != n {
		return nil, fmt.Errorf("%w: len(a)=%d len(b)=%d", ErrInvalidInput, len(a), len(b))
	}
	if uint64(n) > math.MaxUint32 {
		return nil, fmt.Errorf("%w: n=%d exceeds the kernel's 32-bit count", ErrInvalidInput, n)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result[T]{
		PassID: uuid.New(),
		Target: target,
		N:      n,
	}
	logger := log.With().
		Str("pass", res.PassID.String()).
		Str("platform", target.Platform.Label()).
		Str("category", target.Category.String()).
		Str("precision", Precision[T]()).
		Logger()

	ps := &pass{
		p:      p,
		label:  "vecadd " + res.PassID.String(),
		logger: logger,
		stack:  releaseStack{logger: logger},
	}
	ps.ctx = p.timer.Start(ctx, ps.label)

	err := runStages(ps, res, a, b)

	// Release runs on every path and never masks an earlier failure.
	releaseErr := ps.step(StageRelease, ps.stack.unwind)
	if err == nil && releaseErr != nil {
		err = releaseErr
	}

	res.Elapsed = p.timer.Stop(ps.label, err)
	metrics.DispatchDuration.Observe(res.Elapsed.Seconds())

	var stageErr *StageError
	switch {
	case err == nil:
		metrics.DispatchPasses.WithLabelValues(metrics.OutcomeOK).Inc()
		logger.Info().Str("device", res.DeviceName).Float64("sum", res.Sum).Dur("elapsed", res.Elapsed).Msg("Pass complete")
	case errors.As(err, &stageErr):
		res.Failed = stageErr.Stage
		metrics.DispatchPasses.WithLabelValues(metrics.OutcomeFailed).Inc()
		metrics.StageFailures.WithLabelValues(stageErr.Stage.String()).Inc()
		logger.Error().Err(err).Str("device", res.DeviceName).Str("stage", stageErr.Stage.String()).Msg("Pass failed")
	default:
		res.Failed = StageValidate
		metrics.DispatchPasses.WithLabelValues(metrics.OutcomeInvalid).Inc()
		logger.Error().Err(err).Str("device", res.DeviceName).Msg("Pass produced a wrong result")
	}
	return res, err
}

func runStages[T Element](ps *pass, res *Result[T], a, b []T) error {
	rt := ps.p.rt
	n := res.N
	size := n * ElementSize[T]()

	var (
		device  cl.DeviceID
		clctx   cl.Context
		queue   cl.Queue
		bufA    cl.Mem
		bufB    cl.Mem
		bufC    cl.Mem
		program cl.Program
		kernel  cl.Kernel
	)

	err := ps.step(StageSelectDevice, func() error {
		devices, total, err := inventory.ListDevices(rt, res.Target.Platform.ID, res.Target.Category, res.Target.Index+1)
		if err != nil {
			// Not-found is already folded into total == 0.
			return &StageError{Stage: StageSelectDevice, Tag: ErrDeviceDiscoveryFailed, Err: err}
		}
		if total == 0 || res.Target.Index >= len(devices) {
			return cl.NewError("clGetDeviceIDs", cl.DeviceNotFound)
		}
		device = devices[res.Target.Index]
		res.Device = device
		if name, err := inventory.QueryText(rt, device, cl.DeviceName); err == nil {
			res.DeviceName = name
		}
		return nil
	})
	if err != nil {
		return err
	}
	ps.logger = ps.logger.With().Str("device", res.DeviceName).Logger()
	ps.stack.logger = ps.logger

	err = ps.step(StageCreateContext, func() error {
		c, err := rt.CreateContext(device)
		if err != nil {
			return err
		}
		clctx = c
		ps.stack.push("context", func() error { return rt.ReleaseContext(c) })
		return nil
	})
	if err != nil {
		return err
	}

	err = ps.step(StageCreateQueue, func() error {
		q, err := rt.CreateCommandQueue(clctx, device)
		if err != nil {
			return err
		}
		queue = q
		ps.stack.push("queue", func() error { return rt.ReleaseCommandQueue(q) })
		return nil
	})
	if err != nil {
		return err
	}

	err = ps.step(StageAllocateBuffers, func() error {
		buffers := []struct {
			name  string
			flags cl.MemFlags
			dst   *cl.Mem
		}{
			{"buffer_a", cl.MemReadOnly, &bufA},
			{"buffer_b", cl.MemReadOnly, &bufB},
			{"buffer_c", cl.MemWriteOnly, &bufC},
		}
		for _, buf := range buffers {
			m, err := rt.CreateBuffer(clctx, buf.flags, size)
			if err != nil {
				return fmt.Errorf("%s: %w", buf.name, err)
			}
			if m == 0 {
				return fmt.Errorf("%s: %w", buf.name, cl.NewError("clCreateBuffer", cl.InvalidMemObject))
			}
			*buf.dst = m
			ps.stack.push(buf.name, func() error { return rt.ReleaseMemObject(m) })
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = ps.step(StageUploadInputs, func() error {
		if err := rt.EnqueueWriteBuffer(queue, bufA, true, bytesOf(a)); err != nil {
			return fmt.Errorf("write a: %w", err)
		}
		if err := rt.EnqueueWriteBuffer(queue, bufB, true, bytesOf(b)); err != nil {
			return fmt.Errorf("write b: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = ps.step(StageBuildProgram, func() error {
		prog, err := rt.CreateProgramWithSource(clctx, KernelSource)
		if err != nil {
			return err
		}
		program = prog
		ps.stack.push("program", func() error { return rt.ReleaseProgram(prog) })

		if err := rt.BuildProgram(prog, device, BuildOptions[T]()); err != nil {
			stageErr := newStageError(StageBuildProgram, err)
			stageErr.BuildLog, _ = inventory.ReadText(func(dst []byte) (int, error) {
				return rt.GetProgramBuildLog(prog, device, dst)
			})
			ps.logger.Debug().Str("build_log", stageErr.BuildLog).Msg("Program build log")
			return stageErr
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = ps.step(StageCreateKernel, func() error {
		k, err := rt.CreateKernel(program, KernelName)
		if err != nil {
			return err
		}
		kernel = k
		ps.stack.push("kernel", func() error { return rt.ReleaseKernel(k) })
		return nil
	})
	if err != nil {
		return err
	}

	err = ps.step(StageBindArguments, func() error {
		args := []any{bufA, bufB, bufC, uint32(n)}
		for i, arg := range args {
			if err := rt.SetKernelArg(kernel, uint32(i), arg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = ps.step(StageDispatch, func() error {
		res.Global, res.Local = Partition(n, ps.p.localSize)
		return rt.EnqueueNDRangeKernel(queue, kernel, res.Global, res.Local)
	})
	if err != nil {
		return err
	}

	err = ps.step(StageAwait, func() error {
		return rt.Finish(queue)
	})
	if err != nil {
		return err
	}

	c := make([]T, n)
	err = ps.step(StageDownloadOutput, func() error {
		return rt.EnqueueReadBuffer(queue, bufC, true, bytesOf(c))
	})
	if err != nil {
		return err
	}
	res.C = c

	if ps.p.reference != nil {
		res.ExpectedSum = ps.p.reference(n)
	} else {
		res.ExpectedSum = hostSum(a, b)
	}
	label := ps.label + "/" + StageValidate.String()
	ps.p.timer.Start(ps.ctx, label)
	res.Sum, err = Validate(a, b, c, res.ExpectedSum, ToleranceFor[T]())
	ps.p.timer.Stop(label, err)
	return err
}

// hostSum computes the reference reduction of a + b in double precision from
// the host inputs.
func hostSum[T Element](a, b []T) float64 {
	sum := 0.0
	for i := range a {
		sum += float64(a[i]) + float64(b[i])
	}
	return sum
}
