package sim

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/cwbudde/clinventory/internal/cl"
)

// EnqueueNDRangeKernel runs the kernel synchronously over a one-dimensional
// range. Only kernels shaped like vecAdd(a, b, c, n) are executable: three
// buffer arguments followed by the element count.
func (r *Runtime) EnqueueNDRangeKernel(queue cl.Queue, kernel cl.Kernel, global, local int) error {
	r.mu.Lock()
	op := OpEnqueueNDRange.String()
	if err := r.check(OpEnqueueNDRange); err != nil {
		r.mu.Unlock()
		return err
	}
	if _, ok := r.lookup(uintptr(queue), KindQueue); !ok {
		r.mu.Unlock()
		return cl.NewError(op, cl.InvalidCommandQueue)
	}
	k, ok := r.lookup(uintptr(kernel), KindKernel)
	if !ok {
		r.mu.Unlock()
		return cl.NewError(op, cl.InvalidKernel)
	}

	if local <= 0 || global <= 0 || global%local != 0 {
		r.mu.Unlock()
		return cl.NewError(op, cl.InvalidWorkGroupSize)
	}
	if limit := k.device.spec.MaxWorkGroupSize; limit > 0 && uintptr(local) > limit {
		r.mu.Unlock()
		return cl.NewError(op, cl.InvalidWorkGroupSize)
	}

	bufs := make([]*object, 3)
	for i := range bufs {
		m, ok := k.args[uint32(i)].(*object)
		if !ok {
			r.mu.Unlock()
			return cl.NewError(op, cl.InvalidKernelArgs)
		}
		if _, live := r.lookup(m.handle, KindMem); !live {
			r.mu.Unlock()
			return cl.NewError(op, cl.InvalidMemObject)
		}
		bufs[i] = m
	}
	count, ok := k.args[3].(uint32)
	if !ok {
		r.mu.Unlock()
		return cl.NewError(op, cl.InvalidKernelArgs)
	}
	n := int(count)

	width := 0
	if n > 0 {
		width = len(bufs[2].data) / n
	}
	if n > 0 && width != 4 && width != 8 {
		r.mu.Unlock()
		return cl.NewError(op, cl.InvalidKernelArgs)
	}
	for _, b := range bufs {
		if len(b.data) < n*width {
			r.mu.Unlock()
			return cl.NewError(op, cl.InvalidKernelArgs)
		}
	}

	r.launch = append(r.launch, Launch{
		Kernel:  k.name,
		Global:  global,
		Local:   local,
		N:       n,
		Padding: max(global-n, 0),
	})
	corrupt := make(map[int]float64, len(r.corrupt))
	for i, d := range r.corrupt {
		corrupt[i] = d
	}
	r.mu.Unlock()

	a, b, c := bufs[0].data, bufs[1].data, bufs[2].data
	execute(global, local, func(gid int) {
		// Work items past n fall through the bounds guard.
		if gid >= n {
			return
		}
		addElement(a, b, c, gid, width)
	})

	for i, delta := range corrupt {
		if i >= 0 && i < n {
			perturbElement(c, i, width, delta)
		}
	}
	return nil
}

// execute runs fn for every work item in [0, global), one goroutine per
// batch of work groups.
func execute(global, local int, fn func(gid int)) {
	groups := global / local
	workers := min(runtime.GOMAXPROCS(0), groups)
	per := (groups + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		first := w * per * local
		last := min((w+1)*per*local, global)
		if first >= last {
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for gid := first; gid < last; gid++ {
				fn(gid)
			}
		}()
	}
	wg.Wait()
}

func addElement(a, b, c []byte, i, width int) {
	off := i * width
	switch width {
	case 4:
		x := math.Float32frombits(binary.NativeEndian.Uint32(a[off:]))
		y := math.Float32frombits(binary.NativeEndian.Uint32(b[off:]))
		binary.NativeEndian.PutUint32(c[off:], math.Float32bits(x+y))
	case 8:
		x := math.Float64frombits(binary.NativeEndian.Uint64(a[off:]))
		y := math.Float64frombits(binary.NativeEndian.Uint64(b[off:]))
		binary.NativeEndian.PutUint64(c[off:], math.Float64bits(x+y))
	default:
		panic(fmt.Sprintf("sim: unsupported element width %d", width))
	}
}

func perturbElement(c []byte, i, width int, delta float64) {
	off := i * width
	switch width {
	case 4:
		v := math.Float32frombits(binary.NativeEndian.Uint32(c[off:]))
		binary.NativeEndian.PutUint32(c[off:], math.Float32bits(v+float32(delta)))
	case 8:
		v := math.Float64frombits(binary.NativeEndian.Uint64(c[off:]))
		binary.NativeEndian.PutUint64(c[off:], math.Float64bits(v+delta))
	}
}
