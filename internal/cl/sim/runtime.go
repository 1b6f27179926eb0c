// Package sim is a host-emulated cl.Runtime. It serves inventories from
// PlatformSpec descriptions and executes the vecAdd entry point on the CPU
// with the requested work partition. Every owned object is tracked so tests
// can assert acquisition and release order, and any call can be made to fail
// with a chosen status.
package sim

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cwbudde/clinventory/internal/cl"
)

// Kind names an owned object type.
type Kind string

const (
	KindContext Kind = "context"
	KindQueue   Kind = "queue"
	KindMem     Kind = "mem"
	KindProgram Kind = "program"
	KindKernel  Kind = "kernel"
)

// Event is one entry in the acquisition/release ledger.
type Event struct {
	Release bool
	Kind    Kind
	Handle  uintptr
	Label   string
}

type platform struct {
	id      cl.PlatformID
	spec    PlatformSpec
	props   map[cl.PlatformKey][]byte
	devices []*device
}

type device struct {
	id       cl.DeviceID
	platform *platform
	spec     DeviceSpec
	props    map[cl.DeviceKey][]byte
}

type object struct {
	kind   Kind
	handle uintptr
	label  string
	device *device

	// mem
	flags cl.MemFlags
	data  []byte

	// program
	source   string
	built    bool
	buildLog string

	// kernel
	program *object
	name    string
	args    map[uint32]any
}

type fault struct {
	after int
	code  cl.Status
}

// Launch records one kernel enqueue.
type Launch struct {
	Kernel string
	Global int
	Local  int
	N      int
	// Padding is the number of work items past N that ran as no-ops.
	Padding int
}

// Runtime is safe for concurrent use. Kernel bodies run outside the lock,
// on buffers owned by the calling pass.
type Runtime struct {
	mu        sync.Mutex
	platforms []*platform
	devices   map[cl.DeviceID]*device
	objects   map[uintptr]*object
	next      uintptr

	faults  map[Op]fault
	calls   map[Op]int
	ledger  []Event
	launch  []Launch
	corrupt map[int]float64
}

const (
	platformBase = 0x100
	deviceBase   = 0x1000
	objectBase   = 0x10000
)

// New builds a runtime exposing the given platforms in order.
func New(specs ...PlatformSpec) *Runtime {
	r := &Runtime{
		devices: make(map[cl.DeviceID]*device),
		objects: make(map[uintptr]*object),
		next:    objectBase,
		faults:  make(map[Op]fault),
		calls:   make(map[Op]int),
		corrupt: make(map[int]float64),
	}

	deviceIndex := 0
	for i, spec := range specs {
		p := &platform{
			id:    cl.PlatformID(platformBase + i),
			spec:  spec,
			props: spec.properties(),
		}
		for _, ds := range spec.Devices {
			d := &device{
				id:       cl.DeviceID(deviceBase + deviceIndex),
				platform: p,
				spec:     ds,
			}
			d.props = ds.properties(p.id)
			deviceIndex++
			p.devices = append(p.devices, d)
			r.devices[d.id] = d
		}
		r.platforms = append(r.platforms, p)
	}
	return r
}

// Fail makes every call of op fail with code.
func (r *Runtime) Fail(op Op, code cl.Status) {
	r.FailAfter(op, 0, code)
}

// FailAfter lets the first n calls of op succeed and fails the rest with code.
func (r *Runtime) FailAfter(op Op, n int, code cl.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults[op] = fault{after: n, code: code}
}

// ClearFaults removes every injected failure.
func (r *Runtime) ClearFaults() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.faults = make(map[Op]fault)
}

// CorruptResult makes the kernel add delta to output element index.
func (r *Runtime) CorruptResult(index int, delta float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.corrupt[index] = delta
}

// check counts the call and returns the injected failure, if any. Callers hold mu.
func (r *Runtime) check(op Op) error {
	r.calls[op]++
	if f, ok := r.faults[op]; ok && r.calls[op] > f.after {
		return cl.NewError(op.String(), f.code)
	}
	return nil
}

// Calls reports how many times op was invoked.
func (r *Runtime) Calls(op Op) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

// Events returns a copy of the acquisition/release ledger.
func (r *Runtime) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.ledger...)
}

// Launches returns every recorded kernel launch.
func (r *Runtime) Launches() []Launch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Launch(nil), r.launch...)
}

// Live returns the number of owned objects not yet released.
func (r *Runtime) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects)
}

func (r *Runtime) acquire(o *object) uintptr {
	r.next++
	o.handle = r.next
	r.objects[o.handle] = o
	r.ledger = append(r.ledger, Event{Kind: o.kind, Handle: o.handle, Label: o.label})
	return o.handle
}

func (r *Runtime) lookup(handle uintptr, kind Kind) (*object, bool) {
	o, ok := r.objects[handle]
	if !ok || o.kind != kind {
		return nil, false
	}
	return o, true
}

func (r *Runtime) release(op Op, handle uintptr, kind Kind, invalid cl.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(op); err != nil {
		return err
	}
	o, ok := r.lookup(handle, kind)
	if !ok {
		return cl.NewError(op.String(), invalid)
	}
	delete(r.objects, handle)
	r.ledger = append(r.ledger, Event{Release: true, Kind: o.kind, Handle: o.handle, Label: o.label})
	return nil
}

func (r *Runtime) GetPlatformIDs(dst []cl.PlatformID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(OpGetPlatformIDs); err != nil {
		return 0, err
	}
	for i := 0; i < len(dst) && i < len(r.platforms); i++ {
		dst[i] = r.platforms[i].id
	}
	return len(r.platforms), nil
}

func (r *Runtime) platform(id cl.PlatformID) (*platform, bool) {
	i := int(id) - platformBase
	if i < 0 || i >= len(r.platforms) {
		return nil, false
	}
	return r.platforms[i], true
}

func copyInfo(op string, value []byte, dst []byte) (int, error) {
	if len(dst) == 0 {
		return len(value), nil
	}
	if len(dst) < len(value) {
		return 0, cl.NewError(op, cl.InvalidValue)
	}
	return copy(dst, value), nil
}

func (r *Runtime) GetPlatformInfo(id cl.PlatformID, key cl.PlatformKey, dst []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op := fmt.Sprintf("%s(%#x)", OpGetPlatformInfo, uint32(key))
	if err := r.check(OpGetPlatformInfo); err != nil {
		return 0, err
	}
	p, ok := r.platform(id)
	if !ok {
		return 0, cl.NewError(op, cl.InvalidPlatform)
	}
	value, ok := p.props[key]
	if !ok {
		return 0, cl.NewError(op, cl.InvalidValue)
	}
	return copyInfo(op, value, dst)
}

func (r *Runtime) GetDeviceIDs(id cl.PlatformID, category cl.Category, dst []cl.DeviceID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(OpGetDeviceIDs); err != nil {
		return 0, err
	}
	p, ok := r.platform(id)
	if !ok {
		return 0, cl.NewError(OpGetDeviceIDs.String(), cl.InvalidPlatform)
	}

	var matched []cl.DeviceID
	for _, d := range p.devices {
		if category.Includes(d.spec.Type) {
			matched = append(matched, d.id)
		}
	}
	if len(matched) == 0 {
		return 0, cl.NewError(OpGetDeviceIDs.String(), cl.DeviceNotFound)
	}
	copy(dst, matched)
	return len(matched), nil
}

func (r *Runtime) GetDeviceInfo(id cl.DeviceID, key cl.DeviceKey, dst []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	op := fmt.Sprintf("%s(%#x)", OpGetDeviceInfo, uint32(key))
	if err := r.check(OpGetDeviceInfo); err != nil {
		return 0, err
	}
	d, ok := r.devices[id]
	if !ok {
		return 0, cl.NewError(op, cl.InvalidDevice)
	}
	value, ok := d.props[key]
	if !ok {
		return 0, cl.NewError(op, cl.InvalidValue)
	}
	return copyInfo(op, value, dst)
}

func (r *Runtime) CreateContext(id cl.DeviceID) (cl.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(OpCreateContext); err != nil {
		return 0, err
	}
	d, ok := r.devices[id]
	if !ok {
		return 0, cl.NewError(OpCreateContext.String(), cl.InvalidDevice)
	}
	if d.spec.Unavailable {
		return 0, cl.NewError(OpCreateContext.String(), cl.DeviceNotAvailable)
	}
	return cl.Context(r.acquire(&object{kind: KindContext, device: d, label: d.spec.Name})), nil
}

func (r *Runtime) CreateCommandQueue(ctx cl.Context, id cl.DeviceID) (cl.Queue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(OpCreateCommandQueue); err != nil {
		return 0, err
	}
	c, ok := r.lookup(uintptr(ctx), KindContext)
	if !ok {
		return 0, cl.NewError(OpCreateCommandQueue.String(), cl.InvalidContext)
	}
	if c.device.id != id {
		return 0, cl.NewError(OpCreateCommandQueue.String(), cl.InvalidDevice)
	}
	return cl.Queue(r.acquire(&object{kind: KindQueue, device: c.device})), nil
}

func (r *Runtime) CreateBuffer(ctx cl.Context, flags cl.MemFlags, size int) (cl.Mem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(OpCreateBuffer); err != nil {
		return 0, err
	}
	c, ok := r.lookup(uintptr(ctx), KindContext)
	if !ok {
		return 0, cl.NewError(OpCreateBuffer.String(), cl.InvalidContext)
	}
	if size <= 0 || (c.device.spec.MaxAllocSize > 0 && uint64(size) > c.device.spec.MaxAllocSize) {
		return 0, cl.NewError(OpCreateBuffer.String(), cl.InvalidBufferSize)
	}
	o := &object{kind: KindMem, device: c.device, flags: flags, data: make([]byte, size), label: flags.String()}
	return cl.Mem(r.acquire(o)), nil
}

func (r *Runtime) CreateProgramWithSource(ctx cl.Context, source string) (cl.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(OpCreateProgram); err != nil {
		return 0, err
	}
	c, ok := r.lookup(uintptr(ctx), KindContext)
	if !ok {
		return 0, cl.NewError(OpCreateProgram.String(), cl.InvalidContext)
	}
	if source == "" {
		return 0, cl.NewError(OpCreateProgram.String(), cl.InvalidValue)
	}
	return cl.Program(r.acquire(&object{kind: KindProgram, device: c.device, source: source})), nil
}

func (r *Runtime) BuildProgram(prog cl.Program, id cl.DeviceID, options string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.lookup(uintptr(prog), KindProgram)
	if !ok {
		return cl.NewError(OpBuildProgram.String(), cl.InvalidProgram)
	}
	if err := r.check(OpBuildProgram); err != nil {
		p.buildLog = "injected build failure"
		return err
	}
	if p.device.id != id {
		return cl.NewError(OpBuildProgram.String(), cl.InvalidDevice)
	}
	if !strings.Contains(p.source, "__kernel") {
		p.buildLog = "error: no kernel functions found in program source"
		return cl.NewError(OpBuildProgram.String(), cl.BuildProgramFailure)
	}
	if strings.Contains(options, "-DUSE_FP64") && !p.device.spec.supportsDouble() {
		p.buildLog = "error: double precision is not supported by " + p.device.spec.Name
		return cl.NewError(OpBuildProgram.String(), cl.BuildProgramFailure)
	}
	p.built = true
	p.buildLog = ""
	return nil
}

func (r *Runtime) GetProgramBuildLog(prog cl.Program, _ cl.DeviceID, dst []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.lookup(uintptr(prog), KindProgram)
	if !ok {
		return 0, cl.NewError("clGetProgramBuildInfo", cl.InvalidProgram)
	}
	return copyInfo("clGetProgramBuildInfo", text(p.buildLog), dst)
}

func (r *Runtime) CreateKernel(prog cl.Program, name string) (cl.Kernel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(OpCreateKernel); err != nil {
		return 0, err
	}
	p, ok := r.lookup(uintptr(prog), KindProgram)
	if !ok {
		return 0, cl.NewError(OpCreateKernel.String(), cl.InvalidProgram)
	}
	if !p.built {
		return 0, cl.NewError(OpCreateKernel.String(), cl.InvalidProgramExecutable)
	}
	if !strings.Contains(p.source, "void "+name+"(") {
		return 0, cl.NewError(OpCreateKernel.String(), cl.InvalidKernelName)
	}
	o := &object{kind: KindKernel, device: p.device, program: p, name: name, label: name, args: make(map[uint32]any)}
	return cl.Kernel(r.acquire(o)), nil
}

func (r *Runtime) SetKernelArg(kernel cl.Kernel, index uint32, arg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	op := fmt.Sprintf("%s(%d)", OpSetKernelArg, index)
	if err := r.check(OpSetKernelArg); err != nil {
		return err
	}
	k, ok := r.lookup(uintptr(kernel), KindKernel)
	if !ok {
		return cl.NewError(op, cl.InvalidKernel)
	}
	switch v := arg.(type) {
	case cl.Mem:
		m, ok := r.lookup(uintptr(v), KindMem)
		if !ok {
			return cl.NewError(op, cl.InvalidMemObject)
		}
		k.args[index] = m
	case uint32:
		k.args[index] = v
	default:
		return cl.NewError(op, cl.InvalidArgValue)
	}
	return nil
}

func (r *Runtime) EnqueueWriteBuffer(queue cl.Queue, mem cl.Mem, blocking bool, src []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(OpEnqueueWriteBuffer); err != nil {
		return err
	}
	if _, ok := r.lookup(uintptr(queue), KindQueue); !ok {
		return cl.NewError(OpEnqueueWriteBuffer.String(), cl.InvalidCommandQueue)
	}
	m, ok := r.lookup(uintptr(mem), KindMem)
	if !ok {
		return cl.NewError(OpEnqueueWriteBuffer.String(), cl.InvalidMemObject)
	}
	if len(src) > len(m.data) {
		return cl.NewError(OpEnqueueWriteBuffer.String(), cl.InvalidValue)
	}
	copy(m.data, src)
	return nil
}

func (r *Runtime) EnqueueReadBuffer(queue cl.Queue, mem cl.Mem, blocking bool, dst []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(OpEnqueueReadBuffer); err != nil {
		return err
	}
	if _, ok := r.lookup(uintptr(queue), KindQueue); !ok {
		return cl.NewError(OpEnqueueReadBuffer.String(), cl.InvalidCommandQueue)
	}
	m, ok := r.lookup(uintptr(mem), KindMem)
	if !ok {
		return cl.NewError(OpEnqueueReadBuffer.String(), cl.InvalidMemObject)
	}
	if len(dst) > len(m.data) {
		return cl.NewError(OpEnqueueReadBuffer.String(), cl.InvalidValue)
	}
	copy(dst, m.data)
	return nil
}

func (r *Runtime) Finish(queue cl.Queue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(OpFinish); err != nil {
		return err
	}
	if _, ok := r.lookup(uintptr(queue), KindQueue); !ok {
		return cl.NewError(OpFinish.String(), cl.InvalidCommandQueue)
	}
	return nil
}

func (r *Runtime) ReleaseKernel(kernel cl.Kernel) error {
	return r.release(OpReleaseKernel, uintptr(kernel), KindKernel, cl.InvalidKernel)
}

func (r *Runtime) ReleaseProgram(program cl.Program) error {
	return r.release(OpReleaseProgram, uintptr(program), KindProgram, cl.InvalidProgram)
}

func (r *Runtime) ReleaseMemObject(mem cl.Mem) error {
	return r.release(OpReleaseMemObject, uintptr(mem), KindMem, cl.InvalidMemObject)
}

func (r *Runtime) ReleaseCommandQueue(queue cl.Queue) error {
	return r.release(OpReleaseCommandQueue, uintptr(queue), KindQueue, cl.InvalidCommandQueue)
}

func (r *Runtime) ReleaseContext(ctx cl.Context) error {
	return r.release(OpReleaseContext, uintptr(ctx), KindContext, cl.InvalidContext)
}

var _ cl.Runtime = (*Runtime)(nil)
