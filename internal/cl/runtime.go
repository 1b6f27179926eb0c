// Package cl defines the boundary between clinventory and an OpenCL-style
// compute runtime: opaque handles, property keys, status codes and the
// Runtime interface implemented by the cgo binding and the host simulator.
package cl

// Runtime mirrors the subset of the OpenCL host API the inventory and the
// dispatch pipeline need. Errors returned by implementations are *Error values.
//
// Query methods follow the OpenCL two-call convention: a nil or empty dst asks
// only for the required size (or count), which is always returned.
type Runtime interface {
	// Discovery
	GetPlatformIDs(dst []PlatformID) (int, error)
	GetPlatformInfo(platform PlatformID, key PlatformKey, dst []byte) (int, error)
	GetDeviceIDs(platform PlatformID, category Category, dst []DeviceID) (int, error)
	GetDeviceInfo(device DeviceID, key DeviceKey, dst []byte) (int, error)

	// Resource lifecycle
	CreateContext(device DeviceID) (Context, error)
	CreateCommandQueue(ctx Context, device DeviceID) (Queue, error)
	CreateBuffer(ctx Context, flags MemFlags, size int) (Mem, error)
	CreateProgramWithSource(ctx Context, source string) (Program, error)
	BuildProgram(program Program, device DeviceID, options string) error
	GetProgramBuildLog(program Program, device DeviceID, dst []byte) (int, error)
	CreateKernel(program Program, name string) (Kernel, error)

	// SetKernelArg accepts a Mem for buffer arguments or a uint32 scalar.
	SetKernelArg(kernel Kernel, index uint32, arg any) error

	// Blocking transfers and execution
	EnqueueWriteBuffer(queue Queue, mem Mem, blocking bool, src []byte) error
	EnqueueNDRangeKernel(queue Queue, kernel Kernel, global, local int) error
	Finish(queue Queue) error
	EnqueueReadBuffer(queue Queue, mem Mem, blocking bool, dst []byte) error

	ReleaseKernel(kernel Kernel) error
	ReleaseProgram(program Program) error
	ReleaseMemObject(mem Mem) error
	ReleaseCommandQueue(queue Queue) error
	ReleaseContext(ctx Context) error
}
