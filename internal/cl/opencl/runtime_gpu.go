//go:build gpu

package opencl

/*
#cgo LDFLAGS: -lOpenCL
#define CL_TARGET_OPENCL_VERSION 120
#define CL_USE_DEPRECATED_OPENCL_1_2_APIS
#include <CL/cl.h>
#include <stdlib.h>

static cl_command_queue clinventory_create_queue(cl_context ctx, cl_device_id device, cl_int *status) {
#if CL_TARGET_OPENCL_VERSION >= 200
	const cl_queue_properties props[] = {0};
	return clCreateCommandQueueWithProperties(ctx, device, props, status);
#else
	return clCreateCommandQueue(ctx, device, 0, status);
#endif
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/cwbudde/clinventory/internal/cl"
)

// Runtime talks to the installed OpenCL ICD loader.
type Runtime struct{}

// Open returns a runtime bound to libOpenCL. Loading happens at process start,
// so the call cannot fail once the binary links.
func Open() (*Runtime, error) {
	return &Runtime{}, nil
}

// Close is a no-op; platforms and devices are not owned.
func (r *Runtime) Close() {}

func status(op string, s C.cl_int) error {
	return cl.NewError(op, cl.Status(s))
}

func platformID(p cl.PlatformID) C.cl_platform_id { return C.cl_platform_id(unsafe.Pointer(uintptr(p))) }
func deviceID(d cl.DeviceID) C.cl_device_id { return C.cl_device_id(unsafe.Pointer(uintptr(d))) }
func context(c cl.Context) C.cl_context { return C.cl_context(unsafe.Pointer(uintptr(c))) }
func queue(q cl.Queue) C.cl_command_queue { return C.cl_command_queue(unsafe.Pointer(uintptr(q))) }
func mem(m cl.Mem) C.cl_mem { return C.cl_mem(unsafe.Pointer(uintptr(m))) }
func program(p cl.Program) C.cl_program { return C.cl_program(unsafe.Pointer(uintptr(p))) }
func kernel(k cl.Kernel) C.cl_kernel { return C.cl_kernel(unsafe.Pointer(uintptr(k))) }

func bytePtr(buf []byte) unsafe.Pointer {
	if len(buf) == 0 {
		return nil
	}
	return unsafe.Pointer(&buf[0])
}

func (r *Runtime) GetPlatformIDs(dst []cl.PlatformID) (int, error) {
	var count C.cl_uint
	if len(dst) == 0 {
		s := C.clGetPlatformIDs(0, nil, &count)
		return int(count), status("clGetPlatformIDs(count)", s)
	}

	ids := make([]C.cl_platform_id, len(dst))
	s := C.clGetPlatformIDs(C.cl_uint(len(ids)), &ids[0], &count)
	if err := status("clGetPlatformIDs(list)", s); err != nil {
		return 0, err
	}
	for i := 0; i < len(dst) && i < int(count); i++ {
		dst[i] = cl.PlatformID(uintptr(unsafe.Pointer(ids[i])))
	}
	return int(count), nil
}

func (r *Runtime) GetPlatformInfo(p cl.PlatformID, key cl.PlatformKey, dst []byte) (int, error) {
	var size C.size_t
	s := C.clGetPlatformInfo(platformID(p), C.cl_platform_info(key), C.size_t(len(dst)), bytePtr(dst), &size)
	return int(size), status(fmt.Sprintf("clGetPlatformInfo(%#x)", uint32(key)), s)
}

func (r *Runtime) GetDeviceIDs(p cl.PlatformID, category cl.Category, dst []cl.DeviceID) (int, error) {
	var count C.cl_uint
	if len(dst) == 0 {
		s := C.clGetDeviceIDs(platformID(p), C.cl_device_type(category), 0, nil, &count)
		return int(count), status("clGetDeviceIDs(count)", s)
	}

	ids := make([]C.cl_device_id, len(dst))
	s := C.clGetDeviceIDs(platformID(p), C.cl_device_type(category), C.cl_uint(len(ids)), &ids[0], &count)
	if err := status("clGetDeviceIDs(list)", s); err != nil {
		return 0, err
	}
	for i := 0; i < len(dst) && i < int(count); i++ {
		dst[i] = cl.DeviceID(uintptr(unsafe.Pointer(ids[i])))
	}
	return int(count), nil
}

func (r *Runtime) GetDeviceInfo(d cl.DeviceID, key cl.DeviceKey, dst []byte) (int, error) {
	var size C.size_t
	s := C.clGetDeviceInfo(deviceID(d), C.cl_device_info(key), C.size_t(len(dst)), bytePtr(dst), &size)
	return int(size), status(fmt.Sprintf("clGetDeviceInfo(%#x)", uint32(key)), s)
}

func (r *Runtime) CreateContext(d cl.DeviceID) (cl.Context, error) {
	var s C.cl_int
	id := deviceID(d)
	ctx := C.clCreateContext(nil, 1, &id, nil, nil, &s)
	if err := status("clCreateContext", s); err != nil {
		return 0, err
	}
	return cl.Context(uintptr(unsafe.Pointer(ctx))), nil
}

func (r *Runtime) CreateCommandQueue(ctx cl.Context, d cl.DeviceID) (cl.Queue, error) {
	var s C.cl_int
	q := C.clinventory_create_queue(context(ctx), deviceID(d), &s)
	if err := status("clCreateCommandQueue", s); err != nil {
		return 0, err
	}
	return cl.Queue(uintptr(unsafe.Pointer(q))), nil
}

func (r *Runtime) CreateBuffer(ctx cl.Context, flags cl.MemFlags, size int) (cl.Mem, error) {
	var s C.cl_int
	m := C.clCreateBuffer(context(ctx), C.cl_mem_flags(flags), C.size_t(size), nil, &s)
	if err := status("clCreateBuffer", s); err != nil {
		return 0, err
	}
	if m == nil {
		return 0, cl.NewError("clCreateBuffer", cl.InvalidMemObject)
	}
	return cl.Mem(uintptr(unsafe.Pointer(m))), nil
}

func (r *Runtime) CreateProgramWithSource(ctx cl.Context, source string) (cl.Program, error) {
	src := C.CString(source)
	defer C.free(unsafe.Pointer(src))

	var s C.cl_int
	p := C.clCreateProgramWithSource(context(ctx), 1, &src, nil, &s)
	if err := status("clCreateProgramWithSource", s); err != nil {
		return 0, err
	}
	return cl.Program(uintptr(unsafe.Pointer(p))), nil
}

func (r *Runtime) BuildProgram(p cl.Program, d cl.DeviceID, options string) error {
	opts := C.CString(options)
	defer C.free(unsafe.Pointer(opts))

	id := deviceID(d)
	s := C.clBuildProgram(program(p), 1, &id, opts, nil, nil)
	return status("clBuildProgram", s)
}

func (r *Runtime) GetProgramBuildLog(p cl.Program, d cl.DeviceID, dst []byte) (int, error) {
	var size C.size_t
	s := C.clGetProgramBuildInfo(program(p), deviceID(d), C.CL_PROGRAM_BUILD_LOG, C.size_t(len(dst)), bytePtr(dst), &size)
	return int(size), status("clGetProgramBuildInfo(log)", s)
}

func (r *Runtime) CreateKernel(p cl.Program, name string) (cl.Kernel, error) {
	kernelName := C.CString(name)
	defer C.free(unsafe.Pointer(kernelName))

	var s C.cl_int
	k := C.clCreateKernel(program(p), kernelName, &s)
	if err := status("clCreateKernel", s); err != nil {
		return 0, err
	}
	return cl.Kernel(uintptr(unsafe.Pointer(k))), nil
}

func (r *Runtime) SetKernelArg(k cl.Kernel, index uint32, arg any) error {
	op := fmt.Sprintf("clSetKernelArg(%d)", index)
	switch v := arg.(type) {
	case cl.Mem:
		m := mem(v)
		return status(op, C.clSetKernelArg(kernel(k), C.cl_uint(index), C.size_t(unsafe.Sizeof(m)), unsafe.Pointer(&m)))
	case uint32:
		u := C.cl_uint(v)
		return status(op, C.clSetKernelArg(kernel(k), C.cl_uint(index), C.size_t(unsafe.Sizeof(u)), unsafe.Pointer(&u)))
	default:
		return cl.NewError(op, cl.InvalidArgValue)
	}
}

func blockingFlag(blocking bool) C.cl_bool {
	if blocking {
		return C.CL_TRUE
	}
	return C.CL_FALSE
}

func (r *Runtime) EnqueueWriteBuffer(q cl.Queue, m cl.Mem, blocking bool, src []byte) error {
	s := C.clEnqueueWriteBuffer(queue(q), mem(m), blockingFlag(blocking), 0, C.size_t(len(src)), bytePtr(src), 0, nil, nil)
	return status("clEnqueueWriteBuffer", s)
}

func (r *Runtime) EnqueueNDRangeKernel(q cl.Queue, k cl.Kernel, global, local int) error {
	g := C.size_t(global)
	l := C.size_t(local)
	s := C.clEnqueueNDRangeKernel(queue(q), kernel(k), 1, nil, &g, &l, 0, nil, nil)
	return status("clEnqueueNDRangeKernel", s)
}

func (r *Runtime) Finish(q cl.Queue) error {
	return status("clFinish", C.clFinish(queue(q)))
}

func (r *Runtime) EnqueueReadBuffer(q cl.Queue, m cl.Mem, blocking bool, dst []byte) error {
	s := C.clEnqueueReadBuffer(queue(q), mem(m), blockingFlag(blocking), 0, C.size_t(len(dst)), bytePtr(dst), 0, nil, nil)
	return status("clEnqueueReadBuffer", s)
}

func (r *Runtime) ReleaseKernel(k cl.Kernel) error {
	return status("clReleaseKernel", C.clReleaseKernel(kernel(k)))
}

func (r *Runtime) ReleaseProgram(p cl.Program) error {
	return status("clReleaseProgram", C.clReleaseProgram(program(p)))
}

func (r *Runtime) ReleaseMemObject(m cl.Mem) error {
	return status("clReleaseMemObject", C.clReleaseMemObject(mem(m)))
}

func (r *Runtime) ReleaseCommandQueue(q cl.Queue) error {
	return status("clReleaseCommandQueue", C.clReleaseCommandQueue(queue(q)))
}

func (r *Runtime) ReleaseContext(ctx cl.Context) error {
	return status("clReleaseContext", C.clReleaseContext(context(ctx)))
}

var _ cl.Runtime = (*Runtime)(nil)
