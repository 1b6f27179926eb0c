package sim

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clinventory/internal/cl"
)

const testKernel = `__kernel void vecAdd(__global const REAL *a, __global const REAL *b, __global REAL *c, const unsigned int n) {
	int gid = get_global_id(0);
	if (gid < n) c[gid] = a[gid] + b[gid];
}`

func testPlatform() PlatformSpec {
	return PlatformSpec{
		Name:    "Test Platform",
		Vendor:  "Test Vendor",
		Version: "OpenCL 1.2",
		Profile: "FULL_PROFILE",
		Devices: []DeviceSpec{
			{Name: "cpu0", Type: cl.DeviceType(cl.CategoryCPU), MaxWorkGroupSize: 256, Extensions: []string{"cl_khr_fp64"}},
			{Name: "gpu0", Type: cl.DeviceType(cl.CategoryGPU), MaxWorkGroupSize: 64},
		},
	}
}

func f32bytes(v []float32) []byte {
	out := make([]byte, 0, 4*len(v))
	for _, x := range v {
		out = binary.NativeEndian.AppendUint32(out, math.Float32bits(x))
	}
	return out
}

func TestPlatformAndDeviceEnumeration(t *testing.T) {
	rt := New(testPlatform(), PlatformSpec{Name: "Empty"})

	n, err := rt.GetPlatformIDs(nil)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	ids := make([]cl.PlatformID, n)
	_, err = rt.GetPlatformIDs(ids)
	require.NoError(t, err)

	devices := make([]cl.DeviceID, 4)
	got, err := rt.GetDeviceIDs(ids[0], cl.CategoryGPU, devices)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	got, err = rt.GetDeviceIDs(ids[0], cl.CategoryAll, devices)
	require.NoError(t, err)
	assert.Equal(t, 2, got)

	_, err = rt.GetDeviceIDs(ids[1], cl.CategoryCPU, devices)
	assert.ErrorIs(t, err, cl.DeviceNotFound)

	_, err = rt.GetDeviceIDs(cl.PlatformID(0xdead), cl.CategoryCPU, devices)
	assert.ErrorIs(t, err, cl.InvalidPlatform)
}

func TestInfoTwoPhase(t *testing.T) {
	rt := New(testPlatform())
	ids := make([]cl.PlatformID, 1)
	_, err := rt.GetPlatformIDs(ids)
	require.NoError(t, err)

	n, err := rt.GetPlatformInfo(ids[0], cl.PlatformName, nil)
	require.NoError(t, err)
	assert.Equal(t, len("Test Platform")+1, n)

	buf := make([]byte, n)
	_, err = rt.GetPlatformInfo(ids[0], cl.PlatformName, buf)
	require.NoError(t, err)
	assert.Equal(t, "Test Platform\x00", string(buf))

	_, err = rt.GetPlatformInfo(ids[0], cl.PlatformName, make([]byte, 2))
	assert.ErrorIs(t, err, cl.InvalidValue)
}

func TestOverridesRemoveProperties(t *testing.T) {
	spec := testPlatform()
	spec.Devices[0].Overrides = map[cl.DeviceKey][]byte{cl.DeviceMaxComputeUnits: nil}
	rt := New(spec)

	_, err := rt.GetDeviceInfo(cl.DeviceID(deviceBase), cl.DeviceMaxComputeUnits, nil)
	assert.ErrorIs(t, err, cl.InvalidValue)
}

func TestFaultInjection(t *testing.T) {
	rt := New(testPlatform())
	rt.FailAfter(OpGetDeviceInfo, 1, cl.OutOfResources)

	_, err := rt.GetDeviceInfo(cl.DeviceID(deviceBase), cl.DeviceName, nil)
	require.NoError(t, err)
	_, err = rt.GetDeviceInfo(cl.DeviceID(deviceBase), cl.DeviceName, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cl.OutOfResources)
	assert.Equal(t, 2, rt.Calls(OpGetDeviceInfo))

	rt.ClearFaults()
	_, err = rt.GetDeviceInfo(cl.DeviceID(deviceBase), cl.DeviceName, nil)
	assert.NoError(t, err)
}

func TestReleaseLedger(t *testing.T) {
	rt := New(testPlatform())
	dev := cl.DeviceID(deviceBase)

	ctx, err := rt.CreateContext(dev)
	require.NoError(t, err)
	q, err := rt.CreateCommandQueue(ctx, dev)
	require.NoError(t, err)
	assert.Equal(t, 2, rt.Live())

	require.NoError(t, rt.ReleaseCommandQueue(q))
	require.NoError(t, rt.ReleaseContext(ctx))
	assert.Zero(t, rt.Live())

	err = rt.ReleaseContext(ctx)
	assert.ErrorIs(t, err, cl.InvalidContext)

	events := rt.Events()
	require.Len(t, events, 4)
	assert.Equal(t, KindContext, events[0].Kind)
	assert.True(t, events[2].Release)
	assert.Equal(t, KindQueue, events[2].Kind)
}

func TestBuildRequiresDoubleSupport(t *testing.T) {
	rt := New(testPlatform())
	gpu := cl.DeviceID(deviceBase + 1)

	ctx, err := rt.CreateContext(gpu)
	require.NoError(t, err)
	prog, err := rt.CreateProgramWithSource(ctx, testKernel)
	require.NoError(t, err)

	err = rt.BuildProgram(prog, gpu, "-DREAL=double -DUSE_FP64")
	require.Error(t, err)
	assert.ErrorIs(t, err, cl.BuildProgramFailure)

	n, err := rt.GetProgramBuildLog(prog, gpu, nil)
	require.NoError(t, err)
	assert.Greater(t, n, 1)

	_, err = rt.CreateKernel(prog, "vecAdd")
	assert.ErrorIs(t, err, cl.InvalidProgramExecutable)

	require.NoError(t, rt.BuildProgram(prog, gpu, "-DREAL=float"))
	_, err = rt.CreateKernel(prog, "vecMul")
	assert.ErrorIs(t, err, cl.InvalidKernelName)
}

func TestVectorAddExecution(t *testing.T) {
	rt := New(testPlatform())
	dev := cl.DeviceID(deviceBase)
	const n = 13
	const local = 4

	ctx, err := rt.CreateContext(dev)
	require.NoError(t, err)
	q, err := rt.CreateCommandQueue(ctx, dev)
	require.NoError(t, err)

	a := make([]float32, n)
	b := make([]float32, n)
	for i := range a {
		a[i] = float32(i)
		b[i] = float32(2 * i)
	}

	var mems []cl.Mem
	for _, flags := range []cl.MemFlags{cl.MemReadOnly, cl.MemReadOnly, cl.MemWriteOnly} {
		m, err := rt.CreateBuffer(ctx, flags, 4*n)
		require.NoError(t, err)
		mems = append(mems, m)
	}
	require.NoError(t, rt.EnqueueWriteBuffer(q, mems[0], true, f32bytes(a)))
	require.NoError(t, rt.EnqueueWriteBuffer(q, mems[1], true, f32bytes(b)))

	prog, err := rt.CreateProgramWithSource(ctx, testKernel)
	require.NoError(t, err)
	require.NoError(t, rt.BuildProgram(prog, dev, "-DREAL=float"))
	k, err := rt.CreateKernel(prog, "vecAdd")
	require.NoError(t, err)

	err = rt.EnqueueNDRangeKernel(q, k, 16, local)
	assert.ErrorIs(t, err, cl.InvalidKernelArgs)

	for i, m := range mems {
		require.NoError(t, rt.SetKernelArg(k, uint32(i), m))
	}
	require.NoError(t, rt.SetKernelArg(k, 3, uint32(n)))

	err = rt.EnqueueNDRangeKernel(q, k, 13, local)
	assert.ErrorIs(t, err, cl.InvalidWorkGroupSize)

	rt.CorruptResult(5, 1)
	require.NoError(t, rt.EnqueueNDRangeKernel(q, k, 16, local))
	require.NoError(t, rt.Finish(q))

	out := make([]byte, 4*n)
	require.NoError(t, rt.EnqueueReadBuffer(q, mems[2], true, out))
	for i := 0; i < n; i++ {
		got := math.Float32frombits(binary.NativeEndian.Uint32(out[4*i:]))
		want := float32(3 * i)
		if i == 5 {
			want++
		}
		assert.Equal(t, want, got, "element %d", i)
	}

	launches := rt.Launches()
	require.Len(t, launches, 1)
	assert.Equal(t, Launch{Kernel: "vecAdd", Global: 16, Local: 4, N: n, Padding: 3}, launches[0])
}

func TestUnavailableDeviceRefusesContext(t *testing.T) {
	spec := testPlatform()
	spec.Devices[0].Unavailable = true
	rt := New(spec)

	_, err := rt.CreateContext(cl.DeviceID(deviceBase))
	var clErr *cl.Error
	require.True(t, errors.As(err, &clErr))
	assert.Equal(t, cl.DeviceNotAvailable, clErr.Code)
}

func TestHostPlatform(t *testing.T) {
	p := HostPlatform()
	require.Len(t, p.Devices, 1)
	assert.True(t, cl.CategoryCPU.Includes(p.Devices[0].Type))
	assert.NotEmpty(t, p.Devices[0].Name)
	assert.True(t, p.Devices[0].supportsDouble())
}
