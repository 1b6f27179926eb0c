package inventory

import (
	"bytes"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/clinventory/internal/cl"
	"github.com/cwbudde/clinventory/internal/cl/sim"
	"github.com/cwbudde/clinventory/internal/metrics"
)

func cpuDevice(name string) sim.DeviceSpec {
	return sim.DeviceSpec{
		Name:             name,
		Vendor:           "Acme",
		Version:          "OpenCL 1.2",
		Type:             cl.DeviceType(cl.CategoryCPU),
		ComputeUnits:     8,
		MaxWorkGroupSize: 1024,
		GlobalMemSize:    16 << 30,
		Extensions:       []string{"cl_khr_fp64"},
	}
}

func onePlatform(devices ...sim.DeviceSpec) *sim.Runtime {
	return sim.New(sim.PlatformSpec{
		Name:    "Acme OpenCL",
		Vendor:  "Acme",
		Version: "OpenCL 1.2",
		Profile: "FULL_PROFILE",
		Devices: devices,
	})
}

func firstPlatform(t *testing.T, rt cl.Runtime) Platform {
	t.Helper()
	platforms, err := ListPlatforms(rt)
	require.NoError(t, err)
	require.NotEmpty(t, platforms)
	return platforms[0]
}

func TestQueryFixed(t *testing.T) {
	rt := onePlatform(cpuDevice("cpu0"))
	p := firstPlatform(t, rt)
	devices, _, err := ListDevices(rt, p.ID, cl.CategoryCPU, 0)
	require.NoError(t, err)

	units, err := Query[cl.Uint](rt, devices[0], cl.DeviceMaxComputeUnits)
	require.NoError(t, err)
	assert.Equal(t, cl.Uint(8), units)

	mem, err := Query[cl.Ulong](rt, devices[0], cl.DeviceGlobalMemSize)
	require.NoError(t, err)
	assert.Equal(t, cl.Ulong(16<<30), mem)

	wg, err := Query[cl.Size](rt, devices[0], cl.DeviceMaxWorkGroupSize)
	require.NoError(t, err)
	assert.Equal(t, cl.Size(1024), wg)

	dt, err := Query[cl.DeviceType](rt, devices[0], cl.DeviceTypeKey)
	require.NoError(t, err)
	assert.True(t, cl.CategoryCPU.Includes(dt))
}

func TestQuerySizeMismatch(t *testing.T) {
	spec := cpuDevice("cpu0")
	spec.Overrides = map[cl.DeviceKey][]byte{cl.DeviceMaxComputeUnits: {8, 0}}
	rt := onePlatform(spec)
	p := firstPlatform(t, rt)
	devices, _, err := ListDevices(rt, p.ID, cl.CategoryCPU, 0)
	require.NoError(t, err)

	_, err = Query[cl.Uint](rt, devices[0], cl.DeviceMaxComputeUnits)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSizeMismatch)

	var mismatch *SizeMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 4, mismatch.Want)
	assert.Equal(t, 2, mismatch.Got)
}

func TestQueryTextNoLengthLimit(t *testing.T) {
	long := strings.Repeat("cl_vendor_extension_", 200)
	spec := cpuDevice("cpu0")
	spec.Extensions = []string{long}
	rt := onePlatform(spec)
	p := firstPlatform(t, rt)
	devices, _, err := ListDevices(rt, p.ID, cl.CategoryCPU, 0)
	require.NoError(t, err)

	got, err := QueryText(rt, devices[0], cl.DeviceExtensions)
	require.NoError(t, err)
	assert.Equal(t, long, got)
}

func TestPropertyRead(t *testing.T) {
	rt := onePlatform(cpuDevice("cpu0"))
	p := firstPlatform(t, rt)
	devices, _, err := ListDevices(rt, p.ID, cl.CategoryCPU, 0)
	require.NoError(t, err)

	cases := []struct {
		prop Property
		want string
	}{
		{Property{Key: cl.DeviceName, Name: "Name", Kind: KindText}, "cpu0"},
		{Property{Key: cl.DeviceAvailable, Name: "Available", Kind: KindBool}, "yes"},
		{Property{Key: cl.DeviceMaxComputeUnits, Name: "Units", Kind: KindUint}, "8"},
		{Property{Key: cl.DeviceGlobalMemSize, Name: "Mem", Kind: KindUlong, Bytes: true}, "17179869184 (16 GiB)"},
		{Property{Key: cl.DeviceMaxWorkGroupSize, Name: "WG", Kind: KindSize}, "1024"},
	}
	for _, tc := range cases {
		t.Run(tc.prop.Name, func(t *testing.T) {
			v, err := tc.prop.Read(rt, devices[0])
			require.NoError(t, err)
			assert.Equal(t, tc.want, v.String())
		})
	}
}

func TestListPlatforms(t *testing.T) {
	rt := sim.New(
		sim.PlatformSpec{Name: "First", Vendor: "A", Version: "OpenCL 1.2", Profile: "FULL_PROFILE"},
		sim.PlatformSpec{Name: "Second", Vendor: "B", Version: "OpenCL 3.0", Profile: "EMBEDDED_PROFILE"},
	)
	platforms, err := ListPlatforms(rt)
	require.NoError(t, err)
	require.Len(t, platforms, 2)
	assert.Equal(t, "Second", platforms[1].Name)
	assert.Equal(t, "EMBEDDED_PROFILE", platforms[1].Profile)
	assert.Equal(t, 1, platforms[1].Index)
}

func TestListPlatformsEmpty(t *testing.T) {
	platforms, err := ListPlatforms(sim.New())
	require.NoError(t, err)
	assert.NotNil(t, platforms)
	assert.Empty(t, platforms)

	rt := sim.New()
	rt.Fail(sim.OpGetPlatformIDs, cl.PlatformNotFoundKHR)
	platforms, err = ListPlatforms(rt)
	require.NoError(t, err)
	assert.Empty(t, platforms)
}

func TestListPlatformsDiscoveryError(t *testing.T) {
	rt := sim.New()
	rt.Fail(sim.OpGetPlatformIDs, cl.OutOfHostMemory)

	_, err := ListPlatforms(rt)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPlatforms)
	assert.ErrorIs(t, err, cl.OutOfHostMemory)
}

func TestListPlatformsStringReadFailureIsNotFatal(t *testing.T) {
	rt := onePlatform(cpuDevice("cpu0"))
	// The name's size and data reads succeed; vendor, version and profile fail.
	rt.FailAfter(sim.OpGetPlatformInfo, 2, cl.InvalidValue)
	before := testutil.ToFloat64(metrics.CapabilityReadErrors.WithLabelValues("Platform vendor"))

	platforms, err := ListPlatforms(rt)
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	assert.Equal(t, "Acme OpenCL", platforms[0].Name)
	assert.Empty(t, platforms[0].Vendor)
	assert.Empty(t, platforms[0].Profile)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CapabilityReadErrors.WithLabelValues("Platform vendor")))

	rt = onePlatform(cpuDevice("cpu0"))
	rt.Fail(sim.OpGetPlatformInfo, cl.InvalidValue)
	platforms, err = ListPlatforms(rt)
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	assert.Equal(t, "platform 0", platforms[0].Label())
}

func TestReporterPlatformReadFailureStillListsDevices(t *testing.T) {
	rt := onePlatform(cpuDevice("cpu0"))
	rt.FailAfter(sim.OpGetPlatformInfo, 2, cl.InvalidValue)

	var buf bytes.Buffer
	NewReporter(rt, &buf).Report()
	out := buf.String()

	assert.NotContains(t, out, "enumeration failed")
	assert.Contains(t, out, "Number of platforms: 1")
	assert.Contains(t, out, "Platform 0: Acme OpenCL")
	assert.Contains(t, out, "CPU: 1\n")
	assert.Contains(t, out, "cpu0")
}

func TestListDevices(t *testing.T) {
	rt := onePlatform(cpuDevice("cpu0"), cpuDevice("cpu1"), cpuDevice("cpu2"))
	p := firstPlatform(t, rt)

	devices, total, err := ListDevices(rt, p.ID, cl.CategoryCPU, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, devices, 2)

	again, total2, err := ListDevices(rt, p.ID, cl.CategoryCPU, 2)
	require.NoError(t, err)
	assert.Equal(t, devices, again)
	assert.Equal(t, total, total2)

	all, total, err := ListDevices(rt, p.ID, cl.CategoryAll, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, all, 3)
}

func TestListDevicesEmptyCategory(t *testing.T) {
	rt := onePlatform(cpuDevice("cpu0"))
	p := firstPlatform(t, rt)

	devices, total, err := ListDevices(rt, p.ID, cl.CategoryGPU, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, devices)
}

func TestListDevicesPropagatesOtherErrors(t *testing.T) {
	rt := onePlatform(cpuDevice("cpu0"))
	p := firstPlatform(t, rt)
	rt.Fail(sim.OpGetDeviceIDs, cl.InvalidDeviceType)

	_, _, err := ListDevices(rt, p.ID, cl.CategoryCPU, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, cl.InvalidDeviceType)
}

func TestReporterZeroPlatforms(t *testing.T) {
	var buf bytes.Buffer
	NewReporter(sim.New(), &buf).Report()
	assert.Equal(t, "Number of platforms: 0\n", buf.String())
}

func TestReporterCategories(t *testing.T) {
	var buf bytes.Buffer
	NewReporter(onePlatform(cpuDevice("cpu0")), &buf).Report()
	out := buf.String()

	assert.Contains(t, out, "Number of platforms: 1")
	assert.Contains(t, out, "CPU: 1\n")
	assert.Contains(t, out, "GPU: 0\n")
	assert.Contains(t, out, "Accelerator: 0\n")
	assert.Contains(t, out, "All: 1\n")
	assert.Contains(t, out, "cpu0")
	assert.Less(t, strings.Index(out, "CPU:"), strings.Index(out, "GPU:"))
	assert.Less(t, strings.Index(out, "GPU:"), strings.Index(out, "Accelerator:"))
}

func TestReporterFieldFailureMarksDeviceAndContinues(t *testing.T) {
	broken := cpuDevice("broken")
	broken.Overrides = map[cl.DeviceKey][]byte{cl.DeviceVendor: nil}
	rt := onePlatform(broken, cpuDevice("healthy"))

	before := testutil.ToFloat64(metrics.CapabilityReadErrors.WithLabelValues("Vendor"))

	var buf bytes.Buffer
	r := NewReporter(rt, &buf)
	r.Categories = []cl.Category{cl.CategoryCPU}
	r.Report()
	out := buf.String()

	assert.Contains(t, out, "! read Vendor")
	assert.Contains(t, out, "healthy")
	assert.Contains(t, out, "Acme")
	// CPU category lists both devices; only the broken one lost its block tail.
	assert.Equal(t, 1, strings.Count(out, "! read"))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CapabilityReadErrors.WithLabelValues("Vendor")))
}

func TestReporterEnumerationFailureSkipsPlatform(t *testing.T) {
	rt := sim.New(
		sim.PlatformSpec{Name: "P0", Devices: []sim.DeviceSpec{cpuDevice("cpu0")}},
		sim.PlatformSpec{Name: "P1", Devices: []sim.DeviceSpec{cpuDevice("cpu1")}},
	)
	// Count and list for P0's CPU category succeed, then everything fails.
	rt.FailAfter(sim.OpGetDeviceIDs, 2, cl.OutOfResources)

	var buf bytes.Buffer
	NewReporter(rt, &buf).Report()
	out := buf.String()

	assert.Contains(t, out, "GPU: enumeration failed")
	assert.Contains(t, out, "Platform 1: P1")
	assert.NotContains(t, out, "Accelerator:")
}

func TestReporterMaxDevices(t *testing.T) {
	rt := onePlatform(cpuDevice("cpu0"), cpuDevice("cpu1"))
	var buf bytes.Buffer
	r := NewReporter(rt, &buf)
	r.Categories = []cl.Category{cl.CategoryCPU}
	r.MaxDevices = 1
	r.Report()

	assert.Contains(t, buf.String(), "CPU: 2\n")
	assert.Contains(t, buf.String(), "(1 more not shown)")
	assert.NotContains(t, buf.String(), "cpu1")
}

func TestWriteHostSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteHostSummary(&buf)
	assert.True(t, strings.HasPrefix(buf.String(), "Host\n"))
	assert.Contains(t, buf.String(), "Architecture")
	assert.Contains(t, buf.String(), "Cacheline")
	assert.Equal(t, int64(120_000_000), HostAllocation(10_000_000, 4))
}
