package sim

import (
	"encoding/binary"
	"strings"

	"github.com/klauspost/cpuid/v2"

	"github.com/cwbudde/clinventory/internal/cl"
)

// DeviceSpec describes one simulated device. Zero numeric fields are reported
// as zero; Overrides replace (or, with a nil value, remove) encoded properties.
type DeviceSpec struct {
	Name           string
	Vendor         string
	Version        string
	DriverVersion  string
	Profile        string
	OpenCLCVersion string
	Extensions     []string

	Type             cl.DeviceType
	ComputeUnits     uint32
	ClockMHz         uint32
	MaxWorkGroupSize uintptr
	AddressBits      uint32

	GlobalMemSize      uint64
	MaxAllocSize       uint64
	GlobalCacheSize    uint64
	CachelineSize      uint32
	LocalMemSize       uint64
	ConstantBufferSize uint64
	BaseAddrAlignBits  uint32

	// VectorWidth is used for every preferred and native vector width key.
	VectorWidth uint32

	Unavailable   bool
	ECC           bool
	UnifiedMemory bool
	ImageSupport  bool

	Overrides map[cl.DeviceKey][]byte
}

// PlatformSpec describes one simulated platform and its devices.
type PlatformSpec struct {
	Name       string
	Vendor     string
	Version    string
	Profile    string
	Extensions []string
	Devices    []DeviceSpec
}

// HostPlatform describes a single platform exposing the host CPU as one
// CPU-category device, with capabilities read from cpuid.
func HostPlatform() PlatformSpec {
	return PlatformSpec{
		Name:    "clinventory host simulator",
		Vendor:  "clinventory",
		Version: "OpenCL 1.2 sim",
		Profile: "FULL_PROFILE",
		Devices: []DeviceSpec{HostCPU()},
	}
}

// HostCPU describes the machine's processor as a CPU device.
func HostCPU() DeviceSpec {
	cpu := cpuid.CPU

	name := strings.TrimSpace(cpu.BrandName)
	if name == "" {
		name = "host cpu"
	}
	vendor := cpu.VendorString
	if vendor == "" {
		vendor = cpu.VendorID.String()
	}

	units := cpu.LogicalCores
	if units <= 0 {
		units = 1
	}

	width := uint32(4)
	if cpu.Supports(cpuid.AVX512F) {
		width = 16
	} else if cpu.Supports(cpuid.AVX2) {
		width = 8
	}

	extensions := []string{"cl_khr_fp64", "cl_khr_byte_addressable_store", "cl_khr_global_int32_base_atomics"}

	return DeviceSpec{
		Name:               name,
		Vendor:             vendor,
		Version:            "OpenCL 1.2 sim",
		DriverVersion:      "1.0",
		Profile:            "FULL_PROFILE",
		OpenCLCVersion:     "OpenCL C 1.2",
		Extensions:         extensions,
		Type:               cl.DeviceType(cl.CategoryCPU | cl.CategoryDefault),
		ComputeUnits:       uint32(units),
		ClockMHz:           uint32(cpu.Hz / 1_000_000),
		MaxWorkGroupSize:   8192,
		AddressBits:        64,
		GlobalMemSize:      8 << 30,
		MaxAllocSize:       2 << 30,
		GlobalCacheSize:    uint64(max(cpu.Cache.L2, 0)),
		CachelineSize:      uint32(max(cpu.CacheLine, 0)),
		LocalMemSize:       32 << 10,
		ConstantBufferSize: 128 << 10,
		BaseAddrAlignBits:  1024,
		VectorWidth:        width,
		UnifiedMemory:      true,
	}
}

func text(s string) []byte {
	return append([]byte(s), 0)
}

func u32(v uint32) []byte {
	return binary.NativeEndian.AppendUint32(nil, v)
}

func u64(v uint64) []byte {
	return binary.NativeEndian.AppendUint64(nil, v)
}

func size(v uintptr) []byte {
	if ptrSize == 4 {
		return u32(uint32(v))
	}
	return u64(uint64(v))
}

func boolean(v bool) []byte {
	if v {
		return u32(1)
	}
	return u32(0)
}

const ptrSize = 4 << (^uintptr(0) >> 63)

func (s PlatformSpec) properties() map[cl.PlatformKey][]byte {
	return map[cl.PlatformKey][]byte{
		cl.PlatformName:       text(s.Name),
		cl.PlatformVendor:     text(s.Vendor),
		cl.PlatformVersion:    text(s.Version),
		cl.PlatformProfile:    text(s.Profile),
		cl.PlatformExtensions: text(strings.Join(s.Extensions, " ")),
	}
}

func (s DeviceSpec) properties(platform cl.PlatformID) map[cl.DeviceKey][]byte {
	props := map[cl.DeviceKey][]byte{
		cl.DeviceTypeKey:                  u64(uint64(s.Type)),
		cl.DeviceVendorID:                 u32(0),
		cl.DeviceName:                     text(s.Name),
		cl.DeviceVendor:                   text(s.Vendor),
		cl.DeviceVersion:                  text(s.Version),
		cl.DriverVersion:                  text(s.DriverVersion),
		cl.DeviceProfile:                  text(s.Profile),
		cl.DeviceOpenCLCVersion:           text(s.OpenCLCVersion),
		cl.DeviceExtensions:               text(strings.Join(s.Extensions, " ")),
		cl.DeviceAvailable:                boolean(!s.Unavailable),
		cl.DeviceCompilerAvailable:        boolean(true),
		cl.DeviceEndianLittle:             boolean(binary.NativeEndian.Uint16([]byte{1, 0}) == 1),
		cl.DeviceMaxComputeUnits:          u32(s.ComputeUnits),
		cl.DeviceMaxClockFrequency:        u32(s.ClockMHz),
		cl.DeviceMaxWorkGroupSize:         size(s.MaxWorkGroupSize),
		cl.DeviceMaxWorkItemDimensions:    u32(3),
		cl.DeviceAddressBits:              u32(s.AddressBits),
		cl.DeviceMemBaseAddrAlign:         u32(s.BaseAddrAlignBits),
		cl.DeviceMaxMemAllocSize:          u64(s.MaxAllocSize),
		cl.DeviceGlobalMemSize:            u64(s.GlobalMemSize),
		cl.DeviceMaxConstantBufferSize:    u64(s.ConstantBufferSize),
		cl.DeviceGlobalMemCacheSize:       u64(s.GlobalCacheSize),
		cl.DeviceGlobalMemCachelineSize:   u32(s.CachelineSize),
		cl.DeviceLocalMemSize:             u64(s.LocalMemSize),
		cl.DeviceMaxParameterSize:         size(1024),
		cl.DeviceProfilingTimerResolution: size(1),
		cl.DeviceImageSupport:             boolean(s.ImageSupport),
		cl.DeviceErrorCorrectionSupport:   boolean(s.ECC),
		cl.DeviceHostUnifiedMemory:        boolean(s.UnifiedMemory),
	}

	for _, key := range []cl.DeviceKey{
		cl.DevicePreferredVectorWidthChar, cl.DevicePreferredVectorWidthShort,
		cl.DevicePreferredVectorWidthInt, cl.DevicePreferredVectorWidthLong,
		cl.DevicePreferredVectorWidthFloat, cl.DevicePreferredVectorWidthDbl,
		cl.DeviceNativeVectorWidthChar, cl.DeviceNativeVectorWidthShort,
		cl.DeviceNativeVectorWidthInt, cl.DeviceNativeVectorWidthLong,
		cl.DeviceNativeVectorWidthFloat, cl.DeviceNativeVectorWidthDbl,
	} {
		props[key] = u32(s.VectorWidth)
	}

	props[cl.DevicePlatform] = size(uintptr(platform))

	for key, raw := range s.Overrides {
		if raw == nil {
			delete(props, key)
			continue
		}
		props[key] = raw
	}
	return props
}

func (s DeviceSpec) supportsDouble() bool {
	for _, ext := range s.Extensions {
		if ext == "cl_khr_fp64" {
			return true
		}
	}
	return false
}
