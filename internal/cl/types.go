package cl

import (
	"fmt"
	"strings"
)

// Opaque handles handed out by a Runtime. Platform and device identifiers are
// not owned; everything else must be released exactly once.
type (
	PlatformID uintptr
	DeviceID   uintptr
	Context    uintptr
	Queue      uintptr
	Mem        uintptr
	Program    uintptr
	Kernel     uintptr
)

// Category is an OpenCL device type bitfield.
type Category uint64

const (
	CategoryDefault     Category = 1 << 0
	CategoryCPU         Category = 1 << 1
	CategoryGPU         Category = 1 << 2
	CategoryAccelerator Category = 1 << 3
	CategoryAll         Category = 0xFFFFFFFF
)

// Categories returns every category in reporting priority order.
// CategoryAll overlaps the others and is kept as its own entry.
func Categories() []Category {
	return []Category{CategoryCPU, CategoryGPU, CategoryAccelerator, CategoryDefault, CategoryAll}
}

func (c Category) String() string {
	switch c {
	case CategoryCPU:
		return "CPU"
	case CategoryGPU:
		return "GPU"
	case CategoryAccelerator:
		return "Accelerator"
	case CategoryDefault:
		return "Default"
	case CategoryAll:
		return "All"
	default:
		return fmt.Sprintf("Category(%#x)", uint64(c))
	}
}

// Includes reports whether a device of type dt matches the category.
func (c Category) Includes(dt DeviceType) bool {
	if c == CategoryAll {
		return true
	}
	return uint64(dt)&uint64(c) != 0
}

// ParseCategory maps user input such as "gpu" or "accel" to a category.
func ParseCategory(name string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cpu":
		return CategoryCPU, nil
	case "gpu":
		return CategoryGPU, nil
	case "accelerator", "accel", "acc":
		return CategoryAccelerator, nil
	case "default":
		return CategoryDefault, nil
	case "all":
		return CategoryAll, nil
	default:
		return 0, fmt.Errorf("unknown device category %q", name)
	}
}

// Fixed-size property value types. Sizes match the C types they mirror.
type (
	Bool       uint32
	Uint       uint32
	Ulong      uint64
	Size       uintptr
	DeviceType uint64
)

// Fixed constrains the values a fixed-size property can decode into.
type Fixed interface {
	~uint32 | ~uint64 | ~uintptr
}

// PlatformKey identifies a platform property.
type PlatformKey uint32

const (
	PlatformProfile    PlatformKey = 0x0900
	PlatformVersion    PlatformKey = 0x0901
	PlatformName       PlatformKey = 0x0902
	PlatformVendor     PlatformKey = 0x0903
	PlatformExtensions PlatformKey = 0x0904
)

// DeviceKey identifies a device property.
type DeviceKey uint32

const (
	DeviceTypeKey                   DeviceKey = 0x1000
	DeviceVendorID                  DeviceKey = 0x1001
	DeviceMaxComputeUnits           DeviceKey = 0x1002
	DeviceMaxWorkItemDimensions     DeviceKey = 0x1003
	DeviceMaxWorkGroupSize          DeviceKey = 0x1004
	DevicePreferredVectorWidthChar  DeviceKey = 0x1006
	DevicePreferredVectorWidthShort DeviceKey = 0x1007
	DevicePreferredVectorWidthInt   DeviceKey = 0x1008
	DevicePreferredVectorWidthLong  DeviceKey = 0x1009
	DevicePreferredVectorWidthFloat DeviceKey = 0x100A
	DevicePreferredVectorWidthDbl   DeviceKey = 0x100B
	DeviceMaxClockFrequency         DeviceKey = 0x100C
	DeviceAddressBits               DeviceKey = 0x100D
	DeviceMaxMemAllocSize           DeviceKey = 0x1010
	DeviceImageSupport              DeviceKey = 0x1016
	DeviceMaxParameterSize          DeviceKey = 0x1017
	DeviceMemBaseAddrAlign          DeviceKey = 0x1019
	DeviceGlobalMemCachelineSize    DeviceKey = 0x101D
	DeviceGlobalMemCacheSize        DeviceKey = 0x101E
	DeviceGlobalMemSize             DeviceKey = 0x101F
	DeviceMaxConstantBufferSize     DeviceKey = 0x1020
	DeviceLocalMemSize              DeviceKey = 0x1023
	DeviceErrorCorrectionSupport    DeviceKey = 0x1024
	DeviceProfilingTimerResolution  DeviceKey = 0x1025
	DeviceEndianLittle              DeviceKey = 0x1026
	DeviceAvailable                 DeviceKey = 0x1027
	DeviceCompilerAvailable         DeviceKey = 0x1028
	DeviceName                      DeviceKey = 0x102B
	DeviceVendor                    DeviceKey = 0x102C
	DriverVersion                   DeviceKey = 0x102D
	DeviceProfile                   DeviceKey = 0x102E
	DeviceVersion                   DeviceKey = 0x102F
	DeviceExtensions                DeviceKey = 0x1030
	DevicePlatform                  DeviceKey = 0x1031
	DeviceHostUnifiedMemory         DeviceKey = 0x1035
	DeviceNativeVectorWidthChar     DeviceKey = 0x1036
	DeviceNativeVectorWidthShort    DeviceKey = 0x1037
	DeviceNativeVectorWidthInt      DeviceKey = 0x1038
	DeviceNativeVectorWidthLong     DeviceKey = 0x1039
	DeviceNativeVectorWidthFloat    DeviceKey = 0x103A
	DeviceNativeVectorWidthDbl      DeviceKey = 0x103B
	DeviceOpenCLCVersion            DeviceKey = 0x103D
)

// MemFlags describe how a kernel may access a buffer.
type MemFlags uint64

const (
	MemReadWrite MemFlags = 1 << 0
	MemWriteOnly MemFlags = 1 << 1
	MemReadOnly  MemFlags = 1 << 2
)

func (f MemFlags) String() string {
	switch f {
	case MemReadWrite:
		return "read-write"
	case MemWriteOnly:
		return "write-only"
	case MemReadOnly:
		return "read-only"
	default:
		return fmt.Sprintf("MemFlags(%#x)", uint64(f))
	}
}
