// Package inventory enumerates platforms and devices exposed by a cl.Runtime
// and reads their capabilities.
package inventory

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unsafe"

	"github.com/dustin/go-humanize"

	"github.com/cwbudde/clinventory/internal/cl"
)

// ErrSizeMismatch matches every *SizeMismatchError.
var ErrSizeMismatch = errors.New("property size mismatch")

// SizeMismatchError reports a fixed-size property whose reported length does
// not equal the size of the requested Go type.
type SizeMismatchError struct {
	Key  cl.DeviceKey
	Want int
	Got  int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("device property %#x: expected %d bytes, runtime reported %d", uint32(e.Key), e.Want, e.Got)
}

func (e *SizeMismatchError) Is(target error) bool {
	return target == ErrSizeMismatch
}

// Query reads a fixed-size device property into T.
func Query[T cl.Fixed](rt cl.Runtime, device cl.DeviceID, key cl.DeviceKey) (T, error) {
	var zero T
	want := int(unsafe.Sizeof(zero))
	buf := make([]byte, want)

	got, err := rt.GetDeviceInfo(device, key, buf)
	if err != nil {
		return zero, err
	}
	if got != want {
		return zero, &SizeMismatchError{Key: key, Want: want, Got: got}
	}

	switch want {
	case 4:
		return T(binary.NativeEndian.Uint32(buf)), nil
	case 8:
		return T(binary.NativeEndian.Uint64(buf)), nil
	default:
		return zero, &SizeMismatchError{Key: key, Want: want, Got: got}
	}
}

// QueryText reads a string device property.
func QueryText(rt cl.Runtime, device cl.DeviceID, key cl.DeviceKey) (string, error) {
	return ReadText(func(dst []byte) (int, error) {
		return rt.GetDeviceInfo(device, key, dst)
	})
}

func platformText(rt cl.Runtime, platform cl.PlatformID, key cl.PlatformKey) (string, error) {
	return ReadText(func(dst []byte) (int, error) {
		return rt.GetPlatformInfo(platform, key, dst)
	})
}

// ReadText runs the two-call protocol: a nil buffer to learn the length, then
// a fetch into a buffer of exactly that length.
func ReadText(get func(dst []byte) (int, error)) (string, error) {
	n, err := get(nil)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}

	buf := make([]byte, n)
	if _, err := get(buf); err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf), "\x00"), nil
}

// Kind is the representation of a device property.
type Kind int

const (
	KindText Kind = iota
	KindBool
	KindUint
	KindUlong
	KindSize
)

// Property is a readable device capability.
type Property struct {
	Key  cl.DeviceKey
	Name string
	Kind Kind
	// Bytes marks numeric properties measured in bytes.
	Bytes bool
}

// Value is a decoded property.
type Value struct {
	Property Property
	Text     string
	Number   uint64
}

// Bool reports the value of a KindBool property.
func (v Value) Bool() bool {
	return v.Number != 0
}

func (v Value) String() string {
	switch v.Property.Kind {
	case KindText:
		return v.Text
	case KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	default:
		s := strconv.FormatUint(v.Number, 10)
		if v.Property.Bytes {
			s += " (" + humanize.IBytes(v.Number) + ")"
		}
		return s
	}
}

// Read queries the property on device.
func (p Property) Read(rt cl.Runtime, device cl.DeviceID) (Value, error) {
	v := Value{Property: p}
	var err error
	switch p.Kind {
	case KindText:
		v.Text, err = QueryText(rt, device, p.Key)
	case KindBool:
		var b cl.Bool
		b, err = Query[cl.Bool](rt, device, p.Key)
		v.Number = uint64(b)
	case KindUint:
		var u cl.Uint
		u, err = Query[cl.Uint](rt, device, p.Key)
		v.Number = uint64(u)
	case KindUlong:
		var u cl.Ulong
		u, err = Query[cl.Ulong](rt, device, p.Key)
		v.Number = uint64(u)
	case KindSize:
		var s cl.Size
		s, err = Query[cl.Size](rt, device, p.Key)
		v.Number = uint64(s)
	default:
		err = fmt.Errorf("property %s: unknown kind %d", p.Name, p.Kind)
	}
	if err != nil {
		return Value{Property: p}, fmt.Errorf("read %s: %w", p.Name, err)
	}
	return v, nil
}

// DeviceProperties returns the capability set reported for every device, in
// report order.
func DeviceProperties() []Property {
	return []Property{
		{Key: cl.DeviceName, Name: "Name", Kind: KindText},
		{Key: cl.DeviceAvailable, Name: "Available", Kind: KindBool},
		{Key: cl.DeviceVendor, Name: "Vendor", Kind: KindText},
		{Key: cl.DeviceProfile, Name: "Profile", Kind: KindText},
		{Key: cl.DeviceVersion, Name: "Version", Kind: KindText},
		{Key: cl.DriverVersion, Name: "Driver version", Kind: KindText},
		{Key: cl.DeviceOpenCLCVersion, Name: "OpenCL C version", Kind: KindText},
		{Key: cl.DeviceMaxComputeUnits, Name: "Compute units", Kind: KindUint},
		{Key: cl.DeviceMaxClockFrequency, Name: "Max clock (MHz)", Kind: KindUint},
		{Key: cl.DeviceMaxWorkGroupSize, Name: "Max work-group size", Kind: KindSize},
		{Key: cl.DeviceAddressBits, Name: "Address bits", Kind: KindUint},
		{Key: cl.DeviceMemBaseAddrAlign, Name: "Base address alignment (bits)", Kind: KindUint},
		{Key: cl.DeviceMaxMemAllocSize, Name: "Max allocation", Kind: KindUlong, Bytes: true},
		{Key: cl.DeviceGlobalMemSize, Name: "Global memory", Kind: KindUlong, Bytes: true},
		{Key: cl.DeviceMaxConstantBufferSize, Name: "Constant buffer", Kind: KindUlong, Bytes: true},
		{Key: cl.DeviceGlobalMemCacheSize, Name: "Global cache", Kind: KindUlong, Bytes: true},
		{Key: cl.DeviceGlobalMemCachelineSize, Name: "Cacheline", Kind: KindUint, Bytes: true},
		{Key: cl.DeviceLocalMemSize, Name: "Local memory", Kind: KindUlong, Bytes: true},
		{Key: cl.DeviceProfilingTimerResolution, Name: "Timer resolution (ns)", Kind: KindSize},
		{Key: cl.DeviceImageSupport, Name: "Image support", Kind: KindBool},
		{Key: cl.DeviceErrorCorrectionSupport, Name: "ECC", Kind: KindBool},
		{Key: cl.DeviceHostUnifiedMemory, Name: "Unified host memory", Kind: KindBool},
		{Key: cl.DeviceExtensions, Name: "Extensions", Kind: KindText},
		{Key: cl.DevicePreferredVectorWidthInt, Name: "Preferred vector width (int)", Kind: KindUint},
		{Key: cl.DevicePreferredVectorWidthLong, Name: "Preferred vector width (long)", Kind: KindUint},
		{Key: cl.DevicePreferredVectorWidthFloat, Name: "Preferred vector width (float)", Kind: KindUint},
		{Key: cl.DevicePreferredVectorWidthDbl, Name: "Preferred vector width (double)", Kind: KindUint},
		{Key: cl.DeviceNativeVectorWidthInt, Name: "Native vector width (int)", Kind: KindUint},
		{Key: cl.DeviceNativeVectorWidthLong, Name: "Native vector width (long)", Kind: KindUint},
		{Key: cl.DeviceNativeVectorWidthFloat, Name: "Native vector width (float)", Kind: KindUint},
		{Key: cl.DeviceNativeVectorWidthDbl, Name: "Native vector width (double)", Kind: KindUint},
	}
}
