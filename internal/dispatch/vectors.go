package dispatch

import (
	"unsafe"
)

// Element is a kernel element type.
type Element interface {
	float32 | float64
}

// Ramp fills a and b with the canonical workload a[i] = b[i] = i/n.
func Ramp[T Element](n int) (a, b []T) {
	a = make([]T, n)
	b = make([]T, n)
	for i := range a {
		v := T(float64(i) / float64(n))
		a[i] = v
		b[i] = v
	}
	return a, b
}

// RampExpectedSum is the exact sum of c = a + b for the Ramp workload:
// 2 * sum(i/n for i in [0, n)) = n - 1.
func RampExpectedSum(n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(n - 1)
}

// ElementSize is the byte size of T.
func ElementSize[T Element]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// bytesOf views v as raw bytes without copying.
func bytesOf[T Element](v []T) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*ElementSize[T]())
}
