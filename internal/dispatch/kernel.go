package dispatch

// KernelName is the entry point built from KernelSource.
const KernelName = "vecAdd"

// KernelSource is the single program every pass builds. REAL selects the
// element type at build time.
const KernelSource = `#ifdef USE_FP64
#pragma OPENCL EXTENSION cl_khr_fp64 : enable
#endif

#ifndef REAL
#define REAL float
#endif

__kernel void vecAdd(__global const REAL *a,
                     __global const REAL *b,
                     __global REAL *c,
                     const unsigned int n)
{
    int gid = get_global_id(0);
    if (gid < n) {
        c[gid] = a[gid] + b[gid];
    }
}
`

// BuildOptions returns the compiler options selecting T as the element type.
func BuildOptions[T Element]() string {
	if ElementSize[T]() == 8 {
		return "-DREAL=double -DUSE_FP64"
	}
	return "-DREAL=float"
}

// Precision names the element type of T.
func Precision[T Element]() string {
	if ElementSize[T]() == 8 {
		return "double"
	}
	return "single"
}
