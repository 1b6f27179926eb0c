//go:build !gpu

// Package opencl binds cl.Runtime to the system OpenCL ICD loader. Builds
// without the "gpu" tag get this stub, which refuses to open.
package opencl

import (
	"errors"

	"github.com/cwbudde/clinventory/internal/cl"
)

// ErrNotBuilt indicates the binary was built without OpenCL support.
var ErrNotBuilt = errors.New("opencl support requires building with '-tags gpu'")

// Runtime is a placeholder when OpenCL support is not compiled.
type Runtime struct {
	cl.Runtime
}

// Open returns ErrNotBuilt when OpenCL support is not compiled in.
func Open() (*Runtime, error) {
	return nil, ErrNotBuilt
}

// Close is a no-op without OpenCL support.
func (r *Runtime) Close() {}
