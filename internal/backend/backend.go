// Package backend selects the compute runtime the CLI talks to.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cwbudde/clinventory/internal/cl"
	"github.com/cwbudde/clinventory/internal/cl/opencl"
	"github.com/cwbudde/clinventory/internal/cl/sim"
)

// Backend identifies a runtime implementation.
type Backend string

const (
	BackendOpenCL Backend = "opencl"
	BackendSim    Backend = "sim"
)

var (
	// ErrUnknownBackend is returned when the name does not match a known backend.
	ErrUnknownBackend = errors.New("unknown runtime backend")
	// ErrBackendUnavailable indicates the backend is not available in this build.
	ErrBackendUnavailable = errors.New("runtime backend unavailable")
)

var noopCleanup = func() {}

// NormalizeBackend maps arbitrary user input to a canonical backend identifier.
func NormalizeBackend(name string) Backend {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "opencl", "cl", "gpu":
		return BackendOpenCL
	case "sim", "simulator", "host":
		return BackendSim
	default:
		return Backend(name)
	}
}

// SupportedBackends returns the list of backends understood by the factory.
func SupportedBackends() []Backend {
	return []Backend{BackendOpenCL, BackendSim}
}

// SupportedNames lists the backend names for flag help and error messages.
func SupportedNames() string {
	names := make([]string, 0, len(SupportedBackends()))
	for _, b := range SupportedBackends() {
		names = append(names, string(b))
	}
	return strings.Join(names, ", ")
}

// NewRuntimeForBackend constructs the requested runtime and returns a cleanup hook.
func NewRuntimeForBackend(name string) (cl.Runtime, func(), error) {
	switch NormalizeBackend(name) {
	case BackendOpenCL:
		rt, err := opencl.Open()
		if err != nil {
			return nil, noopCleanup, fmt.Errorf("%w: %s: %w", ErrBackendUnavailable, BackendOpenCL, err)
		}
		return rt, rt.Close, nil
	case BackendSim:
		return sim.New(sim.HostPlatform()), noopCleanup, nil
	default:
		return nil, noopCleanup, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownBackend, name, SupportedNames())
	}
}
