// Package dispatch runs the vector-addition pass against one device: a
// strictly sequential state machine that acquires a context, queue, buffers,
// program and kernel, launches the kernel, validates the result and always
// releases what it acquired in reverse order.
package dispatch

import (
	"errors"
	"fmt"
)

// Stage identifies one step of a pass.
type Stage int

const (
	StageSelectDevice Stage = iota + 1
	StageCreateContext
	StageCreateQueue
	StageAllocateBuffers
	StageUploadInputs
	StageBuildProgram
	StageCreateKernel
	StageBindArguments
	StageDispatch
	StageAwait
	StageDownloadOutput
	StageValidate
	StageRelease
)

var stageNames = map[Stage]string{
	StageSelectDevice:    "select-device",
	StageCreateContext:   "create-context",
	StageCreateQueue:     "create-queue",
	StageAllocateBuffers: "allocate-buffers",
	StageUploadInputs:    "upload-inputs",
	StageBuildProgram:    "build-program",
	StageCreateKernel:    "create-kernel",
	StageBindArguments:   "bind-arguments",
	StageDispatch:        "dispatch",
	StageAwait:           "await",
	StageDownloadOutput:  "download-output",
	StageValidate:        "validate",
	StageRelease:         "release",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Stages returns every stage in execution order.
func Stages() []Stage {
	stages := make([]Stage, 0, len(stageNames))
	for s := StageSelectDevice; s <= StageRelease; s++ {
		stages = append(stages, s)
	}
	return stages
}

// Lifecycle failure tags. Every *StageError matches exactly one of them.
var (
	ErrDeviceNotFound         = errors.New("device not found")
	ErrDeviceDiscoveryFailed  = errors.New("device discovery failed")
	ErrContextCreationFailed  = errors.New("context creation failed")
	ErrQueueCreationFailed    = errors.New("queue creation failed")
	ErrBufferAllocationFailed = errors.New("buffer allocation failed")
	ErrTransferFailed         = errors.New("transfer failed")
	ErrBuildFailed            = errors.New("build failed")
	ErrKernelCreationFailed   = errors.New("kernel creation failed")
	ErrArgBindFailed          = errors.New("argument bind failed")
	ErrLaunchFailed           = errors.New("launch failed")
	ErrExecutionFailed        = errors.New("execution failed")
	ErrReleaseFailed          = errors.New("release failed")
)

var stageTags = map[Stage]error{
	StageSelectDevice:    ErrDeviceNotFound,
	StageCreateContext:   ErrContextCreationFailed,
	StageCreateQueue:     ErrQueueCreationFailed,
	StageAllocateBuffers: ErrBufferAllocationFailed,
	StageUploadInputs:    ErrTransferFailed,
	StageBuildProgram:    ErrBuildFailed,
	StageCreateKernel:    ErrKernelCreationFailed,
	StageBindArguments:   ErrArgBindFailed,
	StageDispatch:        ErrLaunchFailed,
	StageAwait:           ErrExecutionFailed,
	StageDownloadOutput:  ErrTransferFailed,
	StageRelease:         ErrReleaseFailed,
}

// Tag returns the default failure tag of stage, or nil for stages without
// one. StageSelectDevice uses ErrDeviceDiscoveryFailed instead when the
// enumeration call itself errors.
func (s Stage) Tag() error {
	return stageTags[s]
}

// StageError is a lifecycle failure: the pass stopped at Stage and released
// everything acquired before it.
type StageError struct {
	Stage Stage
	Tag   error
	Err   error
	// BuildLog holds the compiler output when Stage is StageBuildProgram.
	BuildLog string
}

func newStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Tag: stage.Tag(), Err: err}
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Tag)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Tag, e.Err)
}

// Unwrap exposes both the tag and the underlying runtime error.
func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Tag}
	}
	return []error{e.Tag, e.Err}
}

// ErrInvalidResult matches every *ValidationError.
var ErrInvalidResult = errors.New("result validation failed")

// ValidationError reports a pass that completed but computed a wrong answer.
// Index is the first mismatching element, or -1 when only the sum is off.
type ValidationError struct {
	Index       int
	Got         float64
	Want        float64
	Sum         float64
	ExpectedSum float64
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("c[%d] = %g, want %g", e.Index, e.Got, e.Want)
	}
	return fmt.Sprintf("sum of c = %.6f, want %.6f", e.Sum, e.ExpectedSum)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidResult
}
