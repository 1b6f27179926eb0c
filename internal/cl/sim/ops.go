package sim

// Op names a runtime entry point for fault injection and call counting.
type Op string

const (
	OpGetPlatformIDs      Op = "clGetPlatformIDs"
	OpGetPlatformInfo     Op = "clGetPlatformInfo"
	OpGetDeviceIDs        Op = "clGetDeviceIDs"
	OpGetDeviceInfo       Op = "clGetDeviceInfo"
	OpCreateContext       Op = "clCreateContext"
	OpCreateCommandQueue  Op = "clCreateCommandQueue"
	OpCreateBuffer        Op = "clCreateBuffer"
	OpCreateProgram       Op = "clCreateProgramWithSource"
	OpBuildProgram        Op = "clBuildProgram"
	OpCreateKernel        Op = "clCreateKernel"
	OpSetKernelArg        Op = "clSetKernelArg"
	OpEnqueueWriteBuffer  Op = "clEnqueueWriteBuffer"
	OpEnqueueNDRange      Op = "clEnqueueNDRangeKernel"
	OpFinish              Op = "clFinish"
	OpEnqueueReadBuffer   Op = "clEnqueueReadBuffer"
	OpReleaseKernel       Op = "clReleaseKernel"
	OpReleaseProgram      Op = "clReleaseProgram"
	OpReleaseMemObject    Op = "clReleaseMemObject"
	OpReleaseCommandQueue Op = "clReleaseCommandQueue"
	OpReleaseContext      Op = "clReleaseContext"
)

func (o Op) String() string { return string(o) }
