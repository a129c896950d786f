//go:build opencl

package fractal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
)

// OpenCLBackend evaluates fields on an OpenCL device in double precision.
// Calls are serialized; the range is reduced on the host.
type OpenCLBackend struct {
	mu sync.Mutex

	context    *cl.Context
	queue      *cl.CommandQueue
	program    *cl.Program
	kernel     *cl.Kernel
	boundsBuf  *cl.MemObject
	outBuf     *cl.MemObject
	outSize    int
	deviceName string

	log *slog.Logger
}

var _ Backend = (*OpenCLBackend)(nil)

const escapeKernelSource = `#pragma OPENCL EXTENSION cl_khr_fp64 : enable

__kernel void escape_time(
    const int width,
    const int height,
    const int max_iters,
    __global const double* bounds,
    __global double* out)
{
    int idx = get_global_id(0);
    if (idx >= width * height) {
        return;
    }
    int px = idx % width;
    int py = idx / width;
    double xmin = bounds[0];
    double xmax = bounds[1];
    double ymin = bounds[2];
    double ymax = bounds[3];
    double re = xmin + (xmax - xmin) * (double)px / (double)width;
    double im = ymax - (ymax - ymin) * (double)py / (double)height;
    double zr = 0.0;
    double zi = 0.0;
    double result = 0.0;
    for (int i = 1; i <= max_iters; i++) {
        double x = zr * zr - zi * zi + re;
        double y = 2.0 * zr * zi + im;
        zr = x;
        zi = y;
        double mag = x * x + y * y;
        if (mag > 5.0) {
            result = ((double)i + 1.0 - log(sqrt(mag)) / sqrt(2.0)) / (double)max_iters;
            if (result <= 0.0) {
                result = 4.9406564584124654e-324;
            }
            break;
        }
    }
    out[idx] = result;
}`

// NewOpenCLBackend picks the first GPU, falling back to the first CPU device,
// and compiles the escape-time kernel.
func NewOpenCLBackend(logger *slog.Logger) (*OpenCLBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(platforms) == 0 {
		return nil, errors.New("no OpenCL platforms available; ensure a vendor driver is installed and detected by `clinfo`")
	}
	device := firstDevice(platforms, cl.DeviceTypeGPU)
	if device == nil {
		device = firstDevice(platforms, cl.DeviceTypeCPU)
	}
	if device == nil {
		return nil, errors.New("no suitable OpenCL devices found")
	}
	// Devices without cl_khr_fp64 fail in BuildProgram with the compiler log.
	b := &OpenCLBackend{deviceName: device.Name(), log: logger}
	if err := b.build(device); err != nil {
		b.Close()
		return nil, err
	}
	logger.Info("OpenCL backend ready", "device", b.deviceName)
	return b, nil
}

func firstDevice(platforms []*cl.Platform, kind cl.DeviceType) *cl.Device {
	for _, p := range platforms {
		devices, err := p.GetDevices(kind)
		if err != nil && err != cl.ErrDeviceNotFound {
			continue
		}
		if len(devices) > 0 {
			return devices[0]
		}
	}
	return nil
}

func (b *OpenCLBackend) build(device *cl.Device) error {
	var err error
	if b.context, err = cl.CreateContext([]*cl.Device{device}); err != nil {
		return fmt.Errorf("creating OpenCL context: %w", err)
	}
	if b.queue, err = b.context.CreateCommandQueue(device, 0); err != nil {
		return fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	if b.program, err = b.context.CreateProgramWithSource([]string{escapeKernelSource}); err != nil {
		return fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err := b.program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		if buildErr, ok := err.(cl.BuildError); ok {
			return fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return fmt.Errorf("building OpenCL program: %w", err)
	}
	if b.kernel, err = b.program.CreateKernel("escape_time"); err != nil {
		return fmt.Errorf("creating OpenCL kernel: %w", err)
	}
	if b.boundsBuf, err = b.context.CreateEmptyBuffer(cl.MemReadOnly, 4*int(unsafe.Sizeof(float64(0)))); err != nil {
		return fmt.Errorf("allocating bounds buffer: %w", err)
	}
	return nil
}

// ensureOutput grows the device output buffer to hold size doubles.
func (b *OpenCLBackend) ensureOutput(size int) error {
	if b.outBuf != nil && b.outSize >= size {
		return nil
	}
	if b.outBuf != nil {
		b.outBuf.Release()
		b.outBuf = nil
	}
	buf, err := b.context.CreateEmptyBuffer(cl.MemWriteOnly, size*int(unsafe.Sizeof(float64(0))))
	if err != nil {
		return fmt.Errorf("allocating output buffer: %w", err)
	}
	b.outBuf = buf
	b.outSize = size
	return nil
}

// Evaluate implements Backend. Cancellation is observed before the kernel is
// enqueued and after it completes; a running kernel is not interrupted.
func (b *OpenCLBackend) Evaluate(ctx context.Context, vp Viewport, maxIters int) (*Field, error) {
	if maxIters < 1 {
		return nil, fmt.Errorf("%w: iteration cap %d", ErrInvalidArgument, maxIters)
	}
	if err := vp.Validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := vp.Width * vp.Height
	if err := b.ensureOutput(size); err != nil {
		return nil, err
	}
	bounds := [4]float64{vp.Xmin, vp.Xmax, vp.Ymin, vp.Ymax}
	if _, err := b.queue.EnqueueWriteBuffer(b.boundsBuf, true, 0, len(bounds)*int(unsafe.Sizeof(float64(0))), unsafe.Pointer(&bounds[0]), nil); err != nil {
		return nil, fmt.Errorf("writing bounds buffer: %w", err)
	}
	if err := b.kernel.SetArgs(int32(vp.Width), int32(vp.Height), int32(maxIters), b.boundsBuf, b.outBuf); err != nil {
		return nil, fmt.Errorf("setting kernel arguments: %w", err)
	}
	if _, err := b.queue.EnqueueNDRangeKernel(b.kernel, nil, []int{size}, nil, nil); err != nil {
		return nil, fmt.Errorf("enqueueing kernel: %w", err)
	}

	field := newField(vp.Width, vp.Height)
	byteLen := size * int(unsafe.Sizeof(float64(0)))
	if _, err := b.queue.EnqueueReadBuffer(b.outBuf, true, 0, byteLen, unsafe.Pointer(&field.Values[0]), nil); err != nil {
		return nil, fmt.Errorf("reading output buffer: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, v := range field.Values {
		field.Range.observe(v)
	}
	b.log.Debug("field evaluated", "device", b.deviceName,
		"width", vp.Width, "height", vp.Height, "iterations", maxIters)
	return field, nil
}

// Name implements Backend.
func (b *OpenCLBackend) Name() string {
	return "opencl/" + b.deviceName
}

// Close releases every device object.
func (b *OpenCLBackend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.outBuf != nil {
		b.outBuf.Release()
		b.outBuf = nil
	}
	if b.boundsBuf != nil {
		b.boundsBuf.Release()
		b.boundsBuf = nil
	}
	if b.kernel != nil {
		b.kernel.Release()
		b.kernel = nil
	}
	if b.program != nil {
		b.program.Release()
		b.program = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.context != nil {
		b.context.Release()
		b.context = nil
	}
}
