//go:build !opencl

package fractal

import (
	"context"
	"errors"
	"log/slog"
)

// OpenCLBackend is unavailable in builds without the opencl tag.
type OpenCLBackend struct{}

var _ Backend = (*OpenCLBackend)(nil)

// NewOpenCLBackend always fails without the opencl build tag.
func NewOpenCLBackend(_ *slog.Logger) (*OpenCLBackend, error) {
	return nil, errors.New("OpenCL support is not enabled; rebuild with -tags opencl")
}

func (b *OpenCLBackend) Evaluate(context.Context, Viewport, int) (*Field, error) {
	return nil, errors.New("OpenCL backend unavailable")
}

func (b *OpenCLBackend) Name() string { return "opencl" }

func (b *OpenCLBackend) Close() {}
