// Package tensor implements the pixel bridge (component C2 in
// SPEC_FULL.md): converting decoded RGB24 frame batches into the output
// representation selected by a registry's data_container setting.
package tensor

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/vidreg/vidreg/internal/verrors"
)

// Backend selects the in-memory representation VideoHandle.GetBatch
// hands back to callers. It is fixed at registry construction time and
// never varies per call.
type Backend int

const (
	// BackendRaw returns PixelBuffer.Data as a flat []byte, no tensor
	// library involved — the zero-dependency fallback.
	BackendRaw Backend = iota
	// BackendNumpy and BackendPyTorch both produce a *tensors.Tensor
	// with shape (N, W, H, 3); the distinction only matters to whatever
	// downstream FFI glue consumes it, not to this package.
	BackendNumpy
	BackendPyTorch
)

// ParseBackend validates a configuration string into a Backend. This is
// the only place an unsupported selector can fail, and it fails at
// construction time, never on the data path (spec invariant: backend
// selection errors surface as configuration errors).
func ParseBackend(s string) (Backend, error) {
	switch s {
	case "raw":
		return BackendRaw, nil
	case "numpy":
		return BackendNumpy, nil
	case "pytorch":
		return BackendPyTorch, nil
	default:
		return 0, fmt.Errorf("%w: unknown data_container %q (want raw, numpy, or pytorch)", verrors.ErrConfig, s)
	}
}

func (b Backend) String() string {
	switch b {
	case BackendRaw:
		return "raw"
	case BackendNumpy:
		return "numpy"
	case BackendPyTorch:
		return "pytorch"
	default:
		return "unknown"
	}
}

// PixelBuffer is N decoded frames packed contiguously in (N, W, H, 3)
// order — width before height, matching the original NumPy/PyTorch
// loader's axis convention, 3 bytes per pixel, no row padding.
type PixelBuffer struct {
	N, W, H int
	Data    []byte
}

// Bridge converts a freshly decoded PixelBuffer into the representation
// named by a Backend. Implementations must not copy when the backend
// permits a zero-copy view over Data.
type Bridge interface {
	Convert(backend Backend, buf PixelBuffer) (any, error)
}

// GoMLXBridge implements Bridge using gomlx's tensor type for the numpy
// and pytorch selectors, and a pass-through []byte for raw.
type GoMLXBridge struct{}

func (GoMLXBridge) Convert(backend Backend, buf PixelBuffer) (any, error) {
	switch backend {
	case BackendRaw:
		return buf.Data, nil
	case BackendNumpy, BackendPyTorch:
		shape := []int{buf.N, buf.W, buf.H, 3}
		t := tensors.FromFlatDataAndDimensions(buf.Data, shape...)
		return t, nil
	default:
		return nil, fmt.Errorf("%w: unhandled backend %v", verrors.ErrConfig, backend)
	}
}
