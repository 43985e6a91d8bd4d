// Package vidreg provides high-throughput, random-access video frame
// reading for machine-learning data pipelines.
//
// A Registry opens a video by path (or by archive entry), probing its
// metadata once through an ffmpeg-backed decoder, and returns a sleeping
// VideoHandle for it. Each VideoHandle sleeps between reads to keep open
// file descriptors and decoder memory bounded, and wakes for the
// duration of a read or a KeepAwake scope. A DatasetIterator opens each
// of its videos lazily, on first use, and drains a caller-supplied
// Sampler through a bounded pool of prefetch workers, adapting worker
// count to the consumer's pull rate while preserving the sampler's
// output order.
//
// Basic usage:
//
//	reg, err := vidreg.NewRegistry("pytorch")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	it, err := vidreg.NewDatasetIterator(videoPaths, sampler, reg, 8, 128)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer it.Stop()
//
//	for {
//	    batch, err := it.Next()
//	    if errors.Is(err, vidreg.ErrDone) {
//	        break
//	    }
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // use batch
//	}
package vidreg

import (
	"github.com/vidreg/vidreg/internal/archive"
	"github.com/vidreg/vidreg/internal/prefetch"
	"github.com/vidreg/vidreg/internal/registry"
	"github.com/vidreg/vidreg/internal/tensor"
	"github.com/vidreg/vidreg/internal/video"
)

// Registry constructs VideoHandles that share one pixel backend and one
// decoder opener.
type Registry = registry.Registry

// RegistryOption configures a Registry at construction time.
type RegistryOption = registry.Option

// VideoHandle is a single video's sleep/awake state machine and
// random-access frame reader.
type VideoHandle = video.Handle

// AwakeToken represents one held KeepAwake scope; Release lets the
// handle sleep again once every outstanding scope has released.
type AwakeToken = video.AwakeToken

// Sampler is a pull-only, finite source of (video_index, frame_indices)
// work items driving a DatasetIterator.
type Sampler = prefetch.Sampler

// DatasetIterator adaptively prefetches batches from a Sampler in
// sampler order.
type DatasetIterator = prefetch.Iterator

// ErrDone is returned by DatasetIterator.Next once the sampler is
// exhausted and the prefetch queue has drained.
var ErrDone = prefetch.ErrDone

// EntryFilter decides whether a tar entry should be opened as a video.
// An error aborts OpenVideoTar immediately and is returned verbatim.
type EntryFilter = archive.EntryFilter

// NewRegistry constructs a Registry for the given pixel backend
// ("raw", "numpy", or "pytorch"), applying any options in order.
func NewRegistry(dataContainer string, opts ...RegistryOption) (*Registry, error) {
	return registry.New(dataContainer, opts...)
}

// WithMaxAwakeHandles bounds the number of VideoHandles that may be
// simultaneously awake across the registry. 0 (the default) is
// unbounded.
func WithMaxAwakeHandles(n int64) RegistryOption {
	return registry.WithMaxAwakeHandles(n)
}

// OpenVideoTar opens every video entry in a tar archive that passes
// filter, probing metadata in parallel across maxThreads goroutines
// (maxThreads < 0 resolves to hardware concurrency). Handles are
// returned in archive order and share reg's pixel backend.
func OpenVideoTar(tarPath string, filter EntryFilter, maxThreads int, reg *Registry) ([]*VideoHandle, error) {
	return archive.OpenVideoTar(tarPath, filter, maxThreads, reg.Backend(), reg.Bridge())
}

// NewDatasetIterator constructs a DatasetIterator over videos (source
// paths not yet opened), pulling work items from sampler and prefetching
// through reg. maxThread bounds concurrent decode workers; maxPrefetch
// bounds both the prefetch queue depth and the scheduler's averaging
// window.
func NewDatasetIterator(videos []string, sampler Sampler, reg *Registry, maxThread, maxPrefetch int) (*DatasetIterator, error) {
	return prefetch.New(videos, sampler, reg, maxThread, maxPrefetch)
}

// ParseBackend validates a pixel-backend selector ("raw", "numpy", or
// "pytorch"). Exposed so CLI and config layers can validate user input
// with the same rule NewRegistry enforces.
func ParseBackend(s string) (tensor.Backend, error) {
	return tensor.ParseBackend(s)
}
