// Package registry implements the Video Registry (component C4):
// process-wide configuration shared by every Video Handle it
// constructs, plus a bound on how many handles may be simultaneously
// awake.
package registry

import (
	"fmt"
	"os"

	"github.com/vidreg/vidreg/internal/decoder"
	"github.com/vidreg/vidreg/internal/tensor"
	"github.com/vidreg/vidreg/internal/verrors"
	"github.com/vidreg/vidreg/internal/video"
	"github.com/vidreg/vidreg/internal/worker"
)

// HandleConstructor lets callers wrap the base *video.Handle returned
// by AddVideoFile with additional fields, preserving the spec's
// sub-classable-handle extensibility hook (§4.4) without resorting to
// an inheritance mechanism Go doesn't have.
type HandleConstructor func(*video.Handle) (*video.Handle, error)

func defaultConstructor(h *video.Handle) (*video.Handle, error) { return h, nil }

// Registry owns a tensor backend choice and an Opener, and constructs
// Video Handles from file paths. Any number of Registries may coexist;
// this type carries no process-wide singleton state.
type Registry struct {
	backend     tensor.Backend
	bridge      tensor.Bridge
	opener      decoder.Opener
	constructor HandleConstructor
	awakeBound  *worker.Semaphore
}

// Option configures a Registry at construction time.
type Option func(*Registry)

// WithOpener overrides the decoder opener (tests use this to inject a
// decoder.FakeOpener).
func WithOpener(o decoder.Opener) Option {
	return func(r *Registry) { r.opener = o }
}

// WithHandleConstructor installs a custom handle constructor, the
// sub-classable-handle hook from spec §4.4.
func WithHandleConstructor(c HandleConstructor) Option {
	return func(r *Registry) { r.constructor = c }
}

// WithMaxAwakeHandles bounds how many handles may hold an open decoder
// at once, independent of how many handles the registry has
// constructed in total. n <= 0 means unbounded.
func WithMaxAwakeHandles(n int64) Option {
	return func(r *Registry) {
		if n > 0 {
			r.awakeBound = worker.NewSemaphore(int(n))
		}
	}
}

// New builds a Registry. dataContainer selects the tensor backend and
// must be one of "raw", "numpy", "pytorch"; any other value is a
// configuration error, raised here at construction, never later.
func New(dataContainer string, opts ...Option) (*Registry, error) {
	backend, err := tensor.ParseBackend(dataContainer)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		backend:     backend,
		bridge:      tensor.GoMLXBridge{},
		opener:      decoder.AstiavOpener{},
		constructor: defaultConstructor,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Backend reports the tensor backend this registry was constructed
// with, so callers (e.g. the archive opener) can share it without
// re-parsing a data-container string.
func (r *Registry) Backend() tensor.Backend { return r.backend }

// Bridge reports the pixel-buffer-to-tensor bridge this registry uses.
func (r *Registry) Bridge() tensor.Bridge { return r.bridge }

// AddVideoFile opens path, probes its metadata, closes the decoder
// immediately, and returns a sleeping handle. Distinguishes
// FileNotFound, IsADirectory, and decode/unsupported-format errors.
func (r *Registry) AddVideoFile(path string) (*video.Handle, error) {
	if info, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, &verrors.SourceError{Path: path, Kind: verrors.ErrFileNotFound}
		}
		return nil, fmt.Errorf("registry: stat %s: %w", path, err)
	} else if info.IsDir() {
		return nil, &verrors.SourceError{Path: path, Kind: verrors.ErrIsADirectory}
	}

	h, err := video.Open(path, r.boundedOpener(), r.bridge, r.backend)
	if err != nil {
		return nil, err
	}
	return r.constructor(h)
}

// boundedOpener wraps r.opener so that opening a decoder (waking a
// handle) respects the registry's awake bound, if one was configured.
// Probing in AddVideoFile opens-then-immediately-closes, so the bound
// is released again right away; the bound matters for the sustained
// awake state that get_batch and keep_awake produce.
func (r *Registry) boundedOpener() decoder.Opener {
	if r.awakeBound == nil {
		return r.opener
	}
	return boundedOpener{inner: r.opener, sem: r.awakeBound}
}

type boundedOpener struct {
	inner decoder.Opener
	sem   *worker.Semaphore
}

func (b boundedOpener) Open(src decoder.Source) (decoder.Decoder, error) {
	<-b.sem.Chan()
	d, err := b.inner.Open(src)
	if err != nil {
		b.sem.Release()
		return nil, err
	}
	return &releasingDecoder{Decoder: d, sem: b.sem}, nil
}

// releasingDecoder returns its semaphore permit on Close, so a sleeping
// handle never holds an awake-bound slot.
type releasingDecoder struct {
	decoder.Decoder
	sem      *worker.Semaphore
	released bool
}

func (d *releasingDecoder) Close() error {
	err := d.Decoder.Close()
	if !d.released {
		d.released = true
		d.sem.Release()
	}
	return err
}
