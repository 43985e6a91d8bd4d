// Package video implements the sleeping/awake video handle (component
// C3 in SPEC_FULL.md): per-video metadata caching, scoped wake regions,
// and the random-access GetBatch algorithm.
package video

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vidreg/vidreg/internal/decoder"
	"github.com/vidreg/vidreg/internal/rational"
	"github.com/vidreg/vidreg/internal/tensor"
	"github.com/vidreg/vidreg/internal/verrors"
)

// Metadata is probed once when a video is first opened and cached for
// the handle's entire lifetime; it never changes across sleep/wake
// cycles (spec invariant 1).
type Metadata struct {
	NumFrames int
	Width     int
	Height    int
	FrameRate rational.Rate
}

// Handle is one video's state: its cached metadata, its sleep/awake
// state, and the machinery to serve GetBatch while holding at most one
// decoder open at a time.
type Handle struct {
	path   string
	opener decoder.Opener
	bridge tensor.Bridge
	backend tensor.Backend

	meta Metadata

	mu       sync.Mutex
	dec      decoder.Decoder // nil while sleeping
	awakeRef int             // KeepAwake scope depth
}

// Open probes path once and returns a sleeping Handle: the decoder used
// for probing is closed immediately afterward (spec §4.2: opening a
// video never leaves it awake).
func Open(path string, opener decoder.Opener, bridge tensor.Bridge, backend tensor.Backend) (*Handle, error) {
	d, err := opener.Open(decoder.Source{Path: path})
	if err != nil {
		return nil, err
	}
	m := d.Probe()
	if err := d.Close(); err != nil {
		return nil, fmt.Errorf("video: closing probe decoder for %s: %w", path, err)
	}

	return &Handle{
		path:    path,
		opener:  opener,
		bridge:  bridge,
		backend: backend,
		meta: Metadata{
			NumFrames: m.NumFrames,
			Width:     m.Width,
			Height:    m.Height,
			FrameRate: m.FrameRate,
		},
	}, nil
}

func (h *Handle) Path() string { return h.path }

func (h *Handle) NumFrames() int { return h.meta.NumFrames }

func (h *Handle) Width() int { return h.meta.Width }

func (h *Handle) Height() int { return h.meta.Height }

func (h *Handle) AverageFrameRate() rational.Rate { return h.meta.FrameRate }

// IsSleeping reports whether the handle currently holds no open
// decoder. Racy by nature (another goroutine may change this
// immediately after the call returns) — intended for diagnostics and
// tests, not control flow.
func (h *Handle) IsSleeping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dec == nil
}

// KeepAwake opens the decoder if necessary and returns a token whose
// Release must be deferred by the caller. Nested KeepAwake scopes are
// reference counted: the decoder only closes once every scope has
// released (spec §4.2 scoped keep-awake region).
func (h *Handle) KeepAwake() (*AwakeToken, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dec == nil {
		d, err := h.opener.Open(decoder.Source{Path: h.path})
		if err != nil {
			return nil, err
		}
		h.dec = d
	}
	h.awakeRef++
	return &AwakeToken{h: h}, nil
}

// AwakeToken is the RAII-style handle returned by KeepAwake.
type AwakeToken struct {
	h        *Handle
	released bool
}

// Release decrements the keep-awake scope depth, closing the decoder
// once it reaches zero. Safe to call multiple times; only the first
// call has effect.
func (t *AwakeToken) Release() {
	t.h.mu.Lock()
	defer t.h.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	t.h.awakeRef--
	if t.h.awakeRef <= 0 {
		t.h.awakeRef = 0
		t.h.sleepLocked()
	}
}

// Sleep forces the handle to close its decoder regardless of any
// outstanding KeepAwake scopes. Idempotent.
func (h *Handle) Sleep() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.awakeRef = 0
	return h.sleepLocked()
}

func (h *Handle) sleepLocked() error {
	if h.dec == nil {
		return nil
	}
	err := h.dec.Close()
	h.dec = nil
	return err
}

// GetBatch decodes the frames named by indices, in the order requested
// (duplicates allowed, order need not be sorted), and returns them
// converted by the configured tensor.Bridge. If the handle is
// currently sleeping, it wakes for the duration of this call and sleeps
// again afterward unless a KeepAwake scope is already open.
func (h *Handle) GetBatch(indices []int) (any, error) {
	if len(indices) == 0 {
		return h.bridge.Convert(h.backend, tensor.PixelBuffer{W: h.meta.Width, H: h.meta.Height})
	}
	for _, idx := range indices {
		if idx < 0 || idx >= h.meta.NumFrames {
			return nil, fmt.Errorf("%w: index %d (have %d frames)", verrors.ErrIndexOutOfRange, idx, h.meta.NumFrames)
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	wasSleeping := h.dec == nil
	if wasSleeping {
		d, err := h.opener.Open(decoder.Source{Path: h.path})
		if err != nil {
			return nil, err
		}
		h.dec = d
	}

	buf, err := h.decodeLocked(indices)
	if wasSleeping && h.awakeRef == 0 {
		// Only sleep again if no KeepAwake scope claimed the handle
		// while we were decoding.
		if sleepErr := h.sleepLocked(); sleepErr != nil && err == nil {
			err = sleepErr
		}
	}
	if err != nil {
		return nil, err
	}
	return h.bridge.Convert(h.backend, buf)
}

// decodeLocked implements spec §4.3 step by step: dedupe + sort targets
// while remembering where each original request position maps back to,
// plan keyframe-bounded runs, seek and decode each run, and scatter
// results into the output buffer in requested order.
func (h *Handle) decodeLocked(indices []int) (tensor.PixelBuffer, error) {
	positions := make(map[int][]int) // frame number -> output slot(s)
	sorted := make([]int, 0, len(indices))
	for slot, f := range indices {
		if _, seen := positions[f]; !seen {
			sorted = append(sorted, f)
		}
		positions[f] = append(positions[f], slot)
	}
	sort.Ints(sorted)

	out := tensor.PixelBuffer{
		N: len(indices),
		W: h.meta.Width,
		H: h.meta.Height,
		Data: make([]byte, len(indices)*h.meta.Width*h.meta.Height*3),
	}
	frameSize := h.meta.Width * h.meta.Height * 3

	kf := h.dec.Probe().Keyframes
	runs := kf.Plan(sorted)
	for _, run := range runs {
		if err := h.dec.SeekToCoveringKeyframe(run.Frames[0]); err != nil {
			return tensor.PixelBuffer{}, fmt.Errorf("video: %s: %w", h.path, err)
		}
		targetIdx := 0
		for targetIdx < len(run.Frames) {
			f, err := h.dec.DecodeNext()
			if err != nil {
				return tensor.PixelBuffer{}, err
			}
			if f.Number != run.Frames[targetIdx] {
				continue
			}
			for _, slot := range positions[f.Number] {
				// f.Pix is row-major (H, W, 3); the output frame is laid
				// out (W, H, 3), so pixels are transposed on copy.
				dst := out.Data[slot*frameSize : (slot+1)*frameSize]
				for y := 0; y < h.meta.Height; y++ {
					for x := 0; x < h.meta.Width; x++ {
						s := (y*h.meta.Width + x) * 3
						d := (x*h.meta.Height + y) * 3
						copy(dst[d:d+3], f.Pix[s:s+3])
					}
				}
			}
			targetIdx++
		}
	}
	return out, nil
}
