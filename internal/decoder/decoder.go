// Package decoder defines the capability surface vidreg needs from a
// media-decoding library (component C1, "Decoder Adapter" in
// SPEC_FULL.md). The actual demuxer/decoder is treated as an external
// black box; this package exposes just open/probe/seek/decode/close,
// plus one concrete adapter (astiav.go) over ffmpeg bindings.
package decoder

import (
	"github.com/vidreg/vidreg/internal/keyframe"
	"github.com/vidreg/vidreg/internal/rational"
)

// Frame is one decoded, presentation-ordered RGB24 frame.
type Frame struct {
	Number int    // presentation frame number
	Width  int
	Height int
	Pix    []byte // tightly packed, row-major, 3 bytes/pixel, no padding
}

// Metadata is probed once at open time and never changes afterward
// (spec §3 invariant 1).
type Metadata struct {
	NumFrames int
	Width     int
	Height    int
	FrameRate rational.Rate
	Keyframes *keyframe.Index
}

// Source identifies what to open: either a plain filesystem path, or a
// byte range within an already-open archive reader (see
// internal/archive). Exactly one of Path or Reader is set.
type Source struct {
	Path   string
	Reader ByteRangeReaderAt // non-nil for archive-backed sources
	Offset int64
	Length int64
}

// ByteRangeReaderAt is the minimal capability an archive needs to expose
// so a decoder can treat an embedded entry as its own seekable file.
type ByteRangeReaderAt interface {
	ReadAt(p []byte, off int64) (int, error)
}

// Decoder is one opened media stream, positioned somewhere in the file.
// Implementations are not required to be safe for concurrent use; the
// video handle above serializes all access with its own mutex.
type Decoder interface {
	// Probe returns the metadata computed at Open time.
	Probe() Metadata

	// SeekToCoveringKeyframe positions decoding so the next DecodeNext
	// call produces the largest keyframe with frame number <= target.
	SeekToCoveringKeyframe(target int) error

	// DecodeNext produces the next frame in presentation order,
	// accounting for any codec-level reordering internally.
	DecodeNext() (Frame, error)

	// Close releases all resources owned by this decoder instance.
	Close() error
}

// Opener opens a Source into a Decoder, probing its metadata. It is the
// seam the registry (C4) and archive opener (C5) construct handles
// through, and is swappable for tests via a fake.
type Opener interface {
	Open(src Source) (Decoder, error)
}
