package decoder

import (
	"fmt"

	"github.com/vidreg/vidreg/internal/keyframe"
	"github.com/vidreg/vidreg/internal/rational"
	"github.com/vidreg/vidreg/internal/verrors"
)

// FakeOpener opens synthetic in-memory videos keyed by path, for tests
// that exercise VideoHandle/registry/prefetch logic without real media.
// Register videos with Add before use.
type FakeOpener struct {
	videos map[string]FakeVideo
}

// FakeVideo describes a synthetic video's shape for the fake decoder.
type FakeVideo struct {
	NumFrames     int
	Width, Height int
	KeyframeEvery int // keyframe at every Nth frame; must divide evenly with frame 0 included
	FrameRate     rational.Rate
	// FailAtFrame, if positive, makes DecodeNext fail every time it reaches
	// that frame number, to exercise decode-error propagation. Add treats
	// 0 as "never fail".
	FailAtFrame int
}

func NewFakeOpener() *FakeOpener {
	return &FakeOpener{videos: make(map[string]FakeVideo)}
}

// Add registers a synthetic video at path. FailAtFrame defaults to -1
// (never fail) when left at its zero value by the caller.
func (o *FakeOpener) Add(path string, v FakeVideo) {
	if v.FailAtFrame == 0 {
		v.FailAtFrame = -1
	}
	o.videos[path] = v
}

func (o *FakeOpener) Open(src Source) (Decoder, error) {
	v, ok := o.videos[src.Path]
	if !ok {
		return nil, &verrors.SourceError{Path: src.Path, Kind: verrors.ErrFileNotFound}
	}

	var entries []keyframe.Entry
	step := v.KeyframeEvery
	if step <= 0 {
		step = v.NumFrames
		if step <= 0 {
			step = 1
		}
	}
	for f := 0; f < v.NumFrames; f += step {
		entries = append(entries, keyframe.Entry{Frame: f, Pos: int64(f)})
	}
	idx, err := keyframe.Build(entries)
	if err != nil {
		return nil, fmt.Errorf("fake decoder: %w", err)
	}

	return &fakeDecoder{
		v: v,
		metadata: Metadata{
			NumFrames: v.NumFrames,
			Width:     v.Width,
			Height:    v.Height,
			FrameRate: v.FrameRate,
			Keyframes: idx,
		},
		next: 0,
	}, nil
}

type fakeDecoder struct {
	v        FakeVideo
	metadata Metadata
	next     int
	closed   bool
}

func (d *fakeDecoder) Probe() Metadata { return d.metadata }

func (d *fakeDecoder) SeekToCoveringKeyframe(target int) error {
	if target < 0 || target >= d.v.NumFrames {
		return fmt.Errorf("fake decoder: seek target %d out of range", target)
	}
	d.next = d.metadata.Keyframes.Covering(target).Frame
	return nil
}

func (d *fakeDecoder) DecodeNext() (Frame, error) {
	if d.next >= d.v.NumFrames {
		return Frame{}, fmt.Errorf("fake decoder: decode past end of stream")
	}
	if d.next == d.v.FailAtFrame {
		return Frame{}, verrors.NewDecodeError(d.next, fmt.Errorf("synthetic decode failure"))
	}
	pix := make([]byte, d.v.Width*d.v.Height*3)
	fillFramePattern(pix, d.next)
	f := Frame{Number: d.next, Width: d.v.Width, Height: d.v.Height, Pix: pix}
	d.next++
	return f, nil
}

func (d *fakeDecoder) Close() error {
	d.closed = true
	return nil
}

// fillFramePattern stamps a deterministic, frame-number-dependent value
// into every byte so tests can verify GetBatch returns the right frames
// in the right order without decoding real media.
func fillFramePattern(pix []byte, frameNumber int) {
	b := byte(frameNumber % 256)
	for i := range pix {
		pix[i] = b
	}
}
