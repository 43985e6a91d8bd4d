package video

import (
	"errors"
	"testing"

	"github.com/vidreg/vidreg/internal/decoder"
	"github.com/vidreg/vidreg/internal/rational"
	"github.com/vidreg/vidreg/internal/tensor"
	"github.com/vidreg/vidreg/internal/verrors"
)

func newFakeHandle(t *testing.T, v decoder.FakeVideo) (*Handle, *decoder.FakeOpener) {
	t.Helper()
	opener := decoder.NewFakeOpener()
	opener.Add("v.mp4", v)
	h, err := Open("v.mp4", opener, tensor.GoMLXBridge{}, tensor.BackendRaw)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return h, opener
}

func rate(t *testing.T) rational.Rate {
	r, err := rational.New(30000, 1001)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestOpenProbesAndSleeps(t *testing.T) {
	h, _ := newFakeHandle(t, decoder.FakeVideo{NumFrames: 10, Width: 4, Height: 2, KeyframeEvery: 5, FrameRate: rate(t)})
	if !h.IsSleeping() {
		t.Error("handle should be sleeping immediately after Open")
	}
	if h.NumFrames() != 10 {
		t.Errorf("NumFrames() = %d, want 10", h.NumFrames())
	}
}

func TestGetBatchReturnsFramesInRequestedOrder(t *testing.T) {
	h, _ := newFakeHandle(t, decoder.FakeVideo{NumFrames: 20, Width: 2, Height: 2, KeyframeEvery: 5, FrameRate: rate(t)})

	out, err := h.GetBatch([]int{7, 1, 1, 15})
	if err != nil {
		t.Fatal(err)
	}
	pix := out.([]byte)
	frameSize := 2 * 2 * 3
	want := []int{7, 1, 1, 15}
	for slot, frame := range want {
		got := pix[slot*frameSize]
		if int(got) != frame%256 {
			t.Errorf("slot %d: got pixel byte %d, want %d", slot, got, frame%256)
		}
	}
	if !h.IsSleeping() {
		t.Error("handle should return to sleep after GetBatch with no KeepAwake scope")
	}
}

func TestGetBatchRejectsOutOfRange(t *testing.T) {
	h, _ := newFakeHandle(t, decoder.FakeVideo{NumFrames: 5, Width: 2, Height: 2, FrameRate: rate(t)})
	_, err := h.GetBatch([]int{0, 10})
	if !errors.Is(err, verrors.ErrIndexOutOfRange) {
		t.Fatalf("expected ErrIndexOutOfRange, got %v", err)
	}
}

func TestKeepAwakeKeepsDecoderAcrossCalls(t *testing.T) {
	h, _ := newFakeHandle(t, decoder.FakeVideo{NumFrames: 5, Width: 2, Height: 2, FrameRate: rate(t)})

	tok, err := h.KeepAwake()
	if err != nil {
		t.Fatal(err)
	}
	if h.IsSleeping() {
		t.Fatal("expected handle awake after KeepAwake")
	}

	if _, err := h.GetBatch([]int{0, 1}); err != nil {
		t.Fatal(err)
	}
	if h.IsSleeping() {
		t.Error("handle should still be awake: KeepAwake scope not released yet")
	}

	tok.Release()
	if !h.IsSleeping() {
		t.Error("handle should sleep once the KeepAwake scope releases")
	}
}

func TestKeepAwakeNestedScopes(t *testing.T) {
	h, _ := newFakeHandle(t, decoder.FakeVideo{NumFrames: 5, Width: 2, Height: 2, FrameRate: rate(t)})

	outer, err := h.KeepAwake()
	if err != nil {
		t.Fatal(err)
	}
	inner, err := h.KeepAwake()
	if err != nil {
		t.Fatal(err)
	}
	inner.Release()
	if h.IsSleeping() {
		t.Fatal("handle should stay awake while outer scope is open")
	}
	outer.Release()
	if !h.IsSleeping() {
		t.Error("handle should sleep once all scopes release")
	}
}

func TestGetBatchPropagatesDecodeError(t *testing.T) {
	h, _ := newFakeHandle(t, decoder.FakeVideo{NumFrames: 5, Width: 2, Height: 2, FailAtFrame: 3, FrameRate: rate(t)})
	_, err := h.GetBatch([]int{0, 3})
	var decErr *verrors.DecodeError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if decErr.Frame != 3 {
		t.Errorf("DecodeError.Frame = %d, want 3", decErr.Frame)
	}
}

func TestSleepForcesCloseRegardlessOfScope(t *testing.T) {
	h, _ := newFakeHandle(t, decoder.FakeVideo{NumFrames: 5, Width: 2, Height: 2, FrameRate: rate(t)})
	if _, err := h.KeepAwake(); err != nil {
		t.Fatal(err)
	}
	if err := h.Sleep(); err != nil {
		t.Fatal(err)
	}
	if !h.IsSleeping() {
		t.Error("Sleep() must force close even with an open KeepAwake scope")
	}
}
