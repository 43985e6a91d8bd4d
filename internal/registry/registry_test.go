package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vidreg/vidreg/internal/decoder"
	"github.com/vidreg/vidreg/internal/rational"
	"github.com/vidreg/vidreg/internal/verrors"
)

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New("onnx")
	if !errors.Is(err, verrors.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestAddVideoFileNotFound(t *testing.T) {
	r, err := New("raw")
	if err != nil {
		t.Fatal(err)
	}
	_, err = r.AddVideoFile(filepath.Join(t.TempDir(), "missing.mp4"))
	if !errors.Is(err, verrors.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
}

func TestAddVideoFileIsADirectory(t *testing.T) {
	r, err := New("raw")
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	_, err = r.AddVideoFile(dir)
	if !errors.Is(err, verrors.ErrIsADirectory) {
		t.Fatalf("expected ErrIsADirectory, got %v", err)
	}
}

func TestAddVideoFileOpensAndSleeps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v.mp4")
	if err := os.WriteFile(path, []byte("not real media, just needs to exist"), 0o644); err != nil {
		t.Fatal(err)
	}

	fake := decoder.NewFakeOpener()
	rateVal, _ := rational.New(25, 1)
	fake.Add(path, decoder.FakeVideo{NumFrames: 8, Width: 4, Height: 4, KeyframeEvery: 4, FrameRate: rateVal})

	r, err := New("raw", WithOpener(fake))
	if err != nil {
		t.Fatal(err)
	}
	h, err := r.AddVideoFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !h.IsSleeping() {
		t.Error("handle returned by AddVideoFile should be sleeping")
	}
	if h.NumFrames() != 8 {
		t.Errorf("NumFrames() = %d, want 8", h.NumFrames())
	}
}

func TestMaxAwakeHandlesBoundsConcurrentWakes(t *testing.T) {
	dir := t.TempDir()
	fake := decoder.NewFakeOpener()
	rateVal, _ := rational.New(25, 1)

	paths := make([]string, 3)
	for i := range paths {
		p := filepath.Join(dir, string(rune('a'+i))+".mp4")
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		fake.Add(p, decoder.FakeVideo{NumFrames: 4, Width: 2, Height: 2, FrameRate: rateVal})
		paths[i] = p
	}

	r, err := New("raw", WithOpener(fake), WithMaxAwakeHandles(1))
	if err != nil {
		t.Fatal(err)
	}

	h0, err := r.AddVideoFile(paths[0])
	if err != nil {
		t.Fatal(err)
	}
	h1, err := r.AddVideoFile(paths[1])
	if err != nil {
		t.Fatal(err)
	}

	tok0, err := h0.KeepAwake()
	if err != nil {
		t.Fatal(err)
	}
	defer tok0.Release()

	done := make(chan error, 1)
	go func() {
		_, err := h1.KeepAwake()
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("second KeepAwake should block while the awake bound is exhausted")
	default:
	}

	tok0.Release()
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}
