package prefetch

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/vidreg/vidreg/internal/decoder"
	"github.com/vidreg/vidreg/internal/rational"
	"github.com/vidreg/vidreg/internal/registry"
	"github.com/vidreg/vidreg/internal/video"
)

// sliceSampler yields a fixed, pre-built list of (video_index,
// frame_indices) items in order, then reports exhaustion.
type sliceSampler struct {
	mu    sync.Mutex
	items [][2]any // [videoIndex int, frameIndices []int]
	pos   int
}

func (s *sliceSampler) Next() (int, []int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.items) {
		return 0, nil, false
	}
	item := s.items[s.pos]
	s.pos++
	return item[0].(int), item[1].([]int), true
}

func setupFixture(t *testing.T, n int, framesPerVideo int) (*registry.Registry, []string) {
	t.Helper()
	dir := t.TempDir()
	fake := decoder.NewFakeOpener()
	rate, _ := rational.New(25, 1)

	paths := make([]string, n)
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, string(rune('a'+i))+".mp4")
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		fake.Add(p, decoder.FakeVideo{NumFrames: framesPerVideo, Width: 2, Height: 2, KeyframeEvery: 4, FrameRate: rate})
		paths[i] = p
	}
	reg, err := registry.New("raw", registry.WithOpener(fake))
	if err != nil {
		t.Fatal(err)
	}
	return reg, paths
}

func TestIteratorYieldsAllItemsInSamplerOrder(t *testing.T) {
	reg, paths := setupFixture(t, 3, 10)
	sampler := &sliceSampler{items: [][2]any{
		{0, []int{1, 2}},
		{1, []int{0}},
		{2, []int{5, 6, 7}},
		{0, []int{3}},
	}}

	it, err := New(paths, sampler, reg, 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Stop()

	var got int
	for {
		out, err := it.Next()
		if errors.Is(err, ErrDone) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// The fake decoder fills every byte of frame f with f%256, so the
		// first byte identifies the item's first requested frame.
		want := sampler.items[got][1].([]int)[0] % 256
		if pix := out.([]byte); int(pix[0]) != want {
			t.Errorf("item %d: first pixel byte %d, want %d", got, pix[0], want)
		}
		got++
	}
	if got != len(sampler.items) {
		t.Errorf("got %d items, want %d", got, len(sampler.items))
	}
}

func TestIteratorPropagatesOutOfRangeAtCorrectPosition(t *testing.T) {
	reg, paths := setupFixture(t, 1, 5)
	sampler := &sliceSampler{items: [][2]any{
		{0, []int{0}},
		{0, []int{999}}, // out of range on the 2nd item
		{0, []int{1}},
	}}

	it, err := New(paths, sampler, reg, 2, 8)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Stop()

	if _, err := it.Next(); err != nil {
		t.Fatalf("1st item: unexpected error: %v", err)
	}
	if _, err := it.Next(); err == nil {
		t.Fatal("2nd item: expected an out-of-range error")
	}
	if _, err := it.Next(); err != nil {
		t.Fatalf("3rd item: unexpected error: %v", err)
	}
	if _, err := it.Next(); !errors.Is(err, ErrDone) {
		t.Fatalf("expected ErrDone, got %v", err)
	}
}

func TestIteratorOpensEachVideoAtMostOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "v.mp4")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := decoder.NewFakeOpener()
	rate, _ := rational.New(25, 1)
	fake.Add(path, decoder.FakeVideo{NumFrames: 20, Width: 2, Height: 2, KeyframeEvery: 4, FrameRate: rate})
	var opens atomic.Int32
	reg, err := registry.New("raw", registry.WithOpener(fake),
		registry.WithHandleConstructor(func(h *video.Handle) (*video.Handle, error) {
			opens.Add(1)
			return h, nil
		}))
	if err != nil {
		t.Fatal(err)
	}

	items := make([][2]any, 30)
	for i := range items {
		items[i] = [2]any{0, []int{i % 20}}
	}
	sampler := &sliceSampler{items: items}

	it, err := New([]string{path}, sampler, reg, 4, 16)
	if err != nil {
		t.Fatal(err)
	}
	defer it.Stop()

	count := 0
	for {
		_, err := it.Next()
		if errors.Is(err, ErrDone) {
			break
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		count++
	}
	if count != len(items) {
		t.Errorf("got %d items, want %d", count, len(items))
	}
	if n := opens.Load(); n != 1 {
		t.Errorf("video opened %d times, want 1", n)
	}
}

func TestIteratorStopJoinsWorkers(t *testing.T) {
	reg, paths := setupFixture(t, 1, 1000)
	items := make([][2]any, 500)
	for i := range items {
		items[i] = [2]any{0, []int{i % 1000}}
	}
	sampler := &sliceSampler{items: items}

	it, err := New(paths, sampler, reg, 4, 32)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := it.Next(); err != nil {
		t.Fatal(err)
	}
	it.Stop() // must return without deadlocking despite unfinished work
}
