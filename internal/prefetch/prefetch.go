// Package prefetch implements the Adaptive Prefetch Iterator (component
// C6): a bounded multi-producer/single-consumer pipeline that pulls
// (video-index, frame-indices) items from a Sampler, decodes them on a
// pool of worker goroutines, preserves sampler order on output, and
// adapts worker count to the consumer's pull rate.
//
// The original Python implementation splits queue protection across
// two locks — one for length/admission bookkeeping, one for contents —
// relying on CPython's GIL to make individual list operations atomic
// regardless of which lock a caller happens to hold. Go gives no such
// guarantee, so this package backs both condition variables with a
// single *sync.Mutex while keeping them as two distinct sync.Cond
// values; that preserves the two distinct wait/signal points the spec
// names (start_prefetch admission vs. new_data delivery) without the
// data race a literal two-separate-mutex translation would introduce.
package prefetch

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vidreg/vidreg/internal/registry"
	"github.com/vidreg/vidreg/internal/verrors"
	"github.com/vidreg/vidreg/internal/video"
)

// Sampler is a pull-only, finite, not-restartable source of
// (video_index, frame_indices) work items.
type Sampler interface {
	Next() (videoIndex int, frameIndices []int, ok bool)
}

// ErrDone is returned by Next once the sampler is exhausted and the
// queue has fully drained.
var ErrDone = errors.New("prefetch: iterator exhausted")

type slotState int

const (
	stateUnopened slotState = iota
	stateOpening
	stateOpened
)

// videoSlot is one cell of the iterator-owned videos list: a tagged
// union of Unopened(path) | Opening(waitable) | Opened(handle), per
// spec §3 and §9 (the videos list is owned by the iterator, not
// aliased with caller state, per Open Question 4's resolution).
type videoSlot struct {
	state  slotState
	path   string
	handle *video.Handle
	err    error
	done   chan struct{}
}

// prefetchSlot is one queued work item: a one-shot ready signal plus an
// immutable payload once ready.
type prefetchSlot struct {
	ready   bool
	payload any
	err     error
}

// Iterator is one iteration session: a live worker pool draining a
// Sampler in FIFO sampler order.
type Iterator struct {
	mu            sync.Mutex
	startPrefetch *sync.Cond
	newData       *sync.Cond

	videos   []videoSlot
	registry *registry.Registry
	sampler  Sampler

	maxThread   int
	maxPrefetch int

	queue []*prefetchSlot

	runningWorkers int
	targetWorkers  float64

	loadWindow []float64
	loadSum    float64
	loadPos    int

	readWindow []time.Time
	readPos    int
	readFilled int

	finished   bool
	stopped    bool
	fatalError error

	wg sync.WaitGroup
}

// New constructs an Iterator over videos (unopened source paths) and
// starts its worker pool immediately. maxThread bounds concurrent
// workers; maxPrefetch bounds queue depth (and is the window size K
// used by the scheduler).
func New(videos []string, sampler Sampler, reg *registry.Registry, maxThread, maxPrefetch int) (*Iterator, error) {
	if maxThread < 1 {
		return nil, fmt.Errorf("%w: prefetch: max_thread must be >= 1", verrors.ErrConfig)
	}
	if maxPrefetch < 1 {
		return nil, fmt.Errorf("%w: prefetch: max_prefetch must be >= 1", verrors.ErrConfig)
	}

	it := &Iterator{
		videos:      make([]videoSlot, len(videos)),
		registry:    reg,
		sampler:     sampler,
		maxThread:   maxThread,
		maxPrefetch: maxPrefetch,
		loadWindow:  seedLoadWindow(maxPrefetch),
		readWindow:  seedReadWindow(maxPrefetch + 1),
	}
	it.startPrefetch = sync.NewCond(&it.mu)
	it.newData = sync.NewCond(&it.mu)
	for i, p := range videos {
		it.videos[i] = videoSlot{state: stateUnopened, path: p}
	}
	for _, v := range it.loadWindow {
		it.loadSum += v
	}

	it.wg.Add(maxThread)
	for i := 0; i < maxThread; i++ {
		go it.workerLoop()
	}
	return it, nil
}

// seedLoadWindow seeds the decode-time window optimistically (a large
// constant) so the scheduler starts by admitting full parallelism
// rather than ramping up from zero, per spec §4.6.
func seedLoadWindow(k int) []float64 {
	w := make([]float64, k)
	for i := range w {
		w[i] = 60.0
	}
	return w
}

// seedReadWindow seeds timestamps one second apart, oldest first and
// ending one second before now, so the very first scheduler invocation
// sees a nonzero read interval and the intervals measured while real
// reads replace the seeds stay on the scale of the current run.
func seedReadWindow(k int) []time.Time {
	now := time.Now()
	w := make([]time.Time, k)
	for i := range w {
		w[i] = now.Add(-time.Duration(k-i) * time.Second)
	}
	return w
}

// Next blocks until the next item (in sampler order) is ready, and
// returns its decoded payload. Returns ErrDone once the sampler is
// exhausted and the queue has drained, or the latched fatal error if a
// worker goroutine failed unexpectedly.
func (it *Iterator) Next() (any, error) {
	it.mu.Lock()
	for len(it.queue) == 0 && !it.finished && it.fatalError == nil {
		it.newData.Wait()
	}

	if len(it.queue) == 0 {
		err := it.fatalError
		it.mu.Unlock()
		it.Stop()
		if err != nil {
			return nil, err
		}
		return nil, ErrDone
	}

	slot := it.queue[0]
	it.queue = it.queue[1:]

	for !slot.ready && it.fatalError == nil {
		it.newData.Wait()
	}
	if it.fatalError != nil {
		err := it.fatalError
		it.mu.Unlock()
		it.Stop()
		return nil, err
	}
	it.mu.Unlock()

	it.mu.Lock()
	it.recordReadLocked(time.Now())
	it.runSchedulerLocked()
	it.mu.Unlock()
	it.startPrefetch.Broadcast()

	if slot.err != nil {
		return nil, slot.err
	}
	return slot.payload, nil
}

// Stats is a snapshot of the scheduler's internal state, for progress
// reporting only; it has no bearing on iteration correctness.
type Stats struct {
	QueueDepth     int
	RunningWorkers int
	TargetWorkers  float64
}

// Stats reports the current queue depth, active worker count, and the
// scheduler's most recently computed target worker count.
func (it *Iterator) Stats() Stats {
	it.mu.Lock()
	defer it.mu.Unlock()
	return Stats{
		QueueDepth:     len(it.queue),
		RunningWorkers: it.runningWorkers,
		TargetWorkers:  it.targetWorkersOrFull(),
	}
}

// Stop sets the terminal signal, wakes every waiter on both condition
// variables, and joins all workers. Safe to call more than once and
// safe to call from Next's own exhaustion path.
func (it *Iterator) Stop() {
	it.mu.Lock()
	if it.stopped {
		it.mu.Unlock()
		return
	}
	it.stopped = true
	it.finished = true
	it.mu.Unlock()
	it.startPrefetch.Broadcast()
	it.newData.Broadcast()
	it.wg.Wait()
}

func (it *Iterator) recordReadLocked(now time.Time) {
	it.readWindow[it.readPos] = now
	it.readPos = (it.readPos + 1) % len(it.readWindow)
	if it.readFilled < len(it.readWindow) {
		it.readFilled++
	}
}

// runSchedulerLocked implements spec §4.6's adaptive scheduler. Must be
// called with mu held.
func (it *Iterator) runSchedulerLocked() {
	oldest, newest := it.readWindowBounds()
	interval := newest.Sub(oldest).Seconds() * 0.95
	if interval <= 0 {
		interval = 1e-6
	}

	target := it.loadSum / interval
	if target > float64(it.maxThread) {
		target = float64(it.maxThread)
	}
	it.targetWorkers = target

	delta := math.Ceil(target - float64(it.runningWorkers))
	if delta > 0 {
		for i := 0; i < int(delta); i++ {
			it.startPrefetch.Signal()
		}
	}
}

func (it *Iterator) readWindowBounds() (oldest, newest time.Time) {
	n := len(it.readWindow)
	// readPos points at the slot that will be overwritten next, i.e.
	// the oldest entry; the newest entry is immediately before it.
	oldest = it.readWindow[it.readPos]
	newest = it.readWindow[(it.readPos-1+n)%n]
	return oldest, newest
}

func (it *Iterator) updateLoadWindowLocked(d time.Duration) {
	v := d.Seconds()
	it.loadSum += v - it.loadWindow[it.loadPos]
	it.loadWindow[it.loadPos] = v
	it.loadPos = (it.loadPos + 1) % len(it.loadWindow)
}

// admitted reports whether a worker may claim a new item right now.
// Must be called with mu held.
func (it *Iterator) admittedLocked() bool {
	return float64(it.runningWorkers) < it.targetWorkersOrFull() && len(it.queue) < it.maxPrefetch
}

// targetWorkersOrFull returns targetWorkers once the scheduler has run
// at least once; before that, every worker is admitted up to
// maxThread, matching the "start optimistic" seeding.
func (it *Iterator) targetWorkersOrFull() float64 {
	if it.targetWorkers == 0 {
		return float64(it.maxThread)
	}
	return it.targetWorkers
}

func (it *Iterator) workerLoop() {
	defer it.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			it.mu.Lock()
			if it.fatalError == nil {
				it.fatalError = errors.New("prefetch: worker panic: " + panicMessage(r))
			}
			it.mu.Unlock()
			it.newData.Broadcast()
			it.startPrefetch.Broadcast()
		}
	}()

	for {
		it.mu.Lock()
		for !it.finished && it.fatalError == nil && !it.admittedLocked() {
			it.startPrefetch.Wait()
		}
		if it.stopped || it.fatalError != nil {
			it.mu.Unlock()
			return
		}
		if it.finished {
			it.mu.Unlock()
			return
		}

		vIdx, frameIndices, ok := it.sampler.Next()
		if !ok {
			it.finished = true
			it.mu.Unlock()
			it.startPrefetch.Broadcast()
			it.newData.Broadcast()
			return
		}

		slot := &prefetchSlot{}
		it.queue = append(it.queue, slot)
		it.runningWorkers++
		waitCh, mustOpen, path := it.claimOpenLocked(vIdx)
		it.mu.Unlock()

		tStart := time.Now()

		if waitCh != nil {
			<-waitCh
		}

		var handle *video.Handle
		var openErr error
		if mustOpen {
			h, err := it.registry.AddVideoFile(path)
			it.mu.Lock()
			it.videos[vIdx].handle = h
			it.videos[vIdx].err = err
			it.videos[vIdx].state = stateOpened
			done := it.videos[vIdx].done
			it.mu.Unlock()
			close(done)
			handle, openErr = h, err
		} else {
			it.mu.Lock()
			handle, openErr = it.videos[vIdx].handle, it.videos[vIdx].err
			it.mu.Unlock()
		}

		var payload any
		var err error
		if openErr != nil {
			err = openErr
		} else {
			payload, err = handle.GetBatch(frameIndices)
		}

		it.mu.Lock()
		slot.ready = true
		slot.payload = payload
		slot.err = err
		it.mu.Unlock()
		it.newData.Broadcast()

		it.mu.Lock()
		it.runningWorkers--
		it.updateLoadWindowLocked(time.Since(tStart))
		it.runSchedulerLocked()
		it.mu.Unlock()
		it.startPrefetch.Broadcast()
	}
}

// claimOpenLocked implements the videos-list state machine transition
// for one slot (spec §3, §4.6 step 3/4). Must be called with mu held.
func (it *Iterator) claimOpenLocked(idx int) (wait <-chan struct{}, mustOpen bool, path string) {
	s := it.videos[idx]
	switch s.state {
	case stateUnopened:
		it.videos[idx].state = stateOpening
		it.videos[idx].done = make(chan struct{})
		return nil, true, s.path
	case stateOpening:
		return s.done, false, ""
	default: // stateOpened
		return nil, false, ""
	}
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "unknown panic"
}
