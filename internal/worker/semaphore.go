// Package worker holds small concurrency primitives, used by the
// registry's awake-handle bound.
package worker

// Semaphore is a buffered-channel counting semaphore: acquire by
// receiving from Chan(), release by calling Release(). Grounded on the
// channel-as-permit-bucket pattern the teacher's encode pipeline uses
// to gate concurrent chunk encodes.
type Semaphore struct {
	permits chan struct{}
}

// NewSemaphore creates a Semaphore with n permits immediately available.
func NewSemaphore(n int) *Semaphore {
	s := &Semaphore{permits: make(chan struct{}, n)}
	for i := 0; i < n; i++ {
		s.permits <- struct{}{}
	}
	return s
}

// Chan returns the channel to receive from in order to acquire a
// permit; combine with a select on a context or cancellation channel.
func (s *Semaphore) Chan() <-chan struct{} {
	return s.permits
}

// Release returns a permit to the pool.
func (s *Semaphore) Release() {
	select {
	case s.permits <- struct{}{}:
	default:
		panic("worker: Semaphore.Release called more times than acquired")
	}
}
