package worker

import "testing"

func TestSemaphoreAcquireRelease(t *testing.T) {
	s := NewSemaphore(2)
	<-s.Chan()
	<-s.Chan()

	select {
	case <-s.Chan():
		t.Fatal("expected no permit available after exhausting both")
	default:
	}

	s.Release()
	select {
	case <-s.Chan():
	default:
		t.Fatal("expected a permit to be available after Release")
	}
}

func TestSemaphoreOverReleasePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on over-release")
		}
	}()
	s := NewSemaphore(1)
	s.Release()
}
