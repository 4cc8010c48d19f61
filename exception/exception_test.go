package exception

import (
	"testing"
	"time"

	"rosettagw/monitoring"
)

func TestSafeGoContainsPanic(t *testing.T) {
	monitoring.InitMetrics()

	ran := make(chan struct{})
	SafeGo("panicky", func() {
		defer close(ran)
		panic("boom")
	})
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("guarded goroutine never ran")
	}

	// the process survived; later goroutines still run
	again := make(chan struct{})
	SafeGo("healthy", func() { close(again) })
	select {
	case <-again:
	case <-time.After(time.Second):
		t.Fatal("follow-up goroutine never ran")
	}
}
