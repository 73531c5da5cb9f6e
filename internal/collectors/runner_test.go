package collectors

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunLoopRepeatsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	passes := 0
	done := make(chan struct{})
	go func() {
		RunLoop(ctx, "test", time.Millisecond, func(context.Context) error {
			passes++
			if passes == 3 {
				cancel()
			}
			return errors.New("keep going")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunLoop did not stop after cancel")
	}
	if passes < 3 {
		t.Fatalf("passes = %d, want >= 3", passes)
	}
}
