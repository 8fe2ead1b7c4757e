package ksdk

import (
	"context"
	"time"
)

// PollTask is a running fixed-interval loop. It stops on its own when the
// tick function returns false.
type PollTask struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startPollTask runs tick every interval until tick returns false or the task
// is cancelled. The first tick fires one interval after start.
func startPollTask(parent context.Context, interval time.Duration, tick func(ctx context.Context) bool) *PollTask {
	ctx, cancel := context.WithCancel(parent)
	t := &PollTask{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()

		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			if !tick(ctx) {
				return
			}
			timer.Reset(interval)
		}
	}()

	return t
}

// Cancel stops scheduling and blocks until the loop goroutine has exited, so
// no tick runs after it returns. It must not be called from inside tick.
// Safe on a nil or finished task.
func (t *PollTask) Cancel() {
	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}

// Done is closed once the loop has exited.
func (t *PollTask) Done() <-chan struct{} {
	return t.done
}
