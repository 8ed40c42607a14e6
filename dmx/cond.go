package dmx

import (
	"context"
	"sync"
)

// condWaitCtx calls cond.Wait() (the caller must already hold cond.L) but
// also wakes when ctx is cancelled, by racing a one-shot watcher goroutine
// that broadcasts when ctx.Done() fires. The caller must re-check its
// predicate and ctx.Err() after this returns — sync.Cond offers no way to
// tell which of the two woke it.
func condWaitCtx(ctx context.Context, cond *sync.Cond) {
	if ctx == nil || ctx.Done() == nil {
		cond.Wait()
		return
	}
	done := make(chan struct{})
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cond.L.Lock()
			cond.Broadcast()
			cond.L.Unlock()
		case <-stop:
		}
		close(done)
	}()
	cond.Wait()
	close(stop)
	<-done
}
