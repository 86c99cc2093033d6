package trace

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// StartHeartbeat emits a heartbeat event every interval until ctx is done or
// the returned stop function is called. A long stress run whose trace shows
// heartbeats but no span ends is stuck inside a kernel.
//
// stop waits for the emitting goroutine and is safe to call more than once.
func StartHeartbeat(ctx context.Context, t Tracer, interval time.Duration) (stop func()) {
	if t == nil || !t.Enabled() || interval <= 0 {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for beat := 1; ; beat++ {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				t.Emit(&Event{
					Time:   now,
					Kind:   KindHeartbeat,
					Scope:  ScopeKernel,
					Name:   "heartbeat",
					Detail: "#" + strconv.Itoa(beat),
				})
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}
