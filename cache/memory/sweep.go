package memory

import (
	"fmt"
	"time"
)

// Start launches the background sweeper. Calling it more than once is a no-op.
func (c *Cache[V]) Start() {
	c.startOnce.Do(func() {
		c.running.Store(true)
		go c.sweepLoop()
	})
}

// Stop halts the sweeper and waits for it to exit. It is safe to call Stop
// several times, and before Start.
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	if c.running.Load() {
		<-c.done
	}
}

func (c *Cache[V]) sweepLoop() {
	defer close(c.done)

	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache[V]) sweep() {
	defer func() {
		if r := recover(); r != nil {
			c.opts.Logger.Error().
				Str("cache", c.opts.Name).
				Err(fmt.Errorf("%v", r)).
				Msg("cache sweep panicked")
		}
	}()

	if n := c.Cleanup(); n > 0 {
		c.opts.Logger.Debug().
			Str("cache", c.opts.Name).
			Int("removed", n).
			Msg("cache sweep")
	}
}
