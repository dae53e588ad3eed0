package tracking

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/archielabs/archie/domain/task"
)

var (
	_ Reporter  = (*Cooldown)(nil)
	_ io.Closer = (*Cooldown)(nil)
)

// Cooldown throttles a Reporter to at most one delivery per interval
// per status id. Terminal states bypass the throttle. A suppressed
// update is held as pending and flushed when the interval elapses, so
// the sink always converges on the latest state.
type Cooldown struct {
	inner    Reporter
	interval time.Duration
	mu       sync.Mutex
	gates    map[string]*gate
}

type gate struct {
	lastFlush time.Time
	pending   *task.Status
	timer     *time.Timer
}

// NewCooldown wraps a reporter with a per-status-id delivery interval.
func NewCooldown(inner Reporter, interval time.Duration) *Cooldown {
	return &Cooldown{
		inner:    inner,
		interval: interval,
		gates:    make(map[string]*gate),
	}
}

// OnChange delivers terminal states immediately and throttles the rest.
func (c *Cooldown) OnChange(ctx context.Context, status task.Status) error {
	id := status.ID()

	c.mu.Lock()

	if status.State().IsTerminal() {
		if g := c.gates[id]; g != nil {
			if g.timer != nil {
				g.timer.Stop()
			}
			delete(c.gates, id)
		}
		c.mu.Unlock()
		return c.inner.OnChange(ctx, status)
	}

	g := c.gates[id]
	if g == nil {
		g = &gate{}
		c.gates[id] = g
	}

	if time.Since(g.lastFlush) >= c.interval {
		if g.timer != nil {
			g.timer.Stop()
			g.timer = nil
		}
		g.pending = nil
		g.lastFlush = time.Now()
		c.mu.Unlock()
		return c.inner.OnChange(ctx, status)
	}

	held := status
	g.pending = &held
	if g.timer == nil {
		remaining := c.interval - time.Since(g.lastFlush)
		g.timer = time.AfterFunc(remaining, func() {
			c.flush(id)
		})
	}

	c.mu.Unlock()
	return nil
}

// Close stops all timers and flushes any held updates.
func (c *Cooldown) Close() error {
	c.mu.Lock()
	gates := c.gates
	c.gates = make(map[string]*gate)
	c.mu.Unlock()

	for _, g := range gates {
		if g.timer != nil {
			g.timer.Stop()
		}
		if g.pending != nil {
			_ = c.inner.OnChange(context.Background(), *g.pending)
		}
	}
	return nil
}

func (c *Cooldown) flush(id string) {
	c.mu.Lock()
	g := c.gates[id]
	if g == nil || g.pending == nil {
		if g != nil {
			g.timer = nil
		}
		c.mu.Unlock()
		return
	}

	status := *g.pending
	g.pending = nil
	g.lastFlush = time.Now()
	g.timer = nil
	c.mu.Unlock()

	_ = c.inner.OnChange(context.Background(), status)
}
