package watch

import (
	"sync"
	"time"
)

// coalescer merges rapid events for the same path inside a settling
// window, so a save that touches a file five times indexes it once.
// Merge rules by first-then-next operation:
//
//	create + modify = create
//	create + delete = dropped entirely
//	modify + delete = delete
//	delete + create = modify (the file was replaced)
type coalescer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]*tracked
	timer   *time.Timer
	out     chan []Event
	stopped bool
}

type tracked struct {
	event   Event
	firstOp Op
}

func newCoalescer(window time.Duration) *coalescer {
	return &coalescer{
		window:  window,
		pending: make(map[string]*tracked),
		out:     make(chan []Event, 16),
	}
}

func (c *coalescer) add(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}

	if existing, ok := c.pending[ev.Path]; ok {
		merged, keep := merge(existing.firstOp, existing.event, ev)
		if !keep {
			delete(c.pending, ev.Path)
		} else {
			existing.event = merged
		}
	} else {
		c.pending[ev.Path] = &tracked{event: ev, firstOp: ev.Op}
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.window, c.flush)
}

func merge(firstOp Op, existing, next Event) (Event, bool) {
	switch firstOp {
	case OpCreate:
		switch next.Op {
		case OpModify:
			return existing, true
		case OpDelete:
			return Event{}, false
		}
	case OpDelete:
		if next.Op == OpCreate {
			next.Op = OpModify
			return next, true
		}
	}
	return next, true
}

func (c *coalescer) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || len(c.pending) == 0 {
		return
	}

	batch := make([]Event, 0, len(c.pending))
	for _, tr := range c.pending {
		batch = append(batch, tr.event)
	}
	c.pending = make(map[string]*tracked)

	select {
	case c.out <- batch:
	default:
	}
}

func (c *coalescer) output() <-chan []Event { return c.out }

func (c *coalescer) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
	}
	close(c.out)
}
