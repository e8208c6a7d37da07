package autosave

import (
	"sync"
	"time"
)

const DefaultDebounce = time.Second

// Debouncer keeps at most one pending call per key. Scheduling a key again
// restarts its quiet period and drops the earlier call.
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]*pendingCall
	seq     uint64
	stopped bool
}

type pendingCall struct {
	timer *time.Timer
	seq   uint64
}

func NewDebouncer(window time.Duration) *Debouncer {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingCall),
	}
}

// Schedule arms fn for key. It returns false once the debouncer is stopped.
func (d *Debouncer) Schedule(key string, fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return false
	}
	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.pending[key] = &pendingCall{
		seq:   seq,
		timer: time.AfterFunc(d.window, func() { d.fire(key, seq, fn) }),
	}
	return true
}

func (d *Debouncer) fire(key string, seq uint64, fn func()) {
	d.mu.Lock()
	p, ok := d.pending[key]
	// A timer that lost the race with Stop or a reschedule must not run.
	if d.stopped || !ok || p.seq != seq {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	fn()
}

func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

func (d *Debouncer) IsPending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}

// Stop cancels every pending call and rejects later ones. It returns how many
// calls were dropped.
func (d *Debouncer) Stop() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	n := len(d.pending)
	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
	return n
}
