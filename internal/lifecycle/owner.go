package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/conneroisu/motiondeck/internal/types"
)

// Owner tracks every timer one mounted demo schedules. It implements
// types.Scheduler and is the only scheduler a demo ever sees.
//
// Callbacks of one Owner never run concurrently with each other, with Do, or
// with Dispose. Once Dispose returns no callback of this owner runs again and
// further scheduling is inert.
//
// Dispose must not be called from inside one of the owner's own callbacks.
type Owner struct {
	clock Clock

	// run serialises callbacks, Do and Dispose.
	run sync.Mutex

	mu       sync.Mutex
	next     types.TimerHandle
	timers   map[types.TimerHandle]*ownedTimer
	disposed bool
	fired    uint64

	onFault func(error)
}

type ownedTimer struct {
	timer    Timer
	interval time.Duration
	fn       func()
}

var _ types.Scheduler = (*Owner)(nil)

// NewOwner creates an owner scheduling through clock.
func NewOwner(clock Clock) *Owner {
	if clock == nil {
		clock = RealClock()
	}
	return &Owner{
		clock:  clock,
		timers: make(map[types.TimerHandle]*ownedTimer),
	}
}

// OnFault sets the handler for panics raised by callbacks. The handler runs
// after the callback lock is released.
func (o *Owner) OnFault(fn func(error)) {
	o.mu.Lock()
	o.onFault = fn
	o.mu.Unlock()
}

// After implements types.Scheduler.
func (o *Owner) After(d time.Duration, fn func()) types.TimerHandle {
	return o.schedule(d, 0, fn)
}

// Every implements types.Scheduler.
func (o *Owner) Every(d time.Duration, fn func()) types.TimerHandle {
	if d <= 0 {
		d = time.Millisecond
	}
	return o.schedule(d, d, fn)
}

func (o *Owner) schedule(d, interval time.Duration, fn func()) types.TimerHandle {
	if fn == nil {
		return 0
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		return 0
	}
	o.next++
	h := o.next
	t := &ownedTimer{interval: interval, fn: fn}
	o.timers[h] = t
	t.timer = o.clock.AfterFunc(d, func() { o.fire(h) })
	return h
}

// Cancel implements types.Scheduler.
func (o *Owner) Cancel(h types.TimerHandle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.timers[h]
	if !ok {
		return false
	}
	delete(o.timers, h)
	t.timer.Stop()
	return true
}

// Pending returns the number of timers still owned.
func (o *Owner) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.timers)
}

// Fired returns how many callbacks have run.
func (o *Owner) Fired() uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fired
}

// Disposed reports whether Dispose has been called.
func (o *Owner) Disposed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.disposed
}

// Dispose cancels every timer still owned and returns how many there were.
// It waits for a callback already running to finish. Calling it twice is safe.
func (o *Owner) Dispose() int {
	o.run.Lock()
	defer o.run.Unlock()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.disposed {
		return 0
	}
	o.disposed = true
	n := len(o.timers)
	for h, t := range o.timers {
		t.timer.Stop()
		delete(o.timers, h)
	}
	return n
}

// Do runs fn serialised with the owner's callbacks. It reports false without
// running fn when the owner is disposed.
func (o *Owner) Do(fn func()) bool {
	o.run.Lock()
	defer o.run.Unlock()
	if o.Disposed() {
		return false
	}
	fn()
	return true
}

func (o *Owner) fire(h types.TimerHandle) {
	var fault error
	func() {
		o.run.Lock()
		defer o.run.Unlock()

		o.mu.Lock()
		t, ok := o.timers[h]
		if o.disposed || !ok {
			o.mu.Unlock()
			return
		}
		if t.interval > 0 {
			t.timer = o.clock.AfterFunc(t.interval, func() { o.fire(h) })
		} else {
			delete(o.timers, h)
		}
		o.fired++
		fn := t.fn
		o.mu.Unlock()

		fault = invoke(fn)
	}()

	if fault == nil {
		return
	}
	o.mu.Lock()
	handler := o.onFault
	o.mu.Unlock()
	if handler != nil {
		handler(fault)
	}
}

func invoke(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("timer callback panicked: %v", r)
		}
	}()
	fn()
	return nil
}
