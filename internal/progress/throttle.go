package progress

import (
	"sync"
	"time"
)

const (
	// MinStep is the smallest percentage change emitted without waiting MinInterval.
	MinStep = 1.0
	// MinInterval is the longest an update can be held back.
	MinInterval = 100 * time.Millisecond
)

// Throttle coalesces progress updates before they reach a consumer. An update is
// dropped only when it is both less than MinStep above the last emitted value and
// less than MinInterval after it. 0 and 100 are always emitted, and the emitted
// sequence never decreases.
type Throttle struct {
	mu      sync.Mutex
	emit    Func
	now     func() time.Time
	last    float64
	lastAt  time.Time
	started bool
}

// NewThrottle wraps emit.
func NewThrottle(emit Func) *Throttle {
	return &Throttle{emit: emit, now: time.Now}
}

// Update offers a new value and reports whether it was emitted.
func (t *Throttle) Update(percent float64) bool {
	t.mu.Lock()
	percent = clamp(percent)
	if t.started && percent < t.last {
		t.mu.Unlock()
		return false
	}

	now := t.now()
	boundary := (percent == 0 && !t.started) || (percent == 100 && t.last < 100)
	if t.started && !boundary {
		if percent-t.last < MinStep && now.Sub(t.lastAt) < MinInterval {
			t.mu.Unlock()
			return false
		}
		if percent == t.last {
			t.mu.Unlock()
			return false
		}
	}

	t.started = true
	t.last = percent
	t.lastAt = now
	emit := t.emit
	t.mu.Unlock()

	if emit != nil {
		emit(percent)
	}
	return true
}

// Func returns Update as a progress callback.
func (t *Throttle) Func() Func {
	return func(p float64) { t.Update(p) }
}

// Last returns the last emitted value.
func (t *Throttle) Last() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}
