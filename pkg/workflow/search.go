package workflow

import (
	"sync"
	"time"
)

// SearchAdapter turns raw keystrokes into settled input events. With a zero
// delay every edit is forwarded at once. A cleared field is always forwarded
// immediately.
type SearchAdapter struct {
	delay time.Duration
	emit  func(text string)

	mu      sync.Mutex
	timer   *time.Timer
	pending string
	// seq advances on every edit; a timer only emits if its seq is current
	seq uint64
}

// NewSearchAdapter creates an adapter forwarding to emit
func NewSearchAdapter(delay time.Duration, emit func(text string)) *SearchAdapter {
	return &SearchAdapter{delay: delay, emit: emit}
}

// Changed records a new field value. Emits happen under the adapter lock so
// they reach emit in edit order.
func (a *SearchAdapter) Changed(text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	if a.delay <= 0 || text == "" {
		a.pending = ""
		a.emit(text)
		return
	}
	a.pending = text
	seq := a.seq
	a.timer = time.AfterFunc(a.delay, func() { a.fire(seq) })
}

func (a *SearchAdapter) fire(seq uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if seq != a.seq {
		// superseded by a later edit after the timer had already fired
		return
	}
	a.timer = nil
	a.emit(a.pending)
}

// Stop drops any pending edit
func (a *SearchAdapter) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
