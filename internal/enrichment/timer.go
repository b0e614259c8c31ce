// Package enrichment fills recipient fields from external registries (CNPJ
// and CEP lookups). Each lookup runs behind a debounce Timer and every
// result is tagged with the trigger sequence so late answers can be dropped.
package enrichment

import (
	"sync"
	"time"
)

// Timer is a restartable debounce timer. Every Start supersedes the previous
// one, and the sequence number it hands to the callback identifies the
// trigger that produced it.
type Timer struct {
	mu    sync.Mutex
	delay time.Duration
	t     *time.Timer
	seq   uint64
}

func NewTimer(delay time.Duration) *Timer {
	return &Timer{delay: delay}
}

// Start cancels any pending call and schedules fn after the delay.
func (t *Timer) Start(fn func(seq uint64)) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.t != nil {
		t.t.Stop()
	}
	t.seq++
	seq := t.seq
	t.t = time.AfterFunc(t.delay, func() { fn(seq) })
	return seq
}

// Cancel stops the pending call and invalidates any call already running.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
	t.seq++
}

// IsCurrent reports whether seq is still the latest trigger.
func (t *Timer) IsCurrent(seq uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.seq == seq
}
