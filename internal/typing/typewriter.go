// Package typing simulates incremental text arrival for a response that is
// already fully available in memory.
package typing

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is the reveal rate.
const DefaultInterval = 20 * time.Millisecond

// Typewriter reveals a fixed string one character at a time. Whatever ends
// the reveal (natural completion, Skip, Stop, context cancellation), the
// persist callback fires exactly once.
type Typewriter struct {
	text     []rune
	interval time.Duration
	onReveal func(partial string)
	persist  func(final string)

	mu       sync.Mutex
	revealed int

	once sync.Once
	done chan struct{}
}

// New constructs a typewriter. onReveal may be nil; persist must not be.
func New(text string, interval time.Duration, onReveal func(partial string), persist func(final string)) *Typewriter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Typewriter{
		text:     []rune(text),
		interval: interval,
		onReveal: onReveal,
		persist:  persist,
		done:     make(chan struct{}),
	}
}

// Start runs the reveal loop in the calling goroutine and returns once the
// message has been persisted. Cancelling ctx flushes the partial reveal as
// the final message (session switch / unmount semantics).
func (t *Typewriter) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ctx.Done():
			t.Stop()
			return
		case <-ticker.C:
			t.mu.Lock()
			if t.revealed < len(t.text) {
				t.revealed++
			}
			partial := string(t.text[:t.revealed])
			complete := t.revealed == len(t.text)
			t.mu.Unlock()

			if t.onReveal != nil {
				t.onReveal(partial)
			}
			if complete {
				t.finish(string(t.text))
				return
			}
		}
	}
}

// Skip persists the full original text immediately, discarding the partial
// reveal.
func (t *Typewriter) Skip() {
	t.finish(string(t.text))
}

// Stop flushes whatever has been revealed so far as the final message.
func (t *Typewriter) Stop() {
	t.mu.Lock()
	partial := string(t.text[:t.revealed])
	t.mu.Unlock()
	t.finish(partial)
}

// Done reports completion; closed once the message has been persisted.
func (t *Typewriter) Done() <-chan struct{} {
	return t.done
}

func (t *Typewriter) finish(final string) {
	t.once.Do(func() {
		if t.persist != nil {
			t.persist(final)
		}
		close(t.done)
	})
}
