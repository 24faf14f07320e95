package engine

import (
	"sync"

	"github.com/JakeFAU/runwatch/internal/display"
)

// subscriber holds at most one undelivered view. A slow reader only ever
// sees the newest state.
type subscriber struct {
	ch   chan display.View
	once sync.Once
}

func (s *subscriber) offer(v display.View) {
	for {
		select {
		case s.ch <- v:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// Subscribe returns a channel that receives the current view immediately and
// then every view produced by a mutation, including auto-dismissal. Call the
// returned cancel func to release the subscription. The channel is closed on
// cancel or when the engine closes.
func (e *Engine) Subscribe() (<-chan display.View, func()) {
	sub := &subscriber{ch: make(chan display.View, 1)}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		sub.close()
		return sub.ch, func() {}
	}
	e.subs[sub] = struct{}{}
	sub.offer(display.Derive(e.store.Snapshot()))
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		delete(e.subs, sub)
		e.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel
}

// publishLocked derives the view once and fans it out to subscribers.
func (e *Engine) publishLocked() display.View {
	v := display.Derive(e.store.Snapshot())
	for sub := range e.subs {
		sub.offer(v)
	}
	return v
}
