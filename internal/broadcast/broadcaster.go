// Package broadcast fans wallet state snapshots out to subscribers.
package broadcast

import (
	"sync"

	"github.com/ombima56/TranspaCharity/internal/domain"
)

// Listener receives wallet state snapshots. Listeners run synchronously on the
// publishing goroutine and must not call Publish or Subscribe themselves.
type Listener func(domain.WalletState)

// Unsubscribe removes a listener. Calling it more than once is a no-op.
type Unsubscribe func()

type subscriber struct {
	id uint64
	fn Listener
}

// Broadcaster holds the current wallet state and its subscriber list.
// One Broadcaster is created per application session.
type Broadcaster struct {
	// publishMu serialises Publish and the replay in Subscribe so every
	// listener sees snapshots in the order they were published.
	publishMu sync.Mutex

	mu          sync.RWMutex
	state       domain.WalletState
	subscribers []subscriber
	nextID      uint64
}

// New returns a broadcaster seeded with initial.
func New(initial domain.WalletState) *Broadcaster {
	return &Broadcaster{state: initial.Clone()}
}

// State returns the current snapshot.
func (b *Broadcaster) State() domain.WalletState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.Clone()
}

// Subscribe registers fn and immediately calls it with the current state
// before returning.
func (b *Broadcaster) Subscribe(fn Listener) Unsubscribe {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subscribers = append(b.subscribers, subscriber{id: id, fn: fn})
	current := b.state.Clone()
	b.mu.Unlock()

	fn(current)

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

// Publish replaces the current state and notifies every subscriber in
// registration order.
func (b *Broadcaster) Publish(state domain.WalletState) {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	b.state = state.Clone()
	subs := make([]subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(state.Clone())
	}
}

// Update applies fn to the current state and publishes the result as one
// snapshot. It returns the published state.
func (b *Broadcaster) Update(fn func(domain.WalletState) domain.WalletState) domain.WalletState {
	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	b.mu.Lock()
	next := fn(b.state.Clone()).Clone()
	b.state = next
	subs := make([]subscriber, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(next.Clone())
	}
	return next.Clone()
}

// Len returns the number of registered listeners.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subscribers {
		if s.id == id {
			b.subscribers = append(b.subscribers[:i:i], b.subscribers[i+1:]...)
			return
		}
	}
}
