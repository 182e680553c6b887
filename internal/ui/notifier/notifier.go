// Package notifier fans graph change signals out to SSE streams.
package notifier

import (
	"sync"
	"sync/atomic"
)

// Notifier broadcasts update pings to all subscribed listeners. Listeners
// receive an empty struct and should re-read the graph store; pings that
// arrive while one is pending are coalesced.
//
// It implements graph.Listener so it can be subscribed to the store.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan struct{}]struct{}
	revision  atomic.Uint64
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan struct{}]struct{}),
	}
}

// Subscribe returns a channel that receives pings when updates are available.
// The caller must call Unsubscribe when done.
func (n *Notifier) Subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast pings every listener without blocking.
func (n *Notifier) Broadcast() {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// GraphChanged records revision and pings every listener. Revisions that
// arrive out of order never move Latest backwards.
func (n *Notifier) GraphChanged(revision uint64) {
	for {
		cur := n.revision.Load()
		if revision <= cur || n.revision.CompareAndSwap(cur, revision) {
			break
		}
	}
	n.Broadcast()
}

// Latest returns the highest revision seen.
func (n *Notifier) Latest() uint64 {
	return n.revision.Load()
}

// Len returns the number of subscribed listeners.
func (n *Notifier) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.listeners)
}
