package preview

import "sync"

// notifier broadcasts reload pings to all connected preview clients.
// Listeners receive an empty struct when a bundle has been recompiled and
// should refetch their frames.
type notifier struct {
	mu        sync.RWMutex
	listeners map[chan struct{}]struct{}
}

func newNotifier() *notifier {
	return &notifier{
		listeners: make(map[chan struct{}]struct{}),
	}
}

// subscribe returns a channel that receives pings. The caller must call
// unsubscribe when done to prevent goroutine leaks.
func (n *notifier) subscribe() chan struct{} {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

func (n *notifier) unsubscribe(ch chan struct{}) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// broadcast sends a ping to all listeners. Non-blocking: a listener with
// a full channel catches up on the next broadcast.
func (n *notifier) broadcast() {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
