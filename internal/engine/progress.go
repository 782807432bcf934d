package engine

import "sync"

// ProgressEvent is published at a bounded cadence during a scan. Consumers
// may ignore the stream entirely without affecting scan correctness.
type ProgressEvent struct {
	EntriesProcessed int64  `json:"entries_processed"`
	CurrentPath      string `json:"current_path"`
}

// Broadcaster fans progress events out to subscribers. Publishing is
// non-blocking: events are dropped for slow consumers rather than stalling
// the scan.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan ProgressEvent]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[chan ProgressEvent]struct{})}
}

// Subscribe adds a subscriber and returns its event channel. The caller
// must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan ProgressEvent {
	ch := make(chan ProgressEvent, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan ProgressEvent) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	close(ch)
	b.mu.Unlock()
}

// Publish sends an event to all subscribers.
func (b *Broadcaster) Publish(ev ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			// Drop event for slow consumer
		}
	}
}
