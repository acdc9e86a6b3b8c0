package events

import (
	"fmt"
	"sync"
	"time"
)

// Phase event kinds
const (
	KindStarted  = "started"
	KindFinished = "finished"
	KindFailed   = "failed"
)

// PhaseEvent is published when a trading phase starts or ends
type PhaseEvent struct {
	Timestamp time.Time `json:"ts"`
	Phase     string    `json:"phase"`
	Kind      string    `json:"kind"`
	Session   string    `json:"session"`
	Error     string    `json:"error,omitempty"`
}

func (e PhaseEvent) String() string {
	s := fmt.Sprintf("PhaseEvent{%s %s session=%s at=%s", e.Phase, e.Kind, e.Session, e.Timestamp.Format(time.RFC3339))
	if e.Error != "" {
		s += " error=" + e.Error
	}
	return s + "}"
}

// Broadcaster fans out phase events to all subscribers via buffered channels
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[chan PhaseEvent]struct{}
	buffer int
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer < 1 {
		buffer = 64
	}
	return &Broadcaster{
		subs:   make(map[chan PhaseEvent]struct{}),
		buffer: buffer,
	}
}

// Publish sends the event to all subscribers, dropping it for slow readers.
// A nil broadcaster discards events.
func (b *Broadcaster) Publish(e PhaseEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// drop slow consumer
		}
	}
}

// Subscribe returns a channel that receives events until Unsubscribe is called
func (b *Broadcaster) Subscribe() chan PhaseEvent {
	ch := make(chan PhaseEvent, b.buffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes the channel and closes it
func (b *Broadcaster) Unsubscribe(ch chan PhaseEvent) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Subscribers returns the number of active subscribers
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
