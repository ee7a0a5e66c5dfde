// Package eventbus is an in-memory fanout for small operational signals
// (cycle outcomes, dropped ticks) between the watcher and its observers.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event is a lightweight signal. Data should be a small value type.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// Bus contract:
//   - Publish never blocks.
//   - Subscribers get a buffered channel; when it is full the event is
//     dropped for that subscriber only.
type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

const defaultBuffer = 16

// New returns an in-memory bus. It owns no goroutines.
func New() *MemBus {
	return &MemBus{subs: map[uint64]*sub{}}
}

type MemBus struct {
	mu      sync.RWMutex
	subs    map[uint64]*sub
	seq     atomic.Uint64
	dropped atomic.Uint64
}

type sub struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func (b *MemBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	subs := make([]*sub, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, s := range subs {
		if !s.offer(e) {
			b.dropped.Add(1)
		}
	}
}

func (b *MemBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	s := &sub{ch: make(chan Event, buffer)}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			s.close()
		})
	}
}

// Dropped reports how many deliveries were skipped because a subscriber
// was full.
func (b *MemBus) Dropped() uint64 { return b.dropped.Load() }

func (s *sub) offer(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

func (s *sub) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
