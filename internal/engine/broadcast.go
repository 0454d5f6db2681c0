package engine

import (
	"sync"

	"github.com/hilvik/vivum-demo-v1/internal/model"
)

// subscriberBuffer is how many undelivered events a subscriber may lag by
// before it is dropped.
const subscriberBuffer = 256

// broadcaster fans engine events out to subscribers. It keeps no history:
// events carry current values and late subscribers start from a snapshot.
type broadcaster struct {
	mu      sync.Mutex
	clients map[uint64]chan model.Event
	nextID  uint64
	closed  bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{
		clients: make(map[uint64]chan model.Event),
	}
}

// send never blocks. A subscriber whose buffer is full has its channel
// closed and is removed.
func (b *broadcaster) send(ev model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for id, ch := range b.clients {
		select {
		case ch <- ev:
		default:
			close(ch)
			delete(b.clients, id)
		}
	}
}

func (b *broadcaster) subscribe() (<-chan model.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.clients[id] = ch

	unsub := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.clients[id]; ok {
			delete(b.clients, id)
			close(ch)
		}
	}
	return ch, unsub
}

func (b *broadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}
