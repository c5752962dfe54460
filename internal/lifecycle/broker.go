package lifecycle

import (
	"sync"
	"time"

	"github.com/seantiz/procgate/internal/model"
)

// subscriberBufferSize is the channel buffer for each status subscriber.
// Events are dropped if a subscriber falls this far behind.
const subscriberBufferSize = 16

// Event is a status change observed for one process.
type Event struct {
	ProcessID string       `json:"process_id"`
	Status    model.Status `json:"status"`
	Error     string       `json:"error,omitempty"`
	At        time.Time    `json:"at"`
}

// Broker fans status events out to per-process subscribers.
// It is safe for concurrent use.
//
// A topic exists only while it has subscribers. Close ends every current
// subscription and forgets the topic, so deleted processes leave nothing
// behind. Callers that subscribe after a delete learn the terminal status
// from the metadata store, not from the broker.
type Broker struct {
	mu     sync.Mutex
	topics map[string]*topic
}

type topic struct {
	subs   map[int]chan Event
	nextID int
}

// NewBroker creates a new status broker.
func NewBroker() *Broker {
	return &Broker{
		topics: make(map[string]*topic),
	}
}

// Subscribe returns a channel that receives status events for the given
// process and an unsubscribe function.
func (b *Broker) Subscribe(processID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[processID]
	if !ok {
		t = &topic{subs: make(map[int]chan Event)}
		b.topics[processID] = t
	}

	ch := make(chan Event, subscriberBufferSize)
	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
		if len(t.subs) == 0 && b.topics[processID] == t {
			delete(b.topics, processID)
		}
	}
}

// Publish sends an event to all current subscribers of the process.
// Events are dropped for subscribers whose buffers are full.
func (b *Broker) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[evt.ProcessID]
	if !ok {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Close closes every subscriber channel for the process and drops its topic.
func (b *Broker) Close(processID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[processID]
	if !ok {
		return
	}
	delete(b.topics, processID)
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}

// Topics reports how many processes currently have subscribers.
func (b *Broker) Topics() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics)
}
