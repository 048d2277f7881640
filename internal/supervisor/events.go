package supervisor

import "sync"

// Event is a supervisor lifecycle event (load_start, spawn_error, terminated, ...).
// Minimal and stable: name + model and optional fields.
type Event struct {
	Name   string
	Model  string
	Fields map[string]any
}

// EventPublisher receives lifecycle events. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// MemoryPublisher stores events in-memory for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the event names in publish order.
func (p *MemoryPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Name
	}
	return out
}

// subscriberBuffer is the per-subscriber backlog; events past it are dropped.
const subscriberBuffer = 16

// broadcaster fans StatusEvents out to subscribers without blocking the sender.
type broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]chan StatusEvent
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]chan StatusEvent)}
}

func (b *broadcaster) subscribe() (chan StatusEvent, func()) {
	ch := make(chan StatusEvent, subscriberBuffer)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}

func (b *broadcaster) publish(ev StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// publishTo delivers ev to a single subscriber channel, dropping it when full.
func (b *broadcaster) publishTo(ch chan StatusEvent, ev StatusEvent) {
	select {
	case ch <- ev:
	default:
	}
}

func (b *broadcaster) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
