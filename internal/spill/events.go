package spill

import "sync"

// Event names published by the Manager.
const (
	EventRegister   = "register"
	EventUnregister = "unregister"
	EventSpill      = "spill"
	EventUnspill    = "unspill"
	EventExpose     = "expose"
	EventEvict      = "evict"
	EventAllocRetry = "alloc_retry"
)

// Event represents a buffer lifecycle event.
// Minimal and stable: name + buffer id and optional fields.
type Event struct {
	Name     string
	BufferID uint64
	Size     int64
	Fields   map[string]any
}

// EventPublisher receives events from the manager. Publish runs synchronously
// on the caller's goroutine and must not call back into the manager.
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

// Events returns a copy of the recorded events.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the recorded event names in order.
func (p *MemoryPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Name
	}
	return out
}

// MultiPublisher fans an event out to several publishers in order.
type MultiPublisher []EventPublisher

func (m MultiPublisher) Publish(e Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(e)
		}
	}
}
