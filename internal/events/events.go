// Package events is the observer registry through which sync cycles report
// their progress. Subscriptions have an explicit lifetime: a listener stops
// receiving events as soon as Unsubscribe returns.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Kind is the type of a sync event
type Kind string

const (
	// KindStart is published when a cycle begins
	KindStart Kind = "start"
	// KindProgress is published when a cycle moves to another phase
	KindProgress Kind = "progress"
	// KindComplete is published when a cycle finishes without error
	KindComplete Kind = "complete"
	// KindError is published when a cycle fails
	KindError Kind = "error"
)

// Event describes one step of a sync cycle
type Event struct {
	Kind     Kind      `json:"kind"`
	TenantID string    `json:"tenant_id"`
	Trigger  string    `json:"trigger,omitempty"`
	Phase    string    `json:"phase,omitempty"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`

	Pushed    int `json:"pushed,omitempty"`
	Pulled    int `json:"pulled,omitempty"`
	Conflicts int `json:"conflicts,omitempty"`
	Rejected  int `json:"rejected,omitempty"`
	Pending   int `json:"pending,omitempty"`

	Err error `json:"-"`
}

// Listener receives events synchronously on the publishing goroutine
type Listener func(Event)

// Bus fans events out to its subscribers in subscription order
type Bus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners []*Subscription
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{}
}

// Subscription is the handle returned by Subscribe
type Subscription struct {
	id       uint64
	bus      *Bus
	listener Listener
	once     sync.Once
}

// Unsubscribe removes the listener. Calling it more than once is harmless.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.bus.remove(s.id)
	})
}

// Subscribe registers listener until the returned subscription is cancelled
func (b *Bus) Subscribe(listener Listener) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{id: b.nextID, bus: b, listener: listener}
	b.listeners = append(b.listeners, sub)
	return sub
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.listeners {
		if sub.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Len returns the number of active subscriptions
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish delivers ev to every listener. A zero Time is set to now.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	b.mu.RLock()
	listeners := b.listeners
	b.mu.RUnlock()

	for _, sub := range listeners {
		deliver(sub.listener, ev)
	}
}

func deliver(listener Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Sync event listener panicked",
				"kind", ev.Kind,
				"tenant", ev.TenantID,
				"panic", r)
		}
	}()
	listener(ev)
}

// ChannelSubscription delivers events on a buffered channel. Events that
// do not fit in the buffer are dropped and counted.
type ChannelSubscription struct {
	sub     *Subscription
	ch      chan Event
	mu      sync.Mutex
	closed  bool
	dropped atomic.Uint64
}

// Channel subscribes a channel with the given buffer size
func (b *Bus) Channel(size int) *ChannelSubscription {
	if size < 1 {
		size = 1
	}
	cs := &ChannelSubscription{ch: make(chan Event, size)}
	cs.sub = b.Subscribe(cs.send)
	return cs
}

// C returns the receive side. It is closed by Unsubscribe.
func (cs *ChannelSubscription) C() <-chan Event {
	return cs.ch
}

// Dropped returns how many events were lost because the buffer was full
func (cs *ChannelSubscription) Dropped() uint64 {
	return cs.dropped.Load()
}

// Unsubscribe stops delivery and closes the channel
func (cs *ChannelSubscription) Unsubscribe() {
	cs.sub.Unsubscribe()
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if !cs.closed {
		cs.closed = true
		close(cs.ch)
	}
}

func (cs *ChannelSubscription) send(ev Event) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.closed {
		return
	}
	select {
	case cs.ch <- ev:
	default:
		cs.dropped.Add(1)
	}
}
