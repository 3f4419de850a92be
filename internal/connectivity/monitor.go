// Package connectivity tracks whether the sync server is reachable and
// reports offline to online transitions.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultInterval is how often the server is probed
	DefaultInterval = 30 * time.Second
	// DefaultProbeTimeout bounds a single probe
	DefaultProbeTimeout = 5 * time.Second
)

// Pinger checks that the server answers
type Pinger interface {
	Ping(ctx context.Context) error
}

// State is the last known reachability
type State int

const (
	// StateUnknown means nothing has been observed yet
	StateUnknown State = iota
	// StateOffline means the last observation failed
	StateOffline
	// StateOnline means the last observation succeeded
	StateOnline
)

// String returns the lower-case state name
func (s State) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateOnline:
		return "online"
	default:
		return "unknown"
	}
}

// Monitor probes a Pinger on an interval and accepts external signals.
// Listeners fire only on an offline to online transition; the first
// observation after startup never counts as regained.
type Monitor struct {
	pinger       Pinger
	interval     time.Duration
	probeTimeout time.Duration

	mu        sync.Mutex
	state     State
	nextID    int
	listeners map[int]func()
	order     []int
}

// Option configures a Monitor
type Option func(*Monitor)

// WithInterval sets the probe interval
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithProbeTimeout bounds each probe
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.probeTimeout = d
		}
	}
}

// WithInitialState presets the state, e.g. StateOffline when the agent
// starts without a network
func WithInitialState(s State) Option {
	return func(m *Monitor) {
		m.state = s
	}
}

// New creates a monitor. A nil pinger disables probing; SetOnline still works.
func New(pinger Pinger, opts ...Option) *Monitor {
	m := &Monitor{
		pinger:       pinger,
		interval:     DefaultInterval,
		probeTimeout: DefaultProbeTimeout,
		listeners:    map[int]func(){},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the last known reachability
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Online reports whether the server was reachable at the last observation
func (m *Monitor) Online() bool {
	return m.State() == StateOnline
}

// OnRegained registers fn for offline to online transitions. The returned
// function removes it.
func (m *Monitor) OnRegained(fn func()) (remove func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners[id] = fn
	m.order = append(m.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.listeners, id)
			for i, v := range m.order {
				if v == id {
					m.order = append(m.order[:i:i], m.order[i+1:]...)
					break
				}
			}
		})
	}
}

// SetOnline records an observation from the platform or a probe
func (m *Monitor) SetOnline(online bool) {
	next := StateOffline
	if online {
		next = StateOnline
	}

	m.mu.Lock()
	prev := m.state
	m.state = next
	var fire []func()
	if prev == StateOffline && next == StateOnline {
		for _, id := range m.order {
			fire = append(fire, m.listeners[id])
		}
	}
	m.mu.Unlock()

	if prev != next {
		slog.Info("Connectivity changed", "from", prev.String(), "to", next.String())
	}
	for _, fn := range fire {
		notify(fn)
	}
}

func notify(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Connectivity listener panicked", "panic", r)
		}
	}()
	fn()
}

// Probe pings the server once and records the outcome
func (m *Monitor) Probe(ctx context.Context) bool {
	if m.pinger == nil {
		return m.Online()
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	err := m.pinger.Ping(probeCtx)
	if err != nil && ctx.Err() != nil {
		// Shutting down; not an observation.
		return m.Online()
	}
	if err != nil {
		slog.Debug("Connectivity probe failed", "error", err)
	}
	m.SetOnline(err == nil)
	return err == nil
}

// Start probes immediately and then on every interval until ctx is done
func (m *Monitor) Start(ctx context.Context) error {
	if m.pinger == nil {
		<-ctx.Done()
		return nil
	}
	slog.Info("Starting connectivity monitor", "interval", m.interval)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}
