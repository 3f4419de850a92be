package coordinator

import (
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/fieldops/fieldsync/internal/events"
	"github.com/fieldops/fieldsync/internal/status"
	"github.com/fieldops/fieldsync/internal/store"
	"github.com/fieldops/fieldsync/internal/telemetry"
)

const (
	// DefaultInterval is the base period of the periodic trigger
	DefaultInterval = 5 * time.Minute
	// DefaultJitter is the maximum relative offset applied to each period
	DefaultJitter = 0.1
)

// Option is a function that configures the coordinator
type Option func(*Coordinator)

// WithInterval sets the base period of the periodic trigger
func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithJitter sets the relative jitter of the periodic trigger, between 0 and 1
func WithJitter(ratio float64) Option {
	return func(c *Coordinator) {
		if ratio >= 0 && ratio < 1 {
			c.jitter = ratio
		}
	}
}

// WithRunOnStart runs a cycle as soon as Start is called
func WithRunOnStart(run bool) Option {
	return func(c *Coordinator) {
		c.runOnStart = run
	}
}

// WithStatusPersistence persists the tenant status at every phase change
func WithStatusPersistence(p status.StatusPersistence) Option {
	return func(c *Coordinator) {
		c.statusPersistence = p
	}
}

// WithQueue lets the coordinator report the number of pending changes
func WithQueue(q store.Queue) Option {
	return func(c *Coordinator) {
		c.queue = q
	}
}

// WithEventBus publishes cycle events on bus
func WithEventBus(bus *events.Bus) Option {
	return func(c *Coordinator) {
		c.bus = bus
	}
}

// WithSyncMetrics sets the sync metrics for the coordinator
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(c *Coordinator) {
		c.syncMetrics = metrics
	}
}

// WithTracer records a span per cycle
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// WithClock overrides the clock used for status timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// nextInterval returns the base interval with a random offset of up to
// ±jitter applied, so that many devices do not hit the server in lockstep.
func (c *Coordinator) nextInterval() time.Duration {
	if c.jitter == 0 {
		return c.interval
	}
	spread := int64(float64(c.interval) * c.jitter)
	if spread <= 0 {
		return c.interval
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for scheduling jitter
	offset := time.Duration(rand.Int64N(2*spread+1) - spread)
	return c.interval + offset
}
