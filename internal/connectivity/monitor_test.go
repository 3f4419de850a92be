package connectivity

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/fieldsync/internal/remote"
	"github.com/fieldops/fieldsync/internal/remote/remotetest"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestMonitor_FiresOnlyOnRegained(t *testing.T) {
	t.Parallel()

	m := New(nil)
	var fired int
	m.OnRegained(func() { fired++ })

	assert.Equal(t, StateUnknown, m.State())
	m.SetOnline(true)
	assert.Zero(t, fired, "first observation is not a transition")

	m.SetOnline(true)
	m.SetOnline(false)
	m.SetOnline(false)
	assert.Zero(t, fired)
	assert.False(t, m.Online())

	m.SetOnline(true)
	assert.Equal(t, 1, fired)
	assert.True(t, m.Online())
}

func TestMonitor_InitialOffline(t *testing.T) {
	t.Parallel()

	m := New(nil, WithInitialState(StateOffline))
	var fired int
	m.OnRegained(func() { fired++ })

	m.SetOnline(true)
	assert.Equal(t, 1, fired)
}

func TestMonitor_ListenersInOrderAndRemovable(t *testing.T) {
	t.Parallel()

	m := New(nil, WithInitialState(StateOffline))
	var order []string
	m.OnRegained(func() { order = append(order, "a") })
	removeB := m.OnRegained(func() { order = append(order, "b") })
	m.OnRegained(func() { panic("listener bug") })
	m.OnRegained(func() { order = append(order, "c") })

	assert.NotPanics(t, func() { m.SetOnline(true) })
	assert.Equal(t, []string{"a", "b", "c"}, order)

	removeB()
	removeB()
	order = nil
	m.SetOnline(false)
	m.SetOnline(true)
	assert.Equal(t, []string{"a", "c"}, order)
}

func TestMonitor_Probe(t *testing.T) {
	t.Parallel()

	var failing atomic.Bool
	pinger := pingFunc(func(context.Context) error {
		if failing.Load() {
			return errors.New("connection refused")
		}
		return nil
	})

	m := New(pinger, WithInitialState(StateOnline))
	var fired atomic.Int32
	m.OnRegained(func() { fired.Add(1) })
	ctx := context.Background()

	failing.Store(true)
	assert.False(t, m.Probe(ctx))
	assert.Equal(t, StateOffline, m.State())

	failing.Store(false)
	assert.True(t, m.Probe(ctx))
	assert.Equal(t, int32(1), fired.Load())
}

func TestMonitor_ProbeDuringShutdownIsIgnored(t *testing.T) {
	t.Parallel()

	pinger := pingFunc(func(ctx context.Context) error { return ctx.Err() })
	m := New(pinger, WithInitialState(StateOnline))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, m.Probe(ctx))
	assert.Equal(t, StateOnline, m.State())
}

func TestMonitor_ProbeTimeout(t *testing.T) {
	t.Parallel()

	pinger := pingFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	m := New(pinger, WithProbeTimeout(10*time.Millisecond))

	assert.False(t, m.Probe(context.Background()))
	assert.Equal(t, StateOffline, m.State())
}

func TestMonitor_StartAgainstServer(t *testing.T) {
	t.Parallel()

	srv := remotetest.NewServer()
	defer srv.Close()
	client, err := remote.NewHTTPClient(srv.URL)
	require.NoError(t, err)

	m := New(client, WithInterval(10*time.Millisecond), WithInitialState(StateOffline))
	regained := make(chan struct{}, 1)
	m.OnRegained(func() {
		select {
		case regained <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	select {
	case <-regained:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never reported the server as reachable")
	}
	assert.True(t, m.Online())

	cancel()
	require.NoError(t, <-done)
}

func TestMonitor_StartWithoutPinger(t *testing.T) {
	t.Parallel()

	m := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, StateUnknown, m.State())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unknown", StateUnknown.String())
	assert.Equal(t, "offline", StateOffline.String())
	assert.Equal(t, "online", StateOnline.String())
}
