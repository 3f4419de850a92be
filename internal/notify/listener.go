// Package notify listens for server-side change announcements over a
// websocket and turns them into sync triggers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fieldops/fieldsync/internal/retry"
)

const (
	// ChangesMessage announces that new remote changes are available
	ChangesMessage = "changes"

	// DefaultPath is appended to the sync endpoint when no notify URL is configured
	DefaultPath = "notifications"

	// DefaultReconnectDelay is waited after the retry executor gives up dialing
	DefaultReconnectDelay = time.Minute

	defaultHandshakeTimeout = 10 * time.Second
)

// Message is a notification pushed by the server
type Message struct {
	Type     string `json:"type"`
	TenantID string `json:"tenant_id"`
	Entity   string `json:"entity,omitempty"`
}

// Handler receives every changes message. It is called from the listener
// goroutine and must not block.
type Handler func(Message)

// Listener keeps a websocket subscription open, reconnecting as needed
type Listener struct {
	url            string
	handler        Handler
	retrier        *retry.Executor
	dialer         *websocket.Dialer
	header         http.Header
	token          func() (string, error)
	reconnectDelay time.Duration

	mu        sync.Mutex
	connected bool
}

// Option configures a Listener
type Option func(*Listener)

// WithRetrier sets the executor used to dial the server
func WithRetrier(r *retry.Executor) Option {
	return func(l *Listener) {
		if r != nil {
			l.retrier = r
		}
	}
}

// WithTokenSource sends a bearer token with the websocket handshake
func WithTokenSource(source func() (string, error)) Option {
	return func(l *Listener) {
		l.token = source
	}
}

// WithReconnectDelay sets the pause between exhausted dial attempts
func WithReconnectDelay(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.reconnectDelay = d
		}
	}
}

// New creates a listener for rawURL. Handler is required.
func New(rawURL string, handler Handler, opts ...Option) (*Listener, error) {
	if handler == nil {
		return nil, errors.New("notification handler is required")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid notify URL %q: %w", rawURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid notify URL %q: scheme must be ws or wss", rawURL)
	}

	l := &Listener{
		url:     u.String(),
		handler: handler,
		retrier: retry.New(retry.Config{
			IsRetryable: func(error) bool { return true },
		}),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		header:         http.Header{},
		reconnectDelay: DefaultReconnectDelay,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// URLFromEndpoint derives the websocket URL from the sync endpoint,
// mapping http to ws and https to wss.
func URLFromEndpoint(endpoint string) (string, error) {
	u, err := url.Parse(strings.TrimRight(endpoint, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid sync endpoint %q: %w", endpoint, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid sync endpoint %q: scheme must be http or https", endpoint)
	}
	return u.JoinPath(DefaultPath).String(), nil
}

// Connected reports whether a subscription is currently open
func (l *Listener) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

func (l *Listener) setConnected(v bool) {
	l.mu.Lock()
	l.connected = v
	l.mu.Unlock()
}

// Run blocks until ctx is done, holding a subscription open and
// dispatching messages. Dropped connections are re-dialed.
func (l *Listener) Run(ctx context.Context) error {
	slog.Info("Starting change notification listener", "url", l.url)
	for {
		conn, err := l.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("Could not connect to change notifications",
				"url", l.url, "error", err, "retry_in", l.reconnectDelay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.reconnectDelay):
			}
			continue
		}

		l.setConnected(true)
		slog.Info("Subscribed to change notifications", "url", l.url)
		err = l.read(ctx, conn)
		l.setConnected(false)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("Change notification connection lost, reconnecting", "error", err)
	}
}

func (l *Listener) dial(ctx context.Context) (*websocket.Conn, error) {
	return retry.Do(ctx, l.retrier, func(ctx context.Context) (*websocket.Conn, error) {
		header := l.header.Clone()
		if l.token != nil {
			token, err := l.token()
			if err != nil {
				return nil, fmt.Errorf("failed to obtain access token: %w", err)
			}
			if token != "" {
				header.Set("Authorization", "Bearer "+token)
			}
		}
		conn, resp, err := l.dialer.DialContext(ctx, l.url, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", l.url, err)
		}
		return conn, nil
	})
}

// read dispatches messages until the connection fails or ctx is done
func (l *Listener) read(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer func() {
		stop()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			slog.Warn("Ignoring malformed change notification", "error", err)
			continue
		}
		if msg.Type != ChangesMessage {
			slog.Debug("Ignoring notification", "type", msg.Type)
			continue
		}
		slog.Debug("Received change notification", "tenant", msg.TenantID, "entity", msg.Entity)
		l.handler(msg)
	}
}
