package device

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/tigerscale/internal/logging"
)

const (
	// DefaultMinBackoff is the first reconnect delay after the push channel drops
	DefaultMinBackoff = 1 * time.Second
	// DefaultMaxBackoff caps the reconnect delay
	DefaultMaxBackoff = 30 * time.Second

	handshakeTimeout = 5 * time.Second
)

// PushSubscriber holds the WebSocket push channel open, reconnecting with
// exponential backoff until its context is cancelled. Frames are decoded as
// partial snapshots (normally just weight and uid).
type PushSubscriber struct {
	URL        string
	Dialer     *websocket.Dialer
	MinBackoff time.Duration
	MaxBackoff time.Duration

	// OnConnection, when set, is called with true after each successful
	// handshake and with false when the connection drops.
	OnConnection func(connected bool)

	mu        sync.Mutex
	connected bool
}

// NewPushSubscriber creates a subscriber for the given ws:// URL.
func NewPushSubscriber(url string) *PushSubscriber {
	return &PushSubscriber{
		URL: url,
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		MinBackoff: DefaultMinBackoff,
		MaxBackoff: DefaultMaxBackoff,
	}
}

// Connected reports whether the push channel is currently open.
func (p *PushSubscriber) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

// Run blocks until ctx is cancelled, delivering every decoded frame to
// handle. Malformed frames are logged and skipped.
func (p *PushSubscriber) Run(ctx context.Context, handle func(Snapshot)) error {
	backoff := p.MinBackoff
	if backoff <= 0 {
		backoff = DefaultMinBackoff
	}

	for {
		err := p.session(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err == nil {
			// The connection was up for a while; start over from the
			// shortest delay.
			backoff = p.MinBackoff
			if backoff <= 0 {
				backoff = DefaultMinBackoff
			}
		} else {
			logging.Debug("Push channel unavailable",
				zap.String("url", p.URL),
				zap.Error(err),
				zap.Duration("retry_in", backoff),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		if err != nil {
			backoff *= 2
			if max := p.maxBackoff(); backoff > max {
				backoff = max
			}
		}
	}
}

func (p *PushSubscriber) maxBackoff() time.Duration {
	if p.MaxBackoff <= 0 {
		return DefaultMaxBackoff
	}
	return p.MaxBackoff
}

// session runs one connection. It returns nil when an established
// connection dropped and an error when the handshake failed.
func (p *PushSubscriber) session(ctx context.Context, handle func(Snapshot)) error {
	dialer := p.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, _, err := dialer.DialContext(ctx, p.URL, nil)
	if err != nil {
		return NewProtocolError("push handshake failed", err)
	}
	remote := conn.RemoteAddr().String()
	logging.Info("Push channel connected", zap.String("url", p.URL))
	p.setConnected(true)
	defer p.setConnected(false)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()
	defer func() { _ = conn.Close() }()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
				logging.Warn("Push channel dropped", zap.String("url", p.URL), zap.Error(err))
			}
			return nil
		}
		if messageType != websocket.TextMessage {
			continue
		}
		logging.LogPushFrame(remote, "RX", payload)

		snap, err := DecodeSnapshot(payload)
		if err != nil {
			logging.Debug("Skipping malformed push frame", zap.Error(err))
			continue
		}
		handle(snap)
	}
}

func (p *PushSubscriber) setConnected(connected bool) {
	p.mu.Lock()
	changed := p.connected != connected
	p.connected = connected
	cb := p.OnConnection
	p.mu.Unlock()

	if changed && cb != nil {
		cb(connected)
	}
}
