// Package transport dials exchange websocket streams and exposes inbound
// frames on a channel, reconnecting automatically on drop (spec.md §4.1).
// Grounded on the teacher's pkg/exchange/binance.BinanceWSConn (dial,
// readLoop goroutine, ping/pong keepalive, handleDisconnect) generalized
// from a single-connection struct into a channel-based Transport so the
// depth and trade pipelines can range over it.
package transport

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	pingInterval      = 20 * time.Second
	initialReconnect  = 1 * time.Second
	maxReconnectDelay = 30 * time.Second
)

// Transport streams raw inbound frames for one subscription.
type Transport interface {
	// Messages returns a channel of raw frame payloads. It is closed once
	// Close is called or ctx passed to Run is done.
	Messages() <-chan []byte

	// Reconnects emits a value every time a new connection is
	// established, including the first. Callers use this to treat
	// reconnection as a resync trigger (spec.md §4.1). The channel is
	// never closed; sends are best-effort and never block Run.
	Reconnects() <-chan struct{}

	// Run dials and maintains the connection until ctx is done,
	// reconnecting with exponential backoff on drop. Run blocks; callers
	// invoke it in its own goroutine.
	Run(ctx context.Context)

	// Close releases the connection and closes the Messages channel.
	Close()
}

// WSTransport is a gorilla/websocket-backed Transport.
type WSTransport struct {
	url        string
	log        zerolog.Logger
	msgs       chan []byte
	reconnects chan struct{}

	conn   *websocket.Conn
	closed chan struct{}
}

// New constructs a WSTransport dialing url on Run.
func New(url string, log zerolog.Logger) *WSTransport {
	return &WSTransport{
		url:        url,
		log:        log,
		msgs:       make(chan []byte, 1024),
		reconnects: make(chan struct{}, 1),
		closed:     make(chan struct{}),
	}
}

// Messages implements Transport.
func (t *WSTransport) Messages() <-chan []byte {
	return t.msgs
}

// Reconnects implements Transport.
func (t *WSTransport) Reconnects() <-chan struct{} {
	return t.reconnects
}

func (t *WSTransport) signalReconnect() {
	select {
	case t.reconnects <- struct{}{}:
	default:
	}
}

// Run implements Transport: dial, read loop, reconnect-with-backoff, until
// ctx is cancelled or Close is called.
func (t *WSTransport) Run(ctx context.Context) {
	defer close(t.msgs)

	delay := initialReconnect
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.closed:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.log.Warn().Err(err).Str("url", t.url).Dur("retryIn", delay).Msg("websocket dial failed, retrying")
			if !sleepOrDone(ctx, delay) {
				return
			}
			delay = nextDelay(delay)
			continue
		}

		t.log.Info().Str("url", t.url).Msg("websocket connected")
		delay = initialReconnect
		t.signalReconnect()
		t.runConn(ctx, conn)

		select {
		case <-ctx.Done():
			return
		case <-t.closed:
			return
		default:
		}
	}
}

// runConn owns one connection's lifetime: ping loop plus read loop, both
// stopped when the read loop errors or ctx is cancelled.
func (t *WSTransport) runConn(ctx context.Context, conn *websocket.Conn) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Close the connection once ctx is done or Close is called, so that a
	// blocked ReadMessage returns instead of waiting for the next frame.
	go func() {
		select {
		case <-connCtx.Done():
		case <-t.closed:
			cancel()
		}
		conn.Close()
	}()

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-connCtx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					t.log.Warn().Err(err).Msg("websocket ping failed")
				}
			}
		}
	}()

	defer conn.Close()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if connCtx.Err() == nil {
				t.log.Warn().Err(err).Msg("websocket read error, reconnecting")
			}
			return
		}
		select {
		case t.msgs <- message:
		case <-connCtx.Done():
			return
		}
	}
}

// Close implements Transport.
func (t *WSTransport) Close() {
	select {
	case <-t.closed:
	default:
		close(t.closed)
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextDelay(d time.Duration) time.Duration {
	d *= 2
	if d > maxReconnectDelay {
		return maxReconnectDelay
	}
	return d
}
