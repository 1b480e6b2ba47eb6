// Package wsingest adapts a gorilla/websocket connection carrying raw
// PCM16 mono audio frames into a *vad.Engine, the way
// pkg/connection/websocket_connection.go adapts a websocket connection
// into the teacher's pipeline.
package wsingest

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vadstream/vadstream/pkg/vad"
)

const (
	DefaultWriteWait  = 10 * time.Second
	DefaultPongWait   = 60 * time.Second
	DefaultPingPeriod = 54 * time.Second // must be less than PongWait
)

// Config controls the websocket keepalive behavior of a Listener.
type Config struct {
	WriteWait  time.Duration
	PongWait   time.Duration
	PingPeriod time.Duration
}

// DefaultConfig returns the teacher's default websocket timings.
func DefaultConfig() Config {
	return Config{
		WriteWait:  DefaultWriteWait,
		PongWait:   DefaultPongWait,
		PingPeriod: DefaultPingPeriod,
	}
}

// Listener reads binary PCM16 frames off a websocket connection and
// drives a *vad.Engine with them, publishing every emitted vad.Event on
// Events().
type Listener struct {
	conn   *websocket.Conn
	engine *vad.Engine
	cfg    Config

	events chan vad.Event

	mu     sync.Mutex
	closed bool
}

// NewListener wraps conn and engine. The caller owns conn's lifecycle up
// to Run being called; Run takes over reading from it until ctx is
// cancelled or the connection errors.
func NewListener(conn *websocket.Conn, engine *vad.Engine, cfg Config) *Listener {
	return &Listener{
		conn:   conn,
		engine: engine,
		cfg:    cfg,
		events: make(chan vad.Event, 64),
	}
}

// Events returns the channel every vad.Event is published on. It is
// closed when Run returns.
func (l *Listener) Events() <-chan vad.Event {
	return l.events
}

// Run reads binary audio messages from the underlying connection until
// ctx is cancelled, the peer closes the connection, or a read error
// occurs. It blocks; callers typically run it in its own goroutine.
func (l *Listener) Run(ctx context.Context) error {
	defer close(l.events)
	defer l.Close()

	l.conn.SetReadDeadline(time.Now().Add(l.cfg.PongWait))
	l.conn.SetPongHandler(func(string) error {
		l.conn.SetReadDeadline(time.Now().Add(l.cfg.PongWait))
		return nil
	})

	done := make(chan struct{})
	go l.pingLoop(ctx, done)
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgType, data, err := l.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				return fmt.Errorf("wsingest: read: %w", err)
			}
			return nil
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		events, err := l.engine.PushBytes(data)
		if err != nil {
			log.Printf("wsingest: push bytes: %v", err)
			continue
		}
		for _, ev := range events {
			select {
			case l.events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (l *Listener) pingLoop(ctx context.Context, done <-chan struct{}) {
	ticker := time.NewTicker(l.cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			l.conn.SetWriteDeadline(time.Now().Add(l.cfg.WriteWait))
			if err := l.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("wsingest: ping: %v", err)
				return
			}
		}
	}
}

// Close closes the underlying connection. It is safe to call more than
// once.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	l.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return l.conn.Close()
}
