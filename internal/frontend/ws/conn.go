package ws

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cory-johannsen/omok/internal/config"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("websocket connection closed")

// Conn wraps a WebSocket connection with deadline and heartbeat handling.
// ReadMessage must be called from a single goroutine; writes are serialized
// internally.
type Conn struct {
	raw *websocket.Conn
	mu  sync.Mutex

	writeTimeout time.Duration
	pongWait     time.Duration
	pingInterval time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps an upgraded WebSocket connection.
//
// Precondition: raw must be a freshly upgraded, open connection.
// Postcondition: Returns a Conn with the read limit, read deadline and pong
// handler installed.
func NewConn(raw *websocket.Conn, cfg config.WebSocketConfig) *Conn {
	c := &Conn{
		raw:          raw,
		writeTimeout: cfg.WriteTimeout,
		pongWait:     cfg.PongWait,
		pingInterval: cfg.PingInterval,
		closed:       make(chan struct{}),
	}
	if cfg.MaxMessageBytes > 0 {
		raw.SetReadLimit(cfg.MaxMessageBytes)
	}
	c.extendReadDeadline()
	raw.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})
	return c
}

// ReadMessage blocks until the next data frame arrives. Any frame received
// extends the read deadline.
//
// Postcondition: Returns the frame payload, or an error once the peer is gone,
// the pong deadline has passed or the frame exceeds the read limit.
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.raw.ReadMessage()
	if err != nil {
		return nil, err
	}
	c.extendReadDeadline()
	return data, nil
}

// WriteMessage sends one text frame.
func (c *Conn) WriteMessage(data []byte) error {
	return c.write(websocket.TextMessage, data)
}

// Ping sends a ping control frame.
func (c *Conn) Ping() error {
	return c.write(websocket.PingMessage, nil)
}

// PingInterval is how often the owner of the writer should call Ping.
func (c *Conn) PingInterval() time.Duration {
	return c.pingInterval
}

func (c *Conn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.raw.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Close sends a normal-closure frame and closes the underlying connection.
// Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.closed)
		_ = c.raw.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.mu.Unlock()
		err = c.raw.Close()
	})
	return err
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() string {
	return c.raw.RemoteAddr().String()
}

// IsUnexpectedClose reports whether err ended the connection abnormally, as
// opposed to a normal close or going-away from the peer.
func IsUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived)
}

func (c *Conn) extendReadDeadline() {
	if c.pongWait > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.pongWait))
	}
}
