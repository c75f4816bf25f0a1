package testutil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// WSClient is a WebSocket test client speaking the {"event","data"} envelope.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// Frame is one decoded server event.
type Frame struct {
	Event string
	Data  map[string]any
}

// NewWSClient dials the given ws:// URL and returns a test client.
//
// Precondition: url must point at a listening WebSocket endpoint.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()
	start := time.Now()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", url, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return &WSClient{conn: conn, t: t}
}

// Send writes one event envelope. A nil data omits the payload.
func (c *WSClient) Send(event string, data any) {
	c.t.Helper()
	env := map[string]any{"event": event}
	if data != nil {
		env["data"] = data
	}
	raw, err := json.Marshal(env)
	if err != nil {
		c.t.Fatalf("encoding %s: %v", event, err)
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		c.t.Fatalf("sending %s: %v", event, err)
	}
}

// Next reads the next event or fails the test on timeout.
func (c *WSClient) Next(timeout time.Duration) Frame {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	_, raw, err := c.conn.ReadMessage()
	if err != nil {
		c.t.Fatalf("reading event: %v", err)
	}
	var env struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		c.t.Fatalf("decoding %q: %v", raw, err)
	}
	return Frame{Event: env.Event, Data: env.Data}
}

// Expect reads the next event and fails unless it is named event.
//
// Postcondition: Returns the event payload.
func (c *WSClient) Expect(event string, timeout time.Duration) map[string]any {
	c.t.Helper()
	f := c.Next(timeout)
	if f.Event != event {
		c.t.Fatalf("expected %s, got %s %v", event, f.Event, f.Data)
	}
	return f.Data
}

// Close closes the underlying connection without a close handshake.
func (c *WSClient) Close() {
	c.conn.Close()
}
