package testutil

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is an outbound server event as seen by a client.
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into v or fails the test.
func (f Frame) Decode(t testing.TB, v any) {
	t.Helper()
	if err := json.Unmarshal(f.Payload, v); err != nil {
		t.Fatalf("decoding %s payload %s: %v", f.Type, f.Payload, err)
	}
}

// WSClient is a WebSocket test client speaking the JSON event protocol.
type WSClient struct {
	conn *websocket.Conn
	t    testing.TB
}

// NewWSClient dials url, which may use an http:// or ws:// scheme.
//
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t testing.TB, url string) *WSClient {
	t.Helper()
	url = "ws" + strings.TrimPrefix(url, "http")

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v", url, err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return &WSClient{conn: conn, t: t}
}

// Send writes one event frame.
func (c *WSClient) Send(eventType string, payload any) {
	c.t.Helper()
	msg := map[string]any{"type": eventType}
	if payload != nil {
		msg["payload"] = payload
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteJSON(msg); err != nil {
		c.t.Fatalf("sending %s: %v", eventType, err)
	}
}

// SendRaw writes data as a single text frame.
func (c *WSClient) SendRaw(data []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.t.Fatalf("sending raw frame: %v", err)
	}
}

// Next reads the next event frame or fails after timeout.
func (c *WSClient) Next(timeout time.Duration) Frame {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	var f Frame
	if err := c.conn.ReadJSON(&f); err != nil {
		c.t.Fatalf("reading frame: %v", err)
	}
	return f
}

// Expect reads the next frame and fails unless its type is eventType.
func (c *WSClient) Expect(eventType string, timeout time.Duration) Frame {
	c.t.Helper()
	f := c.Next(timeout)
	if f.Type != eventType {
		c.t.Fatalf("expected %s, got %s %s", eventType, f.Type, f.Payload)
	}
	return f
}

// ExpectSilence fails if a frame arrives within d. A read timeout is
// permanent on a gorilla connection, so no reads may follow.
func (c *WSClient) ExpectSilence(d time.Duration) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(d))
	_, data, err := c.conn.ReadMessage()
	if err == nil {
		c.t.Fatalf("expected no frame, got %s", data)
	}
}

// Close sends a close frame and closes the connection.
func (c *WSClient) Close() {
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_ = c.conn.Close()
}
