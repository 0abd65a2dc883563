// FilePath: internal/bus/client.go
package bus

import (
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	nuts "github.com/vaudience/go-nuts"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

var clientIDCounter atomic.Uint64

// Envelope is an inbound client message: the event name plus its raw payload,
// decoded by the handler per event.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client wraps one live websocket connection. Outbound messages go through a
// buffered send channel drained by writePump; inbound envelopes are handed to
// the registered handler from readPump.
type Client struct {
	id      uint64
	bus     *Bus
	conn    *websocket.Conn
	send    chan Message
	handler func(Envelope)
	onClose func()
	closed  atomic.Bool
}

// NewClient creates a client for a live connection. conn may be nil in tests
// that only exercise the bus; Start must not be called then.
func NewClient(b *Bus, conn *websocket.Conn) *Client {
	return &Client{
		id:   clientIDCounter.Add(1),
		bus:  b,
		conn: conn,
		send: make(chan Message, sendBufferSize),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// SetHandler registers the inbound-event callback. Must be set before Start.
func (c *Client) SetHandler(h func(Envelope)) {
	c.handler = h
}

// SetOnClose registers a hook invoked once when the connection goes away.
func (c *Client) SetOnClose(h func()) {
	c.onClose = h
}

// Send queues a message for delivery. Returns false when the buffer is full
// or the client is closed; the message is dropped in that case.
func (c *Client) Send(msg Message) bool {
	if c.closed.Load() {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Outbox exposes the pending outbound queue. writePump drains it on live
// connections; callers without a running pump can consume it directly.
func (c *Client) Outbox() <-chan Message {
	return c.send
}

// SendError emits an error event to this connection only.
func (c *Client) SendError(message string) {
	c.Send(Message{Event: EventError, Data: map[string]string{"message": message}})
}

// Start begins the read and write pumps.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}

// readPump pumps inbound messages from the websocket connection to the
// handler. On any read error the client is removed from all rooms.
func (c *Client) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		nuts.L.Errorf("[Bus] Failed to set read deadline: %v", err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				nuts.L.Warnf("[Bus] Client %d closed unexpectedly: %v", c.id, err)
			}
			return
		}
		if c.handler != nil {
			c.handler(env)
		}
	}
}

// writePump pumps messages from the send buffer to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				nuts.L.Errorf("[Bus] Failed to set write deadline: %v", err)
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				nuts.L.Debugf("[Bus] Write to client %d failed: %v", c.id, err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// teardown removes the client from all rooms exactly once. Removal is
// unconditional: it runs whether the connection closed cleanly or errored.
func (c *Client) teardown() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.bus.Remove(c)
	_ = c.conn.Close()
	if c.onClose != nil {
		c.onClose()
	}
}
