package relay

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// Connection is one open WebSocket client. Only the write loop writes data
// frames; control frames go through WriteControl, which gorilla allows
// concurrently.
type Connection struct {
	id      string          // unique identifier = key in the hub
	conn    *websocket.Conn // underlying socket
	hub     *Hub            // set this connection belongs to, used for broadcast
	send    chan Frame      // outbound queue, drained by writePump
	done    chan struct{}   // closed on Close
	limiter *rate.Limiter   // nil when inbound rate limiting is off
	opts    Options         // limits and deadlines for this connection
	logger  *slog.Logger    // hub logger, tagged per event with client_id

	mu     sync.Mutex // guards closed
	closed bool       // so Close runs once
}

// NewConnection wraps an upgraded WebSocket. It is not in the hub until Serve runs.
func NewConnection(conn *websocket.Conn, hub *Hub, opts Options) *Connection {
	c := &Connection{
		id:     uuid.NewString(),
		conn:   conn,
		hub:    hub,
		send:   make(chan Frame, opts.SendBuffer),
		done:   make(chan struct{}),
		opts:   opts,
		logger: hub.logger,
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst)
	}
	return c
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() string {
	return c.id
}

// Send queues a frame for the write loop. It never blocks: a full queue means
// the peer is not keeping up and the frame is dropped.
func (c *Connection) Send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnectionClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close sends a best-effort close frame and tears down the socket. Safe to
// call more than once.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

// Serve registers the connection, runs both pumps and blocks until the
// connection ends. On return the connection is closed and out of the hub.
func (c *Connection) Serve() {
	c.hub.Add(c)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump()
	}()

	c.readPump()

	c.Close()
	c.hub.Remove(c)
	wg.Wait()
}

// readPump is the only reader. Pings, pongs and close frames are handled
// inside ReadMessage.
func (c *Connection) readPump() {
	c.conn.SetReadLimit(c.opts.MaxMessageSize) // oversized message = read error = disconnect
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error { // every pong extends the deadline
		return c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.logger.Warn("client_read_error",
					"client_id", c.id,
					"error", err.Error(),
				)
			} else {
				c.logger.Debug("client_disconnected",
					"client_id", c.id,
				)
			}
			return
		}

		// over the limit: drop this message, keep the connection
		if c.limiter != nil && !c.limiter.Allow() {
			c.logger.Warn("rate_limit_exceeded",
				"client_id", c.id,
			)
			continue
		}

		c.hub.Broadcast(c, Frame{Type: messageType, Data: data})
	}
}

// writePump drains the outbound queue and keeps the peer alive with pings.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.opts.PingPeriod())
	defer ticker.Stop()

	for {
		select {
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(f.Type, f.Data); err != nil {
				c.logger.Debug("client_write_error",
					"client_id", c.id,
					"error", err.Error(),
				)
				c.Close()
				return
			}
		case <-ticker.C: // a missed pong shows up as a read deadline error in readPump
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteWait)); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}
