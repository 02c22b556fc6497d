package relay

import (
	"context"
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

// Errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// Frame is one relayed unit: the payload of a single WebSocket message and
// the frame type it arrived with. The relay never inspects Data.
type Frame struct {
	Type int    // websocket.TextMessage or websocket.BinaryMessage
	Data []byte // Raw payload bytes
}

// TextFrame wraps a text payload.
func TextFrame(data []byte) Frame {
	return Frame{Type: websocket.TextMessage, Data: data}
}

// Peer is a member of the Connection Set.
type Peer interface {
	ID() string
	// Send hands a frame to the peer without blocking.
	Send(f Frame) error
	Close() error
}

// Publisher receives every frame that arrives from a local connection, so it
// can be forwarded to other relay instances.
type Publisher interface {
	Publish(ctx context.Context, f Frame) error
}

// Options configures connection handling.
type Options struct {
	MaxMessageSize int64         // Read limit for a single inbound message
	SendBuffer     int           // Outbound queue length per connection
	WriteWait      time.Duration // Write deadline for each outbound frame
	PongWait       time.Duration // Max time between pongs before the peer is dropped
	RateLimit      float64       // Inbound messages/sec per connection (0 = unlimited)
	RateBurst      int           // Burst allowance for RateLimit
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		RateBurst:      20,
	}
}

// PingPeriod is how often pings are sent. Must be less than PongWait.
func (o Options) PingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}
