package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"

	"tonerelay/internal/tone"
)

// relay_client.go = the WebSocket side of tonectl: dial the relay, send tone
// events, and turn received events into registry updates.

const writeWait = 5 * time.Second

// RelayClient is one tonectl connection to the relay.
type RelayClient struct {
	conn     *websocket.Conn
	Registry *tone.Registry
}

// Dial connects to the relay at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*RelayClient, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connection failed (%s): %w", resp.Status, err)
		}
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	return &RelayClient{conn: conn, Registry: tone.NewRegistry()}, nil
}

// SendEvent writes one tone event as a single text message.
func (c *RelayClient) SendEvent(e tone.Event) error {
	data, err := e.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	return nil
}

// Listen reads relayed messages until the connection ends or ctx is done,
// calling handle for every event that changed the registry. Payloads that are
// not tone events are skipped.
func (c *RelayClient) Listen(ctx context.Context, handle func(tone.Event)) error {
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		event, ok := tone.Parse(data)
		if !ok {
			continue
		}
		if c.Registry.Apply(event) && handle != nil {
			handle(event)
		}
	}
}

// Play sends a start event, holds the tone for duration (or until ctx is
// done), then sends the matching stop. While holding, a background reader
// keeps the connection alive: gorilla only answers the relay's pings from
// inside ReadMessage, and an unanswered ping gets the connection dropped
// before the stop can be relayed.
func (c *RelayClient) Play(ctx context.Context, frequency float64, duration time.Duration, onEvent func(tone.Event)) error {
	// not derived from ctx: an interrupt must still let the stop go out
	readCtx, stopReading := context.WithCancel(context.Background())
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		c.Listen(readCtx, nil) // peer events are only tracked, not printed
	}()
	defer func() {
		stopReading()
		<-readDone
	}()

	c.Registry.Start(tone.SelfKey, frequency, tone.Pan(frequency))
	if err := c.SendEvent(tone.Start(frequency)); err != nil {
		return err
	}
	if onEvent != nil {
		onEvent(tone.Start(frequency))
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}

	c.Registry.Stop(tone.SelfKey)
	if err := c.SendEvent(tone.Stop(frequency)); err != nil {
		return err
	}
	if onEvent != nil {
		onEvent(tone.Stop(frequency))
	}
	return nil
}

// Close sends a close frame and closes the socket.
func (c *RelayClient) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}

// FormatEvent renders an event for the terminal.
func FormatEvent(e tone.Event) string {
	pan := tone.Pan(e.Frequency)
	side := "centre"
	switch {
	case pan < -0.05:
		side = fmt.Sprintf("L%.0f%%", -pan*100)
	case pan > 0.05:
		side = fmt.Sprintf("R%.0f%%", pan*100)
	}
	if e.Action == tone.ActionStart {
		return fmt.Sprintf("▶ %7.2f Hz  %s", e.Frequency, side)
	}
	return fmt.Sprintf("■ %7.2f Hz  %s", e.Frequency, side)
}

// PrintEvent writes an event in colour: starts in green, stops in grey.
func PrintEvent(e tone.Event) {
	line := FormatEvent(e)
	if e.Action == tone.ActionStart {
		color.Green("%s", line)
		return
	}
	color.HiBlack("%s", line)
}
