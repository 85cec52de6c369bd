// Package channel is the realtime transport between the client and the
// room coordinator. It frames every message as an Envelope and keeps the
// connection alive with pings, delivering inbound events in arrival
// order on a single channel.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Envelope is the wire frame for every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals payload into an Envelope for event.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Event: event}, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Envelope{Event: event, Data: data}, nil
}

// Decode unmarshals the envelope payload into out.
func (e Envelope) Decode(out any) error {
	if len(e.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	return nil
}

// ErrClosed is returned by Emit after the connection is gone.
var ErrClosed = errors.New("channel: connection closed")

// Config holds connection tuning.
type Config struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	EventBuffer    int
}

// DefaultConfig returns the stock connection tuning. The read timeout
// must outlast the ping interval so pongs keep the connection alive.
func DefaultConfig() Config {
	return Config{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 512 * 1024,
		SendBuffer:     64,
		EventBuffer:    256,
	}
}

// Client is one websocket connection to the coordinator. Inbound
// envelopes are delivered in order on Events; the channel closes when
// the connection dies, which is the disconnect signal for consumers.
type Client struct {
	config Config
	conn   *websocket.Conn
	send   chan []byte
	events chan Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects to the coordinator endpoint and starts the read and
// write pumps.
func Dial(ctx context.Context, url string, header http.Header, config Config) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c := &Client{
		config: config,
		conn:   conn,
		send:   make(chan []byte, config.SendBuffer),
		events: make(chan Envelope, config.EventBuffer),
		done:   make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()

	log.Info().Str("url", url).Msg("channel connected")
	return c, nil
}

// Events returns the in-order inbound event stream. The channel closes
// when the connection closes.
func (c *Client) Events() <-chan Envelope {
	return c.events
}

// Emit marshals payload and queues it for sending.
func (c *Client) Emit(event string, payload any) error {
	env, err := NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Close tears the connection down. Safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.config.WriteTimeout))
		c.conn.Close()
	})
	return nil
}

// writePump owns all writes to the connection: queued envelopes and
// keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Msg("channel write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().Err(err).Msg("channel ping failed")
				return
			}
		}
	}
}

// readPump reads envelopes until the connection dies, then closes the
// events channel.
func (c *Client) readPump() {
	defer func() {
		c.Close()
		close(c.events)
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Msg("unexpected channel close")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			log.Warn().Err(err).Msg("dropping malformed envelope")
			continue
		}
		select {
		case c.events <- env:
		case <-c.done:
			return
		}
	}
}
