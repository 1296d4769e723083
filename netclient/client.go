// Package netclient is the websocket connection to the world server.
package netclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrQueueFull = errors.New("send queue full")
	ErrClosed    = errors.New("connection closed")
)

// Options tune the connection. Zero values pick the defaults.
type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	ReadLimit        int64
	InboundSize      int
	SendQueueSize    int
	Log              *zap.SugaredLogger
}

func (o *Options) defaults() {
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 5 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 4 << 20
	}
	if o.InboundSize <= 0 {
		o.InboundSize = 1024
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 64
	}
	if o.Log == nil {
		o.Log = zap.NewNop().Sugar()
	}
}

// Client owns one websocket connection. Inbound frames are delivered on
// Inbound; outbound messages go through a buffered queue drained by a
// writer goroutine.
type Client struct {
	ws   *websocket.Conn
	opts Options
	log  *zap.SugaredLogger

	inbound chan []byte
	send    chan []byte
	done    chan struct{}

	once sync.Once
	mu   sync.Mutex
	err  error
}

// Dial connects to url and starts the read and write pumps.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	opts.defaults()
	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := &Client{
		ws:      ws,
		opts:    opts,
		log:     opts.Log,
		inbound: make(chan []byte, opts.InboundSize),
		send:    make(chan []byte, opts.SendQueueSize),
		done:    make(chan struct{}),
	}
	go c.readPump()
	go c.writePump()
	return c, nil
}

// Inbound delivers each text frame received from the server.
func (c *Client) Inbound() <-chan []byte { return c.inbound }

// Done is closed once the connection has failed or been closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err returns the error that ended the connection.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Send encodes v as JSON and queues it. It never blocks; a full queue
// drops the message.
func (c *Client) Send(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close shuts the connection down.
func (c *Client) Close() error {
	c.fail(ErrClosed)
	return nil
}

func (c *Client) fail(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.ws.Close()
		if !errors.Is(err, ErrClosed) {
			c.log.Warnw("connection lost", "error", err)
		}
	})
}

func (c *Client) readPump() {
	c.ws.SetReadLimit(c.opts.ReadLimit)
	deadline := 2 * c.opts.PingInterval
	c.ws.SetReadDeadline(time.Now().Add(deadline))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(deadline))
	})
	for {
		mt, payload, err := c.ws.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("read: %w", err))
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(deadline))
		if mt != websocket.TextMessage {
			continue
		}
		select {
		case c.inbound <- payload:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ping := time.NewTicker(c.opts.PingInterval)
	defer ping.Stop()
	for {
		select {
		case msg := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.fail(fmt.Errorf("write: %w", err))
				return
			}
		case <-ping.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout)); err != nil {
				c.fail(fmt.Errorf("ping: %w", err))
				return
			}
		case <-c.done:
			return
		}
	}
}
