package socket

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kleeedolinux/roomsync/debug"
)

var ErrSendBufferFull = errors.New("send buffer full")

type Client struct {
	mu       sync.RWMutex
	id       string
	conn     Transport
	handlers map[Event][]Handler
	acks     *ackTable

	connected bool
	sendCh    chan []byte

	ctx        context.Context
	cancelFunc context.CancelFunc
	logger     *slog.Logger
}

// Transport is the client end of a connection.
type Transport interface {
	Connect(ctx context.Context) error
	Send(data []byte) error
	Receive() ([]byte, error)
	Close() error
}

type ClientOption func(*Client)

// WithSendBuffer sets how many outbound frames may be queued.
func WithSendBuffer(size int) ClientOption {
	return func(c *Client) {
		c.sendCh = make(chan []byte, size)
	}
}

func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(transport Transport, opts ...ClientOption) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	client := &Client{
		id:         generateID(),
		conn:       transport,
		handlers:   make(map[Event][]Handler),
		acks:       newAckTable(),
		sendCh:     make(chan []byte, 256),
		ctx:        ctx,
		cancelFunc: cancel,
		logger:     debug.Component("socket-client"),
	}

	for _, opt := range opts {
		opt(client)
	}
	client.logger = client.logger.With("client", client.id)

	return client
}

func (c *Client) ID() string {
	return c.id
}

// Connect opens the transport and starts the send and receive loops.
// Handlers registered with On before Connect see the first message.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		return nil
	}
	if c.ctx.Err() != nil {
		return ErrConnectionClosed
	}

	if err := c.conn.Connect(ctx); err != nil {
		return err
	}

	c.connected = true

	go c.sendLoop()
	go c.receiveLoop()

	c.logger.Debug("connected")
	return nil
}

func (c *Client) sendLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.sendCh:
			if err := c.conn.Send(data); err != nil {
				c.logger.Debug("send failed", "error", err)
				c.handleDisconnect()
				return
			}
		}
	}
}

func (c *Client) receiveLoop() {
	for {
		data, err := c.conn.Receive()
		if err != nil {
			c.logger.Debug("receive failed", "error", err)
			c.handleDisconnect()
			return
		}

		msg, err := decodeMessage(data)
		if err != nil {
			c.triggerEvent(NewEnvelope(EventError, nil, nil))
			continue
		}

		if msg.Ack {
			c.acks.resolve(msg.AckID, msg.Args)
			continue
		}
		if msg.Event.Reserved() {
			c.logger.Debug("dropping frame with reserved event", "event", msg.Event)
			continue
		}

		c.triggerEvent(NewEnvelope(msg.Event, msg.Args, c.responder(msg.AckID)))
	}
}

func (c *Client) responder(ackID uint64) func(values ...interface{}) error {
	if ackID == 0 {
		return nil
	}
	return func(values ...interface{}) error {
		data, err := encodeAck(ackID, values...)
		if err != nil {
			return err
		}
		return c.enqueue(data)
	}
}

func (c *Client) handleDisconnect() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}

	c.connected = false
	c.mu.Unlock()

	c.cancelFunc()
	c.acks.drop()
	c.conn.Close()
	c.triggerEvent(NewEnvelope(EventDisconnect, nil, nil))
}

func (c *Client) enqueue(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

func (c *Client) Emit(event Event, args ...interface{}) error {
	data, err := encodeMessage(event, 0, args...)
	if err != nil {
		return err
	}
	return c.enqueue(data)
}

// EmitWithAck sends event and calls ack with the values the server passes to
// its acknowledgement. ack is never called if the connection closes first.
func (c *Client) EmitWithAck(event Event, ack AckHandler, args ...interface{}) error {
	id := c.acks.register(ack)
	data, err := encodeMessage(event, id, args...)
	if err != nil {
		c.acks.cancel(id)
		return err
	}
	if err := c.enqueue(data); err != nil {
		c.acks.cancel(id)
		return err
	}
	return nil
}

// PendingAcks reports how many acknowledgements are outstanding.
func (c *Client) PendingAcks() int {
	return c.acks.len()
}

func (c *Client) On(event Event, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.handlers[event] = append(c.handlers[event], handler)
}

func (c *Client) Off(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.handlers, event)
}

func (c *Client) triggerEvent(e *Envelope) {
	c.mu.RLock()
	handlers := c.handlers[e.Event]
	c.mu.RUnlock()

	for _, handler := range handlers {
		handler(e)
	}
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.connected
}

// Done is closed once the client is closed or its connection drops.
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

func (c *Client) Close() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		c.cancelFunc()
		return nil
	}
	c.connected = false
	c.mu.Unlock()

	c.cancelFunc()
	c.acks.drop()
	err := c.conn.Close()
	c.triggerEvent(NewEnvelope(EventDisconnect, nil, nil))
	return err
}
