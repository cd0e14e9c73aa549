// Package proxy implements client-side proxies of room services: reflected
// properties that follow a service's mirrored state, and calls that run a
// service method on the server.
//
// Proxies are declared on a Binder, usually at package level before any
// connection exists. Their listeners are buffered until Activate hands the
// Binder a connection, so the first property update after activation is
// never missed:
//
//	binder := proxy.NewBinder()
//	lobby := binder.MustProxy("Lobby")
//	playerCount := proxy.MustReflect[int](lobby, "playerCount")
//	start := proxy.MustCallServer[bool](lobby, "start")
//
//	client := socket.NewClient(transport)
//	binder.Activate(client)
//	client.Connect(ctx)
package proxy

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kleeedolinux/roomsync/debug"
	"github.com/kleeedolinux/roomsync/protocol"
	"github.com/kleeedolinux/roomsync/socket"
)

var (
	ErrNotActive     = errors.New("proxy binder is not active")
	ErrAlreadyActive = errors.New("proxy binder already active")
)

// Conn is the client connection proxies use. *socket.Client implements it.
type Conn interface {
	On(event socket.Event, handler socket.Handler)
	EmitWithAck(event socket.Event, ack socket.AckHandler, args ...interface{}) error
}

// Binder wires proxy listeners onto a connection. Listeners declared before
// Activate are kept in a table keyed by topic and flushed, in declaration
// order, when the connection arrives.
type Binder struct {
	mu      sync.Mutex
	conn    Conn
	pending map[socket.Event]socket.Handler
	order   []socket.Event
	logger  *slog.Logger
}

type BinderOption func(*Binder)

func WithLogger(logger *slog.Logger) BinderOption {
	return func(b *Binder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func NewBinder(opts ...BinderOption) *Binder {
	b := &Binder{
		pending: make(map[socket.Event]socket.Handler),
		logger:  debug.Component("proxy"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Activate registers every buffered listener on conn, clears the buffer and
// routes later declarations straight to conn. Call it before conn starts
// receiving traffic.
func (b *Binder) Activate(conn Conn) error {
	if conn == nil {
		return fmt.Errorf("%w: nil connection", protocol.ErrConfiguration)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		return ErrAlreadyActive
	}

	for _, event := range b.order {
		conn.On(event, b.pending[event])
	}
	b.logger.Debug("flushed pending listeners", "count", len(b.order))

	b.pending = make(map[socket.Event]socket.Handler)
	b.order = nil
	b.conn = conn
	return nil
}

// Pending reports how many listeners wait for Activate.
func (b *Binder) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

func (b *Binder) listen(event socket.Event, handler socket.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn != nil {
		b.conn.On(event, handler)
		return
	}

	if _, exists := b.pending[event]; !exists {
		b.order = append(b.order, event)
	}
	b.pending[event] = handler
}

func (b *Binder) connection() (Conn, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil, ErrNotActive
	}
	return b.conn, nil
}

// Proxy is the client-side identity of one server service.
type Proxy struct {
	binder  *Binder
	service string
}

// Proxy declares a proxy for the server service named service.
func (b *Binder) Proxy(service string) (*Proxy, error) {
	if err := protocol.ValidateIdentifier("service", service); err != nil {
		return nil, err
	}
	return &Proxy{binder: b, service: service}, nil
}

func (b *Binder) MustProxy(service string) *Proxy {
	p, err := b.Proxy(service)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Proxy) Service() string {
	if p == nil {
		return ""
	}
	return p.service
}

func (p *Proxy) identity() error {
	if p == nil || p.binder == nil || p.service == "" {
		return fmt.Errorf("%w: proxy has no server service identity", protocol.ErrConfiguration)
	}
	return nil
}
