package proxy

import (
	"context"

	"github.com/kleeedolinux/roomsync/protocol"
	"github.com/kleeedolinux/roomsync/socket"
)

// Call invokes one proxy-callable method of the server service.
type Call[R any] struct {
	proxy  *Proxy
	method string
	topic  socket.Event
}

// CallServer declares a call to method on p's service.
func CallServer[R any](p *Proxy, method string) (*Call[R], error) {
	if err := p.identity(); err != nil {
		return nil, err
	}
	topic, err := protocol.ProxyCallTopic(p.service, method)
	if err != nil {
		return nil, err
	}
	return &Call[R]{proxy: p, method: method, topic: socket.Event(topic)}, nil
}

func MustCallServer[R any](p *Proxy, method string) *Call[R] {
	c, err := CallServer[R](p, method)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Call[R]) Method() string {
	return c.method
}

// InvokeRaw emits the call and waits for the server's acknowledgement. The
// returned Args is empty when the method produced no value. There is no
// built-in timeout: bound the wait with ctx.
func (c *Call[R]) InvokeRaw(ctx context.Context, args ...interface{}) (socket.Args, error) {
	conn, err := c.proxy.binder.connection()
	if err != nil {
		return nil, err
	}
	return request(ctx, conn, c.topic, args...)
}

// Invoke is InvokeRaw decoding the acknowledged value into R. A call
// acknowledged with no value returns the zero R.
func (c *Call[R]) Invoke(ctx context.Context, args ...interface{}) (R, error) {
	var result R

	reply, err := c.InvokeRaw(ctx, args...)
	if err != nil {
		return result, err
	}
	if reply.Len() == 0 {
		return result, nil
	}
	if err := reply.Decode(0, &result); err != nil {
		return result, err
	}
	return result, nil
}

// request emits event with an acknowledgement and waits for it, for ctx, or
// for the connection to close when conn can report that.
func request(ctx context.Context, conn Conn, event socket.Event, args ...interface{}) (socket.Args, error) {
	reply := make(chan socket.Args, 1)
	if err := conn.EmitWithAck(event, func(a socket.Args) { reply <- a }, args...); err != nil {
		return nil, err
	}

	var closed <-chan struct{}
	if d, ok := conn.(interface{ Done() <-chan struct{} }); ok {
		closed = d.Done()
	}

	select {
	case a := <-reply:
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-closed:
		select {
		case a := <-reply:
			return a, nil
		default:
			return nil, socket.ErrConnectionClosed
		}
	}
}
