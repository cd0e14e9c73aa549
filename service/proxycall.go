package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kleeedolinux/roomsync/protocol"
	"github.com/kleeedolinux/roomsync/socket"
)

// Method is a proxy-callable method. A nil result acknowledges the call with
// no value.
type Method[S any] func(ctx context.Context, self S, args socket.Args) (interface{}, error)

const (
	callStatusOK    = "ok"
	callStatusError = "error"
	callStatusPanic = "panic"
)

// ProxyCall exposes method to client proxies under the proxyCall topic. The
// method runs on the calling connection's dispatch goroutine, so calls and
// other events from one connection are handled in the order they were sent.
// The call is acknowledged exactly once: with the result, or with no value
// when fn returns nil, fails or panics.
func (t *Type[S]) ProxyCall(method string, fn Method[S]) error {
	return t.proxyCall(method, fn, false)
}

// ProxyCallAsync is ProxyCall for long-running methods. Each call runs in its
// own goroutine, so later messages from the same connection may be handled
// before it finishes.
func (t *Type[S]) ProxyCallAsync(method string, fn Method[S]) error {
	return t.proxyCall(method, fn, true)
}

func (t *Type[S]) proxyCall(method string, fn Method[S], async bool) error {
	core, err := t.identity()
	if err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("%w: %s.%s: nil method", protocol.ErrConfiguration, core.name, method)
	}
	topic, err := protocol.ProxyCallTopic(core.name, method)
	if err != nil {
		return err
	}

	core.addEvent(socket.Event(topic), func(svc *Service, conn socket.Socket, e *socket.Envelope) {
		call := func(ctx context.Context) (interface{}, error) {
			return fn(ctx, svc.self.(S), e.Args)
		}
		if async {
			go svc.invoke(conn, method, e, call)
			return
		}
		svc.invoke(conn, method, e, call)
	})
	return nil
}

func (s *Service) invoke(conn socket.Socket, method string, e *socket.Envelope, call func(context.Context) (interface{}, error)) {
	start := time.Now()
	status := callStatusOK
	logger := s.logger.With("method", method, "socket", conn.ID())

	defer func() {
		if r := recover(); r != nil {
			status = callStatusPanic
			logger.Error("proxy call panicked", "panic", r)
		}
		if !e.Responded() {
			if err := e.Respond(); err != nil {
				logger.Debug("acknowledgement failed", "error", err)
			}
		}
		s.core.metrics().proxyCall(s.core.name, method, status, time.Since(start))
	}()

	result, err := call(conn.Context())
	if err != nil {
		status = callStatusError
		logger.Warn("proxy call failed", "error", err)
		return
	}
	if result == nil {
		return
	}
	if _, err := socket.EncodeArgs(result); err != nil {
		status = callStatusError
		logger.Warn("proxy call result not encodable", "error", err)
		return
	}
	if err := e.Respond(result); err != nil {
		logger.Debug("acknowledgement failed", "error", err)
	}
}

// ProxyCallFunc exposes a typed method taking at most one argument. A
// missing argument decodes as the zero value of A; an argument that does not
// decode fails the call.
func ProxyCallFunc[S, A, R any](t *Type[S], method string, fn func(ctx context.Context, self S, arg A) (R, error)) error {
	if fn == nil {
		return t.ProxyCall(method, nil)
	}
	return t.ProxyCall(method, func(ctx context.Context, self S, args socket.Args) (interface{}, error) {
		var arg A
		if args.Len() > 0 {
			if err := args.Decode(0, &arg); err != nil {
				return nil, err
			}
		}
		result, err := fn(ctx, self, arg)
		if err != nil {
			return nil, err
		}
		return result, nil
	})
}
