package transport

import (
	"context"
	"sync"
)

// pipe is an in-memory, ordered, full-duplex connection.
type pipe struct {
	toServer chan []byte
	toClient chan []byte
	done     chan struct{}
	once     sync.Once
}

func (p *pipe) close() {
	p.once.Do(func() { close(p.done) })
}

// PipeClient is the client end of a Pipe.
type PipeClient struct {
	p *pipe
}

// PipeServer is the server end of a Pipe.
type PipeServer struct {
	p  *pipe
	id string
}

// Pipe returns both ends of an in-memory connection. Frames are delivered in
// send order. Closing either end closes both.
func Pipe(id string) (*PipeClient, *PipeServer) {
	p := &pipe{
		toServer: make(chan []byte, 256),
		toClient: make(chan []byte, 256),
		done:     make(chan struct{}),
	}
	return &PipeClient{p: p}, &PipeServer{p: p, id: id}
}

func send(ch chan<- []byte, done <-chan struct{}, data []byte) error {
	frame := append([]byte(nil), data...)
	select {
	case <-done:
		return ErrTransportClosed
	default:
	}
	select {
	case ch <- frame:
		return nil
	case <-done:
		return ErrTransportClosed
	}
}

// receive returns frames queued before the pipe closed ahead of the close
// itself.
func receive(ch <-chan []byte, done <-chan struct{}) ([]byte, error) {
	select {
	case frame := <-ch:
		return frame, nil
	case <-done:
		select {
		case frame := <-ch:
			return frame, nil
		default:
			return nil, ErrTransportClosed
		}
	}
}

func (c *PipeClient) Connect(ctx context.Context) error {
	select {
	case <-c.p.done:
		return ErrTransportClosed
	default:
		return ctx.Err()
	}
}

func (c *PipeClient) Send(data []byte) error {
	return send(c.p.toServer, c.p.done, data)
}

func (c *PipeClient) Receive() ([]byte, error) {
	return receive(c.p.toClient, c.p.done)
}

func (c *PipeClient) Close() error {
	c.p.close()
	return nil
}

func (s *PipeServer) Read() ([]byte, error) {
	return receive(s.p.toServer, s.p.done)
}

func (s *PipeServer) Write(data []byte) error {
	return send(s.p.toClient, s.p.done, data)
}

func (s *PipeServer) Close() error {
	s.p.close()
	return nil
}

func (s *PipeServer) ID() string {
	return s.id
}
