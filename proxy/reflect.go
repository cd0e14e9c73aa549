package proxy

import (
	"context"
	"sync"

	"github.com/kleeedolinux/roomsync/protocol"
	"github.com/kleeedolinux/roomsync/socket"
)

// Reflected is the client-side shadow of a server's mirrored property.
type Reflected[T any] struct {
	proxy        *Proxy
	prop         string
	requestTopic socket.Event

	mu     sync.RWMutex
	value  T
	loaded bool
}

// Reflect declares the shadow of prop on p's service and listens for its
// propUpdate topic, through the binder's buffer when not yet active.
func Reflect[T any](p *Proxy, prop string) (*Reflected[T], error) {
	if err := p.identity(); err != nil {
		return nil, err
	}
	updateTopic, err := protocol.PropUpdateTopic(p.service, prop)
	if err != nil {
		return nil, err
	}
	requestTopic := protocol.MustTopic(protocol.FamilyRequestPropUpdate, p.service, prop)

	r := &Reflected[T]{
		proxy:        p,
		prop:         prop,
		requestTopic: socket.Event(requestTopic),
	}
	p.binder.listen(socket.Event(updateTopic), r.handleUpdate)
	return r, nil
}

func MustReflect[T any](p *Proxy, prop string) *Reflected[T] {
	r, err := Reflect[T](p, prop)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Reflected[T]) handleUpdate(e *socket.Envelope) {
	if err := r.apply(e.Args); err != nil {
		r.proxy.binder.logger.Warn("dropping property update", "service", r.proxy.service, "prop", r.prop, "error", err)
	}
}

// apply stores the first argument, or the zero value when there is none.
func (r *Reflected[T]) apply(args socket.Args) error {
	var v T
	if args.Len() > 0 {
		if err := args.Decode(0, &v); err != nil {
			return err
		}
	}

	r.mu.Lock()
	r.value = v
	r.loaded = true
	r.mu.Unlock()
	return nil
}

func (r *Reflected[T]) Name() string {
	return r.prop
}

// Get returns the local shadow value.
func (r *Reflected[T]) Get() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Set overwrites the local shadow only; nothing is sent. The next update from
// the server replaces it.
func (r *Reflected[T]) Set(v T) {
	r.mu.Lock()
	r.value = v
	r.mu.Unlock()
}

// Loaded reports whether a value has arrived from the server.
func (r *Reflected[T]) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Refresh pulls the current value from the server and stores it.
func (r *Reflected[T]) Refresh(ctx context.Context) (T, error) {
	conn, err := r.proxy.binder.connection()
	if err != nil {
		var zero T
		return zero, err
	}

	reply, err := request(ctx, conn, r.requestTopic)
	if err != nil {
		var zero T
		return zero, err
	}
	if err := r.apply(reply); err != nil {
		var zero T
		return zero, err
	}
	return r.Get(), nil
}
