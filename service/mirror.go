package service

import (
	"encoding/json"
	"fmt"

	"github.com/kleeedolinux/roomsync/protocol"
	"github.com/kleeedolinux/roomsync/socket"
)

// Mirrored is the typed accessor pair for one mirrored property. Writes
// through Set are broadcast to the instance's room; reads return the
// instance's shadow value.
type Mirrored[T any] struct {
	core *typeCore
	prop string
}

// Mirror flags prop of type S for mirroring with the given initial value.
// Every instance starts from its own copy of initial, made through its JSON
// encoding, so maps and slices are never shared between instances. initial
// must round-trip through JSON.
//
// Mirror also registers the requestPropUpdate handler answering a client's
// pull with the current value through the acknowledgement.
func Mirror[S, T any](t *Type[S], prop string, initial T) (Mirrored[T], error) {
	core, err := t.identity()
	if err != nil {
		return Mirrored[T]{}, err
	}
	raw, err := json.Marshal(initial)
	if err == nil {
		var copied T
		err = json.Unmarshal(raw, &copied)
	}
	if err != nil {
		return Mirrored[T]{}, fmt.Errorf("%w: %s.%s: initial value: %v", protocol.ErrConfiguration, core.name, prop, err)
	}
	return MirrorFunc(t, prop, func() T {
		var v T
		json.Unmarshal(raw, &v)
		return v
	})
}

// MirrorFunc is Mirror with the initial value produced by newValue, called once
// per instance.
func MirrorFunc[S, T any](t *Type[S], prop string, newValue func() T) (Mirrored[T], error) {
	core, err := t.identity()
	if err != nil {
		return Mirrored[T]{}, err
	}
	if err := protocol.ValidateIdentifier("property", prop); err != nil {
		return Mirrored[T]{}, err
	}
	if newValue == nil {
		return Mirrored[T]{}, fmt.Errorf("%w: %s.%s: nil initializer", protocol.ErrConfiguration, core.name, prop)
	}
	requestTopic := protocol.MustTopic(protocol.FamilyRequestPropUpdate, core.name, prop)

	core.mu.Lock()
	if _, exists := core.initial[prop]; exists {
		core.mu.Unlock()
		return Mirrored[T]{}, fmt.Errorf("%w: %s.%s is already mirrored", protocol.ErrConfiguration, core.name, prop)
	}
	core.initial[prop] = func() interface{} { return newValue() }
	core.props = append(core.props, prop)
	core.mu.Unlock()

	core.addEvent(socket.Event(requestTopic), func(svc *Service, conn socket.Socket, e *socket.Envelope) {
		if !e.WantsAck() {
			svc.logger.Debug("prop request without acknowledgement", "prop", prop, "socket", conn.ID())
			return
		}
		if err := e.Respond(svc.value(prop)); err != nil {
			svc.logger.Debug("prop request reply failed", "prop", prop, "socket", conn.ID(), "error", err)
		}
	})

	return Mirrored[T]{core: core, prop: prop}, nil
}

func MustMirror[S, T any](t *Type[S], prop string, initial T) Mirrored[T] {
	m, err := Mirror(t, prop, initial)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Mirrored[T]) Name() string {
	return m.prop
}

func (m Mirrored[T]) check(svc *Service) {
	if m.core == nil {
		panic("service: use of undefined Mirrored property")
	}
	if svc.core != m.core {
		panic(fmt.Sprintf("service: property %s.%s used on a %s instance", m.core.name, m.prop, svc.core.name))
	}
}

// Get returns the instance's current value.
func (m Mirrored[T]) Get(svc *Service) T {
	m.check(svc)
	v, _ := svc.value(m.prop).(T)
	return v
}

// Set stores v and broadcasts it to the instance's room. Unbound instances
// only store it. Concurrent writers resolve as last write wins.
func (m Mirrored[T]) Set(svc *Service, v T) {
	m.check(svc)

	svc.writeMu.Lock()
	defer svc.writeMu.Unlock()

	svc.store(m.prop, v)
	if err := svc.EmitPropUpdate(m.prop); err != nil {
		svc.logger.Debug("prop update broadcast failed", "prop", m.prop, "error", err)
	}
}

// Update applies fn to the current value and stores the result under the
// same ordering as Set.
func (m Mirrored[T]) Update(svc *Service, fn func(T) T) T {
	m.check(svc)

	svc.writeMu.Lock()
	defer svc.writeMu.Unlock()

	current, _ := svc.value(m.prop).(T)
	next := fn(current)
	svc.store(m.prop, next)
	if err := svc.EmitPropUpdate(m.prop); err != nil {
		svc.logger.Debug("prop update broadcast failed", "prop", m.prop, "error", err)
	}
	return next
}
