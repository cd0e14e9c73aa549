package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/kleeedolinux/roomsync/debug"
	"github.com/kleeedolinux/roomsync/protocol"
	"github.com/kleeedolinux/roomsync/socket"
)

var ErrDuplicateService = errors.New("service already defined")

// Registry holds the service types sharing one transport. Service names are
// unique within a registry so that their topics never collide.
type Registry struct {
	mu      sync.Mutex
	types   map[string]*typeCore
	logger  *slog.Logger
	metrics *Metrics
}

type RegistryOption func(*Registry)

func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		types:  make(map[string]*typeCore),
		logger: debug.Component("room-service"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Names returns the defined service names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EventHandler handles a default socket event for one service instance.
type EventHandler[S any] func(self S, conn socket.Socket, e *socket.Envelope)

type boundHandler func(svc *Service, conn socket.Socket, e *socket.Envelope)

// typeCore is the per-type registry shared by every instance of a type.
type typeCore struct {
	name     string
	registry *Registry
	logger   *slog.Logger

	mu      sync.RWMutex
	events  map[socket.Event]boundHandler
	order   []socket.Event
	props   []string
	initial map[string]func() interface{}
}

type eventEntry struct {
	event   socket.Event
	handler boundHandler
}

func (c *typeCore) addEvent(event socket.Event, h boundHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.events[event]; !exists {
		c.order = append(c.order, event)
	}
	c.events[event] = h
}

func (c *typeCore) snapshotEvents() []eventEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entries := make([]eventEntry, 0, len(c.order))
	for _, event := range c.order {
		entries = append(entries, eventEntry{event: event, handler: c.events[event]})
	}
	return entries
}

func (c *typeCore) snapshotProps() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.props...)
}

func (c *typeCore) mirrored(prop string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.initial[prop]
	return ok
}

func (c *typeCore) metrics() *Metrics {
	return c.registry.metrics
}

// Type is the definition of one concrete service type S. The zero Type has
// no service identity and rejects every registration.
type Type[S any] struct {
	core *typeCore
}

// Define establishes the service identity name for S in r.
func Define[S any](r *Registry, name string) (*Type[S], error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil registry", protocol.ErrConfiguration)
	}
	if err := protocol.ValidateIdentifier("service", name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[name]; exists {
		return nil, fmt.Errorf("%w: %w: %s", protocol.ErrConfiguration, ErrDuplicateService, name)
	}

	core := &typeCore{
		name:     name,
		registry: r,
		logger:   r.logger.With("service", name),
		events:   make(map[socket.Event]boundHandler),
		initial:  make(map[string]func() interface{}),
	}
	r.types[name] = core
	return &Type[S]{core: core}, nil
}

func MustDefine[S any](r *Registry, name string) *Type[S] {
	t, err := Define[S](r, name)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Type[S]) identity() (*typeCore, error) {
	if t == nil || t.core == nil {
		var zero S
		return nil, fmt.Errorf("%w: service identity for %T was never defined", protocol.ErrConfiguration, zero)
	}
	return t.core, nil
}

// Name returns the service identity, or "" for an undefined type.
func (t *Type[S]) Name() string {
	if t == nil || t.core == nil {
		return ""
	}
	return t.core.name
}

// On adds a default socket event. It is wired onto every connection that
// joins an instance of this type, with that instance as receiver.
// Registering the same event again replaces the handler.
func (t *Type[S]) On(event socket.Event, h EventHandler[S]) error {
	core, err := t.identity()
	if err != nil {
		return err
	}
	if event == "" || h == nil {
		return fmt.Errorf("%w: %s: empty event or nil handler", protocol.ErrConfiguration, core.name)
	}

	core.addEvent(event, func(svc *Service, conn socket.Socket, e *socket.Envelope) {
		h(svc.self.(S), conn, e)
	})
	return nil
}

// Events returns the default socket events in registration order.
func (t *Type[S]) Events() []socket.Event {
	core, err := t.identity()
	if err != nil {
		return nil
	}
	entries := core.snapshotEvents()
	events := make([]socket.Event, 0, len(entries))
	for _, entry := range entries {
		events = append(events, entry.event)
	}
	return events
}

// MirroredProps returns the mirrored property names in declaration order.
func (t *Type[S]) MirroredProps() []string {
	core, err := t.identity()
	if err != nil {
		return nil
	}
	return core.snapshotProps()
}

// New creates an instance of the type. self is the concrete service that
// embeds the returned Service; handlers receive it as their receiver.
func (t *Type[S]) New(self S) *Service {
	core, err := t.identity()
	if err != nil {
		panic(err)
	}

	core.mu.RLock()
	values := make(map[string]interface{}, len(core.initial))
	for prop, newValue := range core.initial {
		values[prop] = newValue()
	}
	core.mu.RUnlock()

	return &Service{
		core:   core,
		self:   self,
		values: values,
		logger: core.logger,
	}
}
