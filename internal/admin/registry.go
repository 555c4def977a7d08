package admin

import (
	"errors"
	"fmt"
	"sync"

	"github.com/energizer-project/ottdadmin/internal/protocol"
)

// Handler receives a dispatched packet.
type Handler func(s *Session, p protocol.Packet) error

// Registry maps packet types to ordered handler lists.
type Registry struct {
	mu       sync.RWMutex
	handlers map[protocol.PacketType][]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[protocol.PacketType][]Handler),
	}
}

// Register appends h to the list of every given type. Registering the same
// handler twice means it runs twice.
func (r *Registry) Register(h Handler, types ...protocol.PacketType) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range types {
		r.handlers[t] = append(r.handlers[t], h)
	}
}

// On registers fn for packets of type T.
func On[T protocol.Packet](r *Registry, fn func(s *Session, p T) error) {
	var zero T
	r.Register(func(s *Session, p protocol.Packet) error {
		v, ok := p.(T)
		if !ok {
			return nil
		}
		return fn(s, v)
	}, zero.Type())
}

// Count returns how many handlers are registered for t.
func (r *Registry) Count(t protocol.PacketType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[t])
}

// Dispatch runs every handler for p's type in registration order. Every
// handler runs even if an earlier one fails; failures come back joined as
// *HandlerError values. A type without handlers is a no-op.
func (r *Registry) Dispatch(s *Session, p protocol.Packet) error {
	r.mu.RLock()
	list := r.handlers[p.Type()]
	r.mu.RUnlock()

	var errs []error
	for i, h := range list {
		if err := invoke(h, i, s, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func invoke(h Handler, index int, s *Session, p protocol.Packet) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &HandlerError{
				Type:  p.Type(),
				Index: index,
				Panic: rec,
				Err:   fmt.Errorf("panic: %v", rec),
			}
		}
	}()

	if herr := h(s, p); herr != nil {
		return &HandlerError{Type: p.Type(), Index: index, Err: herr}
	}
	return nil
}
