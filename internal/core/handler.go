package core

import (
	"reflect"
	"slices"
	"sync"

	"github.com/dkeye/Venue/internal/protocol"
)

// Handler receives server envelopes. Handlers run synchronously on the
// goroutine that triggered the event and must not call back into the
// transport that is delivering to them.
type Handler interface {
	HandleEvent(protocol.Envelope)
}

type HandlerFunc func(protocol.Envelope)

func (f HandlerFunc) HandleEvent(e protocol.Envelope) { f(e) }

// Subscribe registers a typed handler; envelopes whose payload is not a T are ignored.
func Subscribe[T any](p Provider, event protocol.ServerEvent, fn func(protocol.Envelope, T)) func() {
	return p.On(event, HandlerFunc(func(e protocol.Envelope) {
		payload, ok := e.Payload.(T)
		if !ok {
			return
		}
		fn(e, payload)
	}))
}

type subscription struct {
	h Handler
}

// Handlers is a per-event handler set. Registering the same comparable
// handler twice keeps one registration; func handlers are never comparable
// and always register anew. Delivery follows registration order.
type Handlers struct {
	mu   sync.RWMutex
	subs map[protocol.ServerEvent][]*subscription
}

func NewHandlers() *Handlers {
	return &Handlers{subs: make(map[protocol.ServerEvent][]*subscription)}
}

func (hs *Handlers) Add(event protocol.ServerEvent, h Handler) func() {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if isComparable(h) {
		for _, s := range hs.subs[event] {
			if isComparable(s.h) && s.h == h {
				return hs.remover(event, s)
			}
		}
	}
	s := &subscription{h: h}
	hs.subs[event] = append(hs.subs[event], s)
	return hs.remover(event, s)
}

func (hs *Handlers) remover(event protocol.ServerEvent, s *subscription) func() {
	return func() {
		hs.mu.Lock()
		defer hs.mu.Unlock()
		hs.subs[event] = slices.DeleteFunc(hs.subs[event], func(x *subscription) bool { return x == s })
	}
}

// Emit delivers e to a snapshot of the handlers registered for e.T.
func (hs *Handlers) Emit(e protocol.Envelope) {
	hs.mu.RLock()
	subs := slices.Clone(hs.subs[e.T])
	hs.mu.RUnlock()
	for _, s := range subs {
		s.h.HandleEvent(e)
	}
}

func (hs *Handlers) Len(event protocol.ServerEvent) int {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return len(hs.subs[event])
}

func (hs *Handlers) Clear() {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	clear(hs.subs)
}

func isComparable(h Handler) bool {
	return h != nil && reflect.TypeOf(h).Comparable()
}
