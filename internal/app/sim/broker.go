// Package sim is the in-memory realtime transport. A Broker owns every room
// and the registry of connected providers; each Provider is one logical
// client bound to a Broker.
//
// Every room mutation and the fan-out it triggers run under that room's
// lock, so peers observe a room's events in exactly the order they happened.
package sim

import (
	"slices"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/metrics"
	"github.com/dkeye/Venue/internal/protocol"
)

type Option func(*Broker)

func WithClock(c clock.Clock) Option {
	return func(b *Broker) { b.clock = c }
}

func WithLimits(l protocol.Limits) Option {
	return func(b *Broker) { b.limits = l.OrDefault() }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Broker) { b.metrics = m }
}

type watcher struct {
	h core.Handler
}

// Broker is the process-wide room registry. Rooms are created lazily and
// are never collected, even once empty.
type Broker struct {
	clock   clock.Clock
	limits  protocol.Limits
	metrics *metrics.Metrics

	mu       sync.RWMutex
	rooms    map[domain.RoomID]*room
	active   []*Provider
	watchers map[domain.RoomID][]*watcher
}

func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		clock:    clock.New(),
		limits:   protocol.DefaultLimits(),
		rooms:    make(map[domain.RoomID]*room),
		watchers: make(map[domain.RoomID][]*watcher),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Broker) Limits() protocol.Limits { return b.limits }

func (b *Broker) Clock() clock.Clock { return b.clock }

func (b *Broker) getOrCreate(id domain.RoomID) *room {
	b.mu.RLock()
	r, ok := b.rooms[id]
	b.mu.RUnlock()
	if ok {
		return r
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok = b.rooms[id]; ok {
		return r
	}
	r = newRoom(id)
	b.rooms[id] = r
	b.metrics.SetRooms(len(b.rooms))
	log.Info().Str("module", "sim.broker").Str("room", string(id)).Msg("room created")
	return r
}

func (b *Broker) room(id domain.RoomID) (*room, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.rooms[id]
	return r, ok
}

func (b *Broker) activate(p *Provider) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !slices.Contains(b.active, p) {
		b.active = append(b.active, p)
	}
	b.metrics.SetConnections(len(b.active))
}

func (b *Broker) deactivate(p *Provider) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = slices.DeleteFunc(b.active, func(x *Provider) bool { return x == p })
	b.metrics.SetConnections(len(b.active))
}

// ActiveConnections returns the number of connected providers.
func (b *Broker) ActiveConnections() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.active)
}

// Rooms lists every known room ordered by id.
func (b *Broker) Rooms() []domain.RoomInfo {
	b.mu.RLock()
	rooms := make([]*room, 0, len(b.rooms))
	for _, r := range b.rooms {
		rooms = append(rooms, r)
	}
	b.mu.RUnlock()

	out := make([]domain.RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, domain.RoomInfo{ID: r.id, MemberCount: r.count()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Members returns a snapshot of the room's members in join order.
func (b *Broker) Members(id domain.RoomID) ([]domain.MemberState, bool) {
	r, ok := b.room(id)
	if !ok {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(), true
}

// Watch taps every envelope fanned out in room id without joining it.
// Watchers never appear in room_state and receive no self-only replays.
func (b *Broker) Watch(id domain.RoomID, h core.Handler) (cancel func()) {
	w := &watcher{h: h}
	b.mu.Lock()
	b.watchers[id] = append(b.watchers[id], w)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.watchers[id] = slices.DeleteFunc(b.watchers[id], func(x *watcher) bool { return x == w })
		if len(b.watchers[id]) == 0 {
			delete(b.watchers, id)
		}
	}
}

// WatchState delivers the room's current room_state to h alone and then
// registers h as a watcher, atomically with respect to fan-out. The second
// result is false when the room does not exist; nothing is registered then.
func (b *Broker) WatchState(id domain.RoomID, h core.Handler) (cancel func(), ok bool) {
	r, ok := b.room(id)
	if !ok {
		return func() {}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	h.HandleEvent(b.roomState(r))
	return b.Watch(id, h), true
}

func (b *Broker) envelope(t protocol.ServerEvent, payload any) protocol.Envelope {
	return protocol.NewEnvelope(t, b.clock.Now(), payload)
}

// roomState must be called with r.mu held.
func (b *Broker) roomState(r *room) protocol.Envelope {
	return b.envelope(protocol.EventRoomState, protocol.RoomState{
		RoomID:       r.id,
		ServerTimeMs: b.clock.Now().UnixMilli(),
		Members:      r.snapshot(),
	})
}

// fanout delivers env to every active provider joined to r, except those
// bound to exclude, in connection order. Must be called with r.mu held.
func (b *Broker) fanout(r *room, env protocol.Envelope, exclude domain.UserID) {
	b.mu.RLock()
	targets := slices.Clone(b.active)
	watchers := slices.Clone(b.watchers[r.id])
	b.mu.RUnlock()

	delivered := 0
	for _, p := range targets {
		roomID, userID := p.binding()
		if roomID != r.id {
			continue
		}
		if exclude != "" && userID == exclude {
			continue
		}
		p.handlers.Emit(env)
		delivered++
	}
	for _, w := range watchers {
		w.h.HandleEvent(env)
	}

	b.metrics.Broadcast(string(env.T), delivered)
	log.Debug().
		Str("module", "sim.broker").
		Str("room", string(r.id)).
		Str("event", string(env.T)).
		Int("sent_to", delivered).
		Msg("broadcast result")
}
