package sim

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/metrics"
	"github.com/dkeye/Venue/internal/protocol"
	"github.com/dkeye/Venue/internal/ratelimit"
)

var ErrNotConnected = errors.New("provider not connected")

// Provider is one simulated client connection:
// disconnected -> connected -> joined(room) -> disconnected.
// Disconnect keeps the room binding so that a later Connect resumes it.
type Provider struct {
	broker   *Broker
	handlers *core.Handlers
	window   *ratelimit.Window

	mu        sync.Mutex
	connected bool
	roomID    domain.RoomID
	userID    domain.UserID
	device    domain.DeviceType
}

var _ core.Provider = (*Provider)(nil)

// NewProvider creates a disconnected provider bound to b.
func (b *Broker) NewProvider() *Provider {
	return &Provider{
		broker:   b,
		handlers: core.NewHandlers(),
		window:   ratelimit.NewWindow(b.limits.DesktopTransformRate, protocol.RateLimitWindow, b.clock),
		device:   domain.DeviceDesktop,
	}
}

// ConnState is a point-in-time view of a provider.
type ConnState struct {
	Connected  bool
	RoomID     domain.RoomID
	UserID     domain.UserID
	DeviceType domain.DeviceType
}

func (p *Provider) State() ConnState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return ConnState{Connected: p.connected, RoomID: p.roomID, UserID: p.userID, DeviceType: p.device}
}

func (p *Provider) binding() (domain.RoomID, domain.UserID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.roomID, p.userID
}

// Connect is idempotent. Reconnecting while still bound to a room replays
// the current room_state to this provider only.
func (p *Provider) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	if p.connected {
		p.mu.Unlock()
		return nil
	}
	p.connected = true
	roomID, userID := p.roomID, p.userID
	p.mu.Unlock()

	p.broker.activate(p)
	if roomID == "" || userID == "" {
		return nil
	}
	r, ok := p.broker.room(roomID)
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p.handlers.Emit(p.broker.roomState(r))
	log.Info().Str("module", "sim.provider").Str("room", string(roomID)).Str("user", string(userID)).Msg("reconnected, room state replayed")
	return nil
}

// Disconnect stops delivery to this provider and clears its rate-limit
// history. Room membership is left untouched until LeaveRoom.
func (p *Provider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	p.window.Reset()
	p.broker.deactivate(p)
	return nil
}

func (p *Provider) JoinRoom(ctx context.Context, payload protocol.JoinRoom) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if payload.RoomID == "" {
		return domain.ErrRoomIDEmpty
	}
	if err := payload.User.Validate(); err != nil {
		return err
	}

	p.mu.Lock()
	if !p.connected {
		p.mu.Unlock()
		return ErrNotConnected
	}
	prevRoom, prevUser := p.roomID, p.userID
	p.mu.Unlock()

	if prevRoom != "" && (prevRoom != payload.RoomID || prevUser != payload.User.UserID) {
		p.leave(prevRoom, prevUser)
		log.Info().Str("module", "sim.provider").Str("user", string(prevUser)).Str("from_room", string(prevRoom)).Msg("left previous room on join")
	}

	device := domain.ParseDeviceType(string(payload.DeviceType))
	r := p.broker.getOrCreate(payload.RoomID)
	r.mu.Lock()
	defer r.mu.Unlock()

	p.mu.Lock()
	p.roomID = payload.RoomID
	p.userID = payload.User.UserID
	p.device = device
	p.window.SetLimit(p.broker.limits.TransformRate(device))
	p.mu.Unlock()

	member := domain.NewMember(payload.User)
	r.upsert(member)

	p.handlers.Emit(p.broker.roomState(r))
	p.broker.fanout(r, p.broker.envelope(protocol.EventMemberJoined, protocol.MemberJoined{Member: member}), member.UserID)

	log.Info().Str("module", "sim.provider").Str("room", string(r.id)).Str("user", string(member.UserID)).Str("device", string(device)).Msg("member joined")
	return nil
}

// LeaveRoom is a no-op unless the provider is currently bound to roomID.
func (p *Provider) LeaveRoom(ctx context.Context, roomID domain.RoomID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	current, userID := p.binding()
	if current != roomID || userID == "" {
		return nil
	}
	p.leave(roomID, userID)
	log.Info().Str("module", "sim.provider").Str("room", string(roomID)).Str("user", string(userID)).Msg("member left")
	return nil
}

func (p *Provider) leave(roomID domain.RoomID, userID domain.UserID) {
	r, ok := p.broker.room(roomID)
	if !ok {
		p.unbind(roomID)
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(userID)
	p.unbind(roomID)
	p.broker.fanout(r, p.broker.envelope(protocol.EventMemberLeft, protocol.MemberLeft{UserID: userID}), userID)
}

func (p *Provider) unbind(roomID domain.RoomID) {
	p.mu.Lock()
	if p.roomID == roomID {
		p.roomID = ""
		p.userID = ""
	}
	p.mu.Unlock()
	p.window.Reset()
}

// SendTransform updates this member's pose and broadcasts it to the whole
// room, sender included. Calls over the device's rate are dropped silently.
func (p *Provider) SendTransform(ctx context.Context, payload protocol.AvatarTransform) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	roomID, userID := p.roomID, p.userID
	if roomID == "" || userID == "" || (payload.RoomID != "" && payload.RoomID != roomID) {
		p.mu.Unlock()
		return nil
	}
	allowed := p.window.Allow()
	p.mu.Unlock()
	if !allowed {
		p.broker.metrics.Drop("sim", metrics.ReasonRateLimited)
		return nil
	}

	r, ok := p.broker.room(roomID)
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.member(userID)
	if !ok {
		return nil
	}
	m.Pose = payload.Pose

	p.broker.fanout(r, p.broker.envelope(protocol.EventAvatarTransformBroadcast, protocol.TransformBroadcast{
		UserID: userID,
		Seq:    payload.Seq,
		Pose:   payload.Pose,
	}), "")
	return nil
}

// SendChat broadcasts text to the whole room with a per-room message id.
// Empty or overlong text is dropped silently.
func (p *Provider) SendChat(ctx context.Context, payload protocol.LocalChat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	roomID, userID := p.binding()
	if roomID == "" || userID == "" || (payload.RoomID != "" && payload.RoomID != roomID) {
		return nil
	}
	if !p.broker.limits.ChatAllowed(payload.Text) {
		p.broker.metrics.Drop("sim", metrics.ReasonChatLength)
		return nil
	}

	r, ok := p.broker.room(roomID)
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.member(userID); !ok {
		return nil
	}
	p.broker.fanout(r, p.broker.envelope(protocol.EventChatBroadcast, protocol.ChatBroadcast{
		UserID:    userID,
		Text:      payload.Text,
		MessageID: r.nextMessageID(),
	}), "")
	return nil
}

// SendEmote is accepted but has no effect on room state yet.
func (p *Provider) SendEmote(ctx context.Context, payload protocol.Emote) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log.Debug().Str("module", "sim.provider").Str("emote", payload.EmoteID).Msg("emote ignored")
	return nil
}

func (p *Provider) On(event protocol.ServerEvent, h core.Handler) func() {
	return p.handlers.Add(event, h)
}
