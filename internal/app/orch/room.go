// Package orch drives one provider on behalf of a local user: it keeps the
// member list, the chat HUD and one smoother per remote avatar up to date
// from server events.
package orch

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/protocol"
	"github.com/dkeye/Venue/internal/smoother"
)

// MaxChatEntries caps the chat HUD; the oldest entry is evicted first.
const MaxChatEntries = 120

var ErrAlreadyStarted = errors.New("room controller already started")

type ChatEntry struct {
	ID        string        `json:"id"`
	UserID    domain.UserID `json:"userId"`
	Author    string        `json:"author"`
	Content   string        `json:"content"`
	Timestamp int64         `json:"timestamp"`
	FromSelf  bool          `json:"fromSelf"`
}

type Config struct {
	RoomID     domain.RoomID
	Identity   domain.Identity
	DeviceType domain.DeviceType
	Smoother   smoother.Options
}

type Room struct {
	provider core.Provider
	cfg      Config
	seq      atomic.Int64

	mu        sync.Mutex
	started   bool
	unsubs    []func()
	members   []domain.MemberState
	chats     []ChatEntry
	smoothers map[domain.UserID]*smoother.Smoother
}

func NewRoom(p core.Provider, cfg Config) *Room {
	if cfg.DeviceType == "" {
		cfg.DeviceType = domain.DeviceDesktop
	}
	return &Room{
		provider:  p,
		cfg:       cfg,
		smoothers: make(map[domain.UserID]*smoother.Smoother),
	}
}

func (r *Room) RoomID() domain.RoomID { return r.cfg.RoomID }

func (r *Room) Identity() domain.Identity { return r.cfg.Identity }

// SmootherOptions returns the options every per-peer smoother is built with.
func (r *Room) SmootherOptions() smoother.Options { return r.cfg.Smoother.OrDefault() }

// Start subscribes to room events, then connects and joins. Subscribing
// first guarantees the room_state answering the join is not missed.
func (r *Room) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	unsubs := []func(){
		core.Subscribe(r.provider, protocol.EventRoomState, r.onRoomState),
		core.Subscribe(r.provider, protocol.EventMemberJoined, r.onMemberJoined),
		core.Subscribe(r.provider, protocol.EventMemberLeft, r.onMemberLeft),
		core.Subscribe(r.provider, protocol.EventChatBroadcast, r.onChat),
		r.provider.On(protocol.EventAvatarTransformBroadcast, core.HandlerFunc(r.onTransform)),
	}
	r.mu.Lock()
	r.unsubs = unsubs
	r.mu.Unlock()

	err := r.provider.Connect(ctx)
	if err == nil {
		err = r.provider.JoinRoom(ctx, protocol.JoinRoom{
			RoomID:     r.cfg.RoomID,
			User:       r.cfg.Identity,
			DeviceType: r.cfg.DeviceType,
		})
	}
	if err != nil {
		r.unsubscribe()
		return err
	}
	log.Info().Str("module", "orch.room").Str("room", string(r.cfg.RoomID)).Str("user", string(r.cfg.Identity.UserID)).Msg("room controller started")
	return nil
}

// Stop unsubscribes and leaves the room. It is safe to call more than once.
func (r *Room) Stop(ctx context.Context) error {
	if !r.unsubscribe() {
		return nil
	}
	if err := r.provider.LeaveRoom(ctx, r.cfg.RoomID); err != nil {
		log.Warn().Str("module", "orch.room").Str("room", string(r.cfg.RoomID)).Err(err).Msg("leave failed")
		return err
	}
	log.Info().Str("module", "orch.room").Str("room", string(r.cfg.RoomID)).Str("user", string(r.cfg.Identity.UserID)).Msg("room controller stopped")
	return nil
}

func (r *Room) unsubscribe() bool {
	r.mu.Lock()
	unsubs := r.unsubs
	r.unsubs = nil
	wasStarted := r.started
	r.started = false
	r.mu.Unlock()
	for _, fn := range unsubs {
		fn()
	}
	return wasStarted
}

// SendChat trims text and sends it; blank text is not sent.
func (r *Room) SendChat(ctx context.Context, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	return r.provider.SendChat(ctx, protocol.LocalChat{RoomID: r.cfg.RoomID, Text: trimmed, Mode: protocol.ChatModeLocal})
}

// SendTransform stamps pose with the next sequence number, starting at 1.
func (r *Room) SendTransform(ctx context.Context, pose domain.Pose) error {
	return r.provider.SendTransform(ctx, protocol.AvatarTransform{
		RoomID: r.cfg.RoomID,
		Seq:    r.seq.Add(1),
		Pose:   pose,
	})
}

func (r *Room) SendEmote(ctx context.Context, emoteID string) error {
	return r.provider.SendEmote(ctx, protocol.Emote{RoomID: r.cfg.RoomID, EmoteID: emoteID})
}

func (r *Room) Members() []domain.MemberState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.members)
}

func (r *Room) Chats() []ChatEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.chats)
}

// Poses samples every remote avatar's smoother at nowMs.
func (r *Room) Poses(nowMs float64) map[domain.UserID]smoother.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.UserID]smoother.Sample, len(r.smoothers))
	for uid, s := range r.smoothers {
		if sample, ok := s.GetSmoothed(nowMs); ok {
			out[uid] = sample
		}
	}
	return out
}

func (r *Room) onRoomState(_ protocol.Envelope, p protocol.RoomState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = slices.Clone(p.Members)
	present := make(map[domain.UserID]struct{}, len(p.Members))
	for _, m := range p.Members {
		present[m.UserID] = struct{}{}
	}
	for uid := range r.smoothers {
		if _, ok := present[uid]; !ok {
			delete(r.smoothers, uid)
		}
	}
}

func (r *Room) onMemberJoined(_ protocol.Envelope, p protocol.MemberJoined) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = slices.DeleteFunc(r.members, func(m domain.MemberState) bool { return m.UserID == p.Member.UserID })
	r.members = append(r.members, p.Member)
	// A rejoining peer restarts its seq counter.
	if s, ok := r.smoothers[p.Member.UserID]; ok {
		s.Clear()
	}
}

func (r *Room) onMemberLeft(_ protocol.Envelope, p protocol.MemberLeft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = slices.DeleteFunc(r.members, func(m domain.MemberState) bool { return m.UserID == p.UserID })
	delete(r.smoothers, p.UserID)
}

func (r *Room) onChat(e protocol.Envelope, p protocol.ChatBroadcast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	author := string(p.UserID)
	for _, m := range r.members {
		if m.UserID == p.UserID && m.DisplayName != "" {
			author = m.DisplayName
			break
		}
	}
	r.chats = append(r.chats, ChatEntry{
		ID:        p.MessageID,
		UserID:    p.UserID,
		Author:    author,
		Content:   p.Text,
		Timestamp: e.TS,
		FromSelf:  p.UserID == r.cfg.Identity.UserID,
	})
	if over := len(r.chats) - MaxChatEntries; over > 0 {
		r.chats = slices.Delete(r.chats, 0, over)
	}
}

func (r *Room) onTransform(e protocol.Envelope) {
	p, ok := e.Payload.(protocol.TransformBroadcast)
	if !ok || p.UserID == r.cfg.Identity.UserID {
		return
	}
	r.mu.Lock()
	s, ok := r.smoothers[p.UserID]
	if !ok {
		s = smoother.New(r.cfg.Smoother)
		r.smoothers[p.UserID] = s
	}
	r.mu.Unlock()
	s.Ingest(e)
}
