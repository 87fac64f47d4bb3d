package middleware

import (
	"context"
	"reflect"
	"sync"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/protocol"
)

// Logging logs every call before forwarding it and every delivered event.
type Logging struct {
	inner  core.Provider
	logger zerolog.Logger

	mu sync.Mutex
	// wrappers maps a comparable handler to its logging wrapper so the inner
	// provider sees the same handler on repeat registration and dedupes it.
	wrappers map[wrapperKey]*loggedHandler
}

type wrapperKey struct {
	event protocol.ServerEvent
	h     core.Handler
}

var _ core.Provider = (*Logging)(nil)

func NewLogging(inner core.Provider, logger zerolog.Logger) *Logging {
	return &Logging{
		inner:    inner,
		logger:   logger.With().Str("module", "middleware.logging").Logger(),
		wrappers: make(map[wrapperKey]*loggedHandler),
	}
}

func (l *Logging) Connect(ctx context.Context) error {
	l.logger.Debug().Msg("connect")
	return l.inner.Connect(ctx)
}

func (l *Logging) Disconnect(ctx context.Context) error {
	l.logger.Debug().Msg("disconnect")
	return l.inner.Disconnect(ctx)
}

func (l *Logging) JoinRoom(ctx context.Context, p protocol.JoinRoom) error {
	l.logger.Debug().
		Str("room", string(p.RoomID)).
		Str("user", string(p.User.UserID)).
		Str("device", string(p.DeviceType)).
		Msg(string(protocol.EventJoinRoom))
	return l.inner.JoinRoom(ctx, p)
}

func (l *Logging) LeaveRoom(ctx context.Context, roomID domain.RoomID) error {
	l.logger.Debug().Str("room", string(roomID)).Msg("leave_room")
	return l.inner.LeaveRoom(ctx, roomID)
}

func (l *Logging) SendTransform(ctx context.Context, p protocol.AvatarTransform) error {
	l.logger.Debug().Str("room", string(p.RoomID)).Int64("seq", p.Seq).Msg(string(protocol.EventAvatarTransform))
	return l.inner.SendTransform(ctx, p)
}

func (l *Logging) SendChat(ctx context.Context, p protocol.LocalChat) error {
	l.logger.Debug().Str("room", string(p.RoomID)).Int("length", utf8.RuneCountInString(p.Text)).Msg(string(protocol.EventLocalChat))
	return l.inner.SendChat(ctx, p)
}

func (l *Logging) SendEmote(ctx context.Context, p protocol.Emote) error {
	l.logger.Debug().Str("room", string(p.RoomID)).Str("emote", p.EmoteID).Msg(string(protocol.EventEmote))
	return l.inner.SendEmote(ctx, p)
}

func (l *Logging) On(event protocol.ServerEvent, h core.Handler) func() {
	w := &loggedHandler{logger: l.logger, h: h}
	if h == nil || !reflect.TypeOf(h).Comparable() {
		return l.inner.On(event, w)
	}

	key := wrapperKey{event: event, h: h}
	l.mu.Lock()
	if cached, ok := l.wrappers[key]; ok {
		w = cached
	} else {
		l.wrappers[key] = w
	}
	l.mu.Unlock()

	remove := l.inner.On(event, w)
	return func() {
		l.mu.Lock()
		if l.wrappers[key] == w {
			delete(l.wrappers, key)
		}
		l.mu.Unlock()
		remove()
	}
}

type loggedHandler struct {
	logger zerolog.Logger
	h      core.Handler
}

func (w *loggedHandler) HandleEvent(e protocol.Envelope) {
	ev := w.logger.Debug().Str("event", string(e.T))
	if uid, ok := eventUser(e.Payload); ok {
		ev = ev.Str("user", string(uid))
	}
	ev.Msg("event")
	w.h.HandleEvent(e)
}

func eventUser(payload any) (domain.UserID, bool) {
	switch p := payload.(type) {
	case protocol.MemberLeft:
		return p.UserID, true
	case protocol.TransformBroadcast:
		return p.UserID, true
	case protocol.ChatBroadcast:
		return p.UserID, true
	case protocol.MemberJoined:
		return p.Member.UserID, true
	}
	return "", false
}
