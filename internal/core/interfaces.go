package core

import (
	"context"

	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/protocol"
)

// Provider abstracts a realtime room transport. Operations return once the
// transport has completed them; the simulation completes them synchronously.
// Decorators wrap a Provider and implement Provider themselves.
type Provider interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	JoinRoom(ctx context.Context, p protocol.JoinRoom) error
	LeaveRoom(ctx context.Context, roomID domain.RoomID) error
	SendTransform(ctx context.Context, p protocol.AvatarTransform) error
	SendChat(ctx context.Context, p protocol.LocalChat) error
	SendEmote(ctx context.Context, p protocol.Emote) error
	// On registers h for one server event and returns its unsubscribe func.
	On(event protocol.ServerEvent, h Handler) (unsubscribe func())
}
