// Package protocol defines the versioned message vocabulary shared by every
// realtime transport: event names, payload shapes, limits and the envelope.
package protocol

import (
	"time"
	"unicode/utf8"

	"github.com/dkeye/Venue/internal/domain"
)

// Version is the compiled protocol version. Envelopes carrying any other
// version are rejected by Decode.
const Version = 1

const (
	DesktopTransformRateLimit = 20
	MobileTransformRateLimit  = 15
	ChatMaxLength             = 240

	// RateLimitWindow is the sliding window the transform limits apply to.
	RateLimitWindow = time.Second
)

type ClientEvent string

const (
	EventJoinRoom        ClientEvent = "join_room"
	EventHeartbeat       ClientEvent = "heartbeat"
	EventAvatarTransform ClientEvent = "avatar_transform"
	EventLocalChat       ClientEvent = "local_chat"
	EventEmote           ClientEvent = "emote"
)

type ServerEvent string

const (
	EventRoomState                ServerEvent = "room_state"
	EventMemberJoined             ServerEvent = "member_joined"
	EventMemberLeft               ServerEvent = "member_left"
	EventAvatarTransformBroadcast ServerEvent = "avatar_transform_broadcast"
	EventChatBroadcast            ServerEvent = "chat_broadcast"
	EventModerationAction         ServerEvent = "moderation_action"
	EventAuthError                ServerEvent = "auth_error"
)

func ClientEvents() []ClientEvent {
	return []ClientEvent{EventJoinRoom, EventHeartbeat, EventAvatarTransform, EventLocalChat, EventEmote}
}

func ServerEvents() []ServerEvent {
	return []ServerEvent{
		EventRoomState,
		EventMemberJoined,
		EventMemberLeft,
		EventAvatarTransformBroadcast,
		EventChatBroadcast,
		EventModerationAction,
		EventAuthError,
	}
}

func (e ServerEvent) Valid() bool {
	for _, known := range ServerEvents() {
		if e == known {
			return true
		}
	}
	return false
}

// Limits carries the contractual limits. Both sides of a transport must agree,
// so overrides should only ever come from shared configuration.
type Limits struct {
	DesktopTransformRate int `mapstructure:"desktop_transform_rate"`
	MobileTransformRate  int `mapstructure:"mobile_transform_rate"`
	ChatMaxLength        int `mapstructure:"chat_max_length"`
}

func DefaultLimits() Limits {
	return Limits{
		DesktopTransformRate: DesktopTransformRateLimit,
		MobileTransformRate:  MobileTransformRateLimit,
		ChatMaxLength:        ChatMaxLength,
	}
}

// OrDefault replaces non-positive fields with the protocol defaults.
func (l Limits) OrDefault() Limits {
	d := DefaultLimits()
	if l.DesktopTransformRate <= 0 {
		l.DesktopTransformRate = d.DesktopTransformRate
	}
	if l.MobileTransformRate <= 0 {
		l.MobileTransformRate = d.MobileTransformRate
	}
	if l.ChatMaxLength <= 0 {
		l.ChatMaxLength = d.ChatMaxLength
	}
	return l
}

// TransformRate is the number of transforms a device may send per RateLimitWindow.
// VR shares the desktop tier.
func (l Limits) TransformRate(d domain.DeviceType) int {
	if d == domain.DeviceMobile {
		return l.MobileTransformRate
	}
	return l.DesktopTransformRate
}

// ChatAllowed reports whether text is non-empty and within ChatMaxLength characters.
func (l Limits) ChatAllowed(text string) bool {
	return text != "" && utf8.RuneCountInString(text) <= l.ChatMaxLength
}
