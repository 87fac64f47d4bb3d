package protocol

import "github.com/dkeye/Venue/internal/domain"

// Client -> server payloads.

type JoinRoom struct {
	RoomID     domain.RoomID     `json:"roomId"`
	User       domain.Identity   `json:"user"`
	DeviceType domain.DeviceType `json:"deviceType"`
}

type Heartbeat struct {
	RoomID       domain.RoomID `json:"roomId"`
	ClientTimeMs int64         `json:"clientTimeMs"`
	LastSeq      *int64        `json:"lastSeq,omitempty"`
}

type AvatarTransform struct {
	RoomID domain.RoomID `json:"roomId"`
	Seq    int64         `json:"seq"`
	domain.Pose
}

type ChatMode string

const ChatModeLocal ChatMode = "local"

type LocalChat struct {
	RoomID domain.RoomID `json:"roomId"`
	Text   string        `json:"text"`
	Mode   ChatMode      `json:"mode"`
}

type Emote struct {
	RoomID  domain.RoomID `json:"roomId"`
	EmoteID string        `json:"emoteId"`
}

// Server -> client payloads.

type RoomState struct {
	RoomID       domain.RoomID        `json:"roomId"`
	ServerTimeMs int64                `json:"serverTimeMs"`
	Members      []domain.MemberState `json:"members"`
}

type MemberJoined struct {
	Member domain.MemberState `json:"member"`
}

type MemberLeft struct {
	UserID domain.UserID `json:"userId"`
}

type TransformBroadcast struct {
	UserID domain.UserID `json:"userId"`
	Seq    int64         `json:"seq"`
	domain.Pose
}

type ChatBroadcast struct {
	UserID    domain.UserID `json:"userId"`
	Text      string        `json:"text"`
	MessageID string        `json:"messageId"`
}

type ModerationType string

const (
	ModerationKicked   ModerationType = "kicked"
	ModerationBanned   ModerationType = "banned"
	ModerationMutedMod ModerationType = "mutedByMod"
)

type ModerationAction struct {
	Type   ModerationType `json:"type"`
	Reason string         `json:"reason,omitempty"`
}

type AuthErrorReason string

const (
	AuthTokenExpired AuthErrorReason = "token_expired"
	AuthInvalidToken AuthErrorReason = "invalid_token"
	AuthForbidden    AuthErrorReason = "forbidden"
)

type AuthError struct {
	Reason  AuthErrorReason `json:"reason"`
	Message string          `json:"message,omitempty"`
}
