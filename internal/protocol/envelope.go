package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrVersionMismatch = errors.New("protocol version mismatch")
	ErrUnknownEvent    = errors.New("unknown event")
)

// Envelope wraps every server event. TS is stamped by the sender at emit time.
type Envelope struct {
	V       int         `json:"v"`
	T       ServerEvent `json:"t"`
	TS      int64       `json:"ts"`
	Payload any         `json:"payload"`
}

// NewEnvelope stamps payload with the current version and the sender clock.
func NewEnvelope(t ServerEvent, now time.Time, payload any) Envelope {
	return Envelope{V: Version, T: t, TS: now.UnixMilli(), Payload: payload}
}

func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// Decode parses a server envelope into its typed payload.
func Decode(data []byte) (Envelope, error) {
	var raw struct {
		V       int             `json:"v"`
		T       ServerEvent     `json:"t"`
		TS      int64           `json:"ts"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if raw.V != Version {
		return Envelope{}, fmt.Errorf("%w: got %d, want %d", ErrVersionMismatch, raw.V, Version)
	}

	var payload any
	switch raw.T {
	case EventRoomState:
		payload = &RoomState{}
	case EventMemberJoined:
		payload = &MemberJoined{}
	case EventMemberLeft:
		payload = &MemberLeft{}
	case EventAvatarTransformBroadcast:
		payload = &TransformBroadcast{}
	case EventChatBroadcast:
		payload = &ChatBroadcast{}
	case EventModerationAction:
		payload = &ModerationAction{}
	case EventAuthError:
		payload = &AuthError{}
	default:
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownEvent, raw.T)
	}
	if len(raw.Payload) > 0 {
		if err := json.Unmarshal(raw.Payload, payload); err != nil {
			return Envelope{}, fmt.Errorf("decode %s payload: %w", raw.T, err)
		}
	}

	return Envelope{V: raw.V, T: raw.T, TS: raw.TS, Payload: deref(payload)}, nil
}

func deref(p any) any {
	switch v := p.(type) {
	case *RoomState:
		return *v
	case *MemberJoined:
		return *v
	case *MemberLeft:
		return *v
	case *TransformBroadcast:
		return *v
	case *ChatBroadcast:
		return *v
	case *ModerationAction:
		return *v
	case *AuthError:
		return *v
	}
	return p
}
