package protocol

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Venue/internal/domain"
)

func TestLimitsDefaults(t *testing.T) {
	l := DefaultLimits()
	assert.Equal(t, 20, l.TransformRate(domain.DeviceDesktop))
	assert.Equal(t, 15, l.TransformRate(domain.DeviceMobile))
	assert.Equal(t, 20, l.TransformRate(domain.DeviceVR))

	assert.Equal(t, l, Limits{}.OrDefault())
	assert.Equal(t, 5, Limits{DesktopTransformRate: 5}.OrDefault().DesktopTransformRate)
}

func TestChatAllowed(t *testing.T) {
	l := DefaultLimits()
	assert.False(t, l.ChatAllowed(""))
	assert.True(t, l.ChatAllowed(strings.Repeat("x", ChatMaxLength)))
	assert.False(t, l.ChatAllowed(strings.Repeat("x", ChatMaxLength+1)))
	// length is counted in characters, not bytes
	assert.True(t, l.ChatAllowed(strings.Repeat("é", ChatMaxLength)))
}

func TestServerEventValid(t *testing.T) {
	for _, e := range ServerEvents() {
		assert.True(t, e.Valid(), e)
	}
	assert.False(t, ServerEvent("join_room").Valid())
	assert.Len(t, ClientEvents(), 5)
}

func TestEnvelopeEncodeDecode(t *testing.T) {
	now := time.UnixMilli(1_710_000_000_000)
	env := NewEnvelope(EventAvatarTransformBroadcast, now, TransformBroadcast{
		UserID: "user-a",
		Seq:    7,
		Pose:   domain.Pose{X: 1, Y: 2, Z: 3, RotY: 0.5, Anim: domain.AnimWalk, Speaking: true},
	})
	assert.Equal(t, Version, env.V)
	assert.Equal(t, int64(1_710_000_000_000), env.TS)

	data, err := Encode(env)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"t":"avatar_transform_broadcast"`)
	assert.Contains(t, string(data), `"rotY":0.5`)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, env, got)
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	_, err := Decode([]byte(`{"v":2,"t":"member_left","ts":1,"payload":{"userId":"x"}}`))
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestDecodeRejectsUnknownEvent(t *testing.T) {
	_, err := Decode([]byte(`{"v":1,"t":"join_room","ts":1,"payload":{}}`))
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestDecodeRoomState(t *testing.T) {
	data := []byte(`{"v":1,"t":"room_state","ts":5,"payload":{"roomId":"room-1","serverTimeMs":5,` +
		`"members":[{"userId":"a","displayName":"A","avatarId":"ava","x":0,"y":0,"z":0,"rotY":0,"anim":"idle","speaking":false}]}}`)
	env, err := Decode(data)
	require.NoError(t, err)
	state, ok := env.Payload.(RoomState)
	require.True(t, ok)
	require.Len(t, state.Members, 1)
	assert.Equal(t, domain.UserID("a"), state.Members[0].UserID)
	assert.Equal(t, domain.AnimIdle, state.Members[0].Anim)
}
