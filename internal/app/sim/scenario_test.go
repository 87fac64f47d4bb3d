package sim

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/protocol"
)

func TestTwoClientsEndToEnd(t *testing.T) {
	ctx := context.Background()
	b, clk := newTestBroker()
	a := connected(t, b)
	bb := connected(t, b)

	bTransforms := collect[protocol.TransformBroadcast](bb, protocol.EventAvatarTransformBroadcast)
	aChats := collect[protocol.ChatBroadcast](a, protocol.EventChatBroadcast)
	aLeft := collect[protocol.MemberLeft](a, protocol.EventMemberLeft)

	join(t, a, "room-1", "A", domain.DeviceDesktop)
	join(t, bb, "room-1", "B", domain.DeviceDesktop)

	// 25 transforms spread over 900ms
	for i := 0; i < 25; i++ {
		require.NoError(t, a.SendTransform(ctx, transform("room-1", int64(i+1), float64(i))))
		clk.Add(36 * time.Millisecond)
	}
	fromA := 0
	for _, tb := range bTransforms.all() {
		if tb.UserID == "A" {
			fromA++
		}
	}
	assert.Equal(t, 20, fromA)

	require.NoError(t, bb.SendChat(ctx, chat("room-1", strings.Repeat("b", 245))))
	assert.Equal(t, 0, aChats.len())

	require.NoError(t, bb.LeaveRoom(ctx, "room-1"))
	require.Equal(t, 1, aLeft.len())
	assert.Equal(t, protocol.MemberLeft{UserID: "B"}, aLeft.last())
}
