package sim

import (
	"context"
	"sync"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/protocol"
)

type collector[T any] struct {
	mu       sync.Mutex
	events   []protocol.Envelope
	payloads []T
}

func collect[T any](p core.Provider, event protocol.ServerEvent) *collector[T] {
	c := &collector[T]{}
	core.Subscribe(p, event, func(e protocol.Envelope, payload T) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, e)
		c.payloads = append(c.payloads, payload)
	})
	return c
}

func (c *collector[T]) all() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.payloads))
	copy(out, c.payloads)
	return out
}

func (c *collector[T]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func (c *collector[T]) last() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payloads[len(c.payloads)-1]
}

func newTestBroker() (*Broker, *clock.Mock) {
	clk := clock.NewMock()
	clk.Set(clock.New().Now())
	return NewBroker(WithClock(clk)), clk
}

func user(id string) domain.Identity {
	return domain.Identity{UserID: domain.UserID(id), DisplayName: id, AvatarID: "av-" + id}
}

func connected(t *testing.T, b *Broker) *Provider {
	t.Helper()
	p := b.NewProvider()
	require.NoError(t, p.Connect(context.Background()))
	return p
}

func join(t *testing.T, p *Provider, room, uid string, device domain.DeviceType) {
	t.Helper()
	require.NoError(t, p.JoinRoom(context.Background(), protocol.JoinRoom{
		RoomID:     domain.RoomID(room),
		User:       user(uid),
		DeviceType: device,
	}))
}

func transform(room string, seq int64, x float64) protocol.AvatarTransform {
	return protocol.AvatarTransform{
		RoomID: domain.RoomID(room),
		Seq:    seq,
		Pose:   domain.Pose{X: x, Z: -x, Anim: domain.AnimWalk},
	}
}

func chat(room, text string) protocol.LocalChat {
	return protocol.LocalChat{RoomID: domain.RoomID(room), Text: text, Mode: protocol.ChatModeLocal}
}
