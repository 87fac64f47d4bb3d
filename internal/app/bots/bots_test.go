package bots

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Venue/internal/app/factory"
	"github.com/dkeye/Venue/internal/app/orch"
	"github.com/dkeye/Venue/internal/app/sim"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/smoother"
)

func TestStepMovesAndChats(t *testing.T) {
	clk := clock.NewMock()
	f := factory.New(sim.NewBroker(sim.WithClock(clk)))
	ctx := context.Background()

	watcher := orch.NewRoom(f.Create(factory.KindSim, factory.Options{}), orch.Config{
		RoomID:   "plaza",
		Identity: domain.Identity{UserID: "watcher"},
	})
	require.NoError(t, watcher.Start(ctx))

	bot := New(f.Create(factory.KindSim, factory.Options{}), 0, Config{RoomID: "plaza", ChatEvery: 2}, clk)
	require.NoError(t, bot.Room().Start(ctx))

	require.NoError(t, bot.Step(ctx))
	require.NoError(t, bot.Step(ctx))

	poses := watcher.Poses(float64(clk.Now().UnixMilli()) + 1000)
	pose, ok := poses["bot-1"]
	require.True(t, ok)
	assert.Equal(t, int64(2), pose.Seq)
	assert.InDelta(t, 16, pose.X*pose.X+pose.Z*pose.Z, 1e-9)
	assert.Equal(t, domain.AnimWalk, pose.Anim)

	chats := watcher.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "Bot 1", chats[0].Author)
	assert.Equal(t, "lap 1", chats[0].Content)
}

func TestRunLeavesOnCancel(t *testing.T) {
	clk := clock.NewMock()
	b := sim.NewBroker(sim.WithClock(clk))
	f := factory.New(b)

	ctx, cancel := context.WithCancel(context.Background())
	bot := New(f.Create(factory.KindSim, factory.Options{}), 2, Config{RoomID: "plaza", Interval: 50 * time.Millisecond}, clk)

	done := make(chan error, 1)
	go func() { done <- bot.Run(ctx) }()

	require.Eventually(t, func() bool {
		members, ok := b.Members("plaza")
		return ok && len(members) == 1
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	members, ok := b.Members("plaza")
	require.True(t, ok)
	assert.Empty(t, members)
}

func TestConfiguredSmootherReachesBotView(t *testing.T) {
	clk := clock.NewMock()
	f := factory.New(sim.NewBroker(sim.WithClock(clk)))
	ctx := context.Background()

	viewer := New(f.Create(factory.KindSim, factory.Options{}), 0, Config{
		RoomID:   "plaza",
		Smoother: smoother.Options{BufferMs: 50},
	}, clk)
	require.NoError(t, viewer.Room().Start(ctx))
	assert.Equal(t, 50.0, viewer.Room().SmootherOptions().BufferMs)

	walker := New(f.Create(factory.KindSim, factory.Options{}), 1, Config{RoomID: "plaza"}, clk)
	require.NoError(t, walker.Room().Start(ctx))
	assert.Equal(t, smoother.DefaultOptions().BufferMs, walker.Room().SmootherOptions().BufferMs)

	require.NoError(t, walker.Step(ctx))
	clk.Add(100 * time.Millisecond)
	require.NoError(t, walker.Step(ctx))

	now := float64(clk.Now().UnixMilli())
	pose, ok := viewer.Room().Poses(now)["bot-2"]
	require.True(t, ok)
	// Rendered 50ms behind now, halfway between the two steps.
	assert.InDelta(t, now-50, pose.TS, 1e-9)
	assert.Equal(t, int64(2), pose.Seq)
}
