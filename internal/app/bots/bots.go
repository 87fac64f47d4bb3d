// Package bots populates a room with wandering avatars driven through the
// regular provider stack, so spectators and the inspector have traffic to
// look at.
package bots

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Venue/internal/app/orch"
	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/smoother"
)

// DefaultInterval matches the client's transform cadence, below the desktop
// rate limit.
const DefaultInterval = 60 * time.Millisecond

type Config struct {
	RoomID   domain.RoomID
	Radius   float64
	Interval time.Duration
	// ChatEvery sends a chat line every n ticks; zero disables chat.
	ChatEvery int
	// Smoother configures the bot's view of the other avatars.
	Smoother smoother.Options
}

// Bot walks a circle around the room origin.
type Bot struct {
	room  *orch.Room
	cfg   Config
	clock clock.Clock
	phase float64
	tick  uint64
}

func New(p core.Provider, idx int, cfg Config, clk clock.Clock) *Bot {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Radius <= 0 {
		cfg.Radius = 4
	}
	if clk == nil {
		clk = clock.New()
	}
	id := domain.Identity{
		UserID:      domain.UserID(fmt.Sprintf("bot-%d", idx+1)),
		DisplayName: fmt.Sprintf("Bot %d", idx+1),
		AvatarID:    "aurora",
	}
	return &Bot{
		room: orch.NewRoom(p, orch.Config{
			RoomID:     cfg.RoomID,
			Identity:   id,
			DeviceType: domain.DeviceDesktop,
			Smoother:   cfg.Smoother,
		}),
		cfg:   cfg,
		clock: clk,
		phase: float64(idx) * math.Pi / 3,
	}
}

func (b *Bot) Room() *orch.Room { return b.room }

// Step advances the bot by one tick and sends its pose.
func (b *Bot) Step(ctx context.Context) error {
	b.tick++
	angle := b.phase + float64(b.tick)*0.05
	pose := domain.Pose{
		X:    b.cfg.Radius * math.Cos(angle),
		Z:    b.cfg.Radius * math.Sin(angle),
		RotY: angle + math.Pi/2,
		Anim: domain.AnimWalk,
	}
	if err := b.room.SendTransform(ctx, pose); err != nil {
		return err
	}
	if b.cfg.ChatEvery > 0 && b.tick%uint64(b.cfg.ChatEvery) == 0 {
		return b.room.SendChat(ctx, fmt.Sprintf("lap %d", b.tick/uint64(b.cfg.ChatEvery)))
	}
	return nil
}

// Run joins the room and steps on every tick until ctx is done, then leaves.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.room.Start(ctx); err != nil {
		return err
	}
	ticker := b.clock.Ticker(b.cfg.Interval)
	defer ticker.Stop()

	logger := log.With().Str("module", "bots").Str("user", string(b.room.Identity().UserID)).Logger()
	logger.Info().Str("room", string(b.cfg.RoomID)).Msg("bot started")
	for {
		select {
		case <-ctx.Done():
			// ctx is already done; leave with a fresh one.
			if err := b.room.Stop(context.Background()); err != nil {
				logger.Warn().Err(err).Msg("bot leave failed")
			}
			logger.Info().Msg("bot stopped")
			return nil
		case <-ticker.C:
			if err := b.Step(ctx); err != nil && ctx.Err() == nil {
				logger.Warn().Err(err).Msg("bot step failed")
			}
		}
	}
}
