// Package middleware holds core.Provider decorators. Each wraps an inner
// provider and forwards everything it does not gate.
package middleware

import (
	"context"
	"unicode/utf8"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/metrics"
	"github.com/dkeye/Venue/internal/protocol"
	"github.com/dkeye/Venue/internal/ratelimit"
)

type RateLimitOptions struct {
	// DeviceType wins over UserAgent detection when set.
	DeviceType domain.DeviceType
	UserAgent  string
	Debug      bool
	Limits     protocol.Limits
	Clock      clock.Clock
	Metrics    *metrics.Metrics
}

// RateLimited gates SendTransform with a per-device sliding window and
// SendChat with the chat length limit. Gated calls are dropped, not queued,
// and never reported as errors.
type RateLimited struct {
	inner   core.Provider
	device  domain.DeviceType
	limits  protocol.Limits
	debug   bool
	window  *ratelimit.Window
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

var _ core.Provider = (*RateLimited)(nil)

func NewRateLimited(inner core.Provider, opts RateLimitOptions) *RateLimited {
	device := opts.DeviceType
	if device == "" {
		device = domain.DetectDeviceType(opts.UserAgent)
	}
	limits := opts.Limits.OrDefault()
	return &RateLimited{
		inner:   inner,
		device:  device,
		limits:  limits,
		debug:   opts.Debug,
		window:  ratelimit.NewWindow(limits.TransformRate(device), protocol.RateLimitWindow, opts.Clock),
		metrics: opts.Metrics,
		logger:  log.With().Str("module", "middleware.ratelimit").Str("device", string(device)).Logger(),
	}
}

func (r *RateLimited) DeviceType() domain.DeviceType { return r.device }

func (r *RateLimited) Connect(ctx context.Context) error { return r.inner.Connect(ctx) }

func (r *RateLimited) Disconnect(ctx context.Context) error { return r.inner.Disconnect(ctx) }

func (r *RateLimited) JoinRoom(ctx context.Context, p protocol.JoinRoom) error {
	return r.inner.JoinRoom(ctx, p)
}

func (r *RateLimited) LeaveRoom(ctx context.Context, roomID domain.RoomID) error {
	return r.inner.LeaveRoom(ctx, roomID)
}

func (r *RateLimited) SendTransform(ctx context.Context, p protocol.AvatarTransform) error {
	if !r.window.Allow() {
		r.metrics.Drop("middleware", metrics.ReasonRateLimited)
		if r.debug {
			r.logger.Debug().Int("limit", r.window.Limit()).Int64("seq", p.Seq).Msg("transform dropped (rate limited)")
		}
		return nil
	}
	return r.inner.SendTransform(ctx, p)
}

func (r *RateLimited) SendChat(ctx context.Context, p protocol.LocalChat) error {
	if !r.limits.ChatAllowed(p.Text) {
		r.metrics.Drop("middleware", metrics.ReasonChatLength)
		if r.debug {
			r.logger.Debug().Int("length", utf8.RuneCountInString(p.Text)).Int("max", r.limits.ChatMaxLength).Msg("chat dropped (length)")
		}
		return nil
	}
	return r.inner.SendChat(ctx, p)
}

func (r *RateLimited) SendEmote(ctx context.Context, p protocol.Emote) error {
	return r.inner.SendEmote(ctx, p)
}

func (r *RateLimited) On(event protocol.ServerEvent, h core.Handler) func() {
	return r.inner.On(event, h)
}
