// Package factory resolves realtime configuration and assembles the provider
// stack a room controller talks to.
package factory

import (
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Venue/internal/app/middleware"
	"github.com/dkeye/Venue/internal/app/sim"
	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/metrics"
	"github.com/dkeye/Venue/internal/protocol"
)

// Environment keys read by the resolvers.
const (
	EnvProvider  = "REALTIME_PROVIDER"
	EnvDebug     = "REALTIME_DEBUG"
	EnvLogEvents = "REALTIME_LOG_EVENTS"
)

type ProviderKind string

const (
	KindSim ProviderKind = "sim"
	// KindWS is reserved for a network transport. It currently resolves to
	// the simulation.
	KindWS ProviderKind = "ws"
)

// ResolveProviderKind picks the transport. forceSim always wins; otherwise
// only a literal "ws" (after trim and lowercase) selects the network kind.
func ResolveProviderKind(env map[string]string, forceSim bool) ProviderKind {
	if forceSim {
		return KindSim
	}
	if strings.ToLower(strings.TrimSpace(env[EnvProvider])) == string(KindWS) {
		return KindWS
	}
	return KindSim
}

type DebugOptions struct {
	Debug     bool
	LogEvents bool
}

func ResolveDebugOptions(env map[string]string) DebugOptions {
	return DebugOptions{
		Debug:     ParseBool(env[EnvDebug]),
		LogEvents: ParseBool(env[EnvLogEvents]),
	}
}

// ParseBool accepts 1/true/yes/on in any case. Everything else is false.
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

type Options struct {
	Debug      bool
	LogEvents  bool
	DeviceType domain.DeviceType
	UserAgent  string
	// Limits overrides the rate-limiting decorator's limits. Zero fields fall
	// back to the broker's limits.
	Limits  protocol.Limits
	Clock   clock.Clock
	Metrics *metrics.Metrics
	// Logger receives the logging decorator's output. The global logger is
	// used when nil.
	Logger *zerolog.Logger
}

// Factory builds providers that all share one broker.
type Factory struct {
	broker *sim.Broker
}

func New(broker *sim.Broker) *Factory {
	return &Factory{broker: broker}
}

func (f *Factory) Broker() *sim.Broker { return f.broker }

// Create never fails: an unimplemented kind logs a warning and yields the
// simulation. The result is rate-limited outermost, with the logging
// decorator (when enabled) directly around the transport.
func (f *Factory) Create(kind ProviderKind, opts Options) core.Provider {
	var p core.Provider
	switch kind {
	case KindSim:
		p = f.broker.NewProvider()
	default:
		log.Warn().Str("module", "factory").Str("kind", string(kind)).Msg("provider kind not implemented, falling back to sim")
		p = f.broker.NewProvider()
	}

	if opts.LogEvents {
		logger := log.Logger
		if opts.Logger != nil {
			logger = *opts.Logger
		}
		p = middleware.NewLogging(p, logger)
	}

	limits := opts.Limits
	if limits == (protocol.Limits{}) {
		limits = f.broker.Limits()
	}
	clk := opts.Clock
	if clk == nil {
		clk = f.broker.Clock()
	}
	return middleware.NewRateLimited(p, middleware.RateLimitOptions{
		DeviceType: opts.DeviceType,
		UserAgent:  opts.UserAgent,
		Debug:      opts.Debug,
		Limits:     limits,
		Clock:      clk,
		Metrics:    opts.Metrics,
	})
}

// CreateFromEnv resolves kind and debug options from env and creates a
// provider. Fields already set in opts are kept.
func (f *Factory) CreateFromEnv(env map[string]string, forceSim bool, opts Options) core.Provider {
	dbg := ResolveDebugOptions(env)
	opts.Debug = opts.Debug || dbg.Debug
	opts.LogEvents = opts.LogEvents || dbg.LogEvents
	return f.Create(ResolveProviderKind(env, forceSim), opts)
}
