package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/dkeye/Venue/internal/protocol"
	"github.com/dkeye/Venue/internal/smoother"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`

	Realtime Realtime         `mapstructure:"realtime"`
	Limits   protocol.Limits  `mapstructure:"limits"`
	Smoother smoother.Options `mapstructure:"smoother"`
	Bots     Bots             `mapstructure:"bots"`
}

// Realtime keeps the provider switches as raw strings; they are resolved
// loosely by the factory.
type Realtime struct {
	Provider  string `mapstructure:"provider"`
	Debug     string `mapstructure:"debug"`
	LogEvents string `mapstructure:"log_events"`
	ForceSim  bool   `mapstructure:"force_sim"`
}

// Env returns the switches under their environment variable names.
func (r Realtime) Env() map[string]string {
	return map[string]string{
		"REALTIME_PROVIDER":   r.Provider,
		"REALTIME_DEBUG":      r.Debug,
		"REALTIME_LOG_EVENTS": r.LogEvents,
	}
}

type Bots struct {
	Count     int           `mapstructure:"count"`
	Room      string        `mapstructure:"room"`
	Interval  time.Duration `mapstructure:"interval"`
	ChatEvery int           `mapstructure:"chat_every"`
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). A missing
// file is not an error.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

// LoadFile reads fileName on top of the defaults. VENUE_* variables
// override file values, and REALTIME_* variables override the realtime
// switches.
func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("venue")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range map[string]string{
		"realtime.provider":   "REALTIME_PROVIDER",
		"realtime.debug":      "REALTIME_DEBUG",
		"realtime.log_events": "REALTIME_LOG_EVENTS",
	} {
		if err := v.BindEnv(key, name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Limits = cfg.Limits.OrDefault()
	cfg.Smoother = cfg.Smoother.OrDefault()

	log.Info().Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Str("provider", cfg.Realtime.Provider).
		Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "venue-dev-secret")
	v.SetDefault("log_level", "info")

	v.SetDefault("realtime.provider", "sim")
	v.SetDefault("realtime.debug", "")
	v.SetDefault("realtime.log_events", "")
	v.SetDefault("realtime.force_sim", false)

	d := protocol.DefaultLimits()
	v.SetDefault("limits.desktop_transform_rate", d.DesktopTransformRate)
	v.SetDefault("limits.mobile_transform_rate", d.MobileTransformRate)
	v.SetDefault("limits.chat_max_length", d.ChatMaxLength)

	s := smoother.DefaultOptions()
	v.SetDefault("smoother.buffer_ms", s.BufferMs)
	v.SetDefault("smoother.snap_distance", s.SnapDistance)
	v.SetDefault("smoother.snap_rotation", s.SnapRotation)
	v.SetDefault("smoother.max_samples", s.MaxSamples)
	v.SetDefault("smoother.prune_ms", s.PruneMs)

	v.SetDefault("bots.count", 0)
	v.SetDefault("bots.room", "lobby")
	v.SetDefault("bots.interval", "60ms")
	v.SetDefault("bots.chat_every", 0)
}
