package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Venue/internal/adapters/http"
	"github.com/dkeye/Venue/internal/app/bots"
	"github.com/dkeye/Venue/internal/app/factory"
	"github.com/dkeye/Venue/internal/app/sim"
	"github.com/dkeye/Venue/internal/config"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	broker := sim.NewBroker(sim.WithLimits(cfg.Limits), sim.WithMetrics(m))
	providers := factory.New(broker)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Broker:   broker,
		Gatherer: reg,
		Metrics:  m,
		Policy:   router.KickAfter{Limit: 256},
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Venue server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	for i := 0; i < cfg.Bots.Count; i++ {
		p := providers.CreateFromEnv(cfg.Realtime.Env(), cfg.Realtime.ForceSim, factory.Options{
			DeviceType: domain.DeviceDesktop,
			Metrics:    m,
		})
		bot := bots.New(p, i, bots.Config{
			RoomID:    domain.RoomID(cfg.Bots.Room),
			Interval:  cfg.Bots.Interval,
			ChatEvery: cfg.Bots.ChatEvery,
			Smoother:  cfg.Smoother,
		}, nil)
		g.Go(func() error { return bot.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return
	}
	log.Info().Msg("Server exited gracefully")
}
