package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Venue/internal/app/sim"
	"github.com/dkeye/Venue/internal/config"
	"github.com/dkeye/Venue/internal/metrics"
)

const sessionName = "VenueSessions"

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type Deps struct {
	Broker *sim.Broker
	// Gatherer backs /metrics; prometheus.DefaultGatherer when nil.
	Gatherer prometheus.Gatherer
	Metrics  *metrics.Metrics
	// Policy decides what happens to spectators that cannot keep up;
	// DropPolicy when nil.
	Policy Policy
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	policy := deps.Policy
	if policy == nil {
		policy = DropPolicy{}
	}
	h := &handlers{
		ctx:     ctx,
		cfg:     cfg,
		broker:  deps.Broker,
		metrics: deps.Metrics,
		policy:  policy,
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	api := r.Group("/api")
	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:room/members", h.roomMembers)
	api.GET("/identity", h.getIdentity)
	api.DELETE("/identity", h.resetIdentity)
	api.GET("/ws/watch", h.watch)

	return r
}

type handlers struct {
	ctx     context.Context
	cfg     *config.Config
	broker  *sim.Broker
	metrics *metrics.Metrics
	policy  Policy
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"rooms":       len(h.broker.Rooms()),
		"connections": h.broker.ActiveConnections(),
	})
}
