package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Venue/internal/core"
	"github.com/dkeye/Venue/internal/domain"
	"github.com/dkeye/Venue/internal/metrics"
	"github.com/dkeye/Venue/internal/protocol"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const (
	watchBuffer = 64
	writeWait   = 5 * time.Second
)

// wsConn is an indirection over *websocket.Conn to ease testing.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(mt int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	SetReadLimit(limit int64)
	Close() error
}

// watchConn is one spectator socket with a bounded outbound queue.
type watchConn struct {
	conn wsConn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWatchConn(conn wsConn, buffer int) *watchConn {
	return &watchConn{conn: conn, send: make(chan []byte, buffer)}
}

func (c *watchConn) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *watchConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
}

func (c *watchConn) writePump(ctx context.Context, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("module", "adapters.http").Msg("watch write failed")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; it exists to notice the peer going away
// and to process pongs.
func (c *watchConn) readPump(ctx context.Context, readLimit int64, pongWait time.Duration) {
	if readLimit > 0 {
		c.conn.SetReadLimit(readLimit)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// watch streams every envelope fanned out in ?room= as a JSON text message,
// starting with the current room_state.
func (h *handlers) watch(c *gin.Context) {
	roomID := domain.RoomID(c.Query("room"))
	if roomID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "room is required"})
		return
	}
	if _, ok := h.broker.Members(roomID); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	sid := c.GetString("client_token")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}
	conn := newWatchConn(ws, watchBuffer)
	logger := log.With().Str("module", "adapters.http").Str("sid", sid).Str("room", string(roomID)).Logger()

	var dropped atomic.Int64
	stop, ok := h.broker.WatchState(roomID, core.HandlerFunc(func(env protocol.Envelope) {
		data, err := protocol.Encode(env)
		if err != nil {
			logger.Error().Err(err).Str("event", string(env.T)).Msg("encode envelope")
			return
		}
		err = conn.TrySend(data)
		if !errors.Is(err, ErrBackpressure) {
			dropped.Store(0)
			return
		}
		h.metrics.Drop("watch", metrics.ReasonBackpressure)
		n := dropped.Add(1)
		if h.policy.OnBackPressure(roomID, int(n)) == KickWatcher {
			logger.Warn().Int64("dropped", n).Msg("spectator too slow, disconnecting")
			conn.Close()
		}
	}))
	if !ok {
		conn.Close()
		return
	}

	pingPeriod := h.cfg.PingPeriod
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	ctx, cancel := context.WithCancel(h.ctx)
	logger.Info().Msg("spectator connected")

	go conn.writePump(ctx, pingPeriod)
	go func() {
		defer func() {
			stop()
			cancel()
			conn.Close()
			logger.Info().Msg("spectator disconnected")
		}()
		conn.readPump(ctx, h.cfg.ReadLimit, pingPeriod*10/9)
	}()
}
