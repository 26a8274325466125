// Package server exposes the HTTP surface: the websocket endpoint viewers
// connect through, plus health, metrics and version endpoints.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	goredis "github.com/redis/go-redis/v9"

	"github.com/andyjduncan/eurosight/internal/broadcast"
	"github.com/andyjduncan/eurosight/internal/config"
	"github.com/andyjduncan/eurosight/internal/domain"
	"github.com/andyjduncan/eurosight/internal/session"
	ws "github.com/andyjduncan/eurosight/internal/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Viewers connect from arbitrary origins
	},
}

// redisHealthChecker is a minimal interface for Redis health checks
type redisHealthChecker interface {
	Ping(ctx context.Context) *goredis.StatusCmd
}

type Server struct {
	echo         *echo.Echo
	config       *config.Config
	ledger       domain.Ledger
	allocator    *session.Allocator
	aggregator   *session.Aggregator
	bootstrapper *session.Bootstrapper
	sender       *broadcast.Sender
	hub          *ws.Hub
	limits       *ConnectionLimits
	clock        clockwork.Clock
	redisClient  redisHealthChecker
	startTime    time.Time
}

func NewServer(
	cfg *config.Config,
	ledger domain.Ledger,
	allocator *session.Allocator,
	aggregator *session.Aggregator,
	bootstrapper *session.Bootstrapper,
	sender *broadcast.Sender,
	hub *ws.Hub,
	redisClient redisHealthChecker,
	clock clockwork.Clock,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:         e,
		config:       cfg,
		ledger:       ledger,
		allocator:    allocator,
		aggregator:   aggregator,
		bootstrapper: bootstrapper,
		sender:       sender,
		hub:          hub,
		limits: NewConnectionLimits(
			cfg.MaxConnections,
			cfg.MaxConnectionsPerIP,
			cfg.ConnectionsPerSec,
			cfg.ConnectionBurst,
		),
		clock:       clock,
		redisClient: redisClient,
		startTime:   clock.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(":" + s.config.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
