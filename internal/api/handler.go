package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"botfarm-core/internal/bots"
	"botfarm-core/internal/events"
	"botfarm-core/internal/gate"
	"botfarm-core/pkg/store"
)

// History is the slice of the store the API reads for order/trade views.
type History interface {
	GetOrders(ctx context.Context, limit int) ([]store.Order, error)
	GetActiveOrders(ctx context.Context) ([]store.Order, error)
	DeleteActiveOrder(ctx context.Context, id string) (botID string, err error)
	GetTrades(ctx context.Context, limit int) ([]store.Trade, error)
}

// FeedStatus exposes the multiplexer's connection state.
type FeedStatus interface {
	Connected() bool
}

// SystemMeta describes runtime status exposed to clients.
type SystemMeta struct {
	PaperTrading bool
	Symbols      []string
	Version      string
}

// Server wires the management HTTP surface around the bot repository.
type Server struct {
	Router  *gin.Engine
	Repo    *bots.Repository
	History History
	Gate    *gate.Gate
	Bus     *events.Bus
	Feed    FeedStatus
	Events  *events.Log
	Meta    SystemMeta
}

func NewServer(repo *bots.Repository, history History, g *gate.Gate, bus *events.Bus, fd FeedStatus, meta SystemMeta) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:  r,
		Repo:    repo,
		History: history,
		Gate:    g,
		Bus:     bus,
		Feed:    fd,
		Meta:    meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)

		api.GET("/bots", s.listBots)
		api.POST("/bots", s.createBot)
		api.GET("/bots/:id", s.getBot)
		api.PUT("/bots/:id", s.updateBot)
		api.DELETE("/bots/:id", s.deleteBot)
		api.POST("/bots/:id/toggle", s.toggleBot)

		api.POST("/panic", s.panicStop)
		api.POST("/trading/enable", s.enableTrading)
		api.POST("/trading/disable", s.disableTrading)

		api.GET("/events", s.getEvents)

		api.GET("/orders", s.getOrders)
		api.GET("/orders/active", s.getActiveOrders)
		api.DELETE("/orders/active/:id", s.deleteActiveOrder)
		api.GET("/trades", s.getTrades)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
