package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"botfarm-core/internal/bots"
	"botfarm-core/pkg/store"
)

func (s *Server) getSystemStatus(c *gin.Context) {
	byStatus := map[bots.Status]int{}
	all := s.Repo.All()
	for _, b := range all {
		byStatus[b.Status]++
	}

	connected := false
	if s.Feed != nil {
		connected = s.Feed.Connected()
	}
	var dropped int64
	if s.Bus != nil {
		dropped = s.Bus.Dropped()
	}
	c.JSON(http.StatusOK, gin.H{
		"events_dropped": dropped,
		"version":         s.Meta.Version,
		"paper_trading":   s.Meta.PaperTrading,
		"symbols":         s.Meta.Symbols,
		"feed_connected":  connected,
		"trading_enabled": s.Gate.Enabled(),
		"bots_total":      len(all),
		"bots_by_status":  byStatus,
	})
}

func (s *Server) listBots(c *gin.Context) {
	if typ := c.Query("type"); typ != "" {
		c.JSON(http.StatusOK, s.Repo.List(bots.Type(typ)))
		return
	}
	c.JSON(http.StatusOK, s.Repo.All())
}

func (s *Server) getBot(c *gin.Context) {
	b, ok := s.Repo.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) createBot(c *gin.Context) {
	var b bots.Bot
	if err := c.ShouldBindJSON(&b); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if err := s.Repo.Add(c.Request.Context(), b); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bots.ErrInvalidConfig) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	created, _ := s.Repo.Get(b.ID)
	c.JSON(http.StatusCreated, created)
}

func (s *Server) updateBot(c *gin.Context) {
	id := c.Param("id")
	existing, ok := s.Repo.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
		return
	}

	var b bots.Bot
	if err := c.ShouldBindJSON(&b); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b.ID = id
	b.Type = existing.Type // type changes would orphan evaluator state
	if err := b.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Repo.Update(c.Request.Context(), b); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	updated, _ := s.Repo.Get(id)
	c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteBot(c *gin.Context) {
	id := c.Param("id")
	err := s.Repo.Delete(c.Request.Context(), id)
	switch {
	case err == nil:
		s.Gate.Forget(id)
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	case errors.Is(err, bots.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
	default:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	}
}

func (s *Server) toggleBot(c *gin.Context) {
	b, err := s.Repo.Toggle(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, b)
	case errors.Is(err, bots.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "bot not found"})
	default:
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	}
}

func (s *Server) panicStop(c *gin.Context) {
	paused := s.Repo.PanicStop(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"paused": paused})
}

func (s *Server) enableTrading(c *gin.Context) {
	s.Gate.SetEnabled(true)
	c.JSON(http.StatusOK, gin.H{"trading_enabled": true})
}

func (s *Server) disableTrading(c *gin.Context) {
	s.Gate.SetEnabled(false)
	c.JSON(http.StatusOK, gin.H{"trading_enabled": false})
}

func (s *Server) getOrders(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	orders, err := s.History.GetOrders(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) getActiveOrders(c *gin.Context) {
	orders, err := s.History.GetActiveOrders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (s *Server) deleteActiveOrder(c *gin.Context) {
	botID, err := s.History.DeleteActiveOrder(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		s.releaseOrderSlot(c.Request.Context(), botID)
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "active order not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// releaseOrderSlot decrements the owning bot's open-order counter so the
// exclusivity check unblocks once the order is cleared.
func (s *Server) releaseOrderSlot(ctx context.Context, botID string) {
	if botID == "" {
		return
	}
	b, ok := s.Repo.Get(botID)
	if !ok || b.ActiveOrdersCount <= 0 {
		return
	}
	b.ActiveOrdersCount--
	if err := s.Repo.Update(ctx, b); err != nil {
		log.Printf("release order slot for bot %s: %v", botID, err)
	}
}

func (s *Server) getTrades(c *gin.Context) {
	limit := queryInt(c, "limit", 100)
	trades, err := s.History.GetTrades(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trades)
}

func (s *Server) getEvents(c *gin.Context) {
	if s.Events == nil {
		c.JSON(http.StatusOK, []any{})
		return
	}
	limit := queryInt(c, "limit", 50)
	c.JSON(http.StatusOK, s.Events.Recent(limit))
}

func queryInt(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
