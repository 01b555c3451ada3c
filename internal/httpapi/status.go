package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"shotdeck/internal/services"
)

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.studio.Store().Ping(ctx); err != nil {
		s.writeError(c, services.Wrap(services.ErrTransient, "api", "health", "database unavailable", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusOK, gin.H{"running": true})
		return
	}
	c.JSON(http.StatusOK, s.status(c.Request.Context()))
}
