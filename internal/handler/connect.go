package handler

import (
	"context"
	"net/http"
	"time"

	"clinic/backend/helper"

	"github.com/gin-gonic/gin"
)

func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

// Health reports whether the database connection is usable.
func (h *Handler) Health(c *gin.Context) {
	if h.svc.Pinger == nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.svc.Pinger.PingContext(ctx); err != nil {
		h.log.Error().Err(err).Msg("database ping failed")
		helper.SendError(c, http.StatusServiceUnavailable, helper.CodeEngineError, "database unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": "ok", "database": "connected"})
}
