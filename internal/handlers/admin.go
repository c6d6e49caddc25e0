package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h HandlerSet) UserStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Stats(c.Request.Context()))
}

func (h HandlerSet) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cache.GetStats(c.Request.Context()))
}

func (h HandlerSet) CacheCleanup(c *gin.Context) {
	h.cache.Cleanup(c.Request.Context())
	c.JSON(http.StatusOK, h.cache.GetStats(c.Request.Context()))
}

func (h HandlerSet) CacheClear(c *gin.Context) {
	h.cache.ClearAll(c.Request.Context())
	c.Status(http.StatusNoContent)
}
