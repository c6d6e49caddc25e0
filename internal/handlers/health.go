package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status      string `json:"status"`
	Storage     string `json:"storage"`
	Environment string `json:"environment"`
}

func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	storageStatus := "ok"
	switch {
	case h.db != nil:
		if err := h.db.Ping(ctx); err != nil {
			storageStatus = "error"
			h.log.Error().Err(err).Msg("postgres ping failed")
		}
	case h.redis != nil:
		if err := h.redis.Ping(ctx).Err(); err != nil {
			storageStatus = "error"
			h.log.Error().Err(err).Msg("redis ping failed")
		}
	default:
		storageStatus = "memory"
	}

	c.JSON(http.StatusOK, healthResponse{
		Status:      "ok",
		Storage:     storageStatus,
		Environment: h.cfg.Environment,
	})
}
