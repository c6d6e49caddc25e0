package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const importTokenHeader = "X-Import-Token"

// ImportRecipes is the legacy import surface: POST only, guarded by a shared
// token supplied via header or query parameter.
func (h HandlerSet) ImportRecipes(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method Not Allowed"})
		return
	}

	token := c.GetHeader(importTokenHeader)
	if token == "" {
		token = c.Query("token")
	}

	secret := h.cfg.Security.ImportToken
	if secret == "" || token == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	result, err := h.importer.Run(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("recipe import failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"inserted": result.Inserted,
		"skipped":  result.Skipped,
		"total":    result.Total,
	})
}
