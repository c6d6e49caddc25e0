package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nutriplan/api/internal/security"
	"nutriplan/api/internal/service"
)

func (h HandlerSet) GetRecipeRatings(c *gin.Context) {
	recipeID := c.Param("id")
	aggregate := h.ratings.GetRecipeRatings(c.Request.Context(), recipeID)
	c.JSON(http.StatusOK, aggregate)
}

func (h HandlerSet) GetUserRating(c *gin.Context) {
	rating := h.ratings.UserRating(c.Request.Context(), c.Param("id"), c.Param("userId"))
	if rating == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "rating not found"})
		return
	}
	c.JSON(http.StatusOK, rating)
}

type addRatingRequest struct {
	Rating  float64 `json:"rating" binding:"required"`
	Comment string  `json:"comment"`
}

func (h HandlerSet) AddRating(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req addRatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	result, err := h.ratings.AddRating(c.Request.Context(), c.Param("id"), req.Rating, user.ID, req.Comment)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	message := "Rating submitted successfully!"
	if result.IsUpdate {
		message = "Rating updated successfully!"
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"isUpdate":      result.IsUpdate,
		"message":       message,
		"averageRating": result.AverageRating,
		"totalRatings":  result.TotalRatings,
	})
}

func (h HandlerSet) RemoveRating(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	targetUserID := c.Param("userId")
	role := effectiveRole(c)
	privileged := role == security.RoleAdministrator || role == security.RoleNutritionist

	if targetUserID != user.ID && !privileged {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	if !h.ratings.RemoveRating(c.Request.Context(), c.Param("id"), targetUserID, privileged && targetUserID != user.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "rating not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

type addReplyRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h HandlerSet) AddReply(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	role := effectiveRole(c)
	if role != security.RoleNutritionist && role != security.RoleAdministrator {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	var req addReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	replies, err := h.ratings.AddReply(c.Request.Context(), c.Param("id"), c.Param("userId"), user.ID, role, req.Content)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, service.ErrRatingNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "replies": replies})
}

func (h HandlerSet) TopRated(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	c.JSON(http.StatusOK, gin.H{
		"recipeIds": h.ratings.TopRated(c.Request.Context(), limit),
	})
}
