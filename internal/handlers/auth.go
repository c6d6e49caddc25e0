package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"nutriplan/api/internal/middleware"
	"nutriplan/api/internal/models"
	"nutriplan/api/internal/security"
	"nutriplan/api/internal/service"
)

type registerRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
	Role      string `json:"role"`
}

type userResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FirstName   string     `json:"firstName"`
	LastName    string     `json:"lastName"`
	Role        string     `json:"role"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func toUserResponse(user models.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Role:        string(user.Role),
		CreatedAt:   user.CreatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}

func (h HandlerSet) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.sessions.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      security.Role(req.Role),
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrEmailTaken) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "user": toUserResponse(user)})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Remember bool   `json:"remember"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.sessions.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// unknown email and bad password stay distinguishable on purpose; the
		// upstream product surfaces specific messages
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
		return
	}

	h.sessions.SaveCurrentUser(c.Request.Context(), user, req.Remember)

	c.JSON(http.StatusOK, gin.H{"success": true, "user": toUserResponse(user)})
}

func (h HandlerSet) Logout(c *gin.Context) {
	h.sessions.Logout(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	role, _ := c.Get(middleware.EffectiveRoleKey)
	c.JSON(http.StatusOK, gin.H{
		"user":          toUserResponse(user),
		"effectiveRole": role,
	})
}

type strengthRequest struct {
	Password string `json:"password" binding:"required"`
}

// PasswordStrength scores a candidate password without storing anything.
// Registration does not enforce a minimum score; the breakdown is advisory.
func (h HandlerSet) PasswordStrength(c *gin.Context) {
	var req strengthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, security.CheckPasswordStrength(req.Password))
}

// SuggestPassword returns a generated password together with its strength
// breakdown.
func (h HandlerSet) SuggestPassword(c *gin.Context) {
	length := 12
	if raw := c.Query("length"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 8 || parsed > 64 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "length must be between 8 and 64"})
			return
		}
		length = parsed
	}

	password, err := h.hasher.GenerateSecurePassword(length)
	if err != nil {
		h.log.Error().Err(err).Msg("password generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not generate password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"password": password,
		"strength": security.CheckPasswordStrength(password),
	})
}

func currentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get(middleware.CurrentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	return user, ok
}

func effectiveRole(c *gin.Context) security.Role {
	roleVal, exists := c.Get(middleware.EffectiveRoleKey)
	if !exists {
		return security.RoleUser
	}
	if role, ok := roleVal.(security.Role); ok {
		return role
	}
	return security.RoleUser
}
