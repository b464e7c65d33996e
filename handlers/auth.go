package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minglehq/mingle/internal/sessions"
	"github.com/minglehq/mingle/internal/tokens"
	"github.com/minglehq/mingle/internal/users"
	"github.com/minglehq/mingle/pkg/logger"
	"github.com/minglehq/mingle/pkg/middleware"
)

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required"`
	FullName string `json:"fullName" binding:"required"`
	Password string `json:"password" binding:"required"`
	Bio      string `json:"bio"`
}

// loginRequest accepts the identifier under any of the field names the web
// clients have used over time.
type loginRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password" binding:"required"`
}

func (r loginRequest) identifier() string {
	switch {
	case r.Login != "":
		return r.Login
	case r.Username != "":
		return r.Username
	default:
		return r.Email
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AuthHandler serves registration, login and the refresh-token lifecycle.
type AuthHandler struct {
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
}

func NewAuthHandler(u *users.Service, s *sessions.Service) *AuthHandler {
	return &AuthHandler{usersSvc: u, sessionsSvc: s}
}

// Register mounts the auth routes. Logout runs behind the auth middleware;
// everything else is public. The root-level /refresh-token alias matches the
// path the original web client calls.
func (h *AuthHandler) Register(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	a := rg.Group("/auth")
	a.POST("/register", h.RegisterUser)
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", auth, h.Logout)
	rg.POST("/refresh-token", h.Refresh)
}

func (h *AuthHandler) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.usersSvc.Register(c.Request.Context(), users.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
		Password: req.Password,
		Bio:      req.Bio,
	})
	switch {
	case errors.Is(err, users.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration data"})
		return
	case errors.Is(err, users.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": "username or email already taken"})
		return
	case err != nil:
		logger.Errorf("register: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}

	access, refresh, err := h.sessionsSvc.Bind(c.Request.Context(), u)
	if err != nil {
		logger.Errorf("register bind session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user":         u,
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	login := req.identifier()
	if login == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "login required"})
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), login, req.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		logger.Errorf("login: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	access, refresh, err := h.sessionsSvc.Bind(c.Request.Context(), u)
	if err != nil {
		logger.Errorf("login bind session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":         u,
		"accessToken":  access,
		"refreshToken": refresh,
	})
}

// Refresh rotates a refresh token: the presented token is exchanged for a
// fresh pair and stops working afterwards. A stale or unknown token yields
// 401, never a silent reuse.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refreshToken required"})
		return
	}
	access, refresh, err := h.sessionsSvc.Rotate(c.Request.Context(), req.RefreshToken)
	switch {
	case errors.Is(err, tokens.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token expired"})
		return
	case errors.Is(err, tokens.ErrTokenInvalid),
		errors.Is(err, sessions.ErrRefreshStale),
		errors.Is(err, sessions.ErrIdentityNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token rejected"})
		return
	case err != nil:
		logger.Errorf("refresh: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "refresh failed"})
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: access, RefreshToken: refresh})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	sub := middleware.CurrentUserID(c)
	if err := h.sessionsSvc.Revoke(c.Request.Context(), sub); err != nil {
		logger.Errorf("logout %s: %v", sub, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
