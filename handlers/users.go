package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/minglehq/mingle/internal/posts"
	"github.com/minglehq/mingle/internal/storage"
	"github.com/minglehq/mingle/internal/users"
	"github.com/minglehq/mingle/pkg/logger"
	"github.com/minglehq/mingle/pkg/middleware"
)

const maxAvatarSize = 5 << 20 // 5 MiB

// UserHandler serves profiles, avatars, the follow graph and the dashboard.
type UserHandler struct {
	usersSvc *users.Service
	postsSvc *posts.Service
	media    *storage.MediaStore
}

func NewUserHandler(u *users.Service, p *posts.Service, media *storage.MediaStore) *UserHandler {
	return &UserHandler{usersSvc: u, postsSvc: p, media: media}
}

func (h *UserHandler) Register(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	u := rg.Group("/users", auth)
	u.GET("/me", h.Me)
	u.GET("/me/dashboard", h.Dashboard)
	u.POST("/me/avatar", h.UploadAvatar)
	u.GET("/:id", h.Profile)
	u.GET("/:id/posts", h.PostsByUser)
	u.POST("/:id/follow", h.Follow)
	u.DELETE("/:id/follow", h.Unfollow)
}

func (h *UserHandler) Me(c *gin.Context) {
	h.profile(c, middleware.CurrentUserID(c))
}

func (h *UserHandler) Profile(c *gin.Context) {
	h.profile(c, c.Param("id"))
}

func (h *UserHandler) profile(c *gin.Context, id string) {
	u, err := h.usersSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		logger.Errorf("get user %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if u == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *UserHandler) Dashboard(c *gin.Context) {
	id := middleware.CurrentUserID(c)
	u, err := h.usersSvc.GetByID(c.Request.Context(), id)
	if err != nil || u == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	d, err := h.postsSvc.Dashboard(c.Request.Context(), u)
	if err != nil {
		logger.Errorf("dashboard %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dashboard failed"})
		return
	}
	c.JSON(http.StatusOK, d)
}

func (h *UserHandler) UploadAvatar(c *gin.Context) {
	if h.media == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "media storage not configured"})
		return
	}
	fh, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar file required"})
		return
	}
	if fh.Size > maxAvatarSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "avatar too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable upload"})
		return
	}
	defer f.Close()

	id := middleware.CurrentUserID(c)
	u, err := h.usersSvc.GetByID(c.Request.Context(), id)
	if err != nil || u == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}

	key, err := h.media.Upload(c.Request.Context(), "avatars", fh.Filename, f, fh.Size, fh.Header.Get("Content-Type"))
	if err != nil {
		logger.Errorf("avatar upload %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	url := h.media.PublicURL(key)
	if err := h.usersSvc.SetAvatar(c.Request.Context(), id, url, key); err != nil {
		logger.Errorf("avatar save %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	// best-effort cleanup of the replaced object
	if u.AvatarKey != "" {
		if err := h.media.Delete(c.Request.Context(), u.AvatarKey); err != nil {
			logger.Warnf("avatar cleanup %s: %v", u.AvatarKey, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"avatarUrl": url})
}

func (h *UserHandler) PostsByUser(c *gin.Context) {
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	list, err := h.postsSvc.ByAuthor(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		logger.Errorf("posts by %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *UserHandler) Follow(c *gin.Context) {
	err := h.usersSvc.Follow(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if errors.Is(err, users.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot follow yourself"})
		return
	}
	if err != nil {
		logger.Errorf("follow %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "follow failed"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) Unfollow(c *gin.Context) {
	if err := h.usersSvc.Unfollow(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		logger.Errorf("unfollow %s: %v", c.Param("id"), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unfollow failed"})
		return
	}
	c.Status(http.StatusNoContent)
}
