package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/neuroscan/neuroscan-api/internal/handler"
	"github.com/neuroscan/neuroscan-api/internal/middleware"
	"github.com/neuroscan/neuroscan-api/internal/model"
	"github.com/neuroscan/neuroscan-api/internal/service/auth"
	apperrors "github.com/neuroscan/neuroscan-api/pkg/errors"
)

type Handler struct {
	service auth.Service
}

func NewHandler(service auth.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires the credential endpoints; they require no token.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}
}

// RegisterProtectedRoutes wires the endpoints that need a valid token.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	authGroup := r.Group("/auth")
	{
		authGroup.GET("/me", h.Me)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	user, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(user))
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	tokens, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse("invalid credentials"))
		return
	}

	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse("invalid refresh token"))
		return
	}

	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) Me(c *gin.Context) {
	userID, err := middleware.UserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, handler.NewErrorResponse("invalid user ID"))
		return
	}

	user, err := h.service.Me(c.Request.Context(), userID)
	if err != nil {
		appErr := apperrors.From(err)
		c.JSON(appErr.StatusCode(), handler.NewErrorResponse(appErr.Message))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"username": user.Username,
		"role":     user.Role,
	})
}
