package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"archmap/internal/repository"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger *zap.Logger
	users  repository.UserRepository
}

func NewUserHandler(logger *zap.Logger, users repository.UserRepository) *UserHandler {
	return &UserHandler{
		logger: logger,
		users:  users,
	}
}

// ListUsers maneja GET /users.
func (h *UserHandler) ListUsers(c *gin.Context) {
	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	users, err := h.users.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not list users"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetUser maneja GET /users/:id.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		h.logger.Error("get user failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not get user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		return fallback
	}
	return val
}
