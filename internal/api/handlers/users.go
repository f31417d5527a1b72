package handlers

import (
	"log/slog"
	"net/http"

	"focuslock/internal/core"
	"focuslock/internal/idgen"
	"focuslock/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// UsersHandler handles admin user management requests
type UsersHandler struct {
	storage storage.Storage
	logger  *slog.Logger
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(storage storage.Storage, logger *slog.Logger) *UsersHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsersHandler{
		storage: storage,
		logger:  logger,
	}
}

type createUserRequest struct {
	Name   string `json:"name" binding:"required"`
	ChatID int64  `json:"chat_id"`
}

// CreateUser registers a new user and returns its API token.
// The token is shown exactly once; only the bcrypt hash is stored.
// POST /admin/users
func (h *UsersHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
			"code":  "INVALID_REQUEST",
		})
		return
	}

	token := uuid.New().String()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("Failed to hash token",
			"component", "api",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create user",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	user := &core.User{
		ID:        idgen.NewUser(),
		Name:      req.Name,
		TokenHash: string(hash),
		ChatID:    req.ChatID,
	}

	if err := h.storage.CreateUser(c.Request.Context(), user); err != nil {
		respondError(c, err)
		return
	}

	h.logger.Info("User created",
		"component", "api",
		"user_id", user.ID,
	)

	c.JSON(http.StatusCreated, gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"token": token,
	})
}

// ListUsers returns all registered user IDs
// GET /admin/users
func (h *UsersHandler) ListUsers(c *gin.Context) {
	ids, err := h.storage.ListUserIDs(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_ids": ids})
}
