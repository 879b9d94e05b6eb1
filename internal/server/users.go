package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"github.com/gin-gonic/gin"
)

type ensureUserRequest struct {
	Name string `json:"name"`
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.respondServiceError(c, "list_users_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "users": users})
}

func (h *httpHandler) handleEnsureUser(c *gin.Context) {
	var request ensureUserRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalid(c, errorCodeInvalidRequest)
		return
	}
	user, err := h.users.Ensure(c.Request.Context(), request.Name)
	if err != nil {
		h.respondServiceError(c, "ensure_user_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}

func (h *httpHandler) handleGetUser(c *gin.Context) {
	value, ok := parseInteger(c.Param("id"))
	if !ok {
		respondInvalid(c, errorCodeInvalidUserID)
		return
	}
	userID, err := store.NewUserID(value)
	if err != nil {
		respondInvalid(c, errorCodeInvalidUserID)
		return
	}
	user, err := h.users.Get(c.Request.Context(), userID)
	if err != nil {
		h.respondServiceError(c, "get_user_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "user": user})
}
