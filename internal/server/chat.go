package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/tierlist/internal/chat"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type postChatRequest struct {
	UserID jsonID `json:"userId"`
	Text   string `json:"text"`
}

// handleListChat pages the feed. userId is accepted for compatibility and
// does not filter.
func (h *httpHandler) handleListChat(c *gin.Context) {
	sinceID, _, err := queryInt(c, "sinceId")
	if err != nil || sinceID < 0 {
		respondInvalid(c, errorCodeInvalidSinceID)
		return
	}
	limit, _, err := queryInt(c, "limit")
	if err != nil || limit < 0 {
		respondInvalid(c, errorCodeInvalidLimit)
		return
	}

	if sinceID == 0 && h.chatBackfill != nil {
		if _, backfillErr := h.chatBackfill.Backfill(c.Request.Context()); backfillErr != nil {
			h.logger.Warn("chat backfill failed", zap.Error(backfillErr))
		}
	}

	messages, err := h.chat.Recent(c.Request.Context(), chat.RecentQuery{SinceID: sinceID, Limit: clampQueryLimit(limit)})
	if err != nil {
		h.respondServiceError(c, "list_chat_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "messages": messages})
}

func (h *httpHandler) handlePostChat(c *gin.Context) {
	var request postChatRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalid(c, errorCodeInvalidRequest)
		return
	}
	author, err := request.UserID.userID()
	if err != nil {
		respondInvalid(c, errorCodeInvalidUserID)
		return
	}

	message, err := h.chat.Append(c.Request.Context(), author, request.Text)
	if err != nil {
		h.respondServiceError(c, "post_chat_failed", err)
		return
	}
	h.metrics.recordChatMessage()
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": message})
}

func clampQueryLimit(limit int64) int {
	if limit > chat.MaxLimit {
		return chat.MaxLimit
	}
	return int(limit)
}
