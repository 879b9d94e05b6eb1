package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"github.com/gin-gonic/gin"
)

type castVoteRequest struct {
	UserID     jsonID `json:"userId"`
	ItemID     jsonID `json:"itemId"`
	TargetTier string `json:"targetTier"`
}

func (h *httpHandler) handleListVotes(c *gin.Context) {
	owner, present, err := queryUserID(c, "userId")
	if err != nil || !present {
		respondInvalid(c, errorCodeInvalidUserID)
		return
	}

	aggregate, err := h.votes.AggregateForOwner(c.Request.Context(), owner)
	if err != nil {
		h.respondServiceError(c, "list_votes_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "votes": aggregate})
}

func (h *httpHandler) handleCastVote(c *gin.Context) {
	var request castVoteRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalid(c, errorCodeInvalidRequest)
		return
	}

	voter, err := request.UserID.userID()
	if err != nil {
		respondInvalid(c, errorCodeInvalidUserID)
		return
	}
	itemID, err := request.ItemID.itemID()
	if err != nil {
		respondInvalid(c, errorCodeInvalidItemID)
		return
	}
	target, err := store.ParseTier(request.TargetTier)
	if err != nil {
		respondInvalid(c, errorCodeInvalidTier)
		return
	}

	if err := h.votes.Cast(c.Request.Context(), voter, itemID, target); err != nil {
		h.respondServiceError(c, "cast_vote_failed", err)
		return
	}
	h.metrics.recordVote()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
