package server

import (
	"net/http"
	"strings"

	"github.com/MarcoPoloResearchLab/tierlist/internal/items"
	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"github.com/gin-gonic/gin"
)

const defaultNewItemTier = store.TierC

type createItemRequest struct {
	Name   string         `json:"name"`
	Tier   string         `json:"tier"`
	Image  optionalString `json:"image"`
	UserID jsonID         `json:"userId"`
}

type updateItemRequest struct {
	ID    jsonID         `json:"id"`
	Name  optionalString `json:"name"`
	Image optionalString `json:"image"`
	Tier  optionalString `json:"tier"`
}

type patchItemsRequest struct {
	ID         jsonID   `json:"id"`
	Tier       string   `json:"tier"`
	OrderedIDs []jsonID `json:"orderedIds"`
	UserID     jsonID   `json:"userId"`
}

type deleteItemRequest struct {
	ID jsonID `json:"id"`
}

func (h *httpHandler) handleListItems(c *gin.Context) {
	owner, present, err := queryUserID(c, "userId")
	if err != nil {
		respondInvalid(c, errorCodeInvalidUserID)
		return
	}
	var ownerFilter *store.UserID
	if present {
		ownerFilter = &owner
	}

	grouped, err := h.items.ListGrouped(c.Request.Context(), ownerFilter)
	if err != nil {
		h.respondServiceError(c, "list_items_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "grouped": grouped})
}

func (h *httpHandler) handleCreateItem(c *gin.Context) {
	var request createItemRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalid(c, errorCodeInvalidRequest)
		return
	}

	name, err := store.NewItemName(request.Name)
	if err != nil {
		respondInvalid(c, errorCodeInvalidName)
		return
	}
	tier := defaultNewItemTier
	if strings.TrimSpace(request.Tier) != "" {
		tier, err = store.ParseTier(request.Tier)
		if err != nil {
			respondInvalid(c, errorCodeInvalidTier)
			return
		}
	}
	owner, err := request.UserID.userID()
	if err != nil {
		respondInvalid(c, errorCodeInvalidUserID)
		return
	}
	var image *string
	if request.Image.set && !request.Image.null {
		image = imagePointer(request.Image.value)
	}

	created, err := h.items.Insert(c.Request.Context(), items.NewItem{
		Name:    name,
		Tier:    tier,
		Image:   image,
		OwnerID: owner,
	})
	if err != nil {
		h.respondServiceError(c, "create_item_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "item": created})
}

func (h *httpHandler) handleUpdateItem(c *gin.Context) {
	var request updateItemRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalid(c, errorCodeInvalidRequest)
		return
	}

	itemID, err := request.ID.itemID()
	if err != nil {
		respondInvalid(c, errorCodeInvalidID)
		return
	}

	var patch items.Patch
	if request.Name.set {
		if request.Name.null {
			respondInvalid(c, errorCodeInvalidName)
			return
		}
		name, err := store.NewItemName(request.Name.value)
		if err != nil {
			respondInvalid(c, errorCodeInvalidName)
			return
		}
		patch.Name = &name
	}
	if request.Tier.set {
		if request.Tier.null {
			respondInvalid(c, errorCodeInvalidTier)
			return
		}
		tier, err := store.ParseTier(request.Tier.value)
		if err != nil {
			respondInvalid(c, errorCodeInvalidTier)
			return
		}
		patch.Tier = &tier
	}
	if request.Image.set {
		patch.Image.Set = true
		if !request.Image.null {
			patch.Image.Value = imagePointer(request.Image.value)
		}
	}

	if err := h.items.Update(c.Request.Context(), itemID, patch); err != nil {
		h.respondServiceError(c, "update_item_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handlePatchItems serves two payload shapes: {tier, orderedIds, userId?}
// rewrites one partition, {id, tier} moves a single item.
func (h *httpHandler) handlePatchItems(c *gin.Context) {
	var request patchItemsRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalid(c, errorCodeInvalidRequest)
		return
	}

	tier, err := store.ParseTier(request.Tier)
	if err != nil {
		respondInvalid(c, errorCodeInvalidTier)
		return
	}

	if request.OrderedIDs != nil {
		if len(request.OrderedIDs) == 0 {
			respondInvalid(c, errorCodeInvalidOrder)
			return
		}
		orderedIDs := make([]store.ItemID, 0, len(request.OrderedIDs))
		for _, rawID := range request.OrderedIDs {
			itemID, err := rawID.itemID()
			if err != nil {
				respondInvalid(c, errorCodeInvalidOrder)
				return
			}
			orderedIDs = append(orderedIDs, itemID)
		}
		var owner store.UserID
		if request.UserID.set {
			owner, err = request.UserID.userID()
			if err != nil {
				respondInvalid(c, errorCodeInvalidUserID)
				return
			}
		}
		reorder := items.ReorderRequest{Tier: tier, OwnerID: owner, OrderedIDs: orderedIDs}
		if err := h.items.Reorder(c.Request.Context(), reorder); err != nil {
			h.respondServiceError(c, "reorder_items_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	itemID, err := request.ID.itemID()
	if err != nil {
		respondInvalid(c, errorCodeInvalidID)
		return
	}
	if err := h.items.MoveToTier(c.Request.Context(), itemID, tier); err != nil {
		h.respondServiceError(c, "move_item_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *httpHandler) handleDeleteItem(c *gin.Context) {
	var rawID jsonID
	if queryValue := strings.TrimSpace(c.Query("id")); queryValue != "" {
		value, ok := parseInteger(queryValue)
		rawID = jsonID{set: true, value: value, ok: ok}
	} else {
		var request deleteItemRequest
		if err := c.ShouldBindJSON(&request); err == nil {
			rawID = request.ID
		}
	}

	itemID, err := rawID.itemID()
	if err != nil {
		respondInvalid(c, errorCodeInvalidID)
		return
	}
	if err := h.items.Delete(c.Request.Context(), itemID); err != nil {
		h.respondServiceError(c, "delete_item_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
