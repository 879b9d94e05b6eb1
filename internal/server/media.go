package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"github.com/MarcoPoloResearchLab/tierlist/internal/uploads"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const uploadFormField = "file"

func (h *httpHandler) handleUpload(c *gin.Context) {
	header, err := c.FormFile(uploadFormField)
	if err != nil {
		h.metrics.recordUpload(uploadStatusRejected)
		respondInvalid(c, errorCodeMissingFile)
		return
	}
	file, err := header.Open()
	if err != nil {
		h.metrics.recordUpload(uploadStatusFailed)
		h.logger.Error("failed to open multipart file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": errorCodeUploadFailed})
		return
	}
	defer file.Close()

	upload, err := h.images.Save(c.Request.Context(), header.Filename, file)
	if err != nil {
		if errors.Is(err, store.ErrInvalidInput) {
			h.metrics.recordUpload(uploadStatusRejected)
		} else {
			h.metrics.recordUpload(uploadStatusFailed)
		}
		h.respondServiceError(c, errorCodeUploadFailed, err)
		return
	}
	h.metrics.recordUpload(uploadStatusStored)
	c.JSON(http.StatusOK, gin.H{"ok": true, "url": upload.URL, "name": upload.Name})
}

// handleImage streams a stored image, or a labelled SVG card when it is missing.
func (h *httpHandler) handleImage(c *gin.Context) {
	name := c.Param("name")
	reader, contentType, err := h.images.Open(name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, uploads.PlaceholderContentType, uploads.PlaceholderSVG(name))
		return
	case err != nil:
		h.respondServiceError(c, "image_failed", err)
		return
	}
	defer reader.Close()
	c.DataFromReader(http.StatusOK, -1, contentType, reader, nil)
}
