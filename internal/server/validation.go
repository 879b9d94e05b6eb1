package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorCodeInvalidRequest = "invalid_request"
	errorCodeInvalidID      = "invalid_id"
	errorCodeInvalidUserID  = "invalid_user_id"
	errorCodeInvalidItemID  = "invalid_item_id"
	errorCodeInvalidTier    = "invalid_tier"
	errorCodeInvalidName    = "invalid_name"
	errorCodeInvalidText    = "invalid_text"
	errorCodeInvalidOrder   = "invalid_ordered_ids"
	errorCodeInvalidSinceID = "invalid_since_id"
	errorCodeInvalidLimit   = "invalid_limit"
	errorCodeMissingFile    = "missing_file"
	errorCodeUploadFailed   = "upload_failed"
)

var jsonNull = []byte("null")

// jsonID accepts an identifier written as a JSON number or a numeric string.
// Decoding never fails; malformed input is reported by Int64 and null counts
// as absent.
type jsonID struct {
	set   bool
	value int64
	ok    bool
}

func (j *jsonID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) {
		return nil
	}
	j.set = true
	raw := string(trimmed)
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return nil
		}
		raw = strings.TrimSpace(text)
	}
	value, ok := parseInteger(raw)
	j.value, j.ok = value, ok
	return nil
}

// Int64 returns the decoded value and whether it was present and integral.
func (j jsonID) Int64() (int64, bool) {
	return j.value, j.set && j.ok
}

func (j jsonID) userID() (store.UserID, error) {
	value, ok := j.Int64()
	if !ok {
		return 0, store.ErrInvalidUserID
	}
	return store.NewUserID(value)
}

func (j jsonID) itemID() (store.ItemID, error) {
	value, ok := j.Int64()
	if !ok {
		return 0, store.ErrInvalidItemID
	}
	return store.NewItemID(value)
}

// optionalString distinguishes an absent field from an explicit null.
type optionalString struct {
	set   bool
	null  bool
	value string
}

func (o *optionalString) UnmarshalJSON(data []byte) error {
	o.set = true
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, jsonNull) {
		o.null = true
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &o.value)
	}
	// Non-string scalars are coerced to their literal text.
	o.value = string(trimmed)
	return nil
}

func parseInteger(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err == nil {
		return value, true
	}
	if errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	floatValue, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsInf(floatValue, 0) || math.IsNaN(floatValue) || floatValue != math.Trunc(floatValue) {
		return 0, false
	}
	// float64(math.MaxInt64) rounds up to 2^63, which does not fit.
	if floatValue >= math.MaxInt64 || floatValue < math.MinInt64 {
		return 0, false
	}
	return int64(floatValue), true
}

func queryUserID(c *gin.Context, key string) (store.UserID, bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, false, nil
	}
	value, ok := parseInteger(raw)
	if !ok {
		return 0, true, store.ErrInvalidUserID
	}
	userID, err := store.NewUserID(value)
	return userID, true, err
}

func queryInt(c *gin.Context, key string) (int64, bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, false, nil
	}
	value, ok := parseInteger(raw)
	if !ok {
		return 0, true, store.ErrInvalidInput
	}
	return value, true, nil
}

func imagePointer(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func respondInvalid(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": code})
}

// respondServiceError maps store sentinels to status codes. Client errors carry
// the service error code; anything else is logged and answered with fallbackCode.
func (h *httpHandler) respondServiceError(c *gin.Context, fallbackCode string, err error) {
	code := fallbackCode
	var serviceErr *store.ServiceError
	if errors.As(err, &serviceErr) {
		code = serviceErr.Code()
	}
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": code})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": code})
	default:
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("code", code),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallbackCode})
	}
}
