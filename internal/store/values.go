package store

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	maxItemNameLength = 190
	maxUserNameLength = 64
	maxChatTextLength = 1000
)

var (
	// ErrInvalidUserID indicates that a user identifier is not a positive integer.
	ErrInvalidUserID = fmt.Errorf("%w: user id", ErrInvalidInput)
	// ErrInvalidItemID indicates that an item identifier is not a positive integer.
	ErrInvalidItemID = fmt.Errorf("%w: item id", ErrInvalidInput)
	// ErrInvalidTier indicates that a tier is outside S, A, B, C, D.
	ErrInvalidTier = fmt.Errorf("%w: tier", ErrInvalidInput)
	// ErrInvalidItemName indicates that an item name is empty or too long.
	ErrInvalidItemName = fmt.Errorf("%w: item name", ErrInvalidInput)
	// ErrInvalidUserName indicates that a user name is empty or too long.
	ErrInvalidUserName = fmt.Errorf("%w: user name", ErrInvalidInput)
	// ErrInvalidChatText indicates that a chat message body is empty or too long.
	ErrInvalidChatText = fmt.Errorf("%w: chat text", ErrInvalidInput)
)

// Tier is one of the five ranking buckets, S highest through D lowest.
type Tier string

const (
	TierS Tier = "S"
	TierA Tier = "A"
	TierB Tier = "B"
	TierC Tier = "C"
	TierD Tier = "D"
)

// Tiers lists every tier from highest to lowest.
var Tiers = []Tier{TierS, TierA, TierB, TierC, TierD}

// ParseTier accepts exactly the literals S, A, B, C and D.
func ParseTier(rawInput string) (Tier, error) {
	tier := Tier(rawInput)
	if !tier.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidTier, rawInput)
	}
	return tier, nil
}

// Valid reports whether the tier is one of the five known buckets.
func (t Tier) Valid() bool {
	switch t {
	case TierS, TierA, TierB, TierC, TierD:
		return true
	default:
		return false
	}
}

// String returns the tier literal.
func (t Tier) String() string {
	return string(t)
}

// UserID represents a validated user identifier.
type UserID int64

// NewUserID validates raw input and returns a UserID.
func NewUserID(value int64) (UserID, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidUserID, value)
	}
	return UserID(value), nil
}

// Int64 exposes the raw identifier.
func (id UserID) Int64() int64 {
	return int64(id)
}

// ItemID represents a validated item identifier.
type ItemID int64

// NewItemID validates raw input and returns an ItemID.
func NewItemID(value int64) (ItemID, error) {
	if value <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidItemID, value)
	}
	return ItemID(value), nil
}

// Int64 exposes the raw identifier.
func (id ItemID) Int64() int64 {
	return int64(id)
}

// ItemName is a trimmed, non-empty item label.
type ItemName string

// NewItemName validates raw input and returns an ItemName.
func NewItemName(rawInput string) (ItemName, error) {
	trimmed, err := boundedText(rawInput, maxItemNameLength)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidItemName, err)
	}
	return ItemName(trimmed), nil
}

// String returns the underlying name.
func (name ItemName) String() string {
	return string(name)
}

// UserName is a trimmed, non-empty display name.
type UserName string

// NewUserName validates raw input and returns a UserName.
func NewUserName(rawInput string) (UserName, error) {
	trimmed, err := boundedText(rawInput, maxUserNameLength)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidUserName, err)
	}
	return UserName(trimmed), nil
}

// String returns the underlying name.
func (name UserName) String() string {
	return string(name)
}

// ChatText is a trimmed, non-empty chat message body.
type ChatText string

// NewChatText validates raw input and returns a ChatText.
func NewChatText(rawInput string) (ChatText, error) {
	trimmed, err := boundedText(rawInput, maxChatTextLength)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidChatText, err)
	}
	return ChatText(trimmed), nil
}

// String returns the underlying text.
func (text ChatText) String() string {
	return string(text)
}

func boundedText(rawInput string, maxLength int) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", errors.New("empty")
	}
	if utf8.RuneCountInString(trimmed) > maxLength {
		return "", fmt.Errorf("exceeds %d characters", maxLength)
	}
	return trimmed, nil
}
