package chat

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// DefaultLimit caps Recent when the caller does not supply a limit.
	DefaultLimit = 100
	// MaxLimit is the largest page Recent will return.
	MaxLimit = 100

	opFeedNew = "chat.feed.new"
	opAppend  = "chat.append"
	opRecent  = "chat.recent"
	opCount   = "chat.count"

	reasonMissingDatabase = "missing_database"
	reasonUserNotFound    = "user_not_found"
	reasonInvalidText     = "invalid_text"
	reasonLookupFailed    = "lookup_failed"
	reasonInsertFailed    = "insert_failed"
	reasonQueryFailed     = "query_failed"

	messageColumns = "m.id AS id, m.user_id AS user_id, COALESCE(u.name, '') AS user_name, m.text AS text, m.created_at_ms AS created_at"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// Message is a chat line with its author's display name resolved.
type Message struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	UserName  string `json:"user_name"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}

// FeedConfig describes the dependencies of the chat feed.
type FeedConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Feed is an append-only message log read by cursor.
type Feed struct {
	db     *gorm.DB
	clock  func() time.Time
	logger *zap.Logger
}

// NewFeed validates dependencies and constructs the chat feed.
func NewFeed(cfg FeedConfig) (*Feed, error) {
	if cfg.Database == nil {
		return nil, store.NewServiceError(opFeedNew, reasonMissingDatabase, errMissingDatabase)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Feed{db: cfg.Database, clock: clock, logger: logger}, nil
}

// Append stores a message from an existing user and returns it with the author name.
func (f *Feed) Append(ctx context.Context, userID store.UserID, rawText string) (Message, error) {
	if f.db == nil {
		f.logError(opAppend, reasonMissingDatabase, errMissingDatabase)
		return Message{}, store.NewServiceError(opAppend, reasonMissingDatabase, errMissingDatabase)
	}
	text, err := store.NewChatText(rawText)
	if err != nil {
		return Message{}, store.NewServiceError(opAppend, reasonInvalidText, err)
	}

	var message Message
	txErr := f.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var author store.User
		lookupErr := tx.Where("id = ?", userID.Int64()).Take(&author).Error
		if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			return store.NewServiceError(opAppend, reasonUserNotFound, store.ErrNotFound)
		}
		if lookupErr != nil {
			f.logError(opAppend, reasonLookupFailed, lookupErr, zap.Int64("user_id", userID.Int64()))
			return store.NewServiceError(opAppend, reasonLookupFailed, lookupErr)
		}

		row := store.ChatMessage{
			UserID:          author.ID,
			Text:            text.String(),
			CreatedAtMillis: f.clock().UTC().UnixMilli(),
		}
		if err := tx.Create(&row).Error; err != nil {
			f.logError(opAppend, reasonInsertFailed, err, zap.Int64("user_id", author.ID))
			return store.NewServiceError(opAppend, reasonInsertFailed, err)
		}
		message = Message{
			ID:        row.ID,
			UserID:    row.UserID,
			UserName:  author.Name,
			Text:      row.Text,
			CreatedAt: row.CreatedAtMillis,
		}
		return nil
	})
	if txErr != nil {
		return Message{}, txErr
	}
	return message, nil
}

// RecentQuery selects a page of the feed. A positive SinceID returns the
// messages after that cursor; otherwise the latest page is returned.
type RecentQuery struct {
	SinceID int64
	Limit   int
}

// Recent returns messages in ascending id order.
func (f *Feed) Recent(ctx context.Context, query RecentQuery) ([]Message, error) {
	if f.db == nil {
		f.logError(opRecent, reasonMissingDatabase, errMissingDatabase)
		return nil, store.NewServiceError(opRecent, reasonMissingDatabase, errMissingDatabase)
	}
	limit := clampLimit(query.Limit)

	statement := f.db.WithContext(ctx).
		Table("chat_messages AS m").
		Select(messageColumns).
		Joins("LEFT JOIN users AS u ON u.id = m.user_id").
		Limit(limit)

	var messages []Message
	if query.SinceID > 0 {
		statement = statement.Where("m.id > ?", query.SinceID).Order("m.id ASC")
	} else {
		statement = statement.Order("m.id DESC")
	}
	if err := statement.Scan(&messages).Error; err != nil {
		f.logError(opRecent, reasonQueryFailed, err, zap.Int64("since_id", query.SinceID))
		return nil, store.NewServiceError(opRecent, reasonQueryFailed, err)
	}
	if query.SinceID <= 0 {
		slices.Reverse(messages)
	}
	if messages == nil {
		messages = []Message{}
	}
	return messages, nil
}

// Count reports how many messages the feed holds.
func (f *Feed) Count(ctx context.Context) (int64, error) {
	if f.db == nil {
		f.logError(opCount, reasonMissingDatabase, errMissingDatabase)
		return 0, store.NewServiceError(opCount, reasonMissingDatabase, errMissingDatabase)
	}
	var count int64
	if err := f.db.WithContext(ctx).Model(&store.ChatMessage{}).Count(&count).Error; err != nil {
		f.logError(opCount, reasonQueryFailed, err)
		return 0, store.NewServiceError(opCount, reasonQueryFailed, err)
	}
	return count, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

func (f *Feed) loggerOrDefault() *zap.Logger {
	if f == nil || f.logger == nil {
		return noOpLogger
	}
	return f.logger
}

func (f *Feed) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	f.loggerOrDefault().Error("chat feed error", attrs...)
}
