package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/tierlist/internal/chat"
	"github.com/MarcoPoloResearchLab/tierlist/internal/items"
	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"github.com/MarcoPoloResearchLab/tierlist/internal/uploads"
	"github.com/MarcoPoloResearchLab/tierlist/internal/votes"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errMissingItemService = errors.New("item service dependency required")
	errMissingVoteService = errors.New("vote service dependency required")
	errMissingChatFeed    = errors.New("chat feed dependency required")
	errMissingUserService = errors.New("user directory dependency required")
	errMissingImageStore  = errors.New("image store dependency required")
	defaultAllowedOrigins = []string{"*"}
)

// ItemService orders and edits board items.
type ItemService interface {
	Insert(ctx context.Context, input items.NewItem) (store.Item, error)
	MoveToTier(ctx context.Context, itemID store.ItemID, tier store.Tier) error
	Reorder(ctx context.Context, request items.ReorderRequest) error
	Update(ctx context.Context, itemID store.ItemID, patch items.Patch) error
	Delete(ctx context.Context, itemID store.ItemID) error
	ListGrouped(ctx context.Context, owner *store.UserID) (items.Grouped, error)
}

// VoteService records votes and aggregates them per board.
type VoteService interface {
	Cast(ctx context.Context, voter store.UserID, itemID store.ItemID, target store.Tier) error
	AggregateForOwner(ctx context.Context, owner store.UserID) (votes.Aggregate, error)
}

// ChatFeed appends and pages chat messages.
type ChatFeed interface {
	Append(ctx context.Context, userID store.UserID, text string) (chat.Message, error)
	Recent(ctx context.Context, query chat.RecentQuery) ([]chat.Message, error)
}

// ChatBackfiller seeds an empty feed on the first uncursored read.
type ChatBackfiller interface {
	Backfill(ctx context.Context) (int, error)
}

// UserDirectory lists, registers and looks up users.
type UserDirectory interface {
	List(ctx context.Context) ([]store.User, error)
	Ensure(ctx context.Context, name string) (store.User, error)
	Get(ctx context.Context, id store.UserID) (store.User, error)
}

// ImageStore persists uploaded images and opens them for serving.
type ImageStore interface {
	Save(ctx context.Context, originalName string, body io.Reader) (uploads.Upload, error)
	Open(name string) (io.ReadCloser, string, error)
}

// Dependencies wires the services behind the HTTP API.
type Dependencies struct {
	Items          ItemService
	Votes          VoteService
	Chat           ChatFeed
	ChatBackfill   ChatBackfiller
	Users          UserDirectory
	Images         ImageStore
	Metrics        *Metrics
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewHTTPHandler builds the gin engine serving the board, vote, chat and media routes.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Items == nil {
		return nil, errMissingItemService
	}
	if deps.Votes == nil {
		return nil, errMissingVoteService
	}
	if deps.Chat == nil {
		return nil, errMissingChatFeed
	}
	if deps.Users == nil {
		return nil, errMissingUserService
	}
	if deps.Images == nil {
		return nil, errMissingImageStore
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.middleware())
	router.Use(corsMiddleware(deps.AllowedOrigins))

	handler := &httpHandler{
		items:        deps.Items,
		votes:        deps.Votes,
		chat:         deps.Chat,
		chatBackfill: deps.ChatBackfill,
		users:        deps.Users,
		images:       deps.Images,
		metrics:      metrics,
		logger:       logger,
	}

	router.GET("/items", handler.handleListItems)
	router.POST("/items", handler.handleCreateItem)
	router.PUT("/items", handler.handleUpdateItem)
	router.PATCH("/items", handler.handlePatchItems)
	router.DELETE("/items", handler.handleDeleteItem)

	router.GET("/votes", handler.handleListVotes)
	router.POST("/votes", handler.handleCastVote)

	router.GET("/chat", handler.handleListChat)
	router.POST("/chat", handler.handlePostChat)

	router.POST("/upload", handler.handleUpload)
	router.GET("/images/:name", handler.handleImage)

	router.GET("/users", handler.handleListUsers)
	router.POST("/users", handler.handleEnsureUser)
	router.GET("/users/:id", handler.handleGetUser)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return router, nil
}

type httpHandler struct {
	items        ItemService
	votes        VoteService
	chat         ChatFeed
	chatBackfill ChatBackfiller
	users        UserDirectory
	images       ImageStore
	metrics      *Metrics
	logger       *zap.Logger
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	origins := allowedOrigins
	if len(origins) == 0 {
		origins = defaultAllowedOrigins
	}
	config := cors.Config{
		AllowMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}
