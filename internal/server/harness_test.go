package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/MarcoPoloResearchLab/tierlist/internal/chat"
	"github.com/MarcoPoloResearchLab/tierlist/internal/items"
	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"github.com/MarcoPoloResearchLab/tierlist/internal/uploads"
	"github.com/MarcoPoloResearchLab/tierlist/internal/users"
	"github.com/MarcoPoloResearchLab/tierlist/internal/votes"
	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testEnvironment struct {
	handler  http.Handler
	db       *gorm.DB
	metrics  *Metrics
	imageDir string
}

func newTestEnvironment(t *testing.T) *testEnvironment {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "server.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(store.Models()...); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	logger := zap.NewNop()
	itemService, err := items.NewService(items.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		t.Fatalf("items service: %v", err)
	}
	voteService, err := votes.NewService(votes.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		t.Fatalf("votes service: %v", err)
	}
	feed, err := chat.NewFeed(chat.FeedConfig{Database: db, Logger: logger})
	if err != nil {
		t.Fatalf("chat feed: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		t.Fatalf("users service: %v", err)
	}
	imageDir := filepath.Join(t.TempDir(), "images")
	imageStore, err := uploads.NewStore(uploads.Config{Directory: imageDir, MaxBytes: 1 << 20, Logger: logger})
	if err != nil {
		t.Fatalf("image store: %v", err)
	}

	metrics := NewMetrics(nil)
	handler, err := NewHTTPHandler(Dependencies{
		Items:   itemService,
		Votes:   voteService,
		Chat:    feed,
		Users:   userService,
		Images:  imageStore,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}
	return &testEnvironment{handler: handler, db: db, metrics: metrics, imageDir: imageDir}
}

func (e *testEnvironment) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch typed := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(typed))
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			t.Fatalf("encode request body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, target, reader)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var payload T
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", recorder.Body.String(), err)
	}
	return payload
}

func expectStatus(t *testing.T, recorder *httptest.ResponseRecorder, status int) {
	t.Helper()
	if recorder.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, recorder.Code, recorder.Body.String())
	}
}

func expectError(t *testing.T, recorder *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, recorder, status)
	payload := decodeBody[map[string]any](t, recorder)
	if payload["error"] != code {
		t.Fatalf("expected error %q, got %v", code, payload["error"])
	}
}

type userResponse struct {
	OK   bool       `json:"ok"`
	User store.User `json:"user"`
}

type itemResponse struct {
	OK   bool       `json:"ok"`
	Item store.Item `json:"item"`
}

type groupedResponse struct {
	OK      bool                        `json:"ok"`
	Grouped map[store.Tier][]store.Item `json:"grouped"`
}

func (e *testEnvironment) ensureUser(t *testing.T, name string) store.User {
	t.Helper()
	recorder := e.do(t, http.MethodPost, "/users", map[string]any{"name": name})
	expectStatus(t, recorder, http.StatusOK)
	return decodeBody[userResponse](t, recorder).User
}

func (e *testEnvironment) createItem(t *testing.T, body map[string]any) store.Item {
	t.Helper()
	recorder := e.do(t, http.MethodPost, "/items", body)
	expectStatus(t, recorder, http.StatusOK)
	return decodeBody[itemResponse](t, recorder).Item
}

func (e *testEnvironment) board(t *testing.T, owner int64) map[store.Tier][]store.Item {
	t.Helper()
	recorder := e.do(t, http.MethodGet, "/items?userId="+strconv.FormatInt(owner, 10), nil)
	expectStatus(t, recorder, http.StatusOK)
	return decodeBody[groupedResponse](t, recorder).Grouped
}

func itemIDs(tierItems []store.Item) []int64 {
	ids := make([]int64, 0, len(tierItems))
	for _, item := range tierItems {
		ids = append(ids, item.ID)
	}
	return ids
}
