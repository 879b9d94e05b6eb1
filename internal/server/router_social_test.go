package server

import (
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/MarcoPoloResearchLab/tierlist/internal/chat"
	"github.com/MarcoPoloResearchLab/tierlist/internal/store"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type votesResponse struct {
	OK    bool                            `json:"ok"`
	Votes map[string]map[store.Tier]int64 `json:"votes"`
}

type messagesResponse struct {
	OK       bool           `json:"ok"`
	Messages []chat.Message `json:"messages"`
}

type messageResponse struct {
	OK      bool         `json:"ok"`
	Message chat.Message `json:"message"`
}

func TestVotesFlow(t *testing.T) {
	env := newTestEnvironment(t)
	ash := env.ensureUser(t, "Ash")
	misty := env.ensureUser(t, "Misty")
	brock := env.ensureUser(t, "Brock")
	pikachu := env.createItem(t, map[string]any{"name": "Pikachu", "tier": "S", "userId": ash.ID})

	for _, voter := range []int64{misty.ID, brock.ID} {
		recorder := env.do(t, http.MethodPost, "/votes", map[string]any{"userId": voter, "itemId": pikachu.ID, "targetTier": "A"})
		expectStatus(t, recorder, http.StatusOK)
	}
	recorder := env.do(t, http.MethodPost, "/votes", map[string]any{"userId": brock.ID, "itemId": pikachu.ID, "targetTier": "B"})
	expectStatus(t, recorder, http.StatusOK)

	recorder = env.do(t, http.MethodGet, "/votes?userId="+strconv.FormatInt(ash.ID, 10), nil)
	expectStatus(t, recorder, http.StatusOK)
	counts := decodeBody[votesResponse](t, recorder).Votes[strconv.FormatInt(pikachu.ID, 10)]
	if counts[store.TierA] != 1 || counts[store.TierB] != 1 {
		t.Fatalf("unexpected vote counts: %#v", counts)
	}
	if got := testutil.ToFloat64(env.metrics.votesCast); got != 3 {
		t.Fatalf("expected 3 recorded votes, got %v", got)
	}

	expectError(t, env.do(t, http.MethodGet, "/votes", nil), http.StatusBadRequest, errorCodeInvalidUserID)
	expectError(t, env.do(t, http.MethodPost, "/votes", map[string]any{"userId": misty.ID, "itemId": pikachu.ID, "targetTier": "F"}), http.StatusBadRequest, errorCodeInvalidTier)
	expectError(t, env.do(t, http.MethodPost, "/votes", map[string]any{"userId": misty.ID, "targetTier": "A"}), http.StatusBadRequest, errorCodeInvalidItemID)
	expectError(t, env.do(t, http.MethodPost, "/votes", map[string]any{"userId": misty.ID, "itemId": 9999, "targetTier": "A"}), http.StatusNotFound, "votes.cast.item_not_found")
	expectError(t, env.do(t, http.MethodPost, "/votes", map[string]any{"userId": 9999, "itemId": pikachu.ID, "targetTier": "A"}), http.StatusNotFound, "votes.cast.voter_not_found")
}

func TestChatCursorFlow(t *testing.T) {
	env := newTestEnvironment(t)
	ash := env.ensureUser(t, "Ash")
	misty := env.ensureUser(t, "Misty")

	recorder := env.do(t, http.MethodPost, "/chat", map[string]any{"userId": ash.ID, "text": "first"})
	expectStatus(t, recorder, http.StatusOK)
	first := decodeBody[messageResponse](t, recorder).Message
	if first.UserName != "Ash" || first.Text != "first" {
		t.Fatalf("unexpected message: %+v", first)
	}

	recorder = env.do(t, http.MethodPost, "/chat", map[string]any{"userId": misty.ID, "text": "second"})
	expectStatus(t, recorder, http.StatusOK)
	second := decodeBody[messageResponse](t, recorder).Message
	if second.ID != first.ID+1 {
		t.Fatalf("expected consecutive ids, got %d then %d", first.ID, second.ID)
	}

	recorder = env.do(t, http.MethodGet, "/chat?userId=1&sinceId="+strconv.FormatInt(first.ID, 10), nil)
	expectStatus(t, recorder, http.StatusOK)
	messages := decodeBody[messagesResponse](t, recorder).Messages
	if len(messages) != 1 || messages[0].ID != second.ID || messages[0].UserName != "Misty" {
		t.Fatalf("unexpected messages after cursor: %+v", messages)
	}

	recorder = env.do(t, http.MethodGet, "/chat?sinceId="+strconv.FormatInt(second.ID, 10), nil)
	expectStatus(t, recorder, http.StatusOK)
	if !strings.Contains(recorder.Body.String(), `"messages":[]`) {
		t.Fatalf("expected empty messages array, got %s", recorder.Body.String())
	}

	recorder = env.do(t, http.MethodGet, "/chat?limit=1", nil)
	expectStatus(t, recorder, http.StatusOK)
	latest := decodeBody[messagesResponse](t, recorder).Messages
	if len(latest) != 1 || latest[0].ID != second.ID {
		t.Fatalf("expected latest message only, got %+v", latest)
	}

	if got := testutil.ToFloat64(env.metrics.chatMessages); got != 2 {
		t.Fatalf("expected 2 recorded chat messages, got %v", got)
	}

	expectError(t, env.do(t, http.MethodPost, "/chat", map[string]any{"userId": ash.ID, "text": "   "}), http.StatusBadRequest, "chat.append.invalid_text")
	expectError(t, env.do(t, http.MethodPost, "/chat", map[string]any{"text": "hi"}), http.StatusBadRequest, errorCodeInvalidUserID)
	expectError(t, env.do(t, http.MethodPost, "/chat", map[string]any{"userId": 9999, "text": "hi"}), http.StatusNotFound, "chat.append.user_not_found")
	expectError(t, env.do(t, http.MethodGet, "/chat?sinceId=abc", nil), http.StatusBadRequest, errorCodeInvalidSinceID)
	expectError(t, env.do(t, http.MethodGet, "/chat?limit=-1", nil), http.StatusBadRequest, errorCodeInvalidLimit)
}

func TestUsersRoutes(t *testing.T) {
	env := newTestEnvironment(t)
	first := env.ensureUser(t, "Ash")
	again := env.ensureUser(t, " Ash ")
	if first.ID != again.ID {
		t.Fatalf("expected ensure to be idempotent, got %d and %d", first.ID, again.ID)
	}
	env.ensureUser(t, "Misty")

	recorder := env.do(t, http.MethodGet, "/users", nil)
	expectStatus(t, recorder, http.StatusOK)
	listed := decodeBody[struct {
		OK    bool         `json:"ok"`
		Users []store.User `json:"users"`
	}](t, recorder)
	if len(listed.Users) != 2 || listed.Users[0].Name != "Ash" {
		t.Fatalf("unexpected users: %+v", listed.Users)
	}

	expectError(t, env.do(t, http.MethodPost, "/users", map[string]any{"name": ""}), http.StatusBadRequest, "users.ensure.invalid_name")

	recorder = env.do(t, http.MethodGet, "/users/"+strconv.FormatInt(first.ID, 10), nil)
	expectStatus(t, recorder, http.StatusOK)
	fetched := decodeBody[struct {
		User store.User `json:"user"`
	}](t, recorder)
	if fetched.User.ID != first.ID || fetched.User.Name != "Ash" {
		t.Fatalf("unexpected user lookup: %+v", fetched.User)
	}
	expectError(t, env.do(t, http.MethodGet, "/users/9999", nil), http.StatusNotFound, "users.get.user_not_found")
	expectError(t, env.do(t, http.MethodGet, "/users/abc", nil), http.StatusBadRequest, errorCodeInvalidUserID)
	expectError(t, env.do(t, http.MethodGet, "/users/0", nil), http.StatusBadRequest, errorCodeInvalidUserID)
}

func TestMetricsEndpointExposesRouteCounters(t *testing.T) {
	env := newTestEnvironment(t)
	env.do(t, http.MethodGet, "/users", nil)
	env.do(t, http.MethodGet, "/nowhere", nil)

	recorder := env.do(t, http.MethodGet, "/metrics", nil)
	expectStatus(t, recorder, http.StatusOK)
	body := recorder.Body.String()
	for _, fragment := range []string{
		`tierlist_http_requests_total{method="GET",route="/users",status="200"} 1`,
		`tierlist_http_requests_total{method="GET",route="unmatched",status="404"} 1`,
		"tierlist_http_request_duration_seconds",
	} {
		if !strings.Contains(body, fragment) {
			t.Fatalf("expected metrics output to contain %q:\n%s", fragment, body)
		}
	}
}
