package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/persona-dialogue/internal/middleware"
	"github.com/capitalize-ai/persona-dialogue/internal/model"
	"github.com/capitalize-ai/persona-dialogue/pkg/logger"
)

type staticChecker bool

func (c staticChecker) IsConnected() bool { return bool(c) }

func registry(t *testing.T) *model.Registry {
	t.Helper()
	reg, err := model.NewRegistry(
		model.Persona{Name: "A", Instructions: "terse"},
		model.Persona{Name: "B", Instructions: "verbose"},
	)
	require.NoError(t, err)
	return reg
}

func runFeed(t *testing.T, replies int, end bool) *Feed {
	t.Helper()
	ctx := context.Background()
	feed := NewFeed()
	start := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

	require.NoError(t, feed.SessionStarted(ctx, model.Session{ID: "s1", Topic: "Discuss the weather.", StartedAt: start}))
	require.NoError(t, feed.TurnAppended(ctx, model.Turn{Index: 0, SessionID: "s1", Origin: model.OriginSystem, Text: "Discuss the weather."}))
	for i := 1; i <= replies; i++ {
		speaker := "A"
		if i%2 == 0 {
			speaker = "B"
		}
		require.NoError(t, feed.TurnAppended(ctx, model.Turn{Index: i, SessionID: "s1", Origin: model.OriginPersona, Speaker: speaker, Text: "reply"}))
	}
	if end {
		require.NoError(t, feed.SessionEnded(ctx, model.Result{SessionID: "s1", Status: model.StatusEndedByUser, Replies: replies}))
	}
	return feed
}

func newTestRouter(t *testing.T, feed *Feed, cfg RouterConfig) http.Handler {
	t.Helper()
	return NewRouter(cfg, feed, registry(t), nil, logger.NewNop())
}

func get(t *testing.T, h http.Handler, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler(staticChecker(false))

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(nil).Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConversationNotStarted(t *testing.T) {
	rec := get(t, newTestRouter(t, NewFeed(), RouterConfig{}), "/api/v1/conversation")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationSnapshot(t *testing.T) {
	rec := get(t, newTestRouter(t, runFeed(t, 3, false), RouterConfig{}), "/api/v1/conversation")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConversationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.Session.ID)
	assert.Equal(t, model.StatusRunning, resp.Status)
	assert.Equal(t, 3, resp.Replies)
	assert.Equal(t, 4, resp.Turns)
	assert.Len(t, resp.Personas, 2)
	assert.Nil(t, resp.Result)
}

func TestListTurnsPaging(t *testing.T) {
	router := newTestRouter(t, runFeed(t, 5, false), RouterConfig{})

	rec := get(t, router, "/api/v1/conversation/turns?after=0&limit=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var page ListTurnsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Turns, 2)
	assert.Equal(t, 1, page.Turns[0].Index)
	assert.Equal(t, 2, page.LastIndex)
	assert.True(t, page.HasMore)

	rec = get(t, router, "/api/v1/conversation/turns?after=4")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Turns, 1)
	assert.False(t, page.HasMore)

	rec = get(t, router, "/api/v1/conversation/turns?after=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTurn(t *testing.T) {
	router := newTestRouter(t, runFeed(t, 2, false), RouterConfig{})

	rec := get(t, router, "/api/v1/conversation/turns/2")
	require.Equal(t, http.StatusOK, rec.Code)

	var turn model.Turn
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &turn))
	assert.Equal(t, "B", turn.Speaker)

	assert.Equal(t, http.StatusNotFound, get(t, router, "/api/v1/conversation/turns/9").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, router, "/api/v1/conversation/turns/x").Code)
}

func TestStreamReplaysEndedSession(t *testing.T) {
	rec := get(t, newTestRouter(t, runFeed(t, 2, true), RouterConfig{}), "/api/v1/conversation/stream?after=0")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "event: turn\n"))
	assert.Contains(t, body, "event: replay_complete\n")
	assert.Contains(t, body, "event: session_ended\n")
	assert.Contains(t, body, `"status":"ended_by_user"`)
}

func TestStreamDeliversLiveUpdates(t *testing.T) {
	feed := runFeed(t, 1, false)
	router := newTestRouter(t, feed, RouterConfig{})

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- get(t, router, "/api/v1/conversation/stream")
	}()

	require.Eventually(t, func() bool {
		feed.mu.RLock()
		defer feed.mu.RUnlock()
		return len(feed.subs) == 1
	}, time.Second, 5*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, feed.TurnAppended(ctx, model.Turn{Index: 2, SessionID: "s1", Origin: model.OriginPersona, Speaker: "B", Text: "live"}))
	require.NoError(t, feed.SessionEnded(ctx, model.Result{SessionID: "s1", Status: model.StatusEndedNormally, Replies: 2}))

	select {
	case rec := <-done:
		body := rec.Body.String()
		assert.Equal(t, 3, strings.Count(body, "event: turn\n"))
		assert.Contains(t, body, `"text":"live"`)
		assert.Contains(t, body, "event: session_ended\n")
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not finish after session ended")
	}
}

func TestAPIRequiresTokenWhenSecretSet(t *testing.T) {
	router := newTestRouter(t, runFeed(t, 1, false), RouterConfig{JWTSecret: "s3cret"})

	assert.Equal(t, http.StatusUnauthorized, get(t, router, "/api/v1/conversation").Code)
	assert.Equal(t, http.StatusOK, get(t, router, "/health").Code)

	claims := middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "viewer"},
		Scopes:           []string{middleware.ScopeRead},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	rec := get(t, router, "/api/v1/conversation", "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestFeedSubscribeCancel(t *testing.T) {
	feed := NewFeed()
	_, ch, cancel := feed.Subscribe()
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.NoError(t, feed.TurnAppended(context.Background(), model.Turn{}))
}
