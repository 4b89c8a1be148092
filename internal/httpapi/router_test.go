package httpapi_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/skillhub/internal/httpapi"
	"github.com/dmitrymomot/skillhub/pkg/changerequest"
	"github.com/dmitrymomot/skillhub/pkg/httpserver"
	"github.com/dmitrymomot/skillhub/pkg/notifications"
	"github.com/dmitrymomot/skillhub/pkg/pubsub"
	"github.com/dmitrymomot/skillhub/pkg/ratelimit"
	"github.com/dmitrymomot/skillhub/pkg/sse"
)

type env struct {
	router  http.Handler
	store   *changerequest.MemoryStore
	inbox   *notifications.MemoryStorage
	backend *pubsub.MemoryBackend
}

type envOption func(*httpapi.RouterOptions)

func newEnv(t *testing.T, limit int, opts ...envOption) *env {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	backend := pubsub.NewMemoryBackend()
	t.Cleanup(func() { _ = backend.Close() })
	bridge := pubsub.NewBridge(backend, pubsub.WithLogger(log))

	inbox := notifications.NewMemoryStorage()
	dispatcher := notifications.NewDispatcher(inbox, notifications.NewPubSubDeliverer(bridge),
		notifications.WithLogger(log))

	store := changerequest.NewMemoryStore()
	store.PutSkill(changerequest.Skill{ID: "s1", OwnerIDs: []string{"owner"}, Version: 1})
	svc := changerequest.NewService(store, dispatcher,
		changerequest.WithLogger(log),
		changerequest.WithSkillEvents(pubsub.NewTopicPublisher(bridge)),
	)

	limitStore := ratelimit.NewMemoryStore()
	t.Cleanup(func() { _ = limitStore.Close() })
	limiter, err := ratelimit.NewFixedWindow(limitStore, ratelimit.Config{Limit: limit, Window: time.Minute})
	require.NoError(t, err)

	ro := httpapi.RouterOptions{
		ChangeRequests: svc,
		Notifications:  dispatcher,
		Streams:        sse.NewManager(bridge, sse.Config{Heartbeat: time.Hour}, sse.WithLogger(log)),
		Limiter:        limiter,
		Logger:         log,
	}
	for _, opt := range opts {
		opt(&ro)
	}

	return &env{
		router:  httpapi.Router(ro),
		store:   store,
		inbox:   inbox,
		backend: backend,
	}
}

func (e *env) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if user != "" {
		req.Header.Set(httpapi.HeaderUserID, user)
	}
	if user == "root" {
		req.Header.Set(httpapi.HeaderUserRole, "admin")
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var body struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpapi.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	require.NotNil(t, body.Error)
	return body.Error.Code
}

func (e *env) create(t *testing.T, user string) changerequest.ChangeRequest {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/skills/s1/change-requests", user, `{"title":"Fix typo","description":"readme"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[changerequest.ChangeRequest](t, rec)
}

func TestChangeRequestFlow(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)

	cr := e.create(t, "alice")
	assert.Equal(t, changerequest.StatusOpen, cr.Status)
	assert.Equal(t, "alice", cr.RequesterID)

	rec := e.do(t, http.MethodGet, "/api/change-requests/"+cr.ID, "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, cr.ID, decodeData[changerequest.ChangeRequest](t, rec).ID)

	rec = e.do(t, http.MethodPost, "/api/change-requests/"+cr.ID+"/approve", "stranger", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	rec = e.do(t, http.MethodPost, "/api/change-requests/"+cr.ID+"/approve", "owner", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeData[changerequest.Result](t, rec)
	assert.Equal(t, changerequest.StatusApproved, res.ChangeRequest.Status)
	assert.Equal(t, 2, res.SkillVersion)

	rec = e.do(t, http.MethodPost, "/api/change-requests/"+cr.ID+"/reject", "owner", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state", errorCode(t, rec))

	skill, ok := e.store.Skill("s1")
	require.True(t, ok)
	assert.Equal(t, 2, skill.Version)

	rec = e.do(t, http.MethodGet, "/api/skills/s1/change-requests?status=APPROVED", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]changerequest.ChangeRequest](t, rec), 1)

	rec = e.do(t, http.MethodGet, "/api/skills/s1/change-requests?status=BOGUS", "alice", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChangeRequestErrors(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   string
		status int
		code   string
	}{
		{"anonymous", http.MethodGet, "/api/change-requests/x", "", "", http.StatusUnauthorized, "unauthorized"},
		{"unknown request", http.MethodGet, "/api/change-requests/missing", "alice", "", http.StatusNotFound, "not_found"},
		{"unknown skill", http.MethodPost, "/api/skills/nope/change-requests", "alice", `{"title":"x"}`, http.StatusNotFound, "not_found"},
		{"empty title", http.MethodPost, "/api/skills/s1/change-requests", "alice", `{"title":"  "}`, http.StatusBadRequest, "invalid_input"},
		{"malformed body", http.MethodPost, "/api/skills/s1/change-requests", "alice", `{`, http.StatusBadRequest, "bad_request"},
		{"unknown field", http.MethodPost, "/api/skills/s1/change-requests", "alice", `{"title":"x","extra":1}`, http.StatusBadRequest, "bad_request"},
		{"unknown route", http.MethodGet, "/api/nothing-here", "alice", "", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := e.do(t, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, errorCode(t, rec))
		})
	}
}

func TestWithdrawAndAdmin(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)

	cr := e.create(t, "alice")
	rec := e.do(t, http.MethodPost, "/api/change-requests/"+cr.ID+"/withdraw", "owner", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/change-requests/"+cr.ID+"/withdraw", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, changerequest.StatusWithdrawn, decodeData[changerequest.Result](t, rec).ChangeRequest.Status)

	other := e.create(t, "alice")
	rec = e.do(t, http.MethodPost, "/api/change-requests/"+other.ID+"/reject", "root", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, changerequest.StatusRejected, decodeData[changerequest.Result](t, rec).ChangeRequest.Status)
}

func TestNotificationInbox(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)

	first := e.create(t, "alice")
	second := e.create(t, "alice")
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/change-requests/"+first.ID+"/approve", "owner", "").Code)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/change-requests/"+second.ID+"/reject", "owner", "").Code)

	rec := e.do(t, http.MethodGet, "/api/notifications/unread-count", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decodeData[map[string]int](t, rec)["count"])

	rec = e.do(t, http.MethodGet, "/api/notifications?types=CHANGE_REQUEST_APPROVED", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeData[[]notifications.Notification](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, notifications.ChangeRequestApproved, list[0].Type)

	rec = e.do(t, http.MethodPost, "/api/notifications/read", "alice", `{"ids":["`+list[0].ID+`"]}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/notifications?unread=true", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	unread := decodeData[[]notifications.Notification](t, rec)
	require.Len(t, unread, 1)
	assert.Equal(t, notifications.ChangeRequestRejected, unread[0].Type)

	rec = e.do(t, http.MethodPost, "/api/notifications/read", "alice", `{"all":true}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/notifications/unread-count", "alice", "")
	assert.Equal(t, 0, decodeData[map[string]int](t, rec)["count"])

	rec = e.do(t, http.MethodGet, "/api/notifications", "owner", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[[]notifications.Notification](t, rec), 2, "owner was told about both new requests")

	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/notifications/read", "alice", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/notifications?limit=-1", "alice", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/notifications?types=NOPE", "alice", "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/notifications?since=yesterday", "alice", "").Code)
}

func TestPreferencesSuppressDelivery(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)

	rec := e.do(t, http.MethodPut, "/api/notifications/preferences", "owner", `{"NOT_A_TYPE":false}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unknown_event_type", errorCode(t, rec))

	rec = e.do(t, http.MethodPut, "/api/notifications/preferences", "owner", `{"CHANGE_REQUEST_CREATED":false}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	e.create(t, "alice")

	n, err := e.inbox.CountUnread(context.Background(), "owner")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRateLimit(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 2)

	e.create(t, "alice")
	e.create(t, "alice")

	rec := e.do(t, http.MethodPost, "/api/skills/s1/change-requests", "alice", `{"title":"third"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "too_many_requests", errorCode(t, rec))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Reads are not limited and other users have their own window.
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/skills/s1/change-requests", "alice", "").Code)
	e.create(t, "bob")
}

func TestCustomIdentity(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100, func(o *httpapi.RouterOptions) {
		o.Identity = func(r *http.Request) (httpapi.Identity, bool) {
			tok := r.Header.Get("Authorization")
			if tok != "Bearer owner-token" {
				return httpapi.Identity{}, false
			}
			return httpapi.Identity{UserID: "owner"}, true
		}
	})

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set(httpapi.HeaderUserID, "owner")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	req.Header.Set("Authorization", "Bearer owner-token")
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()

	e := newEnv(t, 100)
	rec := e.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	failing := newEnv(t, 100, func(o *httpapi.RouterOptions) {
		o.HealthChecks = []httpserver.HealthCheck{{
			Name:  "postgres",
			Check: func(context.Context) error { return errors.New("down") },
		}}
	})
	rec = failing.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "postgres")
}

func TestHeaderIdentity(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := httpapi.HeaderIdentity(req)
	assert.False(t, ok)

	req.Header.Set(httpapi.HeaderUserID, " u1 ")
	req.Header.Set(httpapi.HeaderUserRole, "Admin")
	id, ok := httpapi.HeaderIdentity(req)
	require.True(t, ok)
	assert.Equal(t, httpapi.Identity{UserID: "u1", IsAdmin: true}, id)
	assert.Equal(t, changerequest.Actor{UserID: "u1", IsAdmin: true}, id.Actor())
}

// readFrame returns the next non-empty line of an event stream.
func readFrame(t *testing.T, lines <-chan string) string {
	t.Helper()
	for {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream ended")
			if line != "" {
				return line
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for stream frame")
		}
	}
}

func openStream(t *testing.T, srv *httptest.Server, path, user string) <-chan string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set(httpapi.HeaderUserID, user)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

func TestNotificationStream(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	cr := e.create(t, "alice")

	lines := openStream(t, srv, "/api/stream/notifications", "alice")
	assert.Equal(t, ": ping", readFrame(t, lines))
	require.Eventually(t, func() bool {
		return e.backend.ListenerCount(pubsub.SanitizeChannel(pubsub.NotificationsChannel("alice"))) == 1
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/change-requests/"+cr.ID+"/approve", "owner", "").Code)

	frame := readFrame(t, lines)
	require.True(t, strings.HasPrefix(frame, "data: "), frame)

	var n notifications.Notification
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &n))
	assert.Equal(t, "alice", n.UserID)
	assert.Equal(t, notifications.ChangeRequestApproved, n.Type)
}

func TestSkillStream(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)
	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)

	cr := e.create(t, "alice")

	lines := openStream(t, srv, "/api/stream/skills/s1", "bob")
	assert.Equal(t, ": ping", readFrame(t, lines))
	require.Eventually(t, func() bool {
		return e.backend.ListenerCount(pubsub.SanitizeChannel(pubsub.SkillFollowersChannel("s1"))) == 1
	}, time.Second, 10*time.Millisecond)

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/change-requests/"+cr.ID+"/approve", "owner", "").Code)

	frame := readFrame(t, lines)
	var ev pubsub.SkillEvent
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev))
	assert.Equal(t, "s1", ev.SkillID)
	assert.Equal(t, string(notifications.NewRelease), ev.Type)
}

func TestStreamRequiresIdentity(t *testing.T) {
	t.Parallel()
	e := newEnv(t, 100)

	rec := e.do(t, http.MethodGet, "/api/stream/stats", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
