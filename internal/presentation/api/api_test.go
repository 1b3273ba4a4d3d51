package api

import (
	"bytes"
	"context"
	encjson "encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	actionsUseCase "github.com/hilthontt/actionlog/internal/application/actions"
	"github.com/hilthontt/actionlog/internal/domain"
	"github.com/hilthontt/actionlog/internal/infrastructure/configs"
	"github.com/hilthontt/actionlog/internal/infrastructure/events"
	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
	"github.com/hilthontt/actionlog/internal/infrastructure/messaging"
	"github.com/hilthontt/actionlog/internal/infrastructure/metrics"
	"github.com/hilthontt/actionlog/internal/infrastructure/pii"
	"github.com/hilthontt/actionlog/internal/infrastructure/ratelimiter"
	"github.com/hilthontt/actionlog/internal/infrastructure/ws"
	"github.com/hilthontt/actionlog/internal/persistence/repository"
	actionsHandler "github.com/hilthontt/actionlog/internal/presentation/handler/actions"
	healthHandler "github.com/hilthontt/actionlog/internal/presentation/handler/health"
	realtimeHandler "github.com/hilthontt/actionlog/internal/presentation/handler/realtime"
)

type failingRepository struct {
	err error
}

func (r failingRepository) Append(context.Context, *domain.ActionRecord) (*domain.ActionRecord, error) {
	return nil, r.err
}

func (r failingRepository) AppendBatch(context.Context, []*domain.ActionRecord) ([]*domain.ActionRecord, error) {
	return nil, r.err
}

func (r failingRepository) QueryPage(context.Context, int64, *domain.Position, int) ([]domain.ActionRecord, bool, error) {
	return nil, false, r.err
}

func (r failingRepository) Ping(context.Context) error {
	return r.err
}

type testApp struct {
	handler http.Handler
	hub     *ws.Hub
}

type testOptions struct {
	repo        domain.ActionRepository
	limiter     ratelimiter.Limiter
	bulkLimiter *ratelimiter.FixedWindowRateLimiter
}

func newTestApp(t *testing.T, opts testOptions) *testApp {
	t.Helper()

	if opts.repo == nil {
		opts.repo = repository.NewActionMemoryRepository(0)
	}

	cfg := configs.Config{
		HTTP: configs.HTTPConfig{
			RequestTimeout: 5 * time.Second,
			MaxBodyBytes:   1 << 20,
			AllowedOrigins: []string{"*"},
		},
		RateLimiter: configs.RateLimiterConfig{SourceHeaderKey: "X-Forwarded-For"},
	}

	logger := logging.NewNop()
	m := metrics.New()

	hub := ws.NewHub(logger, m, 64)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	fanout := events.NewFanout(messaging.NewNoop(), hub, logger, m, events.DefaultConfig())
	require.NoError(t, fanout.Start())

	t.Cleanup(func() {
		_ = fanout.Stop(time.Second)
		cancel()
	})

	service := actionsUseCase.NewService(opts.repo, pii.Default(), fanout, logger, m)
	app := NewApplication(
		cfg,
		actionsHandler.NewHandler(service, logger, cfg.HTTP.MaxBodyBytes),
		healthHandler.NewHandler(opts.repo, logger),
		realtimeHandler.NewHandler(hub, logger),
		logger,
		m,
		opts.limiter,
		opts.bulkLimiter,
	)

	return &testApp{handler: app.Mount(), hub: hub}
}

func (a *testApp) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, encjson.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type loggedAction struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ActionType string    `json:"action_type"`
	CreatedAt  time.Time `json:"created_at"`
}

type listedAction struct {
	ID         int64          `json:"id"`
	ActionType string         `json:"action_type"`
	CreatedAt  time.Time      `json:"created_at"`
	ActionData map[string]any `json:"action_data"`
}

type envelope struct {
	Items      []listedAction `json:"items"`
	NextCursor *string        `json:"next_cursor"`
}

func TestSubmitAction_StoresScrubbedRecord(t *testing.T) {
	app := newTestApp(t, testOptions{})

	rec := app.do(t, http.MethodPost, "/api/actions",
		`{"user_id":7,"action_type":"LOGIN","context":{"ip":"1.2.3.4","password":"x","amount":12.50}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err := uuid.Parse(rec.Header().Get("X-Request-ID"))
	assert.NoError(t, err)

	logged := decode[loggedAction](t, rec)
	assert.Equal(t, int64(1), logged.ID)
	assert.Equal(t, int64(7), logged.UserID)
	assert.Equal(t, "LOGIN", logged.ActionType)
	assert.False(t, logged.CreatedAt.IsZero())

	rec = app.do(t, http.MethodGet, "/api/actions/recent/7?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	items := decode[[]listedAction](t, rec)
	require.Len(t, items, 1)
	assert.Equal(t, int64(1), items[0].ID)

	ctx, ok := items[0].ActionData["context"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "1.2.3.4", ctx["ip"])
	assert.NotContains(t, ctx, "password")
	assert.Equal(t, 12.5, ctx["amount"])
	assert.Equal(t, "LOGIN", items[0].ActionData["action_type"])
	assert.Contains(t, items[0].ActionData, "server_ts")
}

func TestRequestIDIsUniquePerRequest(t *testing.T) {
	app := newTestApp(t, testOptions{})

	first := app.do(t, http.MethodGet, "/api/health", "").Header().Get("X-Request-ID")
	second := app.do(t, http.MethodGet, "/api/health", "").Header().Get("X-Request-ID")

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestListRecent_CursorPagination(t *testing.T) {
	app := newTestApp(t, testOptions{})

	for i := 0; i < 25; i++ {
		rec := app.do(t, http.MethodPost, "/api/actions", `{"user_id":9,"action_type":"SLOT_SPIN"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := app.do(t, http.MethodGet, "/api/actions/recent/9?mode=cursor", "")
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[envelope](t, rec)
	require.Len(t, first.Items, 20)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, int64(25), first.Items[0].ID)

	rec = app.do(t, http.MethodGet, "/api/actions/recent/9?cursor="+*first.NextCursor, "")
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[envelope](t, rec)
	require.Len(t, second.Items, 5)
	assert.Nil(t, second.NextCursor)
	assert.Contains(t, rec.Body.String(), `"next_cursor":null`)

	seen := map[int64]bool{}
	for _, item := range append(first.Items, second.Items...) {
		assert.False(t, seen[item.ID], "duplicate id %d", item.ID)
		seen[item.ID] = true
	}
	assert.Len(t, seen, 25)
}

func TestListRecent_ShapeSelection(t *testing.T) {
	app := newTestApp(t, testOptions{})
	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/actions", `{"user_id":3,"action_type":"LOGIN"}`).Code)

	tests := []struct {
		name     string
		query    string
		envelope bool
	}{
		{name: "default is a bare list", query: ""},
		{name: "mode cursor", query: "?mode=cursor", envelope: true},
		{name: "empty cursor key", query: "?cursor=", envelope: true},
		{name: "malformed cursor", query: "?cursor=not*base64", envelope: true},
		{name: "other mode", query: "?mode=list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, http.MethodGet, "/api/actions/recent/3"+tt.query, "")
			require.Equal(t, http.StatusOK, rec.Code)

			if tt.envelope {
				env := decode[envelope](t, rec)
				assert.Len(t, env.Items, 1)
				assert.Nil(t, env.NextCursor)
				return
			}
			assert.Len(t, decode[[]listedAction](t, rec), 1)
		})
	}
}

func TestListRecent_UnknownUserIsEmpty(t *testing.T) {
	app := newTestApp(t, testOptions{})

	rec := app.do(t, http.MethodGet, "/api/actions/recent/404", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBadRequests(t *testing.T) {
	app := newTestApp(t, testOptions{})

	tests := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{name: "malformed json", method: http.MethodPost, target: "/api/actions", body: `{"user_id":`},
		{name: "missing user", method: http.MethodPost, target: "/api/actions", body: `{"action_type":"LOGIN"}`},
		{name: "string user", method: http.MethodPost, target: "/api/actions", body: `{"user_id":"7","action_type":"LOGIN"}`},
		{name: "fractional user", method: http.MethodPost, target: "/api/actions", body: `{"user_id":7.5,"action_type":"LOGIN"}`},
		{name: "zero user", method: http.MethodPost, target: "/api/actions", body: `{"user_id":0,"action_type":"LOGIN"}`},
		{name: "blank type", method: http.MethodPost, target: "/api/actions", body: `{"user_id":7,"action_type":"   "}`},
		{name: "long type", method: http.MethodPost, target: "/api/actions", body: `{"user_id":7,"action_type":"` + strings.Repeat("a", 101) + `"}`},
		{name: "context not an object", method: http.MethodPost, target: "/api/actions", body: `{"user_id":7,"action_type":"A","context":[1]}`},
		{name: "two documents", method: http.MethodPost, target: "/api/actions", body: `{"user_id":7,"action_type":"A"}{}`},
		{name: "bulk without items", method: http.MethodPost, target: "/api/actions/bulk", body: `{}`},
		{name: "bulk invalid item", method: http.MethodPost, target: "/api/actions/bulk", body: `{"items":[{"user_id":1,"action_type":"A"},{"user_id":-1,"action_type":"B"}]}`},
		{name: "non integer user path", method: http.MethodGet, target: "/api/actions/recent/abc"},
		{name: "non integer limit", method: http.MethodGet, target: "/api/actions/recent/7?limit=ten"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, tt.method, tt.target, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			body := decode[map[string]string](t, rec)
			assert.Equal(t, "Bad Request", body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}

	// nothing was stored by the rejected requests
	rec := app.do(t, http.MethodGet, "/api/actions/recent/1", "")
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestBulkInvalidItemNamesTheField(t *testing.T) {
	app := newTestApp(t, testOptions{})

	rec := app.do(t, http.MethodPost, "/api/actions/bulk", `{"items":[{"user_id":1,"action_type":"A"},{"action_type":"B"}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "items[1].user_id")
}

func TestSubmitBulk(t *testing.T) {
	app := newTestApp(t, testOptions{})

	rec := app.do(t, http.MethodPost, "/api/actions/bulk",
		`{"items":[{"user_id":5,"action_type":"A"},{"user_id":5,"action_type":"B","context":{"email":"x@y.z"}},{"user_id":6,"action_type":"C"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"logged":3}`, rec.Body.String())

	items := decode[[]listedAction](t, app.do(t, http.MethodGet, "/api/actions/recent/5", ""))
	require.Len(t, items, 2)
	assert.Equal(t, "B", items[0].ActionType)
	assert.Equal(t, items[0].CreatedAt, items[1].CreatedAt)
	assert.Empty(t, items[0].ActionData["context"])

	rec = app.do(t, http.MethodPost, "/api/actions/bulk", `{"items":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"logged":0}`, rec.Body.String())
}

func TestStorageUnavailable(t *testing.T) {
	repo := failingRepository{err: domain.StorageError("append", errors.New("connection refused"))}
	app := newTestApp(t, testOptions{repo: repo})

	for _, tc := range []struct{ method, target, body string }{
		{http.MethodPost, "/api/actions", `{"user_id":7,"action_type":"LOGIN"}`},
		{http.MethodPost, "/api/actions/bulk", `{"items":[{"user_id":7,"action_type":"LOGIN"}]}`},
		{http.MethodGet, "/api/actions/recent/7", ""},
	} {
		rec := app.do(t, tc.method, tc.target, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.target)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	}

	assert.Equal(t, http.StatusServiceUnavailable, app.do(t, http.MethodGet, "/api/ready", "").Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/health", "").Code)
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t, testOptions{})

	for _, target := range []string{"/api/health", "/api/healthz", "/api/live", "/healthz", "/live", "/api/ready"} {
		rec := app.do(t, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, rec.Code, target)
		assert.Equal(t, "ok", decode[map[string]any](t, rec)["status"])
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := ratelimiter.New(ratelimiter.Options{MaxRatePerSecond: 1, MaxBurst: 1, SourceHeaderKey: "X-Forwarded-For"})
	app := newTestApp(t, testOptions{limiter: limiter})

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("X-Forwarded-For", ip)
		rec := httptest.NewRecorder()
		app.handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)

	rec := send("10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "Too Many Requests", decode[map[string]string](t, rec)["error"])

	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code)
}

func TestBulkLimiter(t *testing.T) {
	bulk := ratelimiter.NewFixedWindowRateLimiter(1, time.Minute)
	t.Cleanup(bulk.Close)
	app := newTestApp(t, testOptions{bulkLimiter: bulk})

	body := `{"items":[{"user_id":1,"action_type":"A"}]}`
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/actions/bulk", body).Code)

	rec := app.do(t, http.MethodPost, "/api/actions/bulk", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// single submissions are not subject to the bulk window
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/actions", `{"user_id":1,"action_type":"A"}`).Code)
}

func TestCorsPreflight(t *testing.T) {
	app := newTestApp(t, testOptions{})

	req := httptest.NewRequest(http.MethodOptions, "/api/actions", nil)
	req.Header.Set("Origin", "https://casino.example")
	rec := httptest.NewRecorder()
	app.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://casino.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Request-ID")
}

func TestMetricsEndpoint(t *testing.T) {
	app := newTestApp(t, testOptions{})

	require.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/actions", `{"user_id":1,"action_type":"A"}`).Code)
	require.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/api/actions/recent/1", "").Code)

	rec := app.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `actionlog_actions_ingested_total{mode="single"} 1`)
	assert.Contains(t, body, `route="/api/actions/recent/{userId}"`)
}

func TestRealtimeSubscription(t *testing.T) {
	app := newTestApp(t, testOptions{})
	srv := httptest.NewServer(app.handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/actions/ws?user_id=7"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return app.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/api/actions", "application/json",
		bytes.NewBufferString(`{"user_id":7,"action_type":"GACHA_SPIN","context":{"phone":"010","tier":"gold"}}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type   string         `json:"type"`
		UserID int64          `json:"user_id"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, "user_action", msg.Type)
	assert.Equal(t, int64(7), msg.UserID)
	assert.Equal(t, "GACHA_SPIN", msg.Data["action_type"])
	assert.Equal(t, map[string]any{"tier": "gold"}, msg.Data["context"])
}

func TestRealtimeRejectsBadUserID(t *testing.T) {
	app := newTestApp(t, testOptions{})

	for _, query := range []string{"?user_id=abc", "?user_id=0", "?user_id=-4"} {
		rec := app.do(t, http.MethodGet, "/api/actions/ws"+query, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}
