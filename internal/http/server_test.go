package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"levelup-backend-go/internal/config"
	"levelup-backend-go/internal/db"
	"levelup-backend-go/internal/leaderboard"
	"levelup-backend-go/internal/migrations"
	"levelup-backend-go/internal/services"
	"levelup-backend-go/internal/store"
	"levelup-backend-go/internal/telemetry"
)

type testServer struct {
	server  *Server
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = migrations.Apply(conn)
	require.NoError(t, err)

	st := store.New(conn)
	log, _ := logtest.NewNullLogger()
	metrics := telemetry.NewMetrics()
	hub := services.NewProgressHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	board := leaderboard.NewSQLBoard(st)
	clock := services.SystemClock{}
	leveling := services.NewLeveling(st, clock, log,
		services.WithNotifier(hub), services.WithScoreboard(board), services.WithMetrics(metrics))
	tokens := services.TokenService{
		Secret:     []byte("test-secret"),
		Issuer:     "levelup-test",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
	}

	s := NewServer(config.Config{}, log)
	s.Accounts = services.NewAccounts(st, tokens, clock, log)
	s.Leveling = leveling
	s.Quests = services.NewQuests(st, leveling, clock, log, metrics)
	s.Study = services.NewStudy(st, leveling, clock, log, metrics)
	s.Tasks = services.NewTasks(st, leveling, clock, log, metrics, services.TaskRewards{CreateXP: 10, DailyCap: 100})
	s.Board = board
	s.Hub = hub
	s.Metrics = metrics
	s.DB = conn
	return &testServer{server: s, handler: s.Router()}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) register(t *testing.T, username string) TokenResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": username, "password": "secret123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[TokenResponse](t, rec)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t)
	pair := ts.register(t, "ana")
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "ana", pair.Username)

	rec := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "ana", "password": "secret123"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeBody[ErrorResponse](t, rec).Kind)

	rec = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"username": "bo", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorResponse{Message: "password must be at least 6", Kind: "invalid_input"}, decodeBody[ErrorResponse](t, rec))

	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "ana", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"username": "ana", "password": "secret123"})
	require.Equal(t, http.StatusOK, rec.Code)
	login := decodeBody[TokenResponse](t, rec)

	rec = ts.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": login.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody[TokenResponse](t, rec).AccessToken)

	rec = ts.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": login.AccessToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/quests", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/quests", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeBody[ErrorResponse](t, rec).Kind)
}

func TestQuestFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "ana").AccessToken

	rec := ts.do(t, http.MethodGet, "/api/quests", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	seeded := decodeBody[ItemsResponse[QuestDTO]](t, rec).Items
	require.Len(t, seeded, 2)
	for _, quest := range seeded {
		assert.False(t, quest.Completed)
		assert.Nil(t, quest.RemainingSeconds)
	}

	rec = ts.do(t, http.MethodPost, "/api/quests", token, map[string]interface{}{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "title is required", decodeBody[ErrorResponse](t, rec).Message)

	rec = ts.do(t, http.MethodPost, "/api/quests", token, map[string]interface{}{"title": "Greedy", "rewardXp": 1000000000000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrorResponse{Message: "rewardXp must not exceed 10000", Kind: "invalid_input"}, decodeBody[ErrorResponse](t, rec))

	rec = ts.do(t, http.MethodPost, "/api/quests", token, map[string]interface{}{"title": "Timed", "rewardXp": 30})
	require.Equal(t, http.StatusCreated, rec.Code)
	timed := decodeBody[IDResponse](t, rec).ID

	rec = ts.do(t, http.MethodPost, "/api/quests/"+itoa(timed)+"/start", token, map[string]interface{}{"durationMinutes": 0.1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, "/api/quests/"+itoa(timed)+"/remaining", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	remaining := decodeBody[struct {
		RemainingSeconds *int `json:"remainingSeconds"`
	}](t, rec).RemainingSeconds
	require.NotNil(t, remaining)
	assert.LessOrEqual(t, *remaining, 6)

	rec = ts.do(t, http.MethodPost, "/api/quests/"+itoa(timed)+"/complete", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "timer_not_elapsed", decodeBody[ErrorResponse](t, rec).Kind)

	rec = ts.do(t, http.MethodPost, "/api/quests", token, map[string]interface{}{"title": "Untimed", "rewardXp": 30})
	require.Equal(t, http.StatusCreated, rec.Code)
	untimed := decodeBody[IDResponse](t, rec).ID

	rec = ts.do(t, http.MethodPost, "/api/quests/"+itoa(untimed)+"/complete", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	done := decodeBody[QuestCompletionDTO](t, rec)
	assert.Equal(t, 30, done.RewardXP)
	require.NotNil(t, done.Award)
	assert.Equal(t, 30, done.Award.XP)

	rec = ts.do(t, http.MethodPost, "/api/quests/"+itoa(untimed)+"/complete", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_terminal", decodeBody[ErrorResponse](t, rec).Kind)

	rec = ts.do(t, http.MethodGet, "/api/me/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decodeBody[PlayerDTO](t, rec)
	assert.Equal(t, 30, stats.XP)
	assert.Equal(t, 0, stats.Level)

	rec = ts.do(t, http.MethodPost, "/api/quests/abc/complete", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	other := ts.register(t, "bo").AccessToken
	rec = ts.do(t, http.MethodPost, "/api/quests/"+itoa(timed)+"/complete", other, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/quests/9999/complete", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStudyFlow(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "ana").AccessToken

	rec := ts.do(t, http.MethodGet, "/api/study/sessions/active", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session":null}`, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/study/sessions", token, map[string]string{"subject": "Math"})
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeBody[IDResponse](t, rec).ID

	rec = ts.do(t, http.MethodPost, "/api/study/sessions", token, map[string]string{"subject": "History"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, decodeBody[IDResponse](t, rec).ID)

	rec = ts.do(t, http.MethodGet, "/api/study/sessions/active", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	active := decodeBody[struct {
		Session ActiveSessionDTO `json:"session"`
	}](t, rec).Session
	assert.Equal(t, first, active.ID)
	assert.Equal(t, "Math", active.Subject)

	rec = ts.do(t, http.MethodPost, "/api/study/sessions/"+itoa(first)+"/end", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Math", decodeBody[SessionEndDTO](t, rec).Subject)

	rec = ts.do(t, http.MethodPost, "/api/study/sessions/"+itoa(first)+"/end", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ErrorResponse{Message: "session already ended", Kind: "already_terminal"}, decodeBody[ErrorResponse](t, rec))

	rec = ts.do(t, http.MethodPost, "/api/study/logs", token, map[string]interface{}{"subject": "Physics", "hours": 2})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	logged := decodeBody[SessionEndDTO](t, rec)
	assert.Equal(t, 2.0, logged.Hours)
	assert.Equal(t, 10, logged.XPAwarded)

	rec = ts.do(t, http.MethodPost, "/api/study/logs", token, map[string]interface{}{"subject": "Physics"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "hours is required", decodeBody[ErrorResponse](t, rec).Message)

	rec = ts.do(t, http.MethodGet, "/api/study/sessions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sessions := decodeBody[ItemsResponse[SessionDTO]](t, rec).Items
	require.Len(t, sessions, 2)
	for _, session := range sessions {
		assert.False(t, session.Active)
	}
}

func TestTaskFlowAndLeaderboard(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "ana").AccessToken
	ts.register(t, "bo")

	rec := ts.do(t, http.MethodPost, "/api/tasks", token, map[string]string{"title": "Write notes"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decodeBody[TaskResultDTO](t, rec)
	require.NotNil(t, added.Award)
	assert.Equal(t, 10, added.Award.Granted)

	rec = ts.do(t, http.MethodPost, "/api/tasks/"+itoa(added.Task.ID)+"/complete", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	completed := decodeBody[TaskResultDTO](t, rec)
	assert.True(t, completed.Task.IsDone)
	require.NotNil(t, completed.Award)
	assert.Equal(t, 20, completed.Award.XP)

	rec = ts.do(t, http.MethodPost, "/api/tasks/"+itoa(added.Task.ID)+"/complete", token, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/tasks", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tasks := decodeBody[ItemsResponse[TaskDTO]](t, rec).Items
	require.Len(t, tasks, 1)
	assert.True(t, tasks[0].IsDone)

	rec = ts.do(t, http.MethodGet, "/api/leaderboard?limit=1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[ItemsResponse[leaderboard.Entry]](t, rec).Items
	require.Len(t, entries, 1)
	assert.Equal(t, leaderboard.Entry{Rank: 1, Username: "ana", XP: 20, Level: 0}, entries[0])
}

func TestResetStats(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "ana").AccessToken
	rec := ts.do(t, http.MethodPost, "/api/tasks", token, map[string]string{"title": "Warm up"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/me/stats/reset", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stats := decodeBody[PlayerDTO](t, rec)
	assert.Equal(t, 0, stats.XP)
	assert.Equal(t, 1, stats.Strength)
	assert.Equal(t, 100, stats.NextLevelXP)
}

func TestMetricsUseRoutePatterns(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "ana").AccessToken
	ts.do(t, http.MethodPost, "/api/quests/42/complete", token, nil)

	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `route="/api/quests/{questId}/complete"`)
	assert.NotContains(t, body, "/api/quests/42/complete")
}

func TestProgressSocketStreamsOwnEvents(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "ana").AccessToken

	srv := httptest.NewServer(ts.handler)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/progress?token=" + token

	_, resp, err := websocket.DefaultDialer.Dial(strings.Replace(wsURL, token, "bad", 1), nil)
	require.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return ts.server.Hub.Connections("ana") == 1 }, 2*time.Second, 10*time.Millisecond)

	rec := ts.do(t, http.MethodPost, "/api/tasks", token, map[string]string{"title": "Ping"})
	require.Equal(t, http.StatusCreated, rec.Code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event services.ProgressEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, services.EventXPAwarded, event.Type)
	assert.Equal(t, "ana", event.Username)
	assert.Equal(t, 10, event.XP)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
