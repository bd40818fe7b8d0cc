package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jghoshh/wellspring/auth"
	"github.com/jghoshh/wellspring/core/storage"
	"github.com/jghoshh/wellspring/lib/clock"
	"github.com/jghoshh/wellspring/lib/logger"
	"github.com/jghoshh/wellspring/metrics"
	"github.com/jghoshh/wellspring/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)

type testServer struct {
	handler http.Handler
	clock   *clock.Fake
	store   *storage.BlobStore
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	log := logger.Discard()
	store := storage.NewBlobStore(storage.NewMemoryKV())
	clk := clock.NewFake(now)

	authSvc := auth.NewService(store, store, auth.PlaintextVerifier{}, log)
	trackerSvc := tracker.NewService(store, nil, clk, metrics.Nop{}, log)
	tokens := auth.NewTokenSigner("test-key", time.Hour, clk)

	srv := New(authSvc, trackerSvc, tokens, metrics.NewCollector().Handler(), log)
	return testServer{handler: srv.Handler(nil), clock: clk, store: store}
}

func (ts testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts testServer) registerAndLogin(t *testing.T) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/register", "", auth.RegisterInput{Name: "Ana", Email: "a@x.com", Age: 30, Password: "p"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/login", "", loginRequest{Email: "a@x.com", Password: "p"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decodeDashboard(t *testing.T, rec *httptest.ResponseRecorder) tracker.Dashboard {
	t.Helper()
	var d tracker.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	return d
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRegisterLoginDashboard(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t)

	rec := ts.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	d := decodeDashboard(t, rec)
	assert.Equal(t, "Ana", d.Name)
	assert.Equal(t, 0, d.WorkoutCount)
	assert.Equal(t, 0, d.Streak)
	assert.True(t, d.LastActivity.Equal(now), "login refresh sets lastActivity")
}

func TestRegisterErrors(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t)

	rec := ts.do(t, http.MethodPost, "/api/register", "", auth.RegisterInput{Name: "Ana", Email: "a@x.com", Age: 30, Password: "p"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/register", "", auth.RegisterInput{Name: "Bo", Email: "bo@x.com", Password: "p"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/register", bytes.NewBufferString("{"))
	raw := httptest.NewRecorder()
	ts.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t)
	ts.registerAndLogin(t)

	rec := ts.do(t, http.MethodPost, "/api/login", "", loginRequest{Email: "a@x.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid email or password")
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/dashboard", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t)

	ts.clock.Advance(2 * time.Hour)
	rec := ts.do(t, http.MethodGet, "/api/dashboard", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestActivityRoutes(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t)

	rec := ts.do(t, http.MethodPost, "/api/workouts", token, tracker.WorkoutInput{Name: "Push-ups", Duration: 3, Reps: 15, Sets: 3})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decodeDashboard(t, rec).WorkoutCount)

	rec = ts.do(t, http.MethodPost, "/api/meditations", token, tracker.MeditationInput{Name: "Body Scan", Duration: 15})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 18, decodeDashboard(t, rec).TotalMinutes)

	rec = ts.do(t, http.MethodPost, "/api/moods", token, tracker.MoodInput{Mood: "Happy", Emoji: "😊"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/journals", token, journalRequest{Text: "a good day"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, decodeDashboard(t, rec).JournalCount)

	rec = ts.do(t, http.MethodGet, "/api/moods", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Happy")

	rec = ts.do(t, http.MethodGet, "/api/journals", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a good day")
}

func TestNextDayWorkoutIncrementsStreak(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t)

	ts.clock.Advance(30 * time.Minute)
	rec := ts.do(t, http.MethodPost, "/api/workouts", token, tracker.WorkoutInput{Name: "Plank", Duration: 2})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 0, decodeDashboard(t, rec).Streak)

	users, err := ts.store.LoadDirectory(context.Background())
	require.NoError(t, err)
	users[0].Streak = 3
	require.NoError(t, ts.store.SaveDirectory(context.Background(), users))

	// a fresh token, since the first one expires after an hour
	ts.clock.Advance(24 * time.Hour)
	rec = ts.do(t, http.MethodPost, "/api/login", "", loginRequest{Email: "a@x.com", Password: "p"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Dashboard.Streak)
}

func TestValidationErrorsMapTo400(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t)

	rec := ts.do(t, http.MethodPost, "/api/journals", token, journalRequest{Text: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/workouts", token, tracker.WorkoutInput{Name: "Plank"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOversizedBodyIsRejected(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t)

	rec := ts.do(t, http.MethodPost, "/api/journals", token, journalRequest{Text: strings.Repeat("a", maxBodyBytes)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "request body too large")

	rec = ts.do(t, http.MethodGet, "/api/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decodeDashboard(t, rec).JournalCount)

	rec = ts.do(t, http.MethodPost, "/api/register", "", auth.RegisterInput{Name: strings.Repeat("n", maxBodyBytes), Email: "big@x.com", Age: 30, Password: "p"})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestTokenForDeletedUserIs404(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t)
	require.NoError(t, ts.store.SaveDirectory(context.Background(), nil))

	rec := ts.do(t, http.MethodGet, "/api/dashboard", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPresetsAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/presets", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Push-ups")

	rec = ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSampleRoute(t *testing.T) {
	ts := newTestServer(t)
	token := ts.registerAndLogin(t)

	rec := ts.do(t, http.MethodPost, "/api/sample", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, decodeDashboard(t, rec).Streak)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(auth.ErrInvalidAge))
	assert.Equal(t, http.StatusUnauthorized, statusFor(auth.ErrInvalidCredentials))
	assert.Equal(t, http.StatusConflict, statusFor(auth.ErrDuplicateEmail))
	assert.Equal(t, http.StatusNotFound, statusFor(tracker.ErrUserNotFound))
	assert.Equal(t, http.StatusRequestEntityTooLarge, statusFor(errTooLarge))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
