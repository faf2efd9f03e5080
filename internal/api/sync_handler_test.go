package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"MatchSync/internal/config"
	"MatchSync/internal/interfaces"
	"MatchSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

const testSecret = "s3cret"

type fakeRunner struct {
	syncCalls   int
	replayIDs   []string
	statusQuery []string
	statusLimit int
	statusErr   error
}

func (f *fakeRunner) SyncMatches(ctx context.Context) service.SyncMatchesResult {
	f.syncCalls++
	return service.SyncMatchesResult{RunID: "run-1", UpcomingCount: 2, RecentCount: 5, ReplaysQueued: 1}
}

func (f *fakeRunner) SyncMatchReplay(ctx context.Context, matchID string) service.ReplaySyncResult {
	f.replayIDs = append(f.replayIDs, matchID)
	return service.ReplaySyncResult{MatchID: matchID, Success: true, WasUnchanged: true}
}

func (f *fakeRunner) Status(ctx context.Context, endpoint string, limit int) (*service.SyncStatus, error) {
	f.statusQuery = append(f.statusQuery, endpoint)
	f.statusLimit = limit
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &service.SyncStatus{
		Budget:   interfaces.RateBudgetStatus{Remaining: 4, Limit: 100, IsLow: true},
		Degraded: true,
	}, nil
}

func newTestRouter(runner SyncRunner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	cfg := &config.Config{Admin: config.AdminConfig{SharedSecret: testSecret}}
	return NewRouter(cfg, runner, logger)
}

func do(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminRoutes_RequireSecret(t *testing.T) {
	runner := &fakeRunner{}
	r := newTestRouter(runner)

	routes := []struct{ method, path string }{
		{http.MethodPost, "/cron/sync"},
		{http.MethodPost, "/admin/sync"},
		{http.MethodPost, "/admin/sync/replay/m1"},
		{http.MethodGet, "/admin/sync/status"},
	}
	for _, rt := range routes {
		if w := do(r, rt.method, rt.path, nil); w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s without secret: expected 401, got %d", rt.method, rt.path, w.Code)
		}
		if w := do(r, rt.method, rt.path, map[string]string{"Authorization": "Bearer wrong"}); w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s with wrong secret: expected 401, got %d", rt.method, rt.path, w.Code)
		}
	}
	if runner.syncCalls != 0 || len(runner.replayIDs) != 0 || len(runner.statusQuery) != 0 {
		t.Errorf("orchestrator reached without authorization: %+v", runner)
	}
}

func TestCronSync(t *testing.T) {
	runner := &fakeRunner{}
	r := newTestRouter(runner)

	w := do(r, http.MethodPost, "/cron/sync", map[string]string{"Authorization": "Bearer " + testSecret})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res service.SyncMatchesResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.RunID != "run-1" || res.RecentCount != 5 || runner.syncCalls != 1 {
		t.Errorf("unexpected result %+v (calls=%d)", res, runner.syncCalls)
	}
}

func TestAdminSync_HeaderSecret(t *testing.T) {
	runner := &fakeRunner{}
	r := newTestRouter(runner)

	w := do(r, http.MethodPost, "/admin/sync", map[string]string{"X-Admin-Secret": testSecret})
	if w.Code != http.StatusOK || runner.syncCalls != 1 {
		t.Fatalf("expected authorized sync, got %d calls=%d", w.Code, runner.syncCalls)
	}
}

func TestReplaySync(t *testing.T) {
	runner := &fakeRunner{}
	r := newTestRouter(runner)

	w := do(r, http.MethodPost, "/admin/sync/replay/match-77", map[string]string{"X-Admin-Secret": testSecret})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(runner.replayIDs) != 1 || runner.replayIDs[0] != "match-77" {
		t.Errorf("unexpected replay calls %v", runner.replayIDs)
	}
	if !strings.Contains(w.Body.String(), `"was_unchanged":true`) {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestStatus(t *testing.T) {
	runner := &fakeRunner{}
	r := newTestRouter(runner)

	w := do(r, http.MethodGet, "/admin/sync/status?endpoint=matches/recent&limit=5", map[string]string{"X-Admin-Secret": testSecret})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if runner.statusQuery[0] != "matches/recent" || runner.statusLimit != 5 {
		t.Errorf("query not forwarded: %v %d", runner.statusQuery, runner.statusLimit)
	}
	var status service.SyncStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Degraded || status.Budget.Remaining != 4 {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestStatus_Error(t *testing.T) {
	runner := &fakeRunner{statusErr: errors.New("db down")}
	r := newTestRouter(runner)

	w := do(r, http.MethodGet, "/admin/sync/status", map[string]string{"X-Admin-Secret": testSecret})
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestOpenRoutes(t *testing.T) {
	r := newTestRouter(&fakeRunner{})
	if w := do(r, http.MethodGet, "/healthz", nil); w.Code != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/metrics", nil); w.Code != http.StatusOK {
		t.Errorf("metrics: expected 200, got %d", w.Code)
	}
}

func TestSharedSecretAuth_EmptySecretRejectsAll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", SharedSecretAuth("", logrus.New()), func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := do(r, http.MethodGet, "/x", map[string]string{"X-Admin-Secret": ""}); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with unset secret, got %d", w.Code)
	}
}
