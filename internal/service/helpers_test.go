package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"MatchSync/internal/adapter/matchapi"
	"MatchSync/internal/config"
	"MatchSync/internal/model"
	"MatchSync/internal/repository"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	sqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const trackedTeam = "tracked"

// fakeUpstream serves the three match endpoints with Last-Modified semantics.
// Every resource shares one version; a request carrying it gets a 304.
type fakeUpstream struct {
	mu           sync.Mutex
	version      string
	upcoming     []model.MatchPayload
	recent       []model.MatchPayload
	details      map[string]*model.MatchDetailPayload
	failStatus   map[string]int // endpoint -> forced status
	remaining    int            // X-RateLimit-Remaining, -1 omits the header
	detailHits   map[string]int
	conditionals map[string][]string // endpoint -> If-Modified-Since values seen
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		version:      "Mon, 19 Oct 2026 08:00:00 GMT",
		details:      make(map[string]*model.MatchDetailPayload),
		failStatus:   make(map[string]int),
		remaining:    -1,
		detailHits:   make(map[string]int),
		conditionals: make(map[string][]string),
	}
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	endpoint := strings.TrimPrefix(r.URL.Path, "/")
	ims := r.Header.Get("If-Modified-Since")
	f.conditionals[endpoint] = append(f.conditionals[endpoint], ims)
	if strings.HasPrefix(endpoint, "matches/") && endpoint != model.EndpointUpcoming && endpoint != model.EndpointRecent {
		f.detailHits[strings.TrimPrefix(endpoint, "matches/")]++
	}

	if f.remaining >= 0 {
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(f.remaining))
	}
	if status, ok := f.failStatus[endpoint]; ok {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"forced failure"}`))
		return
	}
	w.Header().Set("Last-Modified", f.version)
	if ims != "" && ims == f.version {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	var body interface{}
	switch endpoint {
	case model.EndpointUpcoming:
		body = model.ListingResponse{Data: f.upcoming, Meta: model.ListingMeta{Page: 1, TotalPages: 1}}
	case model.EndpointRecent:
		body = model.ListingResponse{Data: f.recent, Meta: model.ListingMeta{Page: 1, TotalPages: 1}}
	default:
		detail, ok := f.details[strings.TrimPrefix(endpoint, "matches/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"match not found"}`))
			return
		}
		body = detail
	}
	raw, _ := json.Marshal(body)
	_, _ = w.Write(raw)
}

func (f *fakeUpstream) set(fn func(f *fakeUpstream)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeUpstream) hits(matchID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailHits[matchID]
}

func (f *fakeUpstream) conditionalHeaders(endpoint string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.conditionals[endpoint]...)
}

type harness struct {
	upstream *fakeUpstream
	gateway  *repository.Gateway
	db       *gorm.DB
	svc      *SyncService
}

func newHarness(t *testing.T, mutate func(cfg *config.Config)) *harness {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	upstream := newFakeUpstream()
	server := httptest.NewServer(upstream)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		Upstream: config.UpstreamConfig{
			BaseURL:         server.URL,
			APIKey:          "test-key",
			Timeout:         5,
			RequestsPerHour: 100,
			MaxRetries:      3,
			PageSize:        50,
			MaxPages:        5,
			LowBudget:       10,
		},
		Sync: config.SyncConfig{
			TrackedTeamID: trackedTeam,
			RescanPending: true,
			BatchSize:     500,
		},
	}
	if mutate != nil {
		mutate(cfg)
	}

	client, err := matchapi.NewClient(&cfg.Upstream, logger,
		matchapi.WithLimiter(rate.NewLimiter(rate.Inf, 1)),
		matchapi.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	db := newTestDB(t)
	gateway := repository.NewGateway(db, cfg.Sync.TrackedTeamID, cfg.Sync.BatchSize, logger)
	return &harness{
		upstream: upstream,
		gateway:  gateway,
		db:       db,
		svc:      NewSyncService(client, gateway, cfg, logger),
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "sync.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}),
		&gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(model.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func (h *harness) count(t *testing.T, table string) int64 {
	t.Helper()
	var n int64
	if err := h.db.Table(table).Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// latestLog newest audit row of an endpoint
func (h *harness) latestLog(t *testing.T, endpoint string) *model.SyncLogEntry {
	t.Helper()
	logs, err := h.gateway.ListSyncLogs(context.Background(), endpoint, 1)
	if err != nil || len(logs) == 0 {
		t.Fatalf("no audit entry for %s: %v", endpoint, err)
	}
	return logs[0]
}

func match(id, home, away, status string) model.MatchPayload {
	return model.MatchPayload{
		ID:          id,
		ScheduledAt: time.Date(2026, 10, 24, 15, 0, 0, 0, time.UTC),
		Status:      status,
		HomeTeam:    model.TeamPayload{ID: home, Name: "Team " + home},
		AwayTeam:    model.TeamPayload{ID: away, Name: "Team " + away},
	}
}

func detailFor(m model.MatchPayload) *model.MatchDetailPayload {
	home, away := 1, 0
	m.HomeScore, m.AwayScore = &home, &away
	return &model.MatchDetailPayload{
		Match:     m,
		Version:   "replay-v1",
		HomeStats: []model.PlayerStatPayload{{PlayerID: "p1", Shots: 4, Goals: 1}},
		AwayStats: []model.PlayerStatPayload{{PlayerID: "p9", Tackles: 3, Fouls: 2}},
		Events: []model.EventPayload{
			{Turn: 0, Type: "MATCH_START", InitialEnergy: map[string]float64{"p1": 100, "p9": 100}},
			{Turn: 4, Type: "GOAL", PlayerIDs: []string{"p1"}, HomeScore: 1},
			{Turn: 6, Type: "TURN_UPDATE", TurnEnergy: map[string]float64{"p1": 28}},
		},
	}
}
