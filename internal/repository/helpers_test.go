package repository

import (
	"path/filepath"
	"testing"
	"time"

	"MatchSync/internal/model"

	"github.com/sirupsen/logrus"
	sqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

const trackedTeam = "team-home"

// newTestDB migrated SQLite database with foreign keys enforced
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "matchsync.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.New(sqlite.Config{
		DriverName: "sqlite",
		DSN:        dsn,
	}), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
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

func newTestGateway(t *testing.T, batchSize int) (*Gateway, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewGateway(db, trackedTeam, batchSize, logger), db
}

func intPtr(v int) *int { return &v }

func matchPayload(id, home, away, status string) model.MatchPayload {
	return model.MatchPayload{
		ID:              id,
		ScheduledAt:     time.Date(2026, 10, 20, 18, 0, 0, 0, time.UTC),
		Status:          status,
		HomeTeam:        model.TeamPayload{ID: home, Name: "Name " + home, Venue: "Venue " + home},
		AwayTeam:        model.TeamPayload{ID: away, Name: "Name " + away},
		CompetitionType: "league",
	}
}

func detailPayload(id string) *model.MatchDetailPayload {
	m := matchPayload(id, trackedTeam, "team-away", "FINAL")
	m.HomeScore = intPtr(2)
	m.AwayScore = intPtr(1)
	return &model.MatchDetailPayload{
		Match:   m,
		Version: "v1",
		HomeStats: []model.PlayerStatPayload{
			{PlayerID: "p1", PlayerName: "Striker", Shots: 10, Goals: 3, Tackles: 4, Fouls: 1},
			{PlayerID: "p2", PlayerName: "Keeper"},
		},
		AwayStats: []model.PlayerStatPayload{
			{PlayerID: "p3", PlayerName: "Rival", Shots: 2, Goals: 1, Injured: true},
		},
		Events: []model.EventPayload{
			{Turn: 0, Type: "MATCH_START", InitialEnergy: map[string]float64{"p1": 100, "p2": 100, "p3": 100}},
			{Turn: 3, Type: "GOAL", Description: "p1 scores", PlayerIDs: []string{"p1"}, HomeScore: 1, Context: map[string]any{"assist": "p2"}},
			{Turn: 5, Type: "TURN_UPDATE", TurnEnergy: map[string]float64{"p1": 25, "p3": 8}},
			{Turn: 7, Type: "TURN_UPDATE", TurnEnergy: map[string]float64{"p1": 9}},
		},
	}
}

func countRows(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var n int64
	if err := db.Table(table).Count(&n).Error; err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
