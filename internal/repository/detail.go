package repository

import (
	"context"
	"errors"
	"fmt"
	"math"

	"MatchSync/internal/energy"
	"MatchSync/internal/interfaces"
	"MatchSync/internal/metrics"
	"MatchSync/internal/model"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var statColumns = []string{
	"team_id",
	"player_name",
	"shots",
	"goals",
	"passes",
	"tackles",
	"blocks",
	"fouls",
	"injured",
	"goal_conversion_rate",
	"foul_rate",
	"updated_at",
}

// PersistMatchDetail writes a fetched replay in four steps. Only the match row is
// fatal; failed stat/event/energy batches are logged and counted, earlier batches stay.
// replay_fetched is set last and only when every batch landed, so a partial replay
// stays pending and is downloaded again.
func (g *Gateway) PersistMatchDetail(ctx context.Context, detail *model.MatchDetailPayload, versionTag string) (*interfaces.DetailPersistResult, error) {
	if detail == nil || detail.Match.ID == "" {
		return nil, errors.New("match detail without match id")
	}
	matchID := detail.Match.ID
	result := &interfaces.DetailPersistResult{}
	log := g.logger.WithField("match_id", matchID)

	// (a) match row: completed, final scores, replay version
	if err := g.upsertMatchReferences(ctx, &detail.Match); err != nil {
		return nil, err
	}
	row := g.matchRow(&detail.Match)
	row.Status = model.MatchCompleted
	if versionTag != "" {
		row.ReplayVersion = &versionTag
	}
	updates := clause.AssignmentColumns(append([]string{
		"status",
		"home_score",
		"away_score",
		"replay_version",
	}, summaryColumns...))
	if err := g.upsertMatch(ctx, row, updates); err != nil {
		return nil, fmt.Errorf("mark match %s completed: %w", matchID, err)
	}
	metrics.RowsWritten.WithLabelValues("matches").Inc()

	// (b) per-player stats of both sides
	stats := statRows(matchID, detail)
	n, failed := insertBatches(ctx, g, log, "player_match_stats", stats, clause.OnConflict{
		Columns:   []clause.Column{{Name: "match_id"}, {Name: "player_id"}},
		DoUpdates: clause.AssignmentColumns(statColumns),
	})
	result.StatsUpserted = int(n)
	result.FailedBatches += failed

	// (c) event log, duplicates ignored
	events := g.eventRows(matchID, detail.Events, log)
	n, failed = insertBatches(ctx, g, log, "match_events", events, clause.OnConflict{DoNothing: true})
	result.EventsInserted = int(n)
	result.FailedBatches += failed

	// (d) energy series, out-of-range readings never reach the store
	readings := energy.Extract(detail.Events)
	valid := readings[:0:0]
	for _, r := range readings {
		if math.IsNaN(r.Energy) || r.Energy < 0 || r.Energy > 100 {
			result.EnergyRejected++
			log.WithFields(logrus.Fields{
				"player_id": r.PlayerID,
				"turn":      r.Turn,
				"energy":    r.Energy,
			}).Warn("energy reading out of [0,100], skipped")
			continue
		}
		valid = append(valid, r)
	}
	snapshots := energy.Snapshots(matchID, valid)
	n, failed = insertBatches(ctx, g, log, "energy_snapshots", snapshots, clause.OnConflict{DoNothing: true})
	result.EnergyInserted = int(n)
	result.FailedBatches += failed

	complete := result.FailedBatches == 0
	if err := g.db.WithContext(ctx).Model(&model.Match{}).
		Where("id = ?", matchID).
		Update("replay_fetched", complete).Error; err != nil {
		log.WithError(err).Error("replay marker update failed")
		result.FailedBatches++
	}

	log.WithFields(logrus.Fields{
		"version":         versionTag,
		"stats":           result.StatsUpserted,
		"events":          result.EventsInserted,
		"energy":          result.EnergyInserted,
		"energy_rejected": result.EnergyRejected,
		"failed_batches":  result.FailedBatches,
	}).Info("match detail persisted")
	return result, nil
}

// statRows one row per player; a player listed twice keeps the last entry
func statRows(matchID string, detail *model.MatchDetailPayload) []model.PlayerMatchStat {
	index := make(map[string]int)
	var rows []model.PlayerMatchStat
	add := func(teamID string, stats []model.PlayerStatPayload) {
		for _, s := range stats {
			if s.PlayerID == "" {
				continue
			}
			row := model.PlayerMatchStat{
				MatchID:            matchID,
				PlayerID:           s.PlayerID,
				TeamID:             teamID,
				PlayerName:         s.PlayerName,
				Shots:              s.Shots,
				Goals:              s.Goals,
				Passes:             s.Passes,
				Tackles:            s.Tackles,
				Blocks:             s.Blocks,
				Fouls:              s.Fouls,
				Injured:            s.Injured,
				GoalConversionRate: model.GoalConversionRate(s.Goals, s.Shots),
				FoulRate:           model.FoulRate(s.Fouls, s.Tackles),
			}
			if i, ok := index[s.PlayerID]; ok {
				rows[i] = row
				continue
			}
			index[s.PlayerID] = len(rows)
			rows = append(rows, row)
		}
	}
	add(detail.Match.HomeTeam.ID, detail.HomeStats)
	add(detail.Match.AwayTeam.ID, detail.AwayStats)
	return rows
}

func (g *Gateway) eventRows(matchID string, events []model.EventPayload, log *logrus.Entry) []model.MatchEvent {
	rows := make([]model.MatchEvent, 0, len(events))
	for _, ev := range events {
		row := model.MatchEvent{
			MatchID:     matchID,
			Turn:        ev.Turn,
			EventType:   ev.Type,
			Description: ev.Description,
			HomeScore:   ev.HomeScore,
			AwayScore:   ev.AwayScore,
		}
		if len(ev.PlayerIDs) > 0 {
			raw, err := json.Marshal(ev.PlayerIDs)
			if err == nil {
				row.PlayerIDs = datatypes.JSON(raw)
			}
		}
		if len(ev.Context) > 0 {
			raw, err := json.Marshal(ev.Context)
			if err != nil {
				log.WithError(err).WithFields(logrus.Fields{"turn": ev.Turn, "type": ev.Type}).Warn("event context not encodable, stored without it")
			} else {
				row.Context = datatypes.JSON(raw)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// insertBatches inserts rows in independent batches of the gateway batch size.
// It returns the affected row count and the number of failed batches.
func insertBatches[T any](ctx context.Context, g *Gateway, log *logrus.Entry, table string, rows []T, onConflict clause.OnConflict) (int64, int) {
	var affected int64
	failed := 0
	for start := 0; start < len(rows); start += g.batchSize {
		end := start + g.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[start:end]
		res := g.db.WithContext(ctx).Session(&gorm.Session{SkipDefaultTransaction: true}).
			Omit(clause.Associations).
			Clauses(onConflict).
			Create(&batch)
		if res.Error != nil {
			failed++
			metrics.BatchFailures.WithLabelValues(table).Inc()
			log.WithError(res.Error).WithFields(logrus.Fields{
				"table":       table,
				"batch_start": start,
				"batch_size":  len(batch),
			}).Error("batch write failed")
			continue
		}
		affected += res.RowsAffected
		metrics.RowsWritten.WithLabelValues(table).Add(float64(res.RowsAffected))
	}
	return affected, failed
}
