package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"MatchSync/internal/interfaces"
	"MatchSync/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultBatchSize = 500

// Gateway owns every write to the store. Writes are upserts or
// conflict-ignoring inserts, never read-modify-write.
type Gateway struct {
	db            *gorm.DB
	trackedTeamID string
	batchSize     int
	logger        *logrus.Logger
}

var _ interfaces.SyncRepository = (*Gateway)(nil)

// NewGateway batchSize <= 0 falls back to 500
func NewGateway(db *gorm.DB, trackedTeamID string, batchSize int, logger *logrus.Logger) *Gateway {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Gateway{db: db, trackedTeamID: trackedTeamID, batchSize: batchSize, logger: logger}
}

// UpsertTeam empty name/venue never overwrite known values
func (g *Gateway) UpsertTeam(ctx context.Context, t model.TeamPayload) error {
	if t.ID == "" {
		return errors.New("team payload without id")
	}
	row := &model.Team{
		ID:        t.ID,
		Name:      t.Name,
		Venue:     t.Venue,
		IsTracked: t.ID == g.trackedTeamID,
	}
	cols := []string{"is_tracked", "updated_at"}
	if t.Name != "" {
		cols = append(cols, "name")
	}
	if t.Venue != "" {
		cols = append(cols, "venue")
	}
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(row).Error
}

func (g *Gateway) UpsertCompetition(ctx context.Context, ref *model.ReferencePayload) error {
	return g.upsertReference(ctx, &model.Competition{ReferenceEntity: referenceRow(ref)})
}

func (g *Gateway) UpsertConference(ctx context.Context, ref *model.ReferencePayload) error {
	return g.upsertReference(ctx, &model.Conference{ReferenceEntity: referenceRow(ref)})
}

func (g *Gateway) UpsertLeague(ctx context.Context, ref *model.ReferencePayload) error {
	return g.upsertReference(ctx, &model.League{ReferenceEntity: referenceRow(ref)})
}

func referenceRow(ref *model.ReferencePayload) model.ReferenceEntity {
	return model.ReferenceEntity{ID: ref.ID, Name: ref.Name, Classification: ref.Classification}
}

func (g *Gateway) upsertReference(ctx context.Context, row interface{}) error {
	return g.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "classification", "updated_at"}),
	}).Create(row).Error
}

// summaryColumns columns a listing poll may refresh; replay columns are owned by detail persistence
var summaryColumns = []string{
	"scheduled_at",
	"home_team_id",
	"away_team_id",
	"competition_id",
	"conference_id",
	"league_id",
	"competition_type",
	"involves_tracked_team",
	"updated_at",
}

// UpsertMatchSummary teams first, then optional references, then the match row
func (g *Gateway) UpsertMatchSummary(ctx context.Context, p *model.MatchPayload) error {
	if p.ID == "" {
		return errors.New("match payload without id")
	}
	if err := g.upsertMatchReferences(ctx, p); err != nil {
		return err
	}

	row := g.matchRow(p)
	row.Status = p.NormalizedStatus()

	// a completed match never moves back, known scores are never nulled
	updates := append(clause.AssignmentColumns(summaryColumns),
		clause.Assignment{
			Column: clause.Column{Name: "status"},
			Value:  gorm.Expr("CASE WHEN matches.status = ? THEN matches.status ELSE excluded.status END", model.MatchCompleted),
		},
		clause.Assignment{Column: clause.Column{Name: "home_score"}, Value: gorm.Expr("COALESCE(excluded.home_score, matches.home_score)")},
		clause.Assignment{Column: clause.Column{Name: "away_score"}, Value: gorm.Expr("COALESCE(excluded.away_score, matches.away_score)")},
	)
	if err := g.upsertMatch(ctx, row, updates); err != nil {
		return fmt.Errorf("upsert match %s: %w", p.ID, err)
	}
	return nil
}

// upsertMatchReferences rows the match foreign keys point at
func (g *Gateway) upsertMatchReferences(ctx context.Context, p *model.MatchPayload) error {
	// 1. both teams
	for _, t := range []model.TeamPayload{p.HomeTeam, p.AwayTeam} {
		if err := g.UpsertTeam(ctx, t); err != nil {
			return fmt.Errorf("upsert team %q of match %s: %w", t.ID, p.ID, err)
		}
	}

	// 2. optional reference entities
	if ref := p.Competition; ref != nil && ref.ID != "" {
		if err := g.UpsertCompetition(ctx, ref); err != nil {
			return fmt.Errorf("upsert competition %s of match %s: %w", ref.ID, p.ID, err)
		}
	}
	if ref := p.Conference; ref != nil && ref.ID != "" {
		if err := g.UpsertConference(ctx, ref); err != nil {
			return fmt.Errorf("upsert conference %s of match %s: %w", ref.ID, p.ID, err)
		}
	}
	if ref := p.League; ref != nil && ref.ID != "" {
		if err := g.UpsertLeague(ctx, ref); err != nil {
			return fmt.Errorf("upsert league %s of match %s: %w", ref.ID, p.ID, err)
		}
	}
	return nil
}

func (g *Gateway) matchRow(p *model.MatchPayload) *model.Match {
	return &model.Match{
		ID:                  p.ID,
		ScheduledAt:         p.ScheduledAt.UTC(),
		HomeTeamID:          p.HomeTeam.ID,
		AwayTeamID:          p.AwayTeam.ID,
		HomeScore:           p.HomeScore,
		AwayScore:           p.AwayScore,
		CompetitionID:       refID(p.Competition),
		ConferenceID:        refID(p.Conference),
		LeagueID:            refID(p.League),
		CompetitionType:     p.CompetitionType,
		InvolvesTrackedTeam: p.Involves(g.trackedTeamID),
	}
}

func (g *Gateway) upsertMatch(ctx context.Context, row *model.Match, updates clause.Set) error {
	return g.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: updates,
		}).
		Create(row).Error
}

func refID(ref *model.ReferencePayload) *string {
	if ref == nil || ref.ID == "" {
		return nil
	}
	id := ref.ID
	return &id
}

// GetMatch nil, nil when the match is unknown
func (g *Gateway) GetMatch(ctx context.Context, matchID string) (*model.Match, error) {
	var m model.Match
	if err := g.db.WithContext(ctx).Where("id = ?", matchID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ListPendingReplays tracked completed matches still lacking detail. Never
// attempted matches come first, then the least recently attempted ones, so a
// match that keeps failing cannot hold a slot every run. limit <= 0: no limit.
func (g *Gateway) ListPendingReplays(ctx context.Context, limit int) ([]*model.Match, error) {
	var matches []*model.Match
	if err := g.db.WithContext(ctx).
		Where("involves_tracked_team = ? AND status = ? AND replay_fetched = ?", true, model.MatchCompleted, false).
		Order("scheduled_at ASC").
		Order("id ASC").
		Find(&matches).Error; err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return matches, nil
	}

	lastAttempt, err := g.lastReplayAttempts(ctx, matches)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return lastAttempt[matches[i].ID] < lastAttempt[matches[j].ID]
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// lastReplayAttempts newest audit row id per match, absent when never attempted
func (g *Gateway) lastReplayAttempts(ctx context.Context, matches []*model.Match) (map[string]uint64, error) {
	byEndpoint := make(map[string]string, len(matches))
	endpoints := make([]string, 0, len(matches))
	for _, m := range matches {
		endpoint := model.MatchEndpoint(m.ID)
		byEndpoint[endpoint] = m.ID
		endpoints = append(endpoints, endpoint)
	}

	out := make(map[string]uint64, len(matches))
	for start := 0; start < len(endpoints); start += g.batchSize {
		end := min(start+g.batchSize, len(endpoints))
		var rows []struct {
			Endpoint string
			LastID   uint64
		}
		if err := g.db.WithContext(ctx).Model(&model.SyncLogEntry{}).
			Select("endpoint, MAX(id) AS last_id").
			Where("endpoint IN ?", endpoints[start:end]).
			Group("endpoint").
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("last replay attempts: %w", err)
		}
		for _, r := range rows {
			out[byEndpoint[r.Endpoint]] = r.LastID
		}
	}
	return out, nil
}
