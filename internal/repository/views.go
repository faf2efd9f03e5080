package repository

import (
	"context"
	"fmt"

	"MatchSync/internal/model"
)

// readView a read-only view consumed by the dashboard
type readView struct {
	name  string
	query string
}

func readViews() []readView {
	return []readView{
		{
			name: "player_career_stats",
			query: `SELECT s.player_id, s.team_id,
	MAX(s.player_name) AS player_name,
	COUNT(*) AS matches_played,
	SUM(s.shots) AS shots,
	SUM(s.goals) AS goals,
	SUM(s.passes) AS passes,
	SUM(s.tackles) AS tackles,
	SUM(s.blocks) AS blocks,
	SUM(s.fouls) AS fouls,
	SUM(CASE WHEN s.injured THEN 1 ELSE 0 END) AS injuries,
	CASE WHEN SUM(s.shots) > 0 THEN SUM(s.goals) * 1.0 / SUM(s.shots) END AS career_conversion_rate,
	CASE WHEN SUM(s.tackles) > 0 THEN SUM(s.fouls) * 1.0 / SUM(s.tackles) END AS career_foul_rate
FROM player_match_stats s
GROUP BY s.player_id, s.team_id`,
		},
		{
			// thresholds shared with model.PenaltyTier
			name: "energy_threshold_markers",
			query: fmt.Sprintf(`SELECT e.match_id, e.player_id,
	MIN(CASE WHEN e.energy < %[1]g THEN e.turn END) AS first_turn_below_moderate,
	MIN(CASE WHEN e.energy < %[2]g THEN e.turn END) AS first_turn_below_severe,
	MIN(e.energy) AS min_energy
FROM energy_snapshots e
GROUP BY e.match_id, e.player_id`, model.ModerateEnergyThreshold, model.SevereEnergyThreshold),
		},
		{
			name: "tracked_upcoming_matches",
			query: fmt.Sprintf(`SELECT m.id AS match_id, m.scheduled_at, m.status, m.competition_type,
	home.name AS home_team_name,
	away.name AS away_team_name,
	c.name AS competition_name,
	cf.name AS conference_name,
	l.name AS league_name
FROM matches m
JOIN teams home ON home.id = m.home_team_id
JOIN teams away ON away.id = m.away_team_id
LEFT JOIN competitions c ON c.id = m.competition_id
LEFT JOIN conferences cf ON cf.id = m.conference_id
LEFT JOIN leagues l ON l.id = m.league_id
WHERE m.involves_tracked_team = TRUE AND m.status <> '%s'`, model.MatchCompleted),
		},
	}
}

// EnsureViews (re)creates the read views, run after AutoMigrate
func (g *Gateway) EnsureViews(ctx context.Context) error {
	db := g.db.WithContext(ctx)
	dialect := g.db.Dialector.Name()

	for _, v := range readViews() {
		switch dialect {
		case "postgres":
			if err := db.Exec(fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s", v.name, v.query)).Error; err != nil {
				return fmt.Errorf("create view %s: %w", v.name, err)
			}
		default:
			if err := db.Exec(fmt.Sprintf("DROP VIEW IF EXISTS %s", v.name)).Error; err != nil {
				return fmt.Errorf("drop view %s: %w", v.name, err)
			}
			if err := db.Exec(fmt.Sprintf("CREATE VIEW %s AS %s", v.name, v.query)).Error; err != nil {
				return fmt.Errorf("create view %s: %w", v.name, err)
			}
		}
		g.logger.WithField("view", v.name).Debug("read view ensured")
	}
	return nil
}
