package model

import (
	"time"

	"gorm.io/datatypes"
)

// MatchStatus lifecycle SCHEDULED -> IN_PROGRESS -> COMPLETED
type MatchStatus string

const (
	MatchScheduled  MatchStatus = "SCHEDULED"
	MatchInProgress MatchStatus = "IN_PROGRESS"
	MatchCompleted  MatchStatus = "COMPLETED"
)

// Match the central entity, id is assigned upstream
type Match struct {
	ID                  string      `gorm:"column:id;primaryKey;type:varchar(64)"`
	ScheduledAt         time.Time   `gorm:"column:scheduled_at;type:timestamp;not null;index"`
	Status              MatchStatus `gorm:"column:status;type:varchar(16);not null;index"`
	HomeTeamID          string      `gorm:"column:home_team_id;type:varchar(64);not null;index"`
	AwayTeamID          string      `gorm:"column:away_team_id;type:varchar(64);not null;index"`
	HomeScore           *int        `gorm:"column:home_score"` // null until known
	AwayScore           *int        `gorm:"column:away_score"`
	CompetitionID       *string     `gorm:"column:competition_id;type:varchar(64)"`
	ConferenceID        *string     `gorm:"column:conference_id;type:varchar(64)"`
	LeagueID            *string     `gorm:"column:league_id;type:varchar(64)"`
	CompetitionType     string      `gorm:"column:competition_type;type:varchar(32)"`
	ReplayFetched       bool        `gorm:"column:replay_fetched;type:boolean;not null;default:false"`
	ReplayVersion       *string     `gorm:"column:replay_version;type:varchar(128)"` // detail provider version tag
	InvolvesTrackedTeam bool        `gorm:"column:involves_tracked_team;type:boolean;not null;default:false;index"`
	CreatedAt           time.Time   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time   `gorm:"column:updated_at;autoUpdateTime"`

	// belongs-to, only used by AutoMigrate to emit foreign keys
	HomeTeam    *Team        `gorm:"foreignKey:HomeTeamID;references:ID"`
	AwayTeam    *Team        `gorm:"foreignKey:AwayTeamID;references:ID"`
	Competition *Competition `gorm:"foreignKey:CompetitionID;references:ID"`
	Conference  *Conference  `gorm:"foreignKey:ConferenceID;references:ID"`
	League      *League      `gorm:"foreignKey:LeagueID;references:ID"`
}

// PlayerMatchStat one row per (match, player), rates computed at ingestion
type PlayerMatchStat struct {
	ID                 uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	MatchID            string    `gorm:"column:match_id;type:varchar(64);not null;uniqueIndex:uq_stat_match_player"`
	PlayerID           string    `gorm:"column:player_id;type:varchar(64);not null;uniqueIndex:uq_stat_match_player"`
	TeamID             string    `gorm:"column:team_id;type:varchar(64);not null"`
	PlayerName         string    `gorm:"column:player_name;type:varchar(128)"`
	Shots              int       `gorm:"column:shots;not null;default:0"`
	Goals              int       `gorm:"column:goals;not null;default:0"`
	Passes             int       `gorm:"column:passes;not null;default:0"`
	Tackles            int       `gorm:"column:tackles;not null;default:0"`
	Blocks             int       `gorm:"column:blocks;not null;default:0"`
	Fouls              int       `gorm:"column:fouls;not null;default:0"`
	Injured            bool      `gorm:"column:injured;type:boolean;not null;default:false"`
	GoalConversionRate *float64  `gorm:"column:goal_conversion_rate"` // null when shots = 0
	FoulRate           *float64  `gorm:"column:foul_rate"`            // null when tackles = 0
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Match *Match `gorm:"foreignKey:MatchID;references:ID"`
}

// MatchEvent append-only event log, deduplicated on (match, turn, type)
type MatchEvent struct {
	ID          uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	MatchID     string         `gorm:"column:match_id;type:varchar(64);not null;uniqueIndex:uq_event_match_turn_type"`
	Turn        int            `gorm:"column:turn;not null;uniqueIndex:uq_event_match_turn_type"`
	EventType   string         `gorm:"column:event_type;type:varchar(64);not null;uniqueIndex:uq_event_match_turn_type"`
	Description string         `gorm:"column:description;type:text"`
	PlayerIDs   datatypes.JSON `gorm:"column:player_ids;type:jsonb"` // involved player ids
	HomeScore   int            `gorm:"column:home_score;not null;default:0"`
	AwayScore   int            `gorm:"column:away_score;not null;default:0"`
	Context     datatypes.JSON `gorm:"column:context;type:jsonb"` // arbitrary structured payload
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`

	Match *Match `gorm:"foreignKey:MatchID;references:ID"`
}

// EnergySnapshot one reading per (match, player, turn), basis of fatigue analytics
type EnergySnapshot struct {
	ID               uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	MatchID          string    `gorm:"column:match_id;type:varchar(64);not null;uniqueIndex:uq_energy_match_player_turn"`
	PlayerID         string    `gorm:"column:player_id;type:varchar(64);not null;uniqueIndex:uq_energy_match_player_turn"`
	Turn             int       `gorm:"column:turn;not null;uniqueIndex:uq_energy_match_player_turn"`
	Energy           float64   `gorm:"column:energy;not null;check:chk_energy_bounds,energy >= 0 AND energy <= 100"`
	PenaltyTier      string    `gorm:"column:penalty_tier;type:varchar(16);not null"`
	PenaltyMagnitude float64   `gorm:"column:penalty_magnitude;not null"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`

	Match *Match `gorm:"foreignKey:MatchID;references:ID"`
}

func (Match) TableName() string           { return "matches" }
func (PlayerMatchStat) TableName() string { return "player_match_stats" }
func (MatchEvent) TableName() string      { return "match_events" }
func (EnergySnapshot) TableName() string  { return "energy_snapshots" }

// InvolvesTeam reports whether teamID plays in the match
func (m *Match) InvolvesTeam(teamID string) bool {
	return teamID != "" && (m.HomeTeamID == teamID || m.AwayTeamID == teamID)
}

// AllModels migration order respects foreign keys
func AllModels() []interface{} {
	return []interface{}{
		&Team{},
		&Competition{},
		&Conference{},
		&League{},
		&Match{},
		&PlayerMatchStat{},
		&MatchEvent{},
		&EnergySnapshot{},
		&SyncLogEntry{},
	}
}
