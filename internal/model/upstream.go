package model

import (
	"strings"
	"time"
)

// ========== upstream match API payloads ==========

// TeamPayload team as embedded in a match payload
type TeamPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Venue string `json:"venue"`
}

// ReferencePayload competition / conference / league reference
type ReferencePayload struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Classification string `json:"classification"`
}

// MatchPayload match summary returned by listings and inside detail
type MatchPayload struct {
	ID              string            `json:"id"`
	ScheduledAt     time.Time         `json:"scheduled_at"`
	Status          string            `json:"status"`
	HomeTeam        TeamPayload       `json:"home_team"`
	AwayTeam        TeamPayload       `json:"away_team"`
	HomeScore       *int              `json:"home_score"`
	AwayScore       *int              `json:"away_score"`
	CompetitionType string            `json:"competition_type"`
	Competition     *ReferencePayload `json:"competition,omitempty"`
	Conference      *ReferencePayload `json:"conference,omitempty"`
	League          *ReferencePayload `json:"league,omitempty"`
}

// ListingMeta pagination metadata, either field may signal more pages
type ListingMeta struct {
	Page       int  `json:"page"`
	TotalPages int  `json:"total_pages"`
	HasMore    bool `json:"has_more"`
}

// ListingResponse GET /matches/upcoming and /matches/recent root
type ListingResponse struct {
	Data []MatchPayload `json:"data"`
	Meta ListingMeta    `json:"meta"`
}

// PlayerStatPayload per-player counting stats of one side
type PlayerStatPayload struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Shots      int    `json:"shots"`
	Goals      int    `json:"goals"`
	Passes     int    `json:"passes"`
	Tackles    int    `json:"tackles"`
	Blocks     int    `json:"blocks"`
	Fouls      int    `json:"fouls"`
	Injured    bool   `json:"injured"`
}

// EventPayload one turn-level event of the replay.
// InitialEnergy is carried by the match-start event, TurnEnergy by per-turn updates.
type EventPayload struct {
	Turn          int                `json:"turn"`
	Type          string             `json:"type"`
	Description   string             `json:"description"`
	PlayerIDs     []string           `json:"player_ids"`
	HomeScore     int                `json:"home_score"`
	AwayScore     int                `json:"away_score"`
	Context       map[string]any     `json:"context,omitempty"`
	InitialEnergy map[string]float64 `json:"initial_energy,omitempty"`
	TurnEnergy    map[string]float64 `json:"turn_energy,omitempty"`
}

// MatchDetailPayload GET /matches/{id} root
type MatchDetailPayload struct {
	Match     MatchPayload        `json:"match"`
	Version   string              `json:"version"`
	HomeStats []PlayerStatPayload `json:"home_stats"`
	AwayStats []PlayerStatPayload `json:"away_stats"`
	Events    []EventPayload      `json:"events"`
}

// NormalizedStatus upstream status mapped onto the lifecycle, unknown values count as scheduled
func (m MatchPayload) NormalizedStatus() MatchStatus {
	switch MatchStatus(upper(m.Status)) {
	case MatchInProgress, "LIVE":
		return MatchInProgress
	case MatchCompleted, "FINAL", "FINISHED":
		return MatchCompleted
	default:
		return MatchScheduled
	}
}

// Involves whether teamID plays in the match
func (m MatchPayload) Involves(teamID string) bool {
	return teamID != "" && (m.HomeTeam.ID == teamID || m.AwayTeam.ID == teamID)
}

var statusReplacer = strings.NewReplacer(" ", "_", "-", "_")

func upper(s string) string {
	return statusReplacer.Replace(strings.ToUpper(strings.TrimSpace(s)))
}
