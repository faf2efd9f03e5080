package model

import (
	"net/url"
	"time"
)

// Logical upstream endpoints, also the audit log keys
const (
	EndpointUpcoming = "matches/upcoming"
	EndpointRecent   = "matches/recent"
)

// MatchEndpoint per-match detail endpoint key
func MatchEndpoint(matchID string) string {
	return "matches/" + url.PathEscape(matchID)
}

// SyncLogEntry immutable audit row, one per poll/fetch attempt.
// The latest successful row per endpoint carries the next conditional token.
type SyncLogEntry struct {
	ID            uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	RunID         string    `gorm:"column:run_id;type:varchar(64);index"`
	Endpoint      string    `gorm:"column:endpoint;type:varchar(128);not null;index:idx_sync_logs_endpoint_time"`
	SyncedAt      time.Time `gorm:"column:synced_at;type:timestamp;not null;index:idx_sync_logs_endpoint_time"`
	LastModified  *string   `gorm:"column:last_modified;type:varchar(128)"`
	StatusCode    int       `gorm:"column:status_code;not null"`
	RecordsFound  int       `gorm:"column:records_found;not null;default:0"`
	RecordsNew    int       `gorm:"column:records_new;not null;default:0"`
	ErrorMessage  *string   `gorm:"column:error_message;type:text"`
	DurationMilli int64     `gorm:"column:duration_ms;not null;default:0"`
}

func (SyncLogEntry) TableName() string { return "sync_logs" }

// Succeeded 200 and 304 both count as success for token threading
func (e *SyncLogEntry) Succeeded() bool {
	return e.StatusCode == 200 || e.StatusCode == 304
}
