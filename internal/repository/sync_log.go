package repository

import (
	"context"
	"errors"
	"time"

	"MatchSync/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RecordSyncAttempt appends one audit row. A failed write only costs the next
// poll its conditional token, so it is logged and swallowed.
func (g *Gateway) RecordSyncAttempt(ctx context.Context, entry *model.SyncLogEntry) {
	if entry.SyncedAt.IsZero() {
		entry.SyncedAt = time.Now().UTC()
	}
	if err := g.db.WithContext(ctx).Create(entry).Error; err != nil {
		g.logger.WithError(err).WithFields(logrus.Fields{
			"endpoint":    entry.Endpoint,
			"run_id":      entry.RunID,
			"status_code": entry.StatusCode,
		}).Error("failed to record sync attempt")
	}
}

// LastSyncToken token of the newest successful attempt, "" when none
func (g *Gateway) LastSyncToken(ctx context.Context, endpoint string) (string, error) {
	var entry model.SyncLogEntry
	err := g.db.WithContext(ctx).
		Where("endpoint = ? AND status_code IN ? AND last_modified IS NOT NULL AND last_modified <> ''", endpoint, []int{200, 304}).
		Order("synced_at DESC").
		Order("id DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return *entry.LastModified, nil
}

// ListSyncLogs newest first, endpoint "" lists every endpoint
func (g *Gateway) ListSyncLogs(ctx context.Context, endpoint string, limit int) ([]*model.SyncLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	db := g.db.WithContext(ctx).Model(&model.SyncLogEntry{})
	if endpoint != "" {
		db = db.Where("endpoint = ?", endpoint)
	}
	var entries []*model.SyncLogEntry
	if err := db.Order("synced_at DESC").Order("id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
