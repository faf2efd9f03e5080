package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"MatchSync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SyncRunner the orchestrator operations exposed to operators
type SyncRunner interface {
	SyncMatches(ctx context.Context) service.SyncMatchesResult
	SyncMatchReplay(ctx context.Context, matchID string) service.ReplaySyncResult
	Status(ctx context.Context, endpoint string, limit int) (*service.SyncStatus, error)
}

type SyncHandler struct {
	runner SyncRunner
	logger *logrus.Logger
}

func NewSyncHandler(runner SyncRunner, logger *logrus.Logger) *SyncHandler {
	return &SyncHandler{runner: runner, logger: logger}
}

// CronSync scheduled full sync
// POST /cron/sync
func (h *SyncHandler) CronSync(c *gin.Context) {
	h.runFullSync(c, "cron")
}

// AdminSync on-demand full sync
// POST /admin/sync
func (h *SyncHandler) AdminSync(c *gin.Context) {
	h.runFullSync(c, "admin")
}

func (h *SyncHandler) runFullSync(c *gin.Context, trigger string) {
	result := h.runner.SyncMatches(c.Request.Context())
	h.logger.WithFields(logrus.Fields{
		"trigger": trigger,
		"run_id":  result.RunID,
		"errors":  result.ErrorCount,
	}).Info("sync triggered")
	c.JSON(http.StatusOK, result)
}

// ReplaySync single-match backfill
// POST /admin/sync/replay/:match_id
func (h *SyncHandler) ReplaySync(c *gin.Context) {
	matchID := strings.TrimSpace(c.Param("match_id"))
	if matchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "match_id is required"})
		return
	}
	c.JSON(http.StatusOK, h.runner.SyncMatchReplay(c.Request.Context(), matchID))
}

// Status audit trail and rate budget
// GET /admin/sync/status?endpoint=matches/recent&limit=50
func (h *SyncHandler) Status(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	status, err := h.runner.Status(c.Request.Context(), c.Query("endpoint"), limit)
	if err != nil {
		h.logger.WithError(err).Error("sync status failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}
