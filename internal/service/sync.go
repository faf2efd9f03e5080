package service

import (
	"context"
	"fmt"
	"time"

	"MatchSync/internal/adapter/matchapi"
	"MatchSync/internal/config"
	"MatchSync/internal/interfaces"
	"MatchSync/internal/metrics"
	"MatchSync/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// SyncMatchesResult outcome of one full sync run
type SyncMatchesResult struct {
	RunID         string `json:"run_id"`
	UpcomingCount int    `json:"upcoming_count"` // tracked matches upserted from upcoming
	RecentCount   int    `json:"recent_count"`   // matches upserted from recent
	ReplaysQueued int    `json:"replays_queued"`
	ErrorCount    int    `json:"error_count"`
}

// ReplaySyncResult outcome of one detail backfill
type ReplaySyncResult struct {
	MatchID      string `json:"match_id"`
	Success      bool   `json:"success"`
	WasUnchanged bool   `json:"was_unchanged"`
}

// SyncStatus audit trail and budget for the admin surface
type SyncStatus struct {
	Budget   interfaces.RateBudgetStatus `json:"rate_budget"`
	Degraded bool                        `json:"degraded"` // budget low, backfill paused
	Logs     []*model.SyncLogEntry       `json:"logs"`
}

// SyncService keeps the store in step with the upstream. Its public operations
// never return errors; failures are audited and show up in the result counts.
type SyncService struct {
	source          interfaces.MatchSource
	repo            interfaces.SyncRepository
	logger          *logrus.Logger
	trackedTeamID   string
	competitionType string
	rescanPending   bool
	maxBackfill     int
}

func NewSyncService(source interfaces.MatchSource, repo interfaces.SyncRepository, cfg *config.Config, logger *logrus.Logger) *SyncService {
	return &SyncService{
		source:          source,
		repo:            repo,
		logger:          logger,
		trackedTeamID:   cfg.Sync.TrackedTeamID,
		competitionType: cfg.Upstream.CompetitionType,
		rescanPending:   cfg.Sync.RescanPending,
		maxBackfill:     cfg.Sync.MaxBackfillPerRun,
	}
}

// SyncMatches polls upcoming, then recent, then backfills missing replays
func (s *SyncService) SyncMatches(ctx context.Context) SyncMatchesResult {
	start := time.Now()
	result := SyncMatchesResult{RunID: uuid.NewString()}
	log := s.logger.WithField("run_id", result.RunID)
	defer func() {
		metrics.SyncRunDuration.Observe(time.Since(start).Seconds())
	}()

	// 1. conditional tokens from the audit log
	upcomingToken := s.lastToken(ctx, log, model.EndpointUpcoming)
	recentToken := s.lastToken(ctx, log, model.EndpointRecent)

	// 2. upcoming: tracked team only
	upcoming, err := s.pollListing(ctx, result.RunID, log, model.EndpointUpcoming, upcomingToken, true)
	if err != nil {
		result.ErrorCount++
	} else {
		result.UpcomingCount = upcoming.upserted
	}

	// 3. recent: every match, opponents are kept for scouting
	var recentRecords []model.MatchPayload
	recent, err := s.pollListing(ctx, result.RunID, log, model.EndpointRecent, recentToken, false)
	if err != nil {
		result.ErrorCount++
	} else {
		result.RecentCount = recent.upserted
		recentRecords = recent.records
	}

	// 4. backfill, sequential, after both polls
	for _, matchID := range s.backfillCandidates(ctx, log, recentRecords) {
		if ctx.Err() != nil {
			log.WithError(ctx.Err()).Warn("sync run cancelled, backfill stopped")
			break
		}
		if budget := s.source.GetRateBudgetStatus(); budget.IsLow {
			log.WithField("remaining", budget.Remaining).Warn("rate budget low, remaining backfill deferred")
			break
		}
		result.ReplaysQueued++
		metrics.ReplaysQueued.Inc()
		if res := s.syncMatchReplay(ctx, result.RunID, matchID); !res.Success {
			result.ErrorCount++
		}
	}

	log.WithFields(logrus.Fields{
		"upcoming":       result.UpcomingCount,
		"recent":         result.RecentCount,
		"replays_queued": result.ReplaysQueued,
		"errors":         result.ErrorCount,
		"duration":       time.Since(start).String(),
	}).Info("match sync finished")
	return result
}

// SyncMatchReplay fetches and persists one match detail unless it is unchanged
func (s *SyncService) SyncMatchReplay(ctx context.Context, matchID string) ReplaySyncResult {
	return s.syncMatchReplay(ctx, uuid.NewString(), matchID)
}

// Status latest audit entries plus the advisory rate budget
func (s *SyncService) Status(ctx context.Context, endpoint string, limit int) (*SyncStatus, error) {
	logs, err := s.repo.ListSyncLogs(ctx, endpoint, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync logs: %w", err)
	}
	budget := s.source.GetRateBudgetStatus()
	return &SyncStatus{Budget: budget, Degraded: budget.IsLow, Logs: logs}, nil
}

type listingOutcome struct {
	records  []model.MatchPayload
	upserted int
}

// pollListing one conditional listing poll, always audited
func (s *SyncService) pollListing(ctx context.Context, runID string, log *logrus.Entry, endpoint, token string, trackedOnly bool) (*listingOutcome, error) {
	start := time.Now()
	log = log.WithField("endpoint", endpoint)

	filters := map[string]string{"competition_type": s.competitionType}
	res, err := s.source.FetchListing(ctx, endpoint, filters, token)
	if err != nil {
		log.WithError(err).Error("listing poll failed")
		s.audit(ctx, &model.SyncLogEntry{
			RunID:        runID,
			Endpoint:     endpoint,
			StatusCode:   matchapi.StatusCode(err),
			ErrorMessage: stringPtr(err.Error()),
		}, start, "error")
		return nil, err
	}

	out := &listingOutcome{}
	if !res.WasUnchanged {
		out.records = res.Records
		for i := range res.Records {
			p := &res.Records[i]
			if trackedOnly && !p.Involves(s.trackedTeamID) {
				continue
			}
			if err := s.repo.UpsertMatchSummary(ctx, p); err != nil {
				log.WithError(err).WithField("match_id", p.ID).Error("match summary upsert failed")
				continue
			}
			out.upserted++
		}
	}

	outcome := "success"
	if res.WasUnchanged {
		outcome = "unchanged"
	}
	s.audit(ctx, &model.SyncLogEntry{
		RunID:        runID,
		Endpoint:     endpoint,
		StatusCode:   res.StatusCode,
		LastModified: stringPtr(res.NewToken),
		RecordsFound: len(out.records),
		RecordsNew:   out.upserted,
	}, start, outcome)

	log.WithFields(logrus.Fields{
		"unchanged": res.WasUnchanged,
		"found":     len(out.records),
		"upserted":  out.upserted,
	}).Info("listing polled")
	return out, nil
}

// backfillCandidates completed tracked matches of this run without replay data.
// With rescanning on, persisted gaps come first in least-recently-attempted
// order. De-duplicated, capped per run.
func (s *SyncService) backfillCandidates(ctx context.Context, log *logrus.Entry, recent []model.MatchPayload) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	if s.rescanPending {
		pending, err := s.repo.ListPendingReplays(ctx, s.maxBackfill)
		if err != nil {
			log.WithError(err).Warn("pending replay scan failed")
		}
		for _, m := range pending {
			add(m.ID)
		}
	}

	for i := range recent {
		p := &recent[i]
		if !p.Involves(s.trackedTeamID) || p.NormalizedStatus() != model.MatchCompleted {
			continue
		}
		if _, ok := seen[p.ID]; ok {
			continue
		}
		m, err := s.repo.GetMatch(ctx, p.ID)
		if err != nil {
			log.WithError(err).WithField("match_id", p.ID).Warn("replay state lookup failed, skipping")
			continue
		}
		if m != nil && m.ReplayFetched {
			continue
		}
		add(p.ID)
	}

	if s.maxBackfill > 0 && len(ids) > s.maxBackfill {
		log.WithFields(logrus.Fields{
			"candidates": len(ids),
			"max":        s.maxBackfill,
		}).Info("backfill capped for this run")
		ids = ids[:s.maxBackfill]
	}
	return ids
}

func (s *SyncService) syncMatchReplay(ctx context.Context, runID, matchID string) ReplaySyncResult {
	start := time.Now()
	result := ReplaySyncResult{MatchID: matchID}
	endpoint := model.MatchEndpoint(matchID)
	log := s.logger.WithFields(logrus.Fields{"run_id": runID, "match_id": matchID})

	// 1. token under the per-match key
	token := s.lastToken(ctx, log, endpoint)

	// 2. conditional fetch
	res, err := s.source.FetchDetail(ctx, matchID, token)
	if err != nil {
		log.WithError(err).Error("match detail fetch failed")
		s.audit(ctx, &model.SyncLogEntry{
			RunID:        runID,
			Endpoint:     endpoint,
			StatusCode:   matchapi.StatusCode(err),
			ErrorMessage: stringPtr(err.Error()),
		}, start, "error")
		return result
	}

	// 3. unchanged: steady state for a completed match
	if res.WasUnchanged {
		s.audit(ctx, &model.SyncLogEntry{
			RunID:        runID,
			Endpoint:     endpoint,
			StatusCode:   res.StatusCode,
			LastModified: stringPtr(res.NewToken),
		}, start, "unchanged")
		log.Debug("match detail unchanged")
		result.Success = true
		result.WasUnchanged = true
		return result
	}

	// 4. persist
	version := res.Data.Version
	if version == "" {
		version = res.NewToken
	}
	persisted, err := s.repo.PersistMatchDetail(ctx, res.Data, version)
	if err != nil {
		// no token, the next attempt must download the detail again
		log.WithError(err).Error("match detail persistence failed")
		s.audit(ctx, &model.SyncLogEntry{
			RunID:        runID,
			Endpoint:     endpoint,
			StatusCode:   res.StatusCode,
			RecordsFound: 1,
			ErrorMessage: stringPtr(err.Error()),
		}, start, "error")
		return result
	}

	entry := &model.SyncLogEntry{
		RunID:        runID,
		Endpoint:     endpoint,
		StatusCode:   res.StatusCode,
		LastModified: stringPtr(res.NewToken),
		RecordsFound: 1,
		RecordsNew:   1,
	}
	if persisted.FailedBatches > 0 {
		// replay stays pending and unconditional so the next run fills the gaps
		entry.LastModified = nil
		entry.ErrorMessage = stringPtr(fmt.Sprintf("%d batch(es) failed to persist", persisted.FailedBatches))
	}
	s.audit(ctx, entry, start, "success")

	result.Success = true
	return result
}

// lastToken degrades to an unconditional request when the audit log is unreadable
func (s *SyncService) lastToken(ctx context.Context, log *logrus.Entry, endpoint string) string {
	token, err := s.repo.LastSyncToken(ctx, endpoint)
	if err != nil {
		log.WithError(err).WithField("endpoint", endpoint).Warn("conditional token lookup failed, polling unconditionally")
		return ""
	}
	return token
}

func (s *SyncService) audit(ctx context.Context, entry *model.SyncLogEntry, start time.Time, outcome string) {
	entry.SyncedAt = time.Now().UTC()
	entry.DurationMilli = time.Since(start).Milliseconds()
	s.repo.RecordSyncAttempt(ctx, entry)
	metrics.SyncAttempts.WithLabelValues(metrics.EndpointLabel(entry.Endpoint), outcome).Inc()
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
