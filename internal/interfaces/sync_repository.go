package interfaces

import (
	"context"

	"MatchSync/internal/model"
)

// DetailPersistResult outcome of one PersistMatchDetail call
type DetailPersistResult struct {
	StatsUpserted  int
	EventsInserted int
	EnergyInserted int
	EnergyRejected int // readings outside [0,100]
	FailedBatches  int
}

// SyncRepository persistence operations the orchestrator depends on.
// Every write is an upsert or an append-only insert.
type SyncRepository interface {
	UpsertMatchSummary(ctx context.Context, p *model.MatchPayload) error
	GetMatch(ctx context.Context, matchID string) (*model.Match, error)
	ListPendingReplays(ctx context.Context, limit int) ([]*model.Match, error)
	PersistMatchDetail(ctx context.Context, detail *model.MatchDetailPayload, versionTag string) (*DetailPersistResult, error)
	RecordSyncAttempt(ctx context.Context, entry *model.SyncLogEntry)
	LastSyncToken(ctx context.Context, endpoint string) (string, error)
	ListSyncLogs(ctx context.Context, endpoint string, limit int) ([]*model.SyncLogEntry, error)
}
