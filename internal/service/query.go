package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/freedom_case_2/fire/internal/analytics"
	"github.com/freedom_case_2/fire/internal/db"
	"github.com/freedom_case_2/fire/internal/metrics"
	"github.com/freedom_case_2/fire/internal/models"
)

type ViewLister interface {
	ListResultViews(ctx context.Context) ([]models.ResultView, error)
}

// QueryService evaluates aggregations over a snapshot of the reconciled
// results. When storage is unreachable it answers from the last good snapshot
// and marks the answer stale.
type QueryService struct {
	Store  ViewLister
	Logger zerolog.Logger

	mu       sync.RWMutex
	snapshot []models.ResultView
	takenAt  time.Time
}

type QueryResponse struct {
	analytics.Result
	Stale      bool      `json:"stale"`
	SnapshotAt time.Time `json:"snapshot_at"`
}

type DashboardResponse struct {
	analytics.Dashboard
	Stale      bool      `json:"stale"`
	SnapshotAt time.Time `json:"snapshot_at"`
}

// Snapshot returns the current records, refreshing from storage. Errors other
// than connectivity failures are returned.
func (q *QueryService) Snapshot(ctx context.Context) ([]models.ResultView, time.Time, bool, error) {
	views, err := q.Store.ListResultViews(ctx)
	if err == nil {
		now := time.Now().UTC()
		q.mu.Lock()
		q.snapshot = views
		q.takenAt = now
		q.mu.Unlock()
		return views, now, false, nil
	}
	if !errors.Is(err, db.ErrConnection) {
		return nil, time.Time{}, false, err
	}

	metrics.StaleSnapshots.Inc()
	q.mu.RLock()
	defer q.mu.RUnlock()
	q.Logger.Warn().Err(err).Time("snapshot_at", q.takenAt).Msg("storage unavailable, serving last snapshot")
	return q.snapshot, q.takenAt, true, nil
}

func (q *QueryService) Query(ctx context.Context, spec analytics.Spec) (QueryResponse, error) {
	records, at, stale, err := q.Snapshot(ctx)
	if err != nil {
		return QueryResponse{}, err
	}
	res := analytics.Aggregate(records, spec)
	metrics.AnalyticsQueries.WithLabelValues(res.Kind).Inc()
	if res.Kind == analytics.KindWarning {
		q.Logger.Info().Str("field", res.Warning.Field).Str("value", res.Warning.Value).Msg("aggregation rejected")
	}
	return QueryResponse{Result: res, Stale: stale, SnapshotAt: at}, nil
}

func (q *QueryService) Dashboard(ctx context.Context, presets []analytics.Preset) (DashboardResponse, error) {
	records, at, stale, err := q.Snapshot(ctx)
	if err != nil {
		return DashboardResponse{}, err
	}
	return DashboardResponse{Dashboard: analytics.BuildDashboard(records, presets), Stale: stale, SnapshotAt: at}, nil
}
