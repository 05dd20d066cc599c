package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freedom_case_2/fire/internal/analytics"
	"github.com/freedom_case_2/fire/internal/models"
)

func TestQueryServesStaleSnapshotWhenStorageIsDown(t *testing.T) {
	store, _ := seedStore(t)
	ctx := context.Background()
	p := &PipelineService{Store: store, Logger: zerolog.Nop()}
	_, err := p.Ingest(ctx, []models.ResultRow{
		{GUID: "g1", Type: "Жалоба", ManagerName: "Иванов Иван"},
		{GUID: "g2", Type: "Жалоба", ManagerName: "Петрова Анна"},
		{GUID: "g3", Type: "Спам", ManagerName: "-"},
	}, RunKindIngest)
	require.NoError(t, err)

	q := &QueryService{Store: store, Logger: zerolog.Nop()}
	spec := analytics.Spec{ChartType: analytics.ChartBar, GroupBy: analytics.GroupBy{"type"}}

	fresh, err := q.Query(ctx, spec)
	require.NoError(t, err)
	assert.False(t, fresh.Stale)
	assert.Equal(t, analytics.KindHistogram, fresh.Kind)
	assert.Equal(t, 2, fresh.Count("Жалоба"))

	store.Unavailable = true
	stale, err := q.Query(ctx, spec)
	require.NoError(t, err)
	assert.True(t, stale.Stale)
	assert.Equal(t, fresh.Buckets, stale.Buckets)
	assert.Equal(t, fresh.SnapshotAt, stale.SnapshotAt)
}

func TestQueryWithoutSnapshotReturnsNoData(t *testing.T) {
	store, _ := seedStore(t)
	store.Unavailable = true
	q := &QueryService{Store: store, Logger: zerolog.Nop()}

	resp, err := q.Query(context.Background(), analytics.Spec{ChartType: "bar", GroupBy: analytics.GroupBy{"type"}})
	require.NoError(t, err)
	assert.True(t, resp.Stale)
	assert.Equal(t, analytics.KindNoData, resp.Kind)
}

func TestDashboardSummaryCounts(t *testing.T) {
	store, _ := seedStore(t)
	ctx := context.Background()
	p := &PipelineService{Store: store, Logger: zerolog.Nop()}
	_, err := p.Ingest(ctx, []models.ResultRow{
		{GUID: "g1", Type: "Спам", Segment: "VIP", ManagerName: "Иванов Иван"},
		{GUID: "g2", Sentiment: "Legal Risk", ManagerName: "Unknown Person"},
	}, RunKindIngest)
	require.NoError(t, err)

	presets, err := analytics.LoadPresets("")
	require.NoError(t, err)
	q := &QueryService{Store: store, Logger: zerolog.Nop()}
	d, err := q.Dashboard(ctx, presets)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Summary.Total)
	assert.Equal(t, 1, d.Summary.VIP)
	assert.Equal(t, 1, d.Summary.Spam)
	assert.Equal(t, 1, d.Summary.LegalRisk)
	assert.Equal(t, 1, d.Summary.Unresolved)
	assert.Len(t, d.Charts, len(presets))
}
