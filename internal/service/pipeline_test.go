package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freedom_case_2/fire/internal/models"
)

type staticSource struct {
	rows []models.ResultRow
	err  error
}

func (s staticSource) FetchResults(ctx context.Context) ([]models.ResultRow, error) {
	return s.rows, s.err
}

func TestPipelineIngestRecordsRun(t *testing.T) {
	store, _ := seedStore(t)
	ctx := context.Background()
	p := &PipelineService{Store: store, Logger: zerolog.Nop()}

	summary, err := p.Ingest(ctx, []models.ResultRow{
		{GUID: "g1", ManagerName: "Иванов Иван"},
		{GUID: "missing", ManagerName: "Иванов Иван"},
	}, RunKindIngest)
	require.NoError(t, err)
	require.NotNil(t, summary.Reconcile)
	assert.Equal(t, 1, summary.Reconcile.Created)
	assert.Equal(t, 1, summary.Reconcile.Skipped)
	assert.Len(t, summary.Loads, 2)
	assert.Equal(t, 3, managerLoad(t, store, "Иванов Иван"))

	run, err := store.GetLatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, run.ID)
	assert.Equal(t, RunStatusOK, run.Status)
	assert.NotNil(t, run.FinishedAt)

	var recorded RunSummary
	require.NoError(t, json.Unmarshal(run.Summary, &recorded))
	assert.Equal(t, 1, recorded.Reconcile.Created)
}

func TestPipelineRepeatedIngestKeepsLoads(t *testing.T) {
	store, _ := seedStore(t)
	ctx := context.Background()
	p := &PipelineService{Store: store, Logger: zerolog.Nop()}
	rows := []models.ResultRow{
		{GUID: "g1", ManagerName: "Иванов Иван"},
		{GUID: "g2", ManagerName: "Петрова Анна"},
	}

	for i := 0; i < 3; i++ {
		_, err := p.Ingest(ctx, rows, RunKindIngest)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, managerLoad(t, store, "Иванов Иван"))
	assert.Equal(t, 1, managerLoad(t, store, "Петрова Анна"))
}

func TestPipelinePull(t *testing.T) {
	store, _ := seedStore(t)
	p := &PipelineService{
		Store:  store,
		Logger: zerolog.Nop(),
		Source: staticSource{rows: []models.ResultRow{{GUID: "g2", ManagerName: "Петрова Анна"}}},
	}
	summary, err := p.Pull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RunKindPull, summary.Kind)
	assert.Equal(t, 1, managerLoad(t, store, "Петрова Анна"))
}

func TestPipelinePullSourceError(t *testing.T) {
	store, _ := seedStore(t)
	p := &PipelineService{Store: store, Logger: zerolog.Nop(), Source: staticSource{err: errors.New("boom")}}
	summary, err := p.Pull(context.Background())
	require.Error(t, err)
	assert.Empty(t, summary.RunID)
	_, err = store.GetLatestRun(context.Background())
	assert.Error(t, err)
}

func TestPipelineRecomputeLoadsOnly(t *testing.T) {
	store, _ := seedStore(t)
	p := &PipelineService{Store: store, Logger: zerolog.Nop()}
	summary, err := p.RecomputeLoads(context.Background(), RunKindLoads)
	require.NoError(t, err)
	assert.Nil(t, summary.Reconcile)
	assert.Equal(t, 2, managerLoad(t, store, "Иванов Иван"))
}

func TestPipelineIngestEmptyBatchStillReconciles(t *testing.T) {
	store, _ := seedStore(t)
	p := &PipelineService{Store: store, Logger: zerolog.Nop()}
	summary, err := p.Ingest(context.Background(), nil, RunKindIngest)
	require.NoError(t, err)
	require.NotNil(t, summary.Reconcile)
	assert.Equal(t, 0, summary.Reconcile.Created+summary.Reconcile.Updated+summary.Reconcile.Skipped)
}

func TestPipelineRosterImportedAfterIngest(t *testing.T) {
	store, _ := seedStore(t)
	ctx := context.Background()
	p := &PipelineService{Store: store, Logger: zerolog.Nop()}
	rows := []models.ResultRow{{GUID: "g1", ManagerName: "Сидоров Олег"}}

	summary, err := p.Ingest(ctx, rows, RunKindIngest)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Reconcile.Unresolved)

	_, err = store.UpsertManagers(ctx, []models.Manager{{ID: "m-sidorov", FullName: "Сидоров Олег"}})
	require.NoError(t, err)
	summary, err = p.RecomputeLoads(ctx, RunKindImport)
	require.NoError(t, err)

	d, err := store.GetTicketDetails(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionUnresolved, d.Result.Resolution)
	assert.Nil(t, d.Result.AssignedManagerID)
	assert.Equal(t, 0, managerLoad(t, store, "Сидоров Олег"))
	for _, e := range summary.Loads {
		if e.FullName == "Сидоров Олег" {
			assert.Equal(t, 0, e.Total)
		}
	}

	// Reconciling the batch again resolves the row and the load follows.
	summary, err = p.Ingest(ctx, rows, RunKindIngest)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Reconcile.Unresolved)
	assert.Equal(t, 1, managerLoad(t, store, "Сидоров Олег"))
	d, err = store.GetTicketDetails(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionNameMatch, d.Result.Resolution)
}
