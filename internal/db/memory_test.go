package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freedom_case_2/fire/internal/models"
)

func seedMemory(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.UpsertBusinessUnits(ctx, []models.BusinessUnit{{Name: "Астана"}})
	require.NoError(t, err)
	_, err = s.UpsertManagers(ctx, []models.Manager{{ID: "m1", FullName: "Иванов Иван", Office: "Астана", BaselineLoad: 2}})
	require.NoError(t, err)
	_, err = s.InsertTickets(ctx, []models.Ticket{{GUID: "g1"}, {GUID: "g2"}})
	require.NoError(t, err)
	return s
}

func TestMemoryUpsertResultReportsCreation(t *testing.T) {
	s := seedMemory(t)
	ctx := context.Background()
	id := "m1"

	created, err := s.UpsertResult(ctx, models.ClassificationResult{TicketGUID: "g1", Type: "A", AssignedManagerID: &id})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.UpsertResult(ctx, models.ClassificationResult{TicketGUID: "g1", Type: "B"})
	require.NoError(t, err)
	assert.False(t, created)

	results, err := s.ListResults(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "B", results[0].Type)
	assert.Nil(t, results[0].AssignedManagerID)
}

func TestMemoryUpsertResultRejectsUnknownReferences(t *testing.T) {
	s := seedMemory(t)
	ctx := context.Background()
	ghost := "ghost"

	_, err := s.UpsertResult(ctx, models.ClassificationResult{TicketGUID: "nope"})
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.UpsertResult(ctx, models.ClassificationResult{TicketGUID: "g1", AssignedManagerID: &ghost})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryUpsertManagersKeepsIDByName(t *testing.T) {
	s := seedMemory(t)
	ctx := context.Background()
	_, err := s.UpsertManagers(ctx, []models.Manager{{FullName: "Иванов Иван", Office: "Астана", BaselineLoad: 5}})
	require.NoError(t, err)

	managers, err := s.ListManagers(ctx, "", "")
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, "m1", managers[0].ID)
	assert.Equal(t, 5, managers[0].BaselineLoad)
	assert.Equal(t, 5, managers[0].CurrentLoad)
}

func TestMemoryTicketDetailsAndFilter(t *testing.T) {
	s := seedMemory(t)
	ctx := context.Background()
	id := "m1"
	_, err := s.UpsertResult(ctx, models.ClassificationResult{TicketGUID: "g1", AssignedManagerID: &id, Resolution: models.ResolutionStructured})
	require.NoError(t, err)
	_, err = s.UpsertResult(ctx, models.ClassificationResult{TicketGUID: "g2", ManagerName: "Кто-то", Resolution: models.ResolutionUnresolved})
	require.NoError(t, err)

	d, err := s.GetTicketDetails(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, d.Result)
	assert.Equal(t, "Иванов Иван", d.ManagerFullName)

	items, err := s.ListTickets(ctx, TicketFilter{Resolution: models.ResolutionUnresolved})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "g2", items[0].Ticket.GUID)

	_, err = s.GetTicketDetails(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryRuns(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.GetLatestRun(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))

	id, err := s.CreateRun(ctx, "ingest")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, id, "SUCCESS", []byte(`{"ok":true}`)))

	run, err := s.GetLatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "SUCCESS", run.Status)
	assert.JSONEq(t, `{"ok":true}`, string(run.Summary))
}

func TestMemoryUnavailable(t *testing.T) {
	s := seedMemory(t)
	s.Unavailable = true
	_, err := s.ListResultViews(context.Background())
	assert.True(t, errors.Is(err, ErrConnection))
	assert.True(t, errors.Is(s.Ping(context.Background()), ErrConnection))
}

func TestMemoryReset(t *testing.T) {
	s := seedMemory(t)
	ctx := context.Background()
	require.NoError(t, s.Reset(ctx))
	guids, err := s.ListTicketGUIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, guids)
}
