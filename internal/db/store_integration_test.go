//go:build integration

package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/freedom_case_2/fire/internal/models"
)

// newTestStore connects to TEST_DATABASE_URL, or starts a throwaway
// PostgreSQL container, and applies migrations on a clean schema.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		req := testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "fire",
				"POSTGRES_USER":     "fire",
				"POSTGRES_PASSWORD": "fire",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		}
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = container.Terminate(context.Background()) })

		host, err := container.Host(ctx)
		require.NoError(t, err)
		port, err := container.MappedPort(ctx, "5432")
		require.NoError(t, err)
		url = fmt.Sprintf("postgres://fire:fire@%s:%s/fire?sslmode=disable", host, port.Port())
	}

	store, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate(zerolog.Nop()))
	require.NoError(t, store.Reset(ctx))
	return store
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertBusinessUnits(ctx, []models.BusinessUnit{{Name: "Астана", Address: "пр. Мангилик Ел 55", City: "Астана"}})
	require.NoError(t, err)
	_, err = s.UpsertManagers(ctx, []models.Manager{{FullName: "Иванов Иван", Office: "Астана", Skills: []string{"VIP"}, BaselineLoad: 2}})
	require.NoError(t, err)
	n, err := s.InsertTickets(ctx, []models.Ticket{{GUID: "g1", City: "Астана"}, {GUID: "g2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	managers, err := s.ListManagers(ctx, "", "VIP")
	require.NoError(t, err)
	require.Len(t, managers, 1)
	id := managers[0].ID
	assert.Equal(t, 2, managers[0].CurrentLoad)

	score := 9
	created, err := s.UpsertResult(ctx, models.ClassificationResult{
		TicketGUID: "g1", Type: "Жалоба", Priority: "9", PriorityScore: &score,
		AssignedManagerID: &id, Resolution: models.ResolutionNameMatch,
	})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.UpsertResult(ctx, models.ClassificationResult{TicketGUID: "g1", Type: "Спам", Resolution: models.ResolutionUnresolved})
	require.NoError(t, err)
	assert.False(t, created)

	views, err := s.ListResultViews(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Спам", views[0].Result.Type)
	assert.Nil(t, views[0].Result.AssignedManagerID)
	assert.Nil(t, views[0].Result.PriorityScore)

	require.NoError(t, s.SetManagerLoads(ctx, map[string]int{id: 7}))
	managers, err = s.ListManagers(ctx, "Астана", "")
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, 7, managers[0].CurrentLoad)
	assert.Equal(t, 2, managers[0].BaselineLoad)

	d, err := s.GetTicketDetails(ctx, "g2")
	require.NoError(t, err)
	assert.Nil(t, d.Result)

	_, err = s.GetTicket(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStoreRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateRun(ctx, "ingest")
	require.NoError(t, err)
	require.NoError(t, s.FinishRun(ctx, id, "SUCCESS", []byte(`{"created":1}`)))

	run, err := s.GetLatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "ingest", run.Kind)
	assert.JSONEq(t, `{"created":1}`, string(run.Summary))
}

func TestStoreMigrateIsRepeatable(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Migrate(zerolog.Nop()))
}
