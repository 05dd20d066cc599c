package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/freedom_case_2/fire/internal/db"
	"github.com/freedom_case_2/fire/internal/models"
)

func seedStore(t *testing.T) (*db.MemoryStore, map[string]models.Manager) {
	t.Helper()
	ctx := context.Background()
	store := db.NewMemoryStore()

	_, err := store.UpsertBusinessUnits(ctx, []models.BusinessUnit{
		{Name: "Астана", City: "Астана"},
		{Name: "Алматы", City: "Алматы"},
	})
	require.NoError(t, err)
	_, err = store.UpsertManagers(ctx, []models.Manager{
		{ID: "m-ivanov", FullName: "Иванов Иван", Position: "Специалист", Office: "Астана", BaselineLoad: 2},
		{ID: "m-petrova", FullName: "Петрова Анна", Position: "Ведущий специалист", Office: "Алматы", BaselineLoad: 0},
	})
	require.NoError(t, err)
	_, err = store.InsertTickets(ctx, []models.Ticket{
		{GUID: "g1", City: "Астана"},
		{GUID: "g2", City: "Алматы"},
		{GUID: "g3", City: "Караганда"},
		{GUID: "g4", City: "Астана"},
	})
	require.NoError(t, err)

	managers, err := store.ListManagers(ctx, "", "")
	require.NoError(t, err)
	byName := map[string]models.Manager{}
	for _, m := range managers {
		byName[m.FullName] = m
	}
	return store, byName
}

func managerLoad(t *testing.T, store *db.MemoryStore, fullName string) int {
	t.Helper()
	managers, err := store.ListManagers(context.Background(), "", "")
	require.NoError(t, err)
	for _, m := range managers {
		if m.FullName == fullName {
			return m.CurrentLoad
		}
	}
	t.Fatalf("manager %s not found", fullName)
	return 0
}
