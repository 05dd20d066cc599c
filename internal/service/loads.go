package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/freedom_case_2/fire/internal/metrics"
	"github.com/freedom_case_2/fire/internal/models"
)

type LoadStore interface {
	ListManagers(ctx context.Context, office string, skill string) ([]models.Manager, error)
	ListResults(ctx context.Context) ([]models.ClassificationResult, error)
	SetManagerLoads(ctx context.Context, loads map[string]int) error
}

type LoadEntry struct {
	ManagerID   string `json:"manager_id"`
	FullName    string `json:"full_name"`
	Baseline    int    `json:"baseline"`
	FKMatched   int    `json:"fk_matched_count"`
	NameMatched int    `json:"name_matched_count"`
	Total       int    `json:"deduplicated_total"`
	CurrentLoad int    `json:"current_load"`
}

// LoadAccountant recomputes manager loads from the baseline and the reconciled
// results. The stored current_load is never read back as an input.
type LoadAccountant struct {
	Store  LoadStore
	Logger zerolog.Logger
}

func (a *LoadAccountant) ReconcileLoads(ctx context.Context) ([]LoadEntry, error) {
	start := time.Now()
	defer func() {
		metrics.LoadRecomputeDuration.Observe(time.Since(start).Seconds())
	}()

	managers, err := a.Store.ListManagers(ctx, "", "")
	if err != nil {
		return nil, fmt.Errorf("load managers: %w", err)
	}
	results, err := a.Store.ListResults(ctx)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}

	entries := ComputeLoads(managers, results)
	loads := make(map[string]int, len(entries))
	for _, e := range entries {
		loads[e.ManagerID] = e.CurrentLoad
		a.Logger.Debug().
			Str("manager", e.FullName).
			Int("baseline", e.Baseline).
			Int("fk_matched", e.FKMatched).
			Int("name_matched", e.NameMatched).
			Int("total", e.Total).
			Msg("manager load")
	}
	if err := a.Store.SetManagerLoads(ctx, loads); err != nil {
		return nil, fmt.Errorf("store loads: %w", err)
	}
	a.Logger.Info().Int("managers", len(entries)).Int("results", len(results)).Msg("manager loads recomputed")
	return entries, nil
}

// ComputeLoads counts, per manager, the distinct tickets that resolve to it
// through the stored reference or through an exact free-text name. A result
// referencing another manager never counts by name, and a result stored as
// unresolved never counts at all until it is reconciled again.
func ComputeLoads(managers []models.Manager, results []models.ClassificationResult) []LoadEntry {
	byName := map[string]string{}
	for _, m := range managers {
		byName[NormalizeName(m.FullName)] = m.ID
	}

	fk := map[string]map[string]struct{}{}
	name := map[string]map[string]struct{}{}
	add := func(sets map[string]map[string]struct{}, managerID, guid string) {
		if sets[managerID] == nil {
			sets[managerID] = map[string]struct{}{}
		}
		sets[managerID][guid] = struct{}{}
	}
	for _, r := range results {
		if r.AssignedManagerID != nil {
			add(fk, *r.AssignedManagerID, r.TicketGUID)
		}
		if r.Resolution == models.ResolutionUnresolved {
			continue
		}
		key := NormalizeName(r.ManagerName)
		if IsSentinelName(key) {
			continue
		}
		id, ok := byName[key]
		if !ok {
			continue
		}
		if r.AssignedManagerID != nil && *r.AssignedManagerID != id {
			continue
		}
		add(name, id, r.TicketGUID)
	}

	entries := make([]LoadEntry, 0, len(managers))
	for _, m := range managers {
		union := make(map[string]struct{}, len(fk[m.ID])+len(name[m.ID]))
		for guid := range fk[m.ID] {
			union[guid] = struct{}{}
		}
		for guid := range name[m.ID] {
			union[guid] = struct{}{}
		}
		baseline := m.BaselineLoad
		if baseline < 0 {
			baseline = 0
		}
		entries = append(entries, LoadEntry{
			ManagerID:   m.ID,
			FullName:    m.FullName,
			Baseline:    baseline,
			FKMatched:   len(fk[m.ID]),
			NameMatched: len(name[m.ID]),
			Total:       len(union),
			CurrentLoad: baseline + len(union),
		})
	}
	return entries
}
