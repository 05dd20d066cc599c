package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/freedom_case_2/fire/internal/ai"
	"github.com/freedom_case_2/fire/internal/db"
	"github.com/freedom_case_2/fire/internal/models"
)

const (
	RunKindIngest  = "ingest"
	RunKindPull    = "pull"
	RunKindLoads   = "loads"
	RunKindImport  = "import"
	RunStatusOK    = "SUCCESS"
	RunStatusError = "FAILED"
)

// PipelineService runs reconciliation followed by load recomputation and
// records each run. Runs are serialized.
type PipelineService struct {
	Store             db.Repository
	Source            ai.Source
	Logger            zerolog.Logger
	EscalationMarkers []string

	mu sync.Mutex
}

type RunSummary struct {
	RunID     string           `json:"run_id"`
	Kind      string           `json:"kind"`
	Reconcile *ReconcileReport `json:"reconcile,omitempty"`
	Loads     []LoadEntry      `json:"loads"`
	ElapsedMs int64            `json:"elapsed_ms"`
	Error     string           `json:"error,omitempty"`
}

// Ingest reconciles rows and then recomputes loads from scratch.
func (s *PipelineService) Ingest(ctx context.Context, rows []models.ResultRow, kind string) (RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, kind, rows, true)
}

// Pull fetches a batch from the classifier feed and ingests it.
func (s *PipelineService) Pull(ctx context.Context) (RunSummary, error) {
	if s.Source == nil {
		return RunSummary{}, fmt.Errorf("no classifier source configured")
	}
	rows, err := s.Source.FetchResults(ctx)
	if err != nil {
		return RunSummary{}, fmt.Errorf("fetch results: %w", err)
	}
	s.Logger.Info().Int("rows", len(rows)).Msg("classifier batch fetched")
	return s.Ingest(ctx, rows, RunKindPull)
}

// RecomputeLoads runs only the load accountant.
func (s *PipelineService) RecomputeLoads(ctx context.Context, kind string) (RunSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run(ctx, kind, nil, false)
}

func (s *PipelineService) run(ctx context.Context, kind string, rows []models.ResultRow, reconcile bool) (RunSummary, error) {
	start := time.Now()
	runID, err := s.Store.CreateRun(ctx, kind)
	if err != nil {
		return RunSummary{}, fmt.Errorf("create run: %w", err)
	}
	summary := RunSummary{RunID: runID, Kind: kind, Loads: []LoadEntry{}}
	logger := s.Logger.With().Str("run_id", runID).Str("kind", kind).Logger()

	runErr := func() error {
		if reconcile {
			rec := Reconciler{Store: s.Store, Logger: logger, EscalationMarkers: s.EscalationMarkers}
			report, err := rec.Ingest(ctx, rows)
			summary.Reconcile = &report
			if err != nil {
				return err
			}
		}
		acct := LoadAccountant{Store: s.Store, Logger: logger}
		loads, err := acct.ReconcileLoads(ctx)
		if err != nil {
			return err
		}
		summary.Loads = loads
		return nil
	}()

	summary.ElapsedMs = time.Since(start).Milliseconds()
	status := RunStatusOK
	if runErr != nil {
		status = RunStatusError
		summary.Error = runErr.Error()
	}
	b, _ := json.Marshal(summary)
	// A context already cancelled must not prevent the run from being closed.
	if err := s.Store.FinishRun(context.WithoutCancel(ctx), runID, status, b); err != nil {
		logger.Error().Err(err).Msg("failed to record run")
	}

	if runErr != nil {
		logger.Error().Err(runErr).Msg("pipeline run failed")
		return summary, runErr
	}
	logger.Info().Int64("elapsed_ms", summary.ElapsedMs).Msg("pipeline run finished")
	return summary, nil
}
