package db

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/freedom_case_2/fire/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConnection marks storage that could not be reached. Callers fall back
	// to a previous snapshot instead of failing.
	ErrConnection = errors.New("storage unavailable")
)

type TicketFilter struct {
	Office     string
	Language   string
	Resolution string
	Q          string
	Limit      int
	Offset     int
}

// Repository is implemented by the PostgreSQL Store and the in-process MemoryStore.
type Repository interface {
	Ping(ctx context.Context) error
	Close()
	Reset(ctx context.Context) error

	UpsertBusinessUnits(ctx context.Context, units []models.BusinessUnit) (int, error)
	UpsertManagers(ctx context.Context, managers []models.Manager) (int, error)
	InsertTickets(ctx context.Context, tickets []models.Ticket) (int, error)

	ListBusinessUnits(ctx context.Context) ([]models.BusinessUnit, error)
	ListManagers(ctx context.Context, office string, skill string) ([]models.Manager, error)
	GetTicket(ctx context.Context, guid string) (models.Ticket, error)
	ListTicketGUIDs(ctx context.Context) ([]string, error)
	ListTickets(ctx context.Context, f TicketFilter) ([]models.TicketDetails, error)
	GetTicketDetails(ctx context.Context, guid string) (models.TicketDetails, error)

	UpsertResult(ctx context.Context, r models.ClassificationResult) (bool, error)
	ListResults(ctx context.Context) ([]models.ClassificationResult, error)
	ListResultViews(ctx context.Context) ([]models.ResultView, error)
	SetManagerLoads(ctx context.Context, loads map[string]int) error

	CreateRun(ctx context.Context, kind string) (string, error)
	FinishRun(ctx context.Context, runID string, status string, summary []byte) error
	GetLatestRun(ctx context.Context) (models.Run, error)
}

func normalizeLimit(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// wrapErr maps driver errors onto the package sentinels.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return err
}
