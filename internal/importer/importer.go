package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/freedom_case_2/fire/internal/models"
)

type RosterWriter interface {
	UpsertBusinessUnits(ctx context.Context, units []models.BusinessUnit) (int, error)
	UpsertManagers(ctx context.Context, managers []models.Manager) (int, error)
	InsertTickets(ctx context.Context, tickets []models.Ticket) (int, error)
}

type Counts struct {
	Parsed   int `json:"parsed"`
	Inserted int `json:"inserted"`
	Errors   int `json:"errors"`
}

type Summary struct {
	BusinessUnits Counts   `json:"business_units"`
	Managers      Counts   `json:"managers"`
	Tickets       Counts   `json:"tickets"`
	Errors        []string `json:"errors"`
}

// Files holds the three roster inputs. Any of them may be nil.
type Files struct {
	BusinessUnits io.Reader
	Managers      io.Reader
	Tickets       io.Reader
}

// ParseError carries every row-level problem found while parsing.
type ParseError struct {
	Errors []string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("csv validation failed with %d errors", len(e.Errors))
}

type Importer struct {
	Store  RosterWriter
	Logger zerolog.Logger
}

// Import loads business units, then managers (office resolved against the
// units just read plus existingUnits), then tickets. Nothing is written when
// any file has parse errors.
func (im *Importer) Import(ctx context.Context, files Files, existingUnits []models.BusinessUnit) (Summary, error) {
	summary := Summary{Errors: []string{}}

	var units []models.BusinessUnit
	if files.BusinessUnits != nil {
		var errs []string
		units, errs = ParseBusinessUnits(files.BusinessUnits)
		summary.BusinessUnits = Counts{Parsed: len(units), Errors: len(errs)}
		summary.Errors = append(summary.Errors, prefix("business_units", errs)...)
	}

	var managers []models.Manager
	if files.Managers != nil {
		known := append(append([]models.BusinessUnit{}, units...), existingUnits...)
		var errs []string
		managers, errs = ParseManagers(files.Managers, known)
		summary.Managers = Counts{Parsed: len(managers), Errors: len(errs)}
		summary.Errors = append(summary.Errors, prefix("managers", errs)...)
	}

	var tickets []models.Ticket
	if files.Tickets != nil {
		var errs []string
		tickets, errs = ParseTickets(files.Tickets)
		summary.Tickets = Counts{Parsed: len(tickets), Errors: len(errs)}
		summary.Errors = append(summary.Errors, prefix("tickets", errs)...)
	}

	if len(summary.Errors) > 0 {
		return summary, &ParseError{Errors: summary.Errors}
	}

	n, err := im.Store.UpsertBusinessUnits(ctx, units)
	if err != nil {
		return summary, fmt.Errorf("insert business units: %w", err)
	}
	summary.BusinessUnits.Inserted = n

	n, err = im.Store.UpsertManagers(ctx, managers)
	if err != nil {
		return summary, fmt.Errorf("insert managers: %w", err)
	}
	summary.Managers.Inserted = n

	n, err = im.Store.InsertTickets(ctx, tickets)
	if err != nil {
		return summary, fmt.Errorf("insert tickets: %w", err)
	}
	summary.Tickets.Inserted = n

	im.Logger.Info().
		Int("business_units", summary.BusinessUnits.Inserted).
		Int("managers", summary.Managers.Inserted).
		Int("tickets", summary.Tickets.Inserted).
		Msg("roster imported")
	return summary, nil
}

func prefix(file string, errs []string) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, file+": "+e)
	}
	return out
}
