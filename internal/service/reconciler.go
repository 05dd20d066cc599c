package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/freedom_case_2/fire/internal/db"
	"github.com/freedom_case_2/fire/internal/metrics"
	"github.com/freedom_case_2/fire/internal/models"
)

const (
	SkipUnknownTicket  = "unknown_ticket"
	SkipMalformedField = "malformed_field"
)

// DefaultEscalationMarkers flag an assigned office as an escalation target
// when the row carries no explicit escalation value.
var DefaultEscalationMarkers = []string{"эскалац", "escalat", "головной", "head office"}

type ResultWriter interface {
	GetTicket(ctx context.Context, guid string) (models.Ticket, error)
	ListManagers(ctx context.Context, office string, skill string) ([]models.Manager, error)
	UpsertResult(ctx context.Context, r models.ClassificationResult) (bool, error)
}

type SkippedRow struct {
	Row    int    `json:"row"`
	GUID   string `json:"guid,omitempty"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

type ReconcileReport struct {
	Created          int          `json:"created"`
	Updated          int          `json:"updated"`
	Skipped          int          `json:"skipped"`
	Unresolved       int          `json:"unresolved"`
	Ambiguous        int          `json:"ambiguous"`
	PriorityUnparsed int          `json:"priority_unparsed"`
	SkippedRows      []SkippedRow `json:"skipped_rows"`
}

func (r *ReconcileReport) skip(row int, guid, reason, detail string) {
	r.Skipped++
	r.SkippedRows = append(r.SkippedRows, SkippedRow{Row: row, GUID: guid, Reason: reason, Detail: detail})
	metrics.ReconcileRows.WithLabelValues("skipped").Inc()
}

// Reconciler upserts classifier rows into the result store, one result per
// ticket. It never touches manager loads.
type Reconciler struct {
	Store             ResultWriter
	Logger            zerolog.Logger
	EscalationMarkers []string
}

// Ingest processes every row independently. Row problems are reported as
// skips; a storage failure stops the batch and is returned with the report so
// far. Re-running the same batch is safe.
func (r *Reconciler) Ingest(ctx context.Context, rows []models.ResultRow) (ReconcileReport, error) {
	report := ReconcileReport{SkippedRows: []SkippedRow{}}

	roster, err := r.Store.ListManagers(ctx, "", "")
	if err != nil {
		return report, fmt.Errorf("load roster: %w", err)
	}
	resolver := NewManagerResolver(roster)
	markers := r.EscalationMarkers
	if markers == nil {
		markers = DefaultEscalationMarkers
	}

	for i, row := range rows {
		rowNum := i + 1
		guid := strings.TrimSpace(row.GUID)
		if guid == "" {
			report.skip(rowNum, "", SkipMalformedField, "missing guid")
			continue
		}

		if _, err := r.Store.GetTicket(ctx, guid); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				r.Logger.Warn().Str("guid", guid).Msg("ticket not found, skipping result")
				report.skip(rowNum, guid, SkipUnknownTicket, "ticket not found")
				continue
			}
			return report, fmt.Errorf("lookup ticket %s: %w", guid, err)
		}

		priority := strings.TrimSpace(row.Priority.String())
		var score *int
		if p, ok := models.ParsePriority(priority); ok {
			if p < 1 || p > 10 {
				report.skip(rowNum, guid, SkipMalformedField, fmt.Sprintf("priority %s out of range 1-10", priority))
				continue
			}
			v := int(math.Round(p))
			score = &v
		} else if models.NonFinitePriority(priority) {
			report.skip(rowNum, guid, SkipMalformedField, fmt.Sprintf("priority %s is not finite", priority))
			continue
		} else if priority != "" {
			report.PriorityUnparsed++
		}

		res := resolver.Resolve(row.ManagerID, row.ManagerName)
		result := models.ClassificationResult{
			TicketGUID:      guid,
			Segment:         strings.TrimSpace(row.Segment),
			Type:            strings.TrimSpace(row.Type),
			Sentiment:       strings.TrimSpace(row.Sentiment),
			Language:        strings.TrimSpace(row.Language),
			Priority:        priority,
			PriorityScore:   score,
			Recommendation:  strings.TrimSpace(row.Recommendation),
			Attachments:     strings.TrimSpace(row.Attachments),
			ManagerName:     strings.TrimSpace(row.ManagerName),
			ManagerPosition: strings.TrimSpace(row.ManagerPosition),
			AssignedOffice:  strings.TrimSpace(row.AssignedOffice),
			Escalated:       ParseEscalation(row.Escalated.String(), row.AssignedOffice, markers),
			CityOriginal:    strings.TrimSpace(row.CityOriginal),
			RoutingReason:   strings.TrimSpace(row.RoutingReason),
			Source:          strings.TrimSpace(row.Source),
			GeoMethod:       strings.TrimSpace(row.GeoMethod),
			Resolution:      res.Method,
		}
		if res.Manager != nil {
			id := res.Manager.ID
			result.AssignedManagerID = &id
		} else {
			report.Unresolved++
			metrics.UnresolvedResults.Inc()
		}
		if res.Ambiguous {
			report.Ambiguous++
			r.Logger.Debug().Str("guid", guid).Str("manager_name", result.ManagerName).Msg("manager name matched several roster entries")
		}

		created, err := r.Store.UpsertResult(ctx, result)
		if err != nil {
			return report, fmt.Errorf("upsert result %s: %w", guid, err)
		}
		if created {
			report.Created++
			metrics.ReconcileRows.WithLabelValues("created").Inc()
		} else {
			report.Updated++
			metrics.ReconcileRows.WithLabelValues("updated").Inc()
		}
	}

	r.Logger.Info().
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("skipped", report.Skipped).
		Int("unresolved", report.Unresolved).
		Msg("results reconciled")
	return report, nil
}

// ParseEscalation reads a boolean-like flag. Anything else falls back to
// checking the assigned office name against the markers.
func ParseEscalation(raw string, office string, markers []string) bool {
	switch NormalizeName(raw) {
	case "true", "1", "yes", "y", "да", "escalated":
		return true
	case "false", "0", "no", "n", "нет":
		return false
	}
	o := strings.ToLower(office)
	for _, m := range markers {
		if m != "" && strings.Contains(o, strings.ToLower(m)) {
			return true
		}
	}
	return false
}
