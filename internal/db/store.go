package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/freedom_case_2/fire/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

var _ Repository = (*Store)(nil)

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 10
	}
	cfg.MaxConnIdleTime = 30 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, wrapErr(err)
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return wrapErr(s.Pool.Ping(ctx))
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapErr(err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return wrapErr(err)
	}
	return wrapErr(tx.Commit(ctx))
}

func (s *Store) Reset(ctx context.Context) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `TRUNCATE classification_results, tickets, managers, business_units, reconciliation_runs`)
		return err
	})
}

func (s *Store) UpsertBusinessUnits(ctx context.Context, units []models.BusinessUnit) (int, error) {
	n := 0
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, u := range units {
			batch.Queue(`
				INSERT INTO business_units (name, address, city) VALUES ($1, $2, $3)
				ON CONFLICT (name) DO UPDATE SET address = EXCLUDED.address, city = EXCLUDED.city
			`, u.Name, u.Address, u.City)
		}
		var err error
		n, err = execBatch(ctx, tx, batch)
		return err
	})
	return n, err
}

// UpsertManagers keys managers by full name. Existing ids are kept; the roster
// load becomes both the baseline and the current load until loads are recomputed.
func (s *Store) UpsertManagers(ctx context.Context, managers []models.Manager) (int, error) {
	n := 0
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, m := range managers {
			id := m.ID
			if id == "" {
				id = uuid.NewString()
			}
			skills := m.Skills
			if skills == nil {
				skills = []string{}
			}
			batch.Queue(`
				INSERT INTO managers (id, full_name, position, office, skills, baseline_load, current_load, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $6, NOW())
				ON CONFLICT (full_name) DO UPDATE SET
					position = EXCLUDED.position,
					office = EXCLUDED.office,
					skills = EXCLUDED.skills,
					baseline_load = EXCLUDED.baseline_load,
					current_load = EXCLUDED.current_load,
					updated_at = NOW()
			`, id, m.FullName, m.Position, nullIfEmpty(m.Office), skills, m.BaselineLoad)
		}
		var err error
		n, err = execBatch(ctx, tx, batch)
		return err
	})
	return n, err
}

// InsertTickets stores tickets that are not yet known. Known GUIDs are left untouched.
func (s *Store) InsertTickets(ctx context.Context, tickets []models.Ticket) (int, error) {
	n := 0
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, t := range tickets {
			createdAt := t.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}
			batch.Queue(`
				INSERT INTO tickets (guid, gender, birth_date, description, attachments, segment, country, region, city, street, house, created_at)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
				ON CONFLICT (guid) DO NOTHING
			`, t.GUID, t.Gender, t.BirthDate, t.Description, t.Attachments, t.Segment, t.Country, t.Region, t.City, t.Street, t.House, createdAt)
		}
		var err error
		n, err = execBatch(ctx, tx, batch)
		return err
	})
	return n, err
}

func execBatch(ctx context.Context, tx pgx.Tx, batch *pgx.Batch) (int, error) {
	if batch.Len() == 0 {
		return 0, nil
	}
	br := tx.SendBatch(ctx, batch)
	n := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return n, err
		}
		n += int(tag.RowsAffected())
	}
	return n, br.Close()
}

func (s *Store) ListBusinessUnits(ctx context.Context) ([]models.BusinessUnit, error) {
	rows, err := s.Pool.Query(ctx, `SELECT name, address, city FROM business_units ORDER BY name`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var out []models.BusinessUnit
	for rows.Next() {
		var u models.BusinessUnit
		if err := rows.Scan(&u.Name, &u.Address, &u.City); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, wrapErr(rows.Err())
}

func (s *Store) ListManagers(ctx context.Context, office string, skill string) ([]models.Manager, error) {
	query := `SELECT id, full_name, position, office, skills, baseline_load, current_load, updated_at FROM managers`
	var args []any
	var wheres []string
	if office != "" {
		args = append(args, office)
		wheres = append(wheres, fmt.Sprintf("office = $%d", len(args)))
	}
	if skill != "" {
		args = append(args, skill)
		wheres = append(wheres, fmt.Sprintf("$%d = ANY(skills)", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY full_name ASC, id ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var out []models.Manager
	for rows.Next() {
		var (
			m         models.Manager
			officeVal *string
		)
		if err := rows.Scan(&m.ID, &m.FullName, &m.Position, &officeVal, &m.Skills, &m.BaselineLoad, &m.CurrentLoad, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Office = derefString(officeVal)
		out = append(out, m)
	}
	return out, wrapErr(rows.Err())
}

const ticketColumns = `t.guid, t.gender, t.birth_date, t.description, t.attachments, t.segment, t.country, t.region, t.city, t.street, t.house, t.created_at`

func ticketDest(t *models.Ticket) []any {
	return []any{&t.GUID, &t.Gender, &t.BirthDate, &t.Description, &t.Attachments, &t.Segment, &t.Country, &t.Region, &t.City, &t.Street, &t.House, &t.CreatedAt}
}

func (s *Store) GetTicket(ctx context.Context, guid string) (models.Ticket, error) {
	var t models.Ticket
	err := s.Pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets t WHERE t.guid = $1`, guid).Scan(ticketDest(&t)...)
	if err != nil {
		return models.Ticket{}, wrapErr(err)
	}
	return t, nil
}

func (s *Store) ListTicketGUIDs(ctx context.Context) ([]string, error) {
	rows, err := s.Pool.Query(ctx, `SELECT guid FROM tickets ORDER BY created_at ASC, guid ASC`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var guid string
		if err := rows.Scan(&guid); err != nil {
			return nil, err
		}
		out = append(out, guid)
	}
	return out, wrapErr(rows.Err())
}

const resultColumns = `r.ticket_guid, r.segment, r.type, r.sentiment, r.language, r.priority, r.priority_score,
	r.recommendation, r.attachments, r.manager_name, r.manager_position, r.assigned_office, r.escalated,
	r.city_original, r.routing_reason, r.source, r.geo_method, r.assigned_manager_id, r.resolution`

func resultDest(r *models.ClassificationResult) []any {
	return []any{&r.TicketGUID, &r.Segment, &r.Type, &r.Sentiment, &r.Language, &r.Priority, &r.PriorityScore,
		&r.Recommendation, &r.Attachments, &r.ManagerName, &r.ManagerPosition, &r.AssignedOffice, &r.Escalated,
		&r.CityOriginal, &r.RoutingReason, &r.Source, &r.GeoMethod, &r.AssignedManagerID, &r.Resolution}
}

// UpsertResult replaces every classification field of the ticket's result and
// reports whether the row was newly created.
func (s *Store) UpsertResult(ctx context.Context, r models.ClassificationResult) (bool, error) {
	var created bool
	err := s.Pool.QueryRow(ctx, `
		INSERT INTO classification_results (ticket_guid, segment, type, sentiment, language, priority, priority_score,
			recommendation, attachments, manager_name, manager_position, assigned_office, escalated,
			city_original, routing_reason, source, geo_method, assigned_manager_id, resolution)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (ticket_guid) DO UPDATE SET
			segment = EXCLUDED.segment,
			type = EXCLUDED.type,
			sentiment = EXCLUDED.sentiment,
			language = EXCLUDED.language,
			priority = EXCLUDED.priority,
			priority_score = EXCLUDED.priority_score,
			recommendation = EXCLUDED.recommendation,
			attachments = EXCLUDED.attachments,
			manager_name = EXCLUDED.manager_name,
			manager_position = EXCLUDED.manager_position,
			assigned_office = EXCLUDED.assigned_office,
			escalated = EXCLUDED.escalated,
			city_original = EXCLUDED.city_original,
			routing_reason = EXCLUDED.routing_reason,
			source = EXCLUDED.source,
			geo_method = EXCLUDED.geo_method,
			assigned_manager_id = EXCLUDED.assigned_manager_id,
			resolution = EXCLUDED.resolution
		RETURNING (xmax = 0)
	`, r.TicketGUID, r.Segment, r.Type, r.Sentiment, r.Language, r.Priority, r.PriorityScore,
		r.Recommendation, r.Attachments, r.ManagerName, r.ManagerPosition, r.AssignedOffice, r.Escalated,
		r.CityOriginal, r.RoutingReason, r.Source, r.GeoMethod, r.AssignedManagerID, r.Resolution).Scan(&created)
	if err != nil {
		return false, wrapErr(err)
	}
	return created, nil
}

func (s *Store) ListResults(ctx context.Context) ([]models.ClassificationResult, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+resultColumns+` FROM classification_results r ORDER BY r.ticket_guid`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var out []models.ClassificationResult
	for rows.Next() {
		var r models.ClassificationResult
		if err := rows.Scan(resultDest(&r)...); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, wrapErr(rows.Err())
}

func (s *Store) ListResultViews(ctx context.Context) ([]models.ResultView, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+ticketColumns+`, `+resultColumns+`, COALESCE(m.full_name, '')
		FROM classification_results r
		JOIN tickets t ON t.guid = r.ticket_guid
		LEFT JOIN managers m ON m.id = r.assigned_manager_id
		ORDER BY r.ticket_guid
	`)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var out []models.ResultView
	for rows.Next() {
		var v models.ResultView
		dest := append(ticketDest(&v.Ticket), resultDest(&v.Result)...)
		dest = append(dest, &v.ManagerFullName)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, wrapErr(rows.Err())
}

func (s *Store) ListTickets(ctx context.Context, f TicketFilter) ([]models.TicketDetails, error) {
	limit, offset := normalizeLimit(f.Limit, f.Offset)

	query := `SELECT ` + ticketColumns + `, r.ticket_guid IS NOT NULL, ` + resultColumns + `, COALESCE(m.full_name, '')
		FROM tickets t
		LEFT JOIN classification_results r ON r.ticket_guid = t.guid
		LEFT JOIN managers m ON m.id = r.assigned_manager_id`
	var args []any
	var wheres []string
	if f.Office != "" {
		args = append(args, f.Office)
		wheres = append(wheres, fmt.Sprintf("lower(r.assigned_office) = lower($%d)", len(args)))
	}
	if f.Language != "" {
		args = append(args, f.Language)
		wheres = append(wheres, fmt.Sprintf("upper(r.language) = upper($%d)", len(args)))
	}
	if f.Resolution != "" {
		args = append(args, f.Resolution)
		wheres = append(wheres, fmt.Sprintf("r.resolution = $%d", len(args)))
	}
	if f.Q != "" {
		args = append(args, "%"+f.Q+"%")
		wheres = append(wheres, fmt.Sprintf("(t.description ILIKE $%d OR t.guid ILIKE $%d)", len(args), len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY t.created_at DESC, t.guid ASC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var out []models.TicketDetails
	for rows.Next() {
		d, err := scanTicketDetails(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, wrapErr(rows.Err())
}

func (s *Store) GetTicketDetails(ctx context.Context, guid string) (models.TicketDetails, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`, r.ticket_guid IS NOT NULL, `+resultColumns+`, COALESCE(m.full_name, '')
		FROM tickets t
		LEFT JOIN classification_results r ON r.ticket_guid = t.guid
		LEFT JOIN managers m ON m.id = r.assigned_manager_id
		WHERE t.guid = $1
	`, guid)
	d, err := scanTicketDetails(row)
	if err != nil {
		return models.TicketDetails{}, wrapErr(err)
	}
	return d, nil
}

// scanTicketDetails reads a ticket LEFT JOINed with its result; result columns
// are nullable in that shape.
func scanTicketDetails(row pgx.Row) (models.TicketDetails, error) {
	var (
		d               models.TicketDetails
		hasResult       bool
		ticketRef       *string
		segment         *string
		typ             *string
		sentiment       *string
		language        *string
		priority        *string
		score           *int
		recommendation  *string
		attachments     *string
		managerName     *string
		managerPosition *string
		office          *string
		escalated       *bool
		cityOriginal    *string
		reason          *string
		source          *string
		geoMethod       *string
		managerID       *string
		resolution      *string
	)
	dest := append(ticketDest(&d.Ticket), &hasResult, &ticketRef, &segment, &typ, &sentiment, &language, &priority, &score,
		&recommendation, &attachments, &managerName, &managerPosition, &office, &escalated,
		&cityOriginal, &reason, &source, &geoMethod, &managerID, &resolution, &d.ManagerFullName)
	if err := row.Scan(dest...); err != nil {
		return models.TicketDetails{}, err
	}
	if hasResult {
		d.Result = &models.ClassificationResult{
			TicketGUID:        d.Ticket.GUID,
			Segment:           derefString(segment),
			Type:              derefString(typ),
			Sentiment:         derefString(sentiment),
			Language:          derefString(language),
			Priority:          derefString(priority),
			PriorityScore:     score,
			Recommendation:    derefString(recommendation),
			Attachments:       derefString(attachments),
			ManagerName:       derefString(managerName),
			ManagerPosition:   derefString(managerPosition),
			AssignedOffice:    derefString(office),
			Escalated:         escalated != nil && *escalated,
			CityOriginal:      derefString(cityOriginal),
			RoutingReason:     derefString(reason),
			Source:            derefString(source),
			GeoMethod:         derefString(geoMethod),
			AssignedManagerID: managerID,
			Resolution:        derefString(resolution),
		}
	}
	return d, nil
}

// SetManagerLoads writes all recomputed loads in a single transaction.
func (s *Store) SetManagerLoads(ctx context.Context, loads map[string]int) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for id, load := range loads {
			batch.Queue(`UPDATE managers SET current_load = $1, updated_at = NOW() WHERE id = $2`, load, id)
		}
		_, err := execBatch(ctx, tx, batch)
		return err
	})
}

func (s *Store) CreateRun(ctx context.Context, kind string) (string, error) {
	var id string
	err := s.Pool.QueryRow(ctx, `INSERT INTO reconciliation_runs (kind, status, started_at) VALUES ($1, 'RUNNING', NOW()) RETURNING id`, kind).Scan(&id)
	return id, wrapErr(err)
}

func (s *Store) FinishRun(ctx context.Context, runID string, status string, summary []byte) error {
	_, err := s.Pool.Exec(ctx, `UPDATE reconciliation_runs SET status = $1, summary = $2, finished_at = NOW() WHERE id = $3`, status, summary, runID)
	return wrapErr(err)
}

func (s *Store) GetLatestRun(ctx context.Context) (models.Run, error) {
	var r models.Run
	var summary []byte
	err := s.Pool.QueryRow(ctx, `
		SELECT id, kind, started_at, finished_at, status, summary
		FROM reconciliation_runs ORDER BY started_at DESC LIMIT 1
	`).Scan(&r.ID, &r.Kind, &r.StartedAt, &r.FinishedAt, &r.Status, &summary)
	if err != nil {
		return models.Run{}, wrapErr(err)
	}
	r.Summary = summary
	return r, nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func nullIfEmpty(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
