package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/freedom_case_2/fire/internal/models"
)

// MemoryStore keeps everything in process. It is used when no DATABASE_URL is
// configured and by tests.
type MemoryStore struct {
	mu       sync.RWMutex
	units    map[string]models.BusinessUnit
	managers map[string]models.Manager
	tickets  map[string]models.Ticket
	results  map[string]models.ClassificationResult
	runs     []models.Run

	// Unavailable makes every call fail with ErrConnection.
	Unavailable bool
}

var _ Repository = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.reset()
	return s
}

func (s *MemoryStore) reset() {
	s.units = map[string]models.BusinessUnit{}
	s.managers = map[string]models.Manager{}
	s.tickets = map[string]models.Ticket{}
	s.results = map[string]models.ClassificationResult{}
	s.runs = nil
}

func (s *MemoryStore) check() error {
	if s.Unavailable {
		return ErrConnection
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return s.check()
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.reset()
	return nil
}

func (s *MemoryStore) UpsertBusinessUnits(ctx context.Context, units []models.BusinessUnit) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	for _, u := range units {
		s.units[u.Name] = u
	}
	return len(units), nil
}

func (s *MemoryStore) UpsertManagers(ctx context.Context, managers []models.Manager) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	byName := map[string]string{}
	for id, m := range s.managers {
		byName[m.FullName] = id
	}
	for _, m := range managers {
		if id, ok := byName[m.FullName]; ok {
			m.ID = id
		} else if m.ID == "" {
			m.ID = uuid.NewString()
		}
		m.CurrentLoad = m.BaselineLoad
		m.UpdatedAt = time.Now().UTC()
		m.Skills = append([]string(nil), m.Skills...)
		s.managers[m.ID] = m
		byName[m.FullName] = m.ID
	}
	return len(managers), nil
}

func (s *MemoryStore) InsertTickets(ctx context.Context, tickets []models.Ticket) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	n := 0
	for _, t := range tickets {
		if _, ok := s.tickets[t.GUID]; ok {
			continue
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		s.tickets[t.GUID] = t
		n++
	}
	return n, nil
}

func (s *MemoryStore) ListBusinessUnits(ctx context.Context) ([]models.BusinessUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make([]models.BusinessUnit, 0, len(s.units))
	for _, u := range s.units {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) ListManagers(ctx context.Context, office string, skill string) ([]models.Manager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	var out []models.Manager
	for _, m := range s.managers {
		if office != "" && m.Office != office {
			continue
		}
		if skill != "" && !containsString(m.Skills, skill) {
			continue
		}
		m.Skills = append([]string(nil), m.Skills...)
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName == out[j].FullName {
			return out[i].ID < out[j].ID
		}
		return out[i].FullName < out[j].FullName
	})
	return out, nil
}

func (s *MemoryStore) GetTicket(ctx context.Context, guid string) (models.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return models.Ticket{}, err
	}
	t, ok := s.tickets[guid]
	if !ok {
		return models.Ticket{}, ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) ListTicketGUIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(s.tickets))
	for guid := range s.tickets {
		out = append(out, guid)
	}
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) ListTickets(ctx context.Context, f TicketFilter) ([]models.TicketDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	limit, offset := normalizeLimit(f.Limit, f.Offset)

	var all []models.TicketDetails
	for _, t := range s.tickets {
		d := s.detailsLocked(t)
		if f.Office != "" && (d.Result == nil || !strings.EqualFold(d.Result.AssignedOffice, f.Office)) {
			continue
		}
		if f.Language != "" && (d.Result == nil || !strings.EqualFold(d.Result.Language, f.Language)) {
			continue
		}
		if f.Resolution != "" && (d.Result == nil || d.Result.Resolution != f.Resolution) {
			continue
		}
		if f.Q != "" {
			q := strings.ToLower(f.Q)
			if !strings.Contains(strings.ToLower(t.Description), q) && !strings.Contains(strings.ToLower(t.GUID), q) {
				continue
			}
		}
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i].Ticket, all[j].Ticket
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.GUID < b.GUID
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *MemoryStore) GetTicketDetails(ctx context.Context, guid string) (models.TicketDetails, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return models.TicketDetails{}, err
	}
	t, ok := s.tickets[guid]
	if !ok {
		return models.TicketDetails{}, ErrNotFound
	}
	return s.detailsLocked(t), nil
}

func (s *MemoryStore) detailsLocked(t models.Ticket) models.TicketDetails {
	d := models.TicketDetails{Ticket: t}
	if r, ok := s.results[t.GUID]; ok {
		r = copyResult(r)
		d.Result = &r
		d.ManagerFullName = s.managerNameLocked(r.AssignedManagerID)
	}
	return d
}

func (s *MemoryStore) managerNameLocked(id *string) string {
	if id == nil {
		return ""
	}
	return s.managers[*id].FullName
}

func (s *MemoryStore) UpsertResult(ctx context.Context, r models.ClassificationResult) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return false, err
	}
	if _, ok := s.tickets[r.TicketGUID]; !ok {
		return false, ErrNotFound
	}
	if r.AssignedManagerID != nil {
		if _, ok := s.managers[*r.AssignedManagerID]; !ok {
			return false, ErrNotFound
		}
	}
	_, exists := s.results[r.TicketGUID]
	s.results[r.TicketGUID] = copyResult(r)
	return !exists, nil
}

func (s *MemoryStore) ListResults(ctx context.Context) ([]models.ClassificationResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make([]models.ClassificationResult, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, copyResult(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketGUID < out[j].TicketGUID })
	return out, nil
}

func (s *MemoryStore) ListResultViews(ctx context.Context) ([]models.ResultView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	out := make([]models.ResultView, 0, len(s.results))
	for guid, r := range s.results {
		out = append(out, models.ResultView{
			Ticket:          s.tickets[guid],
			Result:          copyResult(r),
			ManagerFullName: s.managerNameLocked(r.AssignedManagerID),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Result.TicketGUID < out[j].Result.TicketGUID })
	return out, nil
}

func (s *MemoryStore) SetManagerLoads(ctx context.Context, loads map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	for id, load := range loads {
		m, ok := s.managers[id]
		if !ok {
			continue
		}
		m.CurrentLoad = load
		m.UpdatedAt = time.Now().UTC()
		s.managers[id] = m
	}
	return nil
}

func (s *MemoryStore) CreateRun(ctx context.Context, kind string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return "", err
	}
	run := models.Run{ID: uuid.NewString(), Kind: kind, Status: "RUNNING", StartedAt: time.Now().UTC()}
	s.runs = append(s.runs, run)
	return run.ID, nil
}

func (s *MemoryStore) FinishRun(ctx context.Context, runID string, status string, summary []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	for i := range s.runs {
		if s.runs[i].ID == runID {
			now := time.Now().UTC()
			s.runs[i].Status = status
			s.runs[i].Summary = append([]byte(nil), summary...)
			s.runs[i].FinishedAt = &now
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) GetLatestRun(ctx context.Context) (models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return models.Run{}, err
	}
	if len(s.runs) == 0 {
		return models.Run{}, ErrNotFound
	}
	return s.runs[len(s.runs)-1], nil
}

func copyResult(r models.ClassificationResult) models.ClassificationResult {
	if r.PriorityScore != nil {
		v := *r.PriorityScore
		r.PriorityScore = &v
	}
	if r.AssignedManagerID != nil {
		v := *r.AssignedManagerID
		r.AssignedManagerID = &v
	}
	return r
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(strings.TrimSpace(v), target) {
			return true
		}
	}
	return false
}
