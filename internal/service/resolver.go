package service

import (
	"sort"
	"strings"

	"github.com/freedom_case_2/fire/internal/models"
)

// sentinelNames are classifier outputs meaning "no manager was chosen".
var sentinelNames = map[string]struct{}{
	"":          {},
	"-":         {},
	"—":         {},
	"not found": {},
	"не найден": {},
	"unknown":   {},
	"none":      {},
	"n/a":       {},
}

type Resolution struct {
	Manager   *models.Manager
	Method    string
	Ambiguous bool
}

// ManagerResolver resolves a result row to a roster manager: exact id first,
// then the free-text name.
type ManagerResolver struct {
	byID   map[string]models.Manager
	roster []models.Manager
}

func NewManagerResolver(managers []models.Manager) *ManagerResolver {
	roster := append([]models.Manager(nil), managers...)
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].FullName == roster[j].FullName {
			return roster[i].ID < roster[j].ID
		}
		return roster[i].FullName < roster[j].FullName
	})
	byID := make(map[string]models.Manager, len(roster))
	for _, m := range roster {
		byID[m.ID] = m
	}
	return &ManagerResolver{byID: byID, roster: roster}
}

func (r *ManagerResolver) Resolve(managerID, managerName string) Resolution {
	if id := strings.TrimSpace(managerID); id != "" {
		if m, ok := r.byID[id]; ok {
			return Resolution{Manager: &m, Method: models.ResolutionStructured}
		}
	}
	return r.ResolveName(managerName)
}

// ResolveName matches case-insensitively: whole name first, then the first
// roster name (by full name, id) containing the given text.
func (r *ManagerResolver) ResolveName(name string) Resolution {
	key := NormalizeName(name)
	if IsSentinelName(key) {
		return Resolution{Method: models.ResolutionUnresolved}
	}
	for i := range r.roster {
		if NormalizeName(r.roster[i].FullName) == key {
			m := r.roster[i]
			return Resolution{Manager: &m, Method: models.ResolutionNameMatch}
		}
	}
	var match *models.Manager
	candidates := 0
	for i := range r.roster {
		if strings.Contains(NormalizeName(r.roster[i].FullName), key) {
			if match == nil {
				m := r.roster[i]
				match = &m
			}
			candidates++
		}
	}
	if match == nil {
		return Resolution{Method: models.ResolutionUnresolved}
	}
	return Resolution{Manager: match, Method: models.ResolutionNameMatch, Ambiguous: candidates > 1}
}

// NormalizeName lower-cases and collapses whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func IsSentinelName(normalized string) bool {
	_, ok := sentinelNames[normalized]
	return ok
}
