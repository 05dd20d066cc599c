package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/freedom_case_2/fire/internal/models"
)

var ErrHeader = errors.New("failed to read header")

const maxRosterLoad = math.MaxInt32

type rowFunc func(line int, rec []string, index map[string]int) error

// readCSV calls fn for every record. Record-level problems are collected;
// only an unreadable header fails the whole file.
func readCSV(r io.Reader, fn rowFunc) []string {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	headers, err := reader.Read()
	if err != nil {
		return []string{ErrHeader.Error()}
	}
	index := headerIndex(headers)

	var errs []string
	line := 1
	for {
		rec, err := reader.Read()
		line++
		if err == io.EOF {
			break
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if blank(rec) {
			continue
		}
		if err := fn(line, rec, index); err != nil {
			errs = append(errs, fmt.Sprintf("line %d: %v", line, err))
		}
	}
	return errs
}

func ParseBusinessUnits(r io.Reader) ([]models.BusinessUnit, []string) {
	var out []models.BusinessUnit
	seen := map[string]bool{}
	errs := readCSV(r, func(_ int, rec []string, index map[string]int) error {
		name := getFieldAny(rec, index, "офис", "office", "name", "office_name")
		if name == "" {
			return errors.New("business unit name required")
		}
		if seen[strings.ToLower(name)] {
			return nil
		}
		seen[strings.ToLower(name)] = true
		city := getFieldAny(rec, index, "город", "city")
		if city == "" {
			city = name
		}
		out = append(out, models.BusinessUnit{
			Name:    name,
			Address: getFieldAny(rec, index, "адрес", "address"),
			City:    city,
		})
		return nil
	})
	return out, errs
}

// ParseManagers reads the roster. The office column is matched against units
// by case-insensitive containment; an unmatched office is left empty.
func ParseManagers(r io.Reader, units []models.BusinessUnit) ([]models.Manager, []string) {
	var out []models.Manager
	now := time.Now().UTC()
	errs := readCSV(r, func(_ int, rec []string, index map[string]int) error {
		name := getFieldAny(rec, index, "фио", "full_name", "name")
		if name == "" {
			return errors.New("manager name required")
		}
		m := models.Manager{
			ID:           getFieldAny(rec, index, "id", "manager_id"),
			FullName:     collapseSpaces(name),
			Position:     collapseSpaces(getFieldAny(rec, index, "должность", "position", "role")),
			Office:       MatchOffice(getFieldAny(rec, index, "офис", "office"), units),
			Skills:       normalizeSkills(getFieldAny(rec, index, "навыки", "skills")),
			BaselineLoad: safeInt(getFieldAny(rec, index, "количество обращений в работе", "baseline_load", "current_load")),
			UpdatedAt:    now,
		}
		out = append(out, m)
		return nil
	})
	return out, errs
}

func ParseTickets(r io.Reader) ([]models.Ticket, []string) {
	var out []models.Ticket
	now := time.Now().UTC()
	errs := readCSV(r, func(_ int, rec []string, index map[string]int) error {
		guid := getFieldAny(rec, index, "guid клиента", "guid", "ticket_guid", "id")
		if guid == "" {
			return errors.New("ticket guid required")
		}
		out = append(out, models.Ticket{
			GUID:        guid,
			Gender:      getFieldAny(rec, index, "пол клиента", "gender"),
			BirthDate:   getFieldAny(rec, index, "дата рождения", "birth_date"),
			Description: getFieldAny(rec, index, "описание", "description", "message"),
			Attachments: getFieldAny(rec, index, "вложения", "attachments"),
			Segment:     getFieldAny(rec, index, "сегмент клиента", "segment"),
			Country:     getFieldAny(rec, index, "страна", "country"),
			Region:      getFieldAny(rec, index, "область", "region"),
			City:        getFieldAny(rec, index, "населённый пункт", "населенный пункт", "city", "город"),
			Street:      getFieldAny(rec, index, "улица", "street"),
			House:       getFieldAny(rec, index, "дом", "house"),
			CreatedAt:   now,
		})
		return nil
	})
	return out, errs
}

// ParseResults reads classifier output in the results.csv layout.
func ParseResults(r io.Reader) ([]models.ResultRow, []string) {
	var out []models.ResultRow
	errs := readCSV(r, func(_ int, rec []string, index map[string]int) error {
		out = append(out, models.ResultRow{
			GUID:            getFieldAny(rec, index, "guid", "guid клиента", "ticket_guid"),
			Segment:         getFieldAny(rec, index, "сегмент", "segment"),
			Type:            getFieldAny(rec, index, "тип", "type", "ai_тип"),
			Sentiment:       getFieldAny(rec, index, "тональность", "sentiment", "ai_тональность"),
			Language:        getFieldAny(rec, index, "язык", "language"),
			Priority:        models.FlexString(getFieldAny(rec, index, "приоритет", "priority")),
			Recommendation:  getFieldAny(rec, index, "рекомендации менеджеру", "recommendation"),
			Attachments:     getFieldAny(rec, index, "вложения", "attachments"),
			ManagerID:       getFieldAny(rec, index, "manager_id", "id менеджера"),
			ManagerName:     getFieldAny(rec, index, "назначенный менеджер", "manager_name", "manager"),
			ManagerPosition: getFieldAny(rec, index, "должность", "manager_position", "position"),
			AssignedOffice:  getFieldAny(rec, index, "офис назначения", "assigned_office", "office"),
			Escalated:       models.FlexString(getFieldAny(rec, index, "эскалирован", "escalated")),
			CityOriginal:    getFieldAny(rec, index, "город_оригинал", "city_original"),
			RoutingReason:   getFieldAny(rec, index, "причина_роутинга", "routing_reason"),
			Source:          getFieldAny(rec, index, "ai_источник", "source"),
			GeoMethod:       getFieldAny(rec, index, "метод_гео", "geo_method"),
		})
		return nil
	})
	return out, errs
}

// MatchOffice returns the unit whose name equals or contains value, ignoring
// case. Units are tried in order; exact matches win.
func MatchOffice(value string, units []models.BusinessUnit) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return ""
	}
	for _, u := range units {
		if strings.ToLower(u.Name) == v {
			return u.Name
		}
	}
	for _, u := range units {
		if strings.Contains(strings.ToLower(u.Name), v) || strings.Contains(v, strings.ToLower(u.Name)) {
			return u.Name
		}
	}
	return ""
}

func headerIndex(headers []string) map[string]int {
	idx := map[string]int{}
	for i, h := range headers {
		key := normalizeHeader(h)
		if _, ok := idx[key]; !ok {
			idx[key] = i
		}
	}
	return idx
}

func getField(rec []string, idx map[string]int, name string) string {
	pos, ok := idx[name]
	if !ok || pos >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[pos])
}

func getFieldAny(rec []string, idx map[string]int, names ...string) string {
	for _, name := range names {
		if v := getField(rec, idx, normalizeHeader(name)); v != "" {
			return v
		}
	}
	return ""
}

func normalizeHeader(h string) string {
	h = strings.ReplaceAll(h, "\ufeff", "")
	return strings.ToLower(strings.TrimSpace(h))
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func collapseSpaces(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

// safeInt reads a non-negative count; anything else is 0.
// safeInt reads a roster load. Negative, non-finite or out-of-range values
// become 0.
func safeInt(raw string) int {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 || n > maxRosterLoad {
			return 0
		}
		return n
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", "."), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 || f > maxRosterLoad {
		return 0
	}
	return int(f)
}

func normalizeSkills(raw string) []string {
	raw = strings.ReplaceAll(raw, ";", ",")
	parts := strings.Split(raw, ",")
	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		upper := strings.ToUpper(p)
		switch upper {
		case "RU", "RUS", "RUSSIAN":
			upper = "RU"
		case "KZ", "KAZ", "KAZAKH":
			upper = "KZ"
		case "EN", "ENG", "ENGLISH":
			upper = "ENG"
		}
		if _, ok := seen[upper]; ok {
			continue
		}
		seen[upper] = struct{}{}
		out = append(out, upper)
	}
	return out
}
