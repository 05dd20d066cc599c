package ai

import (
	"context"
	"hash/fnv"
	"strconv"

	"github.com/freedom_case_2/fire/internal/models"
)

type Roster interface {
	ListTicketGUIDs(ctx context.Context) ([]string, error)
	ListManagers(ctx context.Context, office string, skill string) ([]models.Manager, error)
}

// MockSource classifies every known ticket deterministically from its GUID.
// Used when no classifier URL is configured.
type MockSource struct {
	Roster Roster
}

func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func (m MockSource) FetchResults(ctx context.Context) ([]models.ResultRow, error) {
	guids, err := m.Roster.ListTicketGUIDs(ctx)
	if err != nil {
		return nil, err
	}
	managers, err := m.Roster.ListManagers(ctx, "", "")
	if err != nil {
		return nil, err
	}

	types := []string{"Жалоба", "Смена данных", "Консультация", "Претензия", "Неработоспособность приложения", "Мошеннические действия", "Спам"}
	sentiments := []string{"Позитивный", "Нейтральный", "Негативный", "Legal Risk"}
	langs := []string{"RU", "KZ", "ENG"}
	segments := []string{"Mass", "VIP", "Priority"}

	rows := make([]models.ResultRow, 0, len(guids))
	for _, guid := range guids {
		h := hashString(guid)
		row := models.ResultRow{
			GUID:          guid,
			Segment:       segments[int(h%uint64(len(segments)))],
			Type:          types[int((h/7)%uint64(len(types)))],
			Sentiment:     sentiments[int((h/13)%uint64(len(sentiments)))],
			Language:      langs[int((h/17)%uint64(len(langs)))],
			Priority:      models.FlexString(strconv.Itoa(int(h%10) + 1)),
			Source:        "mock",
			GeoMethod:     "mock",
			Escalated:     "Нет",
			ManagerName:   "Не найден",
			RoutingReason: "mock classification",
		}
		if len(managers) > 0 && h%5 != 0 {
			mgr := managers[int((h/19)%uint64(len(managers)))]
			row.ManagerName = mgr.FullName
			row.ManagerPosition = mgr.Position
			row.AssignedOffice = mgr.Office
		}
		rows = append(rows, row)
	}
	return rows, nil
}
