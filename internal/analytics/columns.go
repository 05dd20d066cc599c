package analytics

import (
	"sort"
	"strconv"
	"strings"

	"github.com/freedom_case_2/fire/internal/models"
)

// Column is a projectable field of a reconciled result.
type Column struct {
	Name string
	Get  func(v models.ResultView) string
}

var columns = map[string]Column{}

var aliases = map[string]string{
	"ai_type":            "type",
	"ai_segment":         "segment",
	"ai_sentiment":       "sentiment",
	"ai_language":        "language",
	"ai_priority":        "priority",
	"assigned_office":    "office",
	"ai_assigned_office": "office",
	"manager_name":       "manager",
	"is_escalated":       "escalated",
	"ai_source":          "source",
}

func register(name string, get func(v models.ResultView) string) {
	columns[name] = Column{Name: name, Get: get}
}

func init() {
	register("type", func(v models.ResultView) string { return v.Result.Type })
	register("segment", func(v models.ResultView) string { return v.Result.Segment })
	register("sentiment", func(v models.ResultView) string { return v.Result.Sentiment })
	register("language", func(v models.ResultView) string { return v.Result.Language })
	register("priority", func(v models.ResultView) string { return v.Result.Priority })
	register("priority_tier", func(v models.ResultView) string { return models.PriorityTier(v.Result.Priority) })
	register("office", func(v models.ResultView) string { return v.Result.AssignedOffice })
	register("manager", managerLabel)
	register("resolution", func(v models.ResultView) string { return v.Result.Resolution })
	register("escalated", func(v models.ResultView) string { return strconv.FormatBool(v.Result.Escalated) })
	register("source", func(v models.ResultView) string { return v.Result.Source })
	register("geo_method", func(v models.ResultView) string { return v.Result.GeoMethod })
	register("city_original", func(v models.ResultView) string { return v.Result.CityOriginal })
	register("city", func(v models.ResultView) string { return v.Ticket.City })
	register("region", func(v models.ResultView) string { return v.Ticket.Region })
	register("country", func(v models.ResultView) string { return v.Ticket.Country })
	register("gender", func(v models.ResultView) string { return v.Ticket.Gender })
	register("client_segment", func(v models.ResultView) string { return v.Ticket.Segment })
}

// managerLabel keeps unresolved results visible under their own label.
func managerLabel(v models.ResultView) string {
	if v.Result.AssignedManagerID == nil || v.ManagerFullName == "" {
		return models.ResolutionUnresolved
	}
	return v.ManagerFullName
}

// LookupColumn resolves a column name or alias against the allow-list.
func LookupColumn(name string) (Column, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[key]; ok {
		key = canonical
	}
	c, ok := columns[key]
	return c, ok
}

// Columns lists the projectable column names.
func Columns() []string {
	out := make([]string, 0, len(columns))
	for name := range columns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
