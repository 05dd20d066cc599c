package analytics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freedom_case_2/fire/internal/models"
)

type rec struct {
	typ, lang, office, manager string
	priority                   string
}

func views(recs ...rec) []models.ResultView {
	out := make([]models.ResultView, 0, len(recs))
	for i, r := range recs {
		v := models.ResultView{
			Ticket: models.Ticket{GUID: string(rune('a' + i))},
			Result: models.ClassificationResult{
				TicketGUID:     string(rune('a' + i)),
				Type:           r.typ,
				Language:       r.lang,
				AssignedOffice: r.office,
				Priority:       r.priority,
				Resolution:     models.ResolutionUnresolved,
			},
		}
		if r.manager != "" {
			id := "id-" + r.manager
			v.Result.AssignedManagerID = &id
			v.Result.Resolution = models.ResolutionNameMatch
			v.ManagerFullName = r.manager
		}
		out = append(out, v)
	}
	return out
}

func intPtr(n int) *int { return &n }

func TestHistogramOrdersByCount(t *testing.T) {
	data := views(rec{typ: "A"}, rec{typ: "A"}, rec{typ: "B"}, rec{typ: "C"}, rec{typ: "C"}, rec{typ: "C"})
	res := Aggregate(data, Spec{ChartType: ChartBar, GroupBy: GroupBy{"type"}})

	require.Equal(t, KindHistogram, res.Kind)
	assert.Equal(t, []Bucket{{"C", 3}, {"A", 2}, {"B", 1}}, res.Buckets)
	assert.Equal(t, 6, res.Total)
}

func TestHistogramTieBreaksByValue(t *testing.T) {
	data := views(rec{typ: "B"}, rec{typ: "A"})
	res := Aggregate(data, Spec{ChartType: ChartBar, GroupBy: GroupBy{"type"}})
	assert.Equal(t, []Bucket{{"A", 1}, {"B", 1}}, res.Buckets)
}

func TestHistogramTopN(t *testing.T) {
	data := views(rec{typ: "A"}, rec{typ: "A"}, rec{typ: "B"}, rec{typ: "C"}, rec{typ: "C"}, rec{typ: "C"})
	res := Aggregate(data, Spec{ChartType: ChartLine, GroupBy: GroupBy{"type"}, TopN: intPtr(2)})
	assert.Equal(t, []Bucket{{"C", 3}, {"A", 2}}, res.Buckets)
}

func TestFilterThenGroup(t *testing.T) {
	data := views(
		rec{typ: "Жалоба", lang: "RU"},
		rec{typ: "Жалоба", lang: "KZ"},
		rec{typ: "Спам", lang: "RU"},
		rec{typ: "Жалоба", lang: "ru"},
	)
	res := Aggregate(data, Spec{ChartType: ChartBar, GroupBy: GroupBy{"type"}, FilterCol: "language", FilterVal: FilterValue{"RU"}})
	require.Equal(t, KindHistogram, res.Kind)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 2, res.Count("Жалоба"))
	assert.Equal(t, 1, res.Count("Спам"))
}

func TestFilterMembership(t *testing.T) {
	data := views(rec{typ: "A", lang: "RU"}, rec{typ: "B", lang: "KZ"}, rec{typ: "C", lang: "ENG"})
	res := Aggregate(data, Spec{ChartType: ChartBar, GroupBy: GroupBy{"type"}, FilterCol: "language", FilterVal: FilterValue{"RU", "KZ"}})
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 0, res.Count("C"))
}

func TestCrossTabCounts(t *testing.T) {
	data := views(
		rec{typ: "A", office: "Астана"},
		rec{typ: "A", office: "Астана"},
		rec{typ: "B", office: "Астана"},
		rec{typ: "A", office: "Алматы"},
	)
	res := Aggregate(data, Spec{ChartType: ChartBar, GroupBy: GroupBy{"office", "type"}})
	require.Equal(t, KindCrossTab, res.Kind)
	require.NotNil(t, res.Table)
	assert.Equal(t, []string{"Алматы", "Астана"}, res.Table.Rows)
	assert.Equal(t, []string{"A", "B"}, res.Table.Columns)
	assert.Equal(t, 2, res.Table.Cell("Астана", "A"))
	assert.Equal(t, 1, res.Table.Cell("Астана", "B"))
	assert.Equal(t, 1, res.Table.Cell("Алматы", "A"))
	assert.Equal(t, 0, res.Table.Cell("Алматы", "B"))
}

func TestCrossTabTopNKeepsRowsByPosition(t *testing.T) {
	data := views(rec{typ: "A", office: "C"}, rec{typ: "A", office: "C"}, rec{typ: "A", office: "B"}, rec{typ: "B", office: "A"})
	res := Aggregate(data, Spec{ChartType: ChartBar, GroupBy: GroupBy{"office", "type"}, TopN: intPtr(2)})
	require.NotNil(t, res.Table)
	assert.Equal(t, []string{"A", "B"}, res.Table.Rows)
	assert.Equal(t, []string{"A", "B"}, res.Table.Columns)
	assert.Len(t, res.Table.Cells, 2)
}

func TestUnresolvedManagerLabel(t *testing.T) {
	data := views(rec{manager: "Иванов Иван"}, rec{}, rec{})
	res := Aggregate(data, Spec{ChartType: ChartBar, GroupBy: GroupBy{"manager"}})
	assert.Equal(t, 2, res.Count(models.ResolutionUnresolved))
	assert.Equal(t, 1, res.Count("Иванов Иван"))
}

func TestEmptyGroupValuesAreNotCounted(t *testing.T) {
	data := views(rec{typ: "A"}, rec{typ: ""}, rec{typ: "  "})
	res := Aggregate(data, Spec{ChartType: ChartBar, GroupBy: GroupBy{"type"}})
	assert.Equal(t, []Bucket{{"A", 1}}, res.Buckets)
}

func TestNoDataAfterFilter(t *testing.T) {
	data := views(rec{typ: "A", lang: "RU"})
	res := Aggregate(data, Spec{ChartType: ChartBar, GroupBy: GroupBy{"type"}, FilterCol: "language", FilterVal: FilterValue{"KZ"}})
	assert.Equal(t, KindNoData, res.Kind)
	assert.Empty(t, res.Buckets)
	assert.Nil(t, res.Warning)
}

func TestPriorityTierColumn(t *testing.T) {
	data := views(rec{priority: "9"}, rec{priority: "6"}, rec{priority: "2"}, rec{priority: "urgent"})
	res := Aggregate(data, Spec{ChartType: ChartBar, GroupBy: GroupBy{"priority_tier"}})
	assert.Equal(t, 1, res.Count(models.TierHigh))
	assert.Equal(t, 1, res.Count(models.TierMedium))
	assert.Equal(t, 1, res.Count(models.TierLow))
	assert.Equal(t, 1, res.Count("urgent"))
}

func TestWarnings(t *testing.T) {
	data := views(rec{typ: "A"})
	cases := []struct {
		name  string
		spec  Spec
		field string
	}{
		{"unknown group column", Spec{ChartType: ChartBar, GroupBy: GroupBy{"password"}}, "group_by"},
		{"unknown filter column", Spec{ChartType: ChartBar, GroupBy: GroupBy{"type"}, FilterCol: "drop table", FilterVal: FilterValue{"x"}}, "filter_col"},
		{"bad chart type", Spec{ChartType: "pie", GroupBy: GroupBy{"type"}}, "chart_type"},
		{"missing group", Spec{ChartType: ChartBar}, "group_by"},
		{"too many groups", Spec{ChartType: ChartBar, GroupBy: GroupBy{"type", "language", "office"}}, "group_by"},
		{"empty group name", Spec{ChartType: ChartBar, GroupBy: GroupBy{""}}, "group_by"},
		{"zero top_n", Spec{ChartType: ChartBar, GroupBy: GroupBy{"type"}, TopN: intPtr(0)}, "top_n"},
		{"negative top_n", Spec{ChartType: ChartBar, GroupBy: GroupBy{"type"}, TopN: intPtr(-3)}, "top_n"},
		{"filter value without column", Spec{ChartType: ChartBar, GroupBy: GroupBy{"type"}, FilterVal: FilterValue{"x"}}, "filter_col"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Aggregate(data, tc.spec)
			require.Equal(t, KindWarning, res.Kind)
			require.NotNil(t, res.Warning)
			assert.Equal(t, tc.field, res.Warning.Field)
			assert.NotEmpty(t, res.Warning.Message)
			assert.Empty(t, res.Buckets)
		})
	}
}

func TestAliasesResolve(t *testing.T) {
	data := views(rec{typ: "A", office: "Астана"})
	res := Aggregate(data, Spec{ChartType: ChartBar, GroupBy: GroupBy{"AI_Type"}, FilterCol: "assigned_office", FilterVal: FilterValue{"астана"}})
	require.Equal(t, KindHistogram, res.Kind)
	assert.Equal(t, []string{"type"}, res.GroupBy)
	assert.Equal(t, 1, res.Count("A"))
}

func TestSpecFromJSON(t *testing.T) {
	var spec Spec
	require.NoError(t, json.Unmarshal([]byte(`{"chart_type":"bar","group_by":"escalated","filter_col":"priority","filter_val":[9, "10"],"top_n":3}`), &spec))
	assert.Equal(t, GroupBy{"escalated"}, spec.GroupBy)
	assert.Equal(t, FilterValue{"9", "10"}, spec.FilterVal)
	require.NotNil(t, spec.TopN)
	assert.Equal(t, 3, *spec.TopN)

	require.NoError(t, json.Unmarshal([]byte(`{"chart_type":"line","group_by":["office","type"],"filter_col":"escalated","filter_val":true}`), &spec))
	assert.Equal(t, GroupBy{"office", "type"}, spec.GroupBy)
	assert.Equal(t, FilterValue{"true"}, spec.FilterVal)

	assert.Error(t, json.Unmarshal([]byte(`{"group_by": 5}`), &spec))
	assert.Error(t, json.Unmarshal([]byte(`{"filter_val": {"a": 1}}`), &spec))
}

func TestCountWhere(t *testing.T) {
	data := views(rec{typ: "Спам"}, rec{typ: "spam"}, rec{typ: "Жалоба"})
	n, err := CountWhere(data, "type", "Спам", "Spam")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = CountWhere(data, "nope")
	assert.Error(t, err)
}
