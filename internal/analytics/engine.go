package analytics

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/freedom_case_2/fire/internal/models"
)

const (
	KindHistogram = "histogram"
	KindCrossTab  = "crosstab"
	KindNoData    = "no_data"
	KindWarning   = "warning"
)

type Bucket struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type Table struct {
	RowColumn string   `json:"row_column"`
	ColColumn string   `json:"col_column"`
	Rows      []string `json:"rows"`
	Columns   []string `json:"columns"`
	Cells     [][]int  `json:"cells"`
}

// Cell returns the count at (row, col), or 0 when either label is absent.
func (t *Table) Cell(row, col string) int {
	ri, ci := -1, -1
	for i, r := range t.Rows {
		if r == row {
			ri = i
			break
		}
	}
	for i, c := range t.Columns {
		if c == col {
			ci = i
			break
		}
	}
	if ri < 0 || ci < 0 {
		return 0
	}
	return t.Cells[ri][ci]
}

type Warning struct {
	Field   string   `json:"field"`
	Value   string   `json:"value,omitempty"`
	Message string   `json:"message"`
	Allowed []string `json:"allowed,omitempty"`
}

func (w *Warning) Error() string {
	if w.Value != "" {
		return fmt.Sprintf("%s %q: %s", w.Field, w.Value, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Field, w.Message)
}

// Result is exactly one of a histogram, a cross-tab, no_data or a warning.
type Result struct {
	Kind      string   `json:"kind"`
	ChartType string   `json:"chart_type,omitempty"`
	Title     string   `json:"title,omitempty"`
	GroupBy   []string `json:"group_by,omitempty"`
	Total     int      `json:"total"`
	Buckets   []Bucket `json:"buckets,omitempty"`
	Table     *Table   `json:"table,omitempty"`
	Warning   *Warning `json:"warning,omitempty"`
}

// Count returns the histogram count for value.
func (r Result) Count(value string) int {
	for _, b := range r.Buckets {
		if b.Value == value {
			return b.Count
		}
	}
	return 0
}

func WarningResult(w *Warning) Result {
	return Result{Kind: KindWarning, Warning: w}
}

// Plan is a validated Spec bound to allow-listed columns.
type Plan struct {
	ChartType    string
	Title        string
	Group        []Column
	FilterColumn *Column
	FilterValues []string
	TopN         int
}

var (
	validate    = newValidator()
	indexSuffix = regexp.MustCompile(`\[\d+\]$`)
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Compile validates spec and binds it to the column allow-list.
func Compile(spec Spec) (Plan, *Warning) {
	if err := validate.Struct(spec); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return Plan{}, fieldWarning(verrs[0])
		}
		return Plan{}, &Warning{Field: "spec", Message: err.Error()}
	}

	plan := Plan{ChartType: spec.ChartType, Title: spec.Title}
	for _, name := range spec.GroupBy {
		col, ok := LookupColumn(name)
		if !ok {
			return Plan{}, unknownColumn("group_by", name)
		}
		plan.Group = append(plan.Group, col)
	}
	if strings.TrimSpace(spec.FilterCol) != "" {
		col, ok := LookupColumn(spec.FilterCol)
		if !ok {
			return Plan{}, unknownColumn("filter_col", spec.FilterCol)
		}
		plan.FilterColumn = &col
		for _, v := range spec.FilterVal {
			plan.FilterValues = append(plan.FilterValues, strings.TrimSpace(v))
		}
	}
	if spec.TopN != nil {
		plan.TopN = *spec.TopN
	}
	return plan, nil
}

func fieldWarning(fe validator.FieldError) *Warning {
	field := indexSuffix.ReplaceAllString(fe.Field(), "")
	w := &Warning{Field: field}
	if s, ok := fe.Value().(string); ok {
		w.Value = s
	}
	switch fe.Tag() {
	case "required":
		w.Message = "is required"
	case "required_with":
		w.Message = "filter_col and filter_val must be given together"
	case "oneof":
		w.Message = "must be one of: " + fe.Param()
		w.Allowed = strings.Fields(fe.Param())
	case "min":
		w.Message = "must be at least " + fe.Param()
	case "max":
		w.Message = "must be at most " + fe.Param()
	default:
		w.Message = "failed " + fe.Tag() + " check"
	}
	return w
}

func unknownColumn(field, name string) *Warning {
	return &Warning{
		Field:   field,
		Value:   name,
		Message: "column is not available",
		Allowed: Columns(),
	}
}

// Aggregate evaluates spec over records. It never fails: invalid input becomes
// a warning result.
func Aggregate(records []models.ResultView, spec Spec) Result {
	plan, w := Compile(spec)
	if w != nil {
		return WarningResult(w)
	}
	return plan.Execute(records)
}

func (p Plan) matches(v models.ResultView) bool {
	if p.FilterColumn == nil {
		return true
	}
	got := strings.TrimSpace(p.FilterColumn.Get(v))
	for _, want := range p.FilterValues {
		if strings.EqualFold(got, want) {
			return true
		}
	}
	return false
}

// Filter returns the records that pass the plan's filter.
func (p Plan) Filter(records []models.ResultView) []models.ResultView {
	out := make([]models.ResultView, 0, len(records))
	for _, r := range records {
		if p.matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (p Plan) Execute(records []models.ResultView) Result {
	rows := p.Filter(records)
	res := Result{ChartType: p.ChartType, Title: p.Title, Total: len(rows)}
	for _, c := range p.Group {
		res.GroupBy = append(res.GroupBy, c.Name)
	}
	if len(rows) == 0 {
		res.Kind = KindNoData
		return res
	}

	if len(p.Group) == 1 {
		res.Buckets = p.histogram(rows)
		res.Kind = KindHistogram
		if len(res.Buckets) == 0 {
			res.Kind = KindNoData
		}
		return res
	}

	res.Table = p.crossTab(rows)
	res.Kind = KindCrossTab
	if len(res.Table.Rows) == 0 {
		res.Kind = KindNoData
		res.Table = nil
	}
	return res
}

func (p Plan) histogram(rows []models.ResultView) []Bucket {
	counts := map[string]int{}
	for _, r := range rows {
		v := strings.TrimSpace(p.Group[0].Get(r))
		if v == "" {
			continue
		}
		counts[v]++
	}
	buckets := make([]Bucket, 0, len(counts))
	for v, n := range counts {
		buckets = append(buckets, Bucket{Value: v, Count: n})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Count != buckets[j].Count {
			return buckets[i].Count > buckets[j].Count
		}
		return buckets[i].Value < buckets[j].Value
	})
	if p.TopN > 0 && len(buckets) > p.TopN {
		buckets = buckets[:p.TopN]
	}
	return buckets
}

func (p Plan) crossTab(rows []models.ResultView) *Table {
	type key struct{ row, col string }
	counts := map[key]int{}
	rowSet := map[string]struct{}{}
	colSet := map[string]struct{}{}
	for _, r := range rows {
		rv := strings.TrimSpace(p.Group[0].Get(r))
		cv := strings.TrimSpace(p.Group[1].Get(r))
		if rv == "" || cv == "" {
			continue
		}
		counts[key{rv, cv}]++
		rowSet[rv] = struct{}{}
		colSet[cv] = struct{}{}
	}

	t := &Table{
		RowColumn: p.Group[0].Name,
		ColColumn: p.Group[1].Name,
		Rows:      sortedKeys(rowSet),
		Columns:   sortedKeys(colSet),
	}
	if p.TopN > 0 && len(t.Rows) > p.TopN {
		t.Rows = t.Rows[:p.TopN]
	}
	t.Cells = make([][]int, len(t.Rows))
	for i, rv := range t.Rows {
		t.Cells[i] = make([]int, len(t.Columns))
		for j, cv := range t.Columns {
			t.Cells[i][j] = counts[key{rv, cv}]
		}
	}
	return t
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CountWhere counts records whose column value is one of values.
func CountWhere(records []models.ResultView, column string, values ...string) (int, error) {
	col, ok := LookupColumn(column)
	if !ok {
		return 0, unknownColumn("filter_col", column)
	}
	p := Plan{FilterColumn: &col, FilterValues: values}
	return len(p.Filter(records)), nil
}
