package analytics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

const (
	ChartBar  = "bar"
	ChartLine = "line"
)

// Spec is an aggregation request. It usually comes from an untrusted
// translator, so nothing in it is trusted until Compile accepts it.
type Spec struct {
	ChartType string      `json:"chart_type" yaml:"chart_type" validate:"required,oneof=bar line"`
	Title     string      `json:"title" yaml:"title" validate:"max=200"`
	GroupBy   GroupBy     `json:"group_by" yaml:"group_by" validate:"required,min=1,max=2,dive,required"`
	FilterCol string      `json:"filter_col,omitempty" yaml:"filter_col,omitempty" validate:"required_with=FilterVal"`
	FilterVal FilterValue `json:"filter_val,omitempty" yaml:"filter_val,omitempty" validate:"required_with=FilterCol"`
	TopN      *int        `json:"top_n,omitempty" yaml:"top_n,omitempty" validate:"omitempty,min=1"`
}

// GroupBy is one column name or a list of one or two.
type GroupBy []string

func (g *GroupBy) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*g = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*g = GroupBy{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err != nil {
		return fmt.Errorf("group_by must be a column name or a list of column names")
	}
	*g = GroupBy(list)
	return nil
}

func (g *GroupBy) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*g = GroupBy{value.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*g = GroupBy(list)
		return nil
	}
	return fmt.Errorf("group_by must be a column name or a list of column names")
}

// FilterValue holds one value (equality) or several (membership). Numbers and
// booleans are kept in their textual form.
type FilterValue []string

func (f *FilterValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = nil
		return nil
	}
	if len(b) > 0 && b[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		out := make(FilterValue, 0, len(items))
		for _, item := range items {
			v, err := scalarText(item)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		*f = out
		return nil
	}
	v, err := scalarText(b)
	if err != nil {
		return err
	}
	*f = FilterValue{v}
	return nil
}

func (f *FilterValue) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*f = FilterValue{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make(FilterValue, 0, len(value.Content))
		for _, n := range value.Content {
			if n.Kind != yaml.ScalarNode {
				return fmt.Errorf("filter_val items must be scalars")
			}
			out = append(out, n.Value)
		}
		*f = out
		return nil
	}
	return fmt.Errorf("filter_val must be a scalar or a list of scalars")
}

func scalarText(raw json.RawMessage) (string, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case string:
		return t, nil
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		}
		return t.String(), nil
	case bool:
		return strconv.FormatBool(t), nil
	}
	return "", fmt.Errorf("filter_val items must be strings, numbers or booleans")
}
