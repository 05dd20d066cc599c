package analytics

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/freedom_case_2/fire/internal/models"
)

//go:embed presets.yaml
var defaultPresets []byte

type Preset struct {
	Name string `yaml:"name" json:"name"`
	Spec Spec   `yaml:"spec" json:"spec"`
}

// LoadPresets reads dashboard presets from path, or the built-in set when
// path is empty. Every preset must compile.
func LoadPresets(path string) ([]Preset, error) {
	data := defaultPresets
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read presets: %w", err)
		}
		data = b
	}
	return ParsePresets(data)
}

func ParsePresets(data []byte) ([]Preset, error) {
	var presets []Preset
	if err := yaml.Unmarshal(data, &presets); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	seen := map[string]bool{}
	for i, p := range presets {
		if p.Name == "" {
			return nil, fmt.Errorf("preset %d: missing name", i)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("preset %s: duplicate name", p.Name)
		}
		seen[p.Name] = true
		if _, w := Compile(p.Spec); w != nil {
			return nil, fmt.Errorf("preset %s: %w", p.Name, w)
		}
	}
	return presets, nil
}

type Summary struct {
	Total      int `json:"total"`
	VIP        int `json:"vip"`
	Spam       int `json:"spam"`
	LegalRisk  int `json:"legal_risk"`
	Escalated  int `json:"escalated"`
	Unresolved int `json:"unresolved"`
}

type Chart struct {
	Name   string `json:"name"`
	Result Result `json:"result"`
}

type Dashboard struct {
	Summary Summary `json:"summary"`
	Charts  []Chart `json:"charts"`
}

// BuildDashboard evaluates the summary counters and every preset over records.
func BuildDashboard(records []models.ResultView, presets []Preset) Dashboard {
	count := func(column string, values ...string) int {
		n, _ := CountWhere(records, column, values...)
		return n
	}
	d := Dashboard{
		Summary: Summary{
			Total:      len(records),
			VIP:        count("segment", "VIP"),
			Spam:       count("type", "Спам", "Spam"),
			LegalRisk:  count("sentiment", "Legal Risk"),
			Escalated:  count("escalated", "true"),
			Unresolved: count("resolution", models.ResolutionUnresolved),
		},
		Charts: make([]Chart, 0, len(presets)),
	}
	for _, p := range presets {
		d.Charts = append(d.Charts, Chart{Name: p.Name, Result: Aggregate(records, p.Spec)})
	}
	return d
}
