package models

import (
	"math"
	"strconv"
	"strings"
)

const (
	TierHigh   = "High"
	TierMedium = "Medium"
	TierLow    = "Low"
)

// ParsePriority reads a numeric or numeric-like priority ("7", "7.0", "7,5").
func ParsePriority(raw string) (float64, bool) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return 0, false
	}
	v = strings.ReplaceAll(v, ",", ".")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NonFinitePriority reports whether raw is a numeric NaN or infinity
// ("inf", "-Infinity", "NaN").
func NonFinitePriority(raw string) bool {
	v := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && (math.IsNaN(f) || math.IsInf(f, 0))
}

// PriorityTier maps a priority onto High/Medium/Low. A value that is not a
// number is returned unchanged.
func PriorityTier(raw string) string {
	p, ok := ParsePriority(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	switch {
	case p >= 8:
		return TierHigh
	case p >= 5:
		return TierMedium
	default:
		return TierLow
	}
}
