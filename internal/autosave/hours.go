package autosave

import (
	"math"
	"strconv"
	"strings"
)

// ParseHours reads a value typed into an hours cell. Blank means zero;
// anything that is not a finite, non-negative number is rejected.
func ParseHours(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
