package ingest

import (
	"strconv"
	"strings"
)

// ParseNumber parses a cell value as a float, tolerating percent signs,
// thousands separators, and comma decimals. The decimal separator is
// auto-detected per value.
func ParseNumber(s string) (float64, bool) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, false
	}
	raw = strings.ReplaceAll(raw, "%", "")
	raw = strings.ReplaceAll(raw, "\u00A0", " ")
	raw = strings.TrimSpace(raw)

	dec := '.'
	cpos := strings.LastIndex(raw, ",")
	dpos := strings.LastIndex(raw, ".")
	if cpos >= 0 && dpos >= 0 {
		if cpos > dpos {
			dec = ','
		}
	} else if cpos >= 0 && !isGroupingTail(raw, cpos) {
		dec = ','
	}
	for _, sep := range []rune{',', '.', ' '} {
		if sep != dec {
			raw = strings.ReplaceAll(raw, string(sep), "")
		}
	}
	if dec != '.' {
		raw = strings.ReplaceAll(raw, string(dec), ".")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// isGroupingTail reports whether the separator at pos reads as a thousands
// group: exactly three digits follow it to the end of the value.
func isGroupingTail(raw string, pos int) bool {
	tail := raw[pos+1:]
	if len(tail) != 3 {
		return false
	}
	for _, r := range tail {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
