package tracker

import (
	"fmt"
	"strconv"
	"strings"
)

// encodeHours renders fractional hours as an ISO-8601 duration of the form
// the API exchanges, e.g. 2.5 -> "PT2.5H".
func encodeHours(hours float64) string {
	return "PT" + strconv.FormatFloat(hours, 'f', -1, 64) + "H"
}

// decodeHours parses a PT<hours>H duration string back to fractional hours.
func decodeHours(s string) (float64, error) {
	trimmed := strings.TrimSpace(s)
	upper := strings.ToUpper(trimmed)
	if !strings.HasPrefix(upper, "PT") || !strings.HasSuffix(upper, "H") {
		return 0, fmt.Errorf("invalid duration %q, expected PT<hours>H", s)
	}
	v, err := strconv.ParseFloat(trimmed[2:len(trimmed)-1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return v, nil
}

// idFromHref extracts the trailing numeric ID from an API href such as
// "/api/v3/work_packages/42".
func idFromHref(href string) (int64, bool) {
	if href == "" {
		return 0, false
	}
	idx := strings.LastIndexByte(strings.TrimRight(href, "/"), '/')
	if idx < 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimRight(href, "/")[idx+1:], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
