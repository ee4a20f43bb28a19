package domain

import (
	"strings"
	"time"
)

// DateLayout is the canonical calendar-day form every transaction date is
// normalized to before it enters the cache.
const DateLayout = "2006-01-02"

// dateLayouts are the fallback layouts tried, in order, when a date is
// neither ISO-prefixed nor DD/MM/YYYY. The spreadsheet backend has
// historically produced all of these.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02-01-2006",
	"January 2, 2006",
	"Jan 2, 2006",
	time.RFC1123,
}

// CanonicalDate normalizes a raw date value to YYYY-MM-DD. It accepts
// ISO-prefixed strings ("2024-03-05T10:00:00Z"), DD/MM/YYYY, or any of a
// short list of other parseable layouts. An empty input becomes today's
// date (in the supplied clock's location); an unparseable non-empty input
// is returned as-is so the original value stays visible.
func CanonicalDate(raw string, now time.Time) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return now.Format(DateLayout)
	}

	// ISO date or ISO timestamp: the first ten characters are the day.
	if len(s) >= len(DateLayout) {
		if d, err := time.Parse(DateLayout, s[:len(DateLayout)]); err == nil {
			return d.Format(DateLayout)
		}
	}

	if d, err := time.Parse("02/01/2006", s); err == nil {
		return d.Format(DateLayout)
	}

	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format(DateLayout)
		}
	}

	return s
}

// CoerceEdited folds the loose representations of the edited flag found
// in remote snapshots down to a boolean. The spreadsheet layer stores it
// variously as a real boolean or as the strings "TRUE"/"true"; everything
// else (including absence) means not edited.
func CoerceEdited(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val == "TRUE" || val == "true"
	default:
		return false
	}
}
