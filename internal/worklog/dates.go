package worklog

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date parsing errors. Callers match with errors.Is.
var (
	ErrInvalidFormat       = errors.New("invalid date format, expected month-day-year")
	ErrUnknownMonth        = errors.New("unknown month")
	ErrInvalidCalendarDate = errors.New("invalid calendar date")
)

var datePattern = regexp.MustCompile(`^([A-Za-z]+)-(\d{1,2})-(\d{4})$`)

// months accepts abbreviated and full month names. Both sep and sept map to
// September.
var months = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

// ParseDate parses a month-day-year token such as "oct-23-2025" into the
// canonical YYYY-MM-DD form. Month names are case-insensitive and may be
// abbreviated. The numeric parts must form a real calendar date; years are
// bounded to 1900-3000.
func ParseDate(s string) (string, error) {
	m := datePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	month, ok := months[strings.ToLower(m[1])]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMonth, m[1])
	}

	day, err := strconv.Atoi(m[2])
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	if year < 1900 || year > 3000 {
		return "", fmt.Errorf("%w: year %d out of range", ErrInvalidCalendarDate, year)
	}

	// time.Date normalizes out-of-range components (sept-31 becomes oct-1),
	// so round-trip the parts to reject impossible dates.
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return "", fmt.Errorf("%w: %q", ErrInvalidCalendarDate, s)
	}

	return t.Format("2006-01-02"), nil
}

// ParseClock parses an "H:MM" or "HH:MM" wall-clock token into minutes since
// midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid minutes in %q", s)
	}
	return h*60 + m, nil
}
