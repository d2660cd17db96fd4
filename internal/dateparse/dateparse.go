// Package dateparse parses natural language points in the past, as accepted
// by `recent --since`.
package dateparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Parse parses input relative to the current time.
// Supported formats:
//   - now, today, yesterday
//   - monday, tuesday, ... (most recent occurrence, today included)
//   - last monday, ... (strictly before today)
//   - last week, last month
//   - N days ago, N weeks ago, N hours ago
//   - 3d, 2w, 90m, 1h30m (a span back from now)
//   - YYYY-MM-DD, RFC 3339
//
// Day forms resolve to local midnight; spans resolve to an exact instant.
func Parse(input string) (time.Time, error) {
	return ParseFrom(input, time.Now())
}

// ParseFrom parses a point in time relative to now.
func ParseFrom(input string, now time.Time) (time.Time, error) {
	in := strings.ToLower(strings.Join(strings.Fields(input), " "))

	switch in {
	case "now":
		return now, nil
	case "today":
		return startOfDay(now), nil
	case "yesterday":
		return startOfDay(now.AddDate(0, 0, -1)), nil
	case "last week", "lastweek":
		return startOfDay(now.AddDate(0, 0, -7)), nil
	case "last month", "lastmonth":
		return startOfDay(now.AddDate(0, -1, 0)), nil
	}

	if day, ok := parseWeekday(strings.TrimPrefix(in, "last ")); ok {
		return startOfDay(previousWeekday(now, day, strings.HasPrefix(in, "last "))), nil
	}

	if m := agoPattern.FindStringSubmatch(in); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			switch m[2] {
			case "minute":
				return now.Add(-time.Duration(n) * time.Minute), nil
			case "hour":
				return now.Add(-time.Duration(n) * time.Hour), nil
			case "day":
				return startOfDay(now.AddDate(0, 0, -n)), nil
			case "week":
				return startOfDay(now.AddDate(0, 0, -7*n)), nil
			}
		}
	}

	if m := shortPattern.FindStringSubmatch(in); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			days := n
			if m[2] == "w" {
				days = 7 * n
			}
			return startOfDay(now.AddDate(0, 0, -days)), nil
		}
	}

	if d, err := time.ParseDuration(in); err == nil && d >= 0 {
		return now.Add(-d), nil
	}

	if t, err := time.ParseInLocation("2006-01-02", in, now.Location()); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(input)); err == nil {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("unrecognized date %q", strings.TrimSpace(input))
}

var (
	agoPattern   = regexp.MustCompile(`^(\d{1,6}) (minute|hour|day|week)s? ago$`)
	shortPattern = regexp.MustCompile(`^(\d{1,6})([dw])$`)
)

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func parseWeekday(input string) (time.Weekday, bool) {
	switch input {
	case "sunday", "sun":
		return time.Sunday, true
	case "monday", "mon":
		return time.Monday, true
	case "tuesday", "tue":
		return time.Tuesday, true
	case "wednesday", "wed":
		return time.Wednesday, true
	case "thursday", "thu":
		return time.Thursday, true
	case "friday", "fri":
		return time.Friday, true
	case "saturday", "sat":
		return time.Saturday, true
	}
	return 0, false
}

// previousWeekday returns the most recent target weekday on or before now.
// With strict ("last monday") today never matches.
func previousWeekday(now time.Time, target time.Weekday, strict bool) time.Time {
	daysBack := int(now.Weekday()-target+7) % 7
	if strict && daysBack == 0 {
		daysBack = 7
	}
	return now.AddDate(0, 0, -daysBack)
}
