package presenter

import (
	"fmt"
	"strings"
	"time"
)

// now is replaced in tests.
var now = time.Now

// FormatField formats a field value according to its FieldSpec.
func FormatField(spec FieldSpec, val any, locale Locale) string {
	switch spec.Format {
	case "number":
		return formatNumber(val, locale)
	case "percent":
		return formatPercent(val, locale)
	case "boolean":
		return formatBoolean(spec, val)
	case "date":
		return formatDate(val, locale)
	case "relative_time":
		return formatRelativeTime(val, locale)
	default:
		return formatText(val)
	}
}

func formatNumber(val any, locale Locale) string {
	switch v := val.(type) {
	case float64:
		return locale.FormatNumber(v)
	case int:
		return locale.FormatNumber(float64(v))
	case int64:
		return locale.FormatNumber(float64(v))
	default:
		return formatText(val)
	}
}

func formatPercent(val any, locale Locale) string {
	if v, ok := val.(float64); ok {
		return locale.FormatPercent(v)
	}
	return formatText(val)
}

func formatBoolean(spec FieldSpec, val any) string {
	b := toBool(val)
	if label, ok := spec.Labels[fmt.Sprintf("%v", b)]; ok {
		return label
	}
	if b {
		return "yes"
	}
	return "no"
}

func parseTime(val any) (time.Time, bool) {
	switch v := val.(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02", v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func formatDate(val any, locale Locale) string {
	t, ok := parseTime(val)
	if !ok {
		return formatText(val)
	}
	return locale.FormatDate(t)
}

// formatRelativeTime renders "just now", "3 minutes ago", "yesterday" and so
// on for the past week, and a locale date beyond it.
func formatRelativeTime(val any, locale Locale) string {
	t, ok := parseTime(val)
	if !ok {
		return formatText(val)
	}

	diff := now().Sub(t)
	switch {
	case diff < 0:
		return locale.FormatDate(t)
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 48*time.Hour:
		return "yesterday"
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return locale.FormatDate(t)
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

func formatText(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%.2f", v)
	case []any:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, formatText(item))
		}
		return strings.Join(items, ", ")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toBool(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case string:
		return v == "true" || v == "1" || v == "yes"
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	default:
		return false
	}
}

func isEmpty(val any) bool {
	switch v := val.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case float64:
		return v == 0
	case []any:
		return len(v) == 0
	}
	return false
}
