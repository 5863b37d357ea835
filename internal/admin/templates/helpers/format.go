package helpers

import (
	"fmt"
	"strings"
	"time"
)

// Date formats the timestamp in the provided layout (defaults to 2006-01-02 15:04 MST).
func Date(ts time.Time, layout string) string {
	if ts.IsZero() {
		return ""
	}
	if layout == "" {
		layout = "2006-01-02 15:04 MST"
	}
	return ts.In(time.Local).Format(layout)
}

// Until returns a coarse "in N" string for a future timestamp.
func Until(now, ts time.Time) string {
	diff := ts.Sub(now)
	switch {
	case diff <= 0:
		return "expired"
	case diff < time.Minute:
		return "in less than a minute"
	case diff < time.Hour:
		return fmt.Sprintf("in %dm", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("in %dh", int(diff.Hours()))
	default:
		return ts.Format("2006-01-02")
	}
}

// BadgeClass maps semantic tones to utility classes.
func BadgeClass(tone string) string {
	switch tone {
	case "success":
		return "badge badge-success"
	case "warning":
		return "badge badge-warning"
	case "danger":
		return "badge badge-danger"
	default:
		return "badge"
	}
}

// EnvironmentBadge returns the short code and tone for a deployment label.
func EnvironmentBadge(label string) (string, string) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "production", "prod":
		return "PRD", "danger"
	case "staging", "stg":
		return "STG", "warning"
	case "development", "dev", "":
		return "DEV", "success"
	default:
		code := strings.ToUpper(strings.TrimSpace(label))
		if len(code) > 3 {
			code = code[:3]
		}
		return code, "neutral"
	}
}
