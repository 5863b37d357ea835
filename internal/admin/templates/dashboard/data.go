package dashboard

import "time"

// PageData carries the signed-in staff member's summary.
type PageData struct {
	UID         string
	Email       string
	Roles       []string
	ExpiresAt   time.Time
	Now         time.Time
	Environment string
	LogoutPath  string
	MetricsPath string
	ShowMetrics bool
	CSRFToken   string
}
