package httpserver

import (
	"net/http"
	"time"

	custommw "finitefield.org/hanko-admin/internal/admin/httpserver/middleware"
	"finitefield.org/hanko-admin/internal/admin/rbac"
	"finitefield.org/hanko-admin/internal/admin/templates/dashboard"
	"finitefield.org/hanko-admin/internal/admin/templates/helpers"
	"finitefield.org/hanko-admin/internal/admin/view"
)

type dashboardHandlers struct {
	logoutPath  string
	metricsPath string
	now         func() time.Time
}

func (h *dashboardHandlers) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, ok := custommw.UserFromContext(ctx)
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	data := dashboard.PageData{
		UID:         user.UID,
		Email:       user.Email,
		Roles:       user.Roles,
		Now:         h.now(),
		Environment: custommw.EnvironmentFromContext(ctx),
		LogoutPath:  h.logoutPath,
		MetricsPath: h.metricsPath,
		ShowMetrics: helpers.HasCapability(ctx, rbac.CapMetricsView),
		CSRFToken:   custommw.CSRFTokenFromContext(ctx),
	}
	if sess, ok := custommw.SessionFromContext(ctx); ok && sess.UID == user.UID {
		data.ExpiresAt = sess.ExpiresAt
	}
	view.Render(w, r, dashboard.Page(data), http.StatusOK)
}
