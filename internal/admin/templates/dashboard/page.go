// Package dashboard renders the landing page shown after a successful login.
package dashboard

import (
	"strings"

	"github.com/a-h/templ"
	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"

	"finitefield.org/hanko-admin/internal/admin/templates/helpers"
	"finitefield.org/hanko-admin/internal/admin/templates/layouts"
	"finitefield.org/hanko-admin/internal/admin/view"
)

// Page renders the dashboard document.
func Page(data PageData) templ.Component {
	return view.Component(layouts.Base("Dashboard", data.Environment, content(data)))
}

func content(data PageData) g.Node {
	who := data.Email
	if who == "" {
		who = data.UID
	}
	return h.Main(
		h.Class("dashboard"),
		h.H1(g.Text("Dashboard")),
		h.P(g.Attr("data-dashboard-user"), g.Textf("Signed in as %s", who)),
		h.Dl(
			h.Class("session-summary"),
			h.Dt(g.Text("Roles")),
			h.Dd(g.Attr("data-dashboard-roles"), g.Text(rolesText(data.Roles))),
			g.If(!data.ExpiresAt.IsZero(), g.Group([]g.Node{
				h.Dt(g.Text("Session expires")),
				h.Dd(
					g.Attr("data-dashboard-expiry"),
					h.TitleAttr(helpers.Date(data.ExpiresAt, "")),
					g.Text(helpers.Until(data.Now, data.ExpiresAt)),
				),
			})),
		),
		g.If(data.ShowMetrics && data.MetricsPath != "",
			h.P(h.A(h.Href(data.MetricsPath), g.Attr("data-dashboard-metrics"), g.Text("Login metrics"))),
		),
		h.Form(
			h.Method("post"),
			h.Action(data.LogoutPath),
			g.Attr("data-logout-form"),
			h.Input(h.Type("hidden"), h.Name("csrf_token"), h.Value(data.CSRFToken)),
			h.Button(h.Type("submit"), h.Class("btn"), g.Text("Sign out")),
		),
	)
}

func rolesText(roles []string) string {
	if len(roles) == 0 {
		return "none"
	}
	return strings.Join(roles, ", ")
}
